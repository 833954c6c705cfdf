package pairing

import (
	"fmt"

	"github.com/rigado/smp"
)

// Event drives the state machine. The first fifteen follow the SMP opcodes
// (PairCommitment is the Confirm opcode under Secure Connections), the
// rest are raised by the host, the application or the actions.
type Event uint8

const (
	eventNone Event = iota

	EventPairingRequest
	EventPairingResponse
	EventConfirm
	EventRand
	EventPairingFailed
	EventEncInfo
	EventCentralID
	EventIDInfo
	EventIDAddr
	EventSignInfo
	EventSecurityRequest
	EventPairPublicKey
	EventPairDHKeyCheck
	EventPairKeypress
	EventPairCommitment

	EventKeyReady
	EventEncrypted
	EventConnected
	EventDisconnected
	EventIoResponse
	EventSecurityGrant
	EventTKRequest
	EventAuthComplete
	EventEncReq
	EventBondReq
	EventDiscardSecReq
	EventPublicKeyExchReq
	EventLocalPublicKeyCreated
	EventBothPublicKeysReceived
	EventScDHKeyComplete
	EventHaveLocalNonce
	EventScPhase1Complete
	EventScCalcNC
	EventScDisplayNC
	EventScNCOk
	EventSc2DHKeyChecksPresent
	EventScKeyReady
	EventKeypress
	EventScOobData
	EventCreateLocalScOobData
	EventSirkVerify

	eventMax
)

// numEvents is the number of rows in each entry table.
const numEvents = int(eventMax) - 1

var eventNames = [eventMax]string{
	"None",
	"PairingRequest",
	"PairingResponse",
	"Confirm",
	"Rand",
	"PairingFailed",
	"EncInfo",
	"CentralID",
	"IDInfo",
	"IDAddr",
	"SignInfo",
	"SecurityRequest",
	"PairPublicKey",
	"PairDHKeyCheck",
	"PairKeypress",
	"PairCommitment",
	"KeyReady",
	"Encrypted",
	"Connected",
	"Disconnected",
	"IoResponse",
	"SecurityGrant",
	"TKRequest",
	"AuthComplete",
	"EncReq",
	"BondReq",
	"DiscardSecReq",
	"PublicKeyExchReq",
	"LocalPublicKeyCreated",
	"BothPublicKeysReceived",
	"ScDHKeyComplete",
	"HaveLocalNonce",
	"ScPhase1Complete",
	"ScCalcNC",
	"ScDisplayNC",
	"ScNCOk",
	"Sc2DHKeyChecksPresent",
	"ScKeyReady",
	"Keypress",
	"ScOobData",
	"CreateLocalScOobData",
	"SirkVerify",
}

func (e Event) Valid() bool { return e > eventNone && e < eventMax }

func (e Event) String() string {
	if e < eventMax {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", uint8(e))
}

// KeyType tags the value carried by a KeyReady event.
type KeyType uint8

const (
	KeyTK KeyType = iota + 1
	KeyConfirm
	KeyCompare
	KeySTK
	KeyLTK
	KeyDHKeyCheck
)

func (k KeyType) String() string {
	switch k {
	case KeyTK:
		return "tk"
	case KeyConfirm:
		return "confirm"
	case KeyCompare:
		return "compare"
	case KeySTK:
		return "stk"
	case KeyLTK:
		return "ltk"
	case KeyDHKeyCheck:
		return "dhkey-check"
	default:
		return fmt.Sprintf("KeyType(%d)", uint8(k))
	}
}

// EventData is the payload handed to the actions of a transition.
// Which fields are set depends on the event.
type EventData struct {
	// Command is the parsed PDU for events raised by a received PDU.
	Command *Command

	Status smp.Reason

	KeyType KeyType
	Key     []byte

	Passkey uint32
	IoCap   *smp.IoCapReply
	Oob     *smp.OobData
	// Accept is the application's yes/no (security grant, numeric
	// comparison, SIRK verification).
	Accept   bool
	Keypress smp.Keypress
}

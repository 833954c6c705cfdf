package pairing

import "fmt"

// Role selects the transition tables a Context is driven by.
type Role uint8

const (
	Central Role = iota
	Peripheral
	roleMax
)

func (r Role) String() string {
	switch r {
	case Central:
		return "central"
	case Peripheral:
		return "peripheral"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// State is the position of a Context in the pairing protocol.
type State uint8

const (
	StateIdle State = iota
	StateWaitAppResponse
	StateSecurityRequestPending
	StatePairReqRsp
	StateWaitConfirm
	StateConfirm
	StateRand
	StatePublicKeyExchange
	StateScPhase1Start
	StateWaitCommitment
	StateWaitNonce
	StateScPhase2Start
	StateWaitDhkCheck
	StateDhkCheck
	StateEncryptionPending
	StateBondPending
	StateCreateLocalScOobData
	stateMax
)

var stateNames = [stateMax]string{
	"Idle",
	"WaitAppResponse",
	"SecurityRequestPending",
	"PairReqRsp",
	"WaitConfirm",
	"Confirm",
	"Rand",
	"PublicKeyExchange",
	"ScPhase1Start",
	"WaitCommitment",
	"WaitNonce",
	"ScPhase2Start",
	"WaitDhkCheck",
	"DhkCheck",
	"EncryptionPending",
	"BondPending",
	"CreateLocalScOobData",
}

// Valid reports whether s is one of the 17 protocol states.
func (s State) Valid() bool { return s < stateMax }

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

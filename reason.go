package smp

import "fmt"

// Reason is a pairing outcome. Values 0x01 to 0x0f are the Pairing Failed
// reason codes [Vol 3, Part H, 3.5.5]; values from 0x10 are local and are
// never put on the wire.
type Reason uint8

const (
	Success                  Reason = 0x00
	PasskeyEntryFailed       Reason = 0x01
	OobNotAvailable          Reason = 0x02
	AuthRequirements         Reason = 0x03
	ConfirmValueFailed       Reason = 0x04
	PairingNotSupported      Reason = 0x05
	EncryptionKeySize        Reason = 0x06
	CommandNotSupported      Reason = 0x07
	UnspecifiedReason        Reason = 0x08
	RepeatedAttempts         Reason = 0x09
	InvalidParameters        Reason = 0x0a
	DHKeyCheckFailed         Reason = 0x0b
	NumericComparisonFailed  Reason = 0x0c
	BrEdrPairingInProgress   Reason = 0x0d
	CrossTransportNotAllowed Reason = 0x0e
	KeyRejected              Reason = 0x0f

	maxWireReason = KeyRejected

	InternalError        Reason = 0x10
	UnknownIoCapability  Reason = 0x11
	Busy                 Reason = 0x13
	EncryptionFailed     Reason = 0x14
	ResponseTimeout      Reason = 0x16
	ConnectionTerminated Reason = 0x18
	SirkDeviceInvalid    Reason = 0x19
)

var reasonNames = map[Reason]string{
	Success:                  "success",
	PasskeyEntryFailed:       "passkey entry failed",
	OobNotAvailable:          "oob not available",
	AuthRequirements:         "authentication requirements",
	ConfirmValueFailed:       "confirm value failed",
	PairingNotSupported:      "pairing not supported",
	EncryptionKeySize:        "encryption key size",
	CommandNotSupported:      "command not supported",
	UnspecifiedReason:        "unspecified reason",
	RepeatedAttempts:         "repeated attempts",
	InvalidParameters:        "invalid parameters",
	DHKeyCheckFailed:         "dhkey check failed",
	NumericComparisonFailed:  "numeric comparison failed",
	BrEdrPairingInProgress:   "br/edr pairing in progress",
	CrossTransportNotAllowed: "cross-transport key derivation not allowed",
	KeyRejected:              "key rejected",
	InternalError:            "internal error",
	UnknownIoCapability:      "unknown io capability",
	Busy:                     "busy",
	EncryptionFailed:         "encryption failed",
	ResponseTimeout:          "smp response timeout",
	ConnectionTerminated:     "connection terminated",
	SirkDeviceInvalid:        "sirk device invalid",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(0x%02x)", uint8(r))
}

// Error lets a failed Result travel as an error value. It reads the same
// as String, so %v prints the name whichever method fmt picks.
func (r Reason) Error() string {
	return r.String()
}

// Wire reports whether r may be sent to the peer in a Pairing Failed PDU.
func (r Reason) Wire() bool {
	return r != Success && r <= maxWireReason
}

// WireReason maps local reasons onto the closest code a peer understands.
func (r Reason) WireReason() Reason {
	switch {
	case r.Wire():
		return r
	case r == UnknownIoCapability:
		return InvalidParameters
	default:
		return UnspecifiedReason
	}
}

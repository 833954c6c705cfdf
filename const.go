package smp

import "fmt"

// CidSMP is the L2CAP fixed channel carrying SMP on LE-U.
const CidSMP = 0x0006

// IoCapability as exchanged in the Pairing Request / Response
// [Vol 3, Part H, 3.5.1].
type IoCapability uint8

const (
	DisplayOnly IoCapability = iota
	DisplayYesNo
	KeyboardOnly
	NoInputNoOutput
	KeyboardDisplay
	ioCapabilityMax
)

// Valid reports whether c is a defined IO capability.
func (c IoCapability) Valid() bool { return c < ioCapabilityMax }

func (c IoCapability) String() string {
	switch c {
	case DisplayOnly:
		return "DisplayOnly"
	case DisplayYesNo:
		return "DisplayYesNo"
	case KeyboardOnly:
		return "KeyboardOnly"
	case NoInputNoOutput:
		return "NoInputNoOutput"
	case KeyboardDisplay:
		return "KeyboardDisplay"
	default:
		return fmt.Sprintf("IoCapability(0x%02x)", uint8(c))
	}
}

// ParseIoCapability accepts the names printed by String, case sensitive.
func ParseIoCapability(s string) (IoCapability, error) {
	for c := DisplayOnly; c < ioCapabilityMax; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown io capability %q", s)
}

// OobFlag values.
const (
	OobNotPresent uint8 = 0x00
	OobPresent    uint8 = 0x01
)

// AuthReq bits [Vol 3, Part H, 3.5.1].
type AuthReq uint8

const (
	AuthBonding  AuthReq = 0x01
	AuthMITM     AuthReq = 0x04
	AuthSC       AuthReq = 0x08
	AuthKeypress AuthReq = 0x10
	AuthCT2      AuthReq = 0x20
)

func (a AuthReq) Bonding() bool  { return a&AuthBonding != 0 }
func (a AuthReq) MITM() bool     { return a&AuthMITM != 0 }
func (a AuthReq) SC() bool       { return a&AuthSC != 0 }
func (a AuthReq) Keypress() bool { return a&AuthKeypress != 0 }

func (a AuthReq) String() string {
	return fmt.Sprintf("0x%02x(bond=%v mitm=%v sc=%v kp=%v)", uint8(a), a.Bonding(), a.MITM(), a.SC(), a.Keypress())
}

// KeyDist is the Initiator/Responder Key Distribution bit field.
type KeyDist uint8

const (
	KeyDistEnc  KeyDist = 0x01
	KeyDistID   KeyDist = 0x02
	KeyDistSign KeyDist = 0x04
	KeyDistLink KeyDist = 0x08

	KeyDistAll = KeyDistEnc | KeyDistID | KeyDistSign
)

func (k KeyDist) String() string {
	return fmt.Sprintf("0x%02x(enc=%v id=%v sign=%v)", uint8(k), k&KeyDistEnc != 0, k&KeyDistID != 0, k&KeyDistSign != 0)
}

// Keypress notification types [Vol 3, Part H, 3.5.8].
type Keypress uint8

const (
	KeypressEntryStarted Keypress = iota
	KeypressDigitEntered
	KeypressDigitErased
	KeypressCleared
	KeypressEntryCompleted
	keypressMax
)

func (k Keypress) Valid() bool { return k < keypressMax }

func (k Keypress) String() string {
	switch k {
	case KeypressEntryStarted:
		return "entry started"
	case KeypressDigitEntered:
		return "digit entered"
	case KeypressDigitErased:
		return "digit erased"
	case KeypressCleared:
		return "cleared"
	case KeypressEntryCompleted:
		return "entry completed"
	default:
		return fmt.Sprintf("Keypress(0x%02x)", uint8(k))
	}
}

// Key size limits [Vol 3, Part H, 2.3.4].
const (
	MinKeySize = 7
	MaxKeySize = 16
)

// MaxPasskey is the largest six digit passkey.
const MaxPasskey = 999999

package pairing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

// Opcode is the first octet of an SMP PDU [Vol 3, Part H, 3.3].
type Opcode uint8

const (
	OpPairingRequest    Opcode = 0x01
	OpPairingResponse   Opcode = 0x02
	OpPairingConfirm    Opcode = 0x03
	OpPairingRandom     Opcode = 0x04
	OpPairingFailed     Opcode = 0x05
	OpEncryptionInfo    Opcode = 0x06
	OpCentralID         Opcode = 0x07
	OpIdentityInfo      Opcode = 0x08
	OpIdentityAddrInfo  Opcode = 0x09
	OpSigningInfo       Opcode = 0x0a
	OpSecurityRequest   Opcode = 0x0b
	OpPairingPublicKey  Opcode = 0x0c
	OpPairingDHKeyCheck Opcode = 0x0d
	OpPairingKeypress   Opcode = 0x0e
	opMax               Opcode = 0x0f
)

// passkeyIterationCount is the number of passkey entry rounds, one per bit.
const passkeyIterationCount = 20

type opInfo struct {
	name  string
	len   int // including the opcode
	event Event
}

var opTable = [opMax]opInfo{
	OpPairingRequest:    {"pairing request", 7, EventPairingRequest},
	OpPairingResponse:   {"pairing response", 7, EventPairingResponse},
	OpPairingConfirm:    {"pairing confirm", 17, EventConfirm},
	OpPairingRandom:     {"pairing random", 17, EventRand},
	OpPairingFailed:     {"pairing failed", 2, EventPairingFailed},
	OpEncryptionInfo:    {"encryption info", 17, EventEncInfo},
	OpCentralID:         {"central id", 11, EventCentralID},
	OpIdentityInfo:      {"id info", 17, EventIDInfo},
	OpIdentityAddrInfo:  {"id addr info", 8, EventIDAddr},
	OpSigningInfo:       {"signing info", 17, EventSignInfo},
	OpSecurityRequest:   {"security req", 2, EventSecurityRequest},
	OpPairingPublicKey:  {"pairing pub key", 65, EventPairPublicKey},
	OpPairingDHKeyCheck: {"pairing dhkey check", 17, EventPairDHKeyCheck},
	OpPairingKeypress:   {"pairing keypress", 2, EventPairKeypress},
}

func (o Opcode) valid() bool { return o > 0 && o < opMax }

func (o Opcode) String() string {
	if o.valid() {
		return opTable[o].name
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(o))
}

// Event returns the event a received PDU with this opcode raises.
func (o Opcode) Event() Event {
	if o.valid() {
		return opTable[o].event
	}
	return eventNone
}

// PairingParams are the six parameter octets of a Pairing Request or
// Response.
type PairingParams struct {
	IoCapability smp.IoCapability `json:"ioCapability"`
	OobFlag      uint8            `json:"oobFlag"`
	AuthReq      smp.AuthReq      `json:"authReq"`
	MaxKeySize   uint8            `json:"maxKeySize"`
	InitKeys     smp.KeyDist      `json:"initKeys"`
	RespKeys     smp.KeyDist      `json:"respKeys"`
}

// Bytes returns the PDU for op, which must be a request or response.
func (p PairingParams) Bytes(op Opcode) []byte {
	return []byte{byte(op), byte(p.IoCapability), p.OobFlag, byte(p.AuthReq), p.MaxKeySize, byte(p.InitKeys), byte(p.RespKeys)}
}

func (p PairingParams) validate() error {
	switch {
	case !p.IoCapability.Valid():
		return errors.Wrapf(smp.InvalidParameters, "io capability 0x%02x", uint8(p.IoCapability))
	case p.OobFlag > smp.OobPresent:
		return errors.Wrapf(smp.InvalidParameters, "oob flag 0x%02x", p.OobFlag)
	case p.MaxKeySize < smp.MinKeySize || p.MaxKeySize > smp.MaxKeySize:
		return errors.Wrapf(smp.EncryptionKeySize, "max key size %d", p.MaxKeySize)
	}
	return nil
}

// Command is a parsed SMP PDU. Only the fields of its opcode are set.
type Command struct {
	Op Opcode `json:"op"`

	// Raw is the complete PDU as received, c1 needs it for requests and
	// responses.
	Raw []byte `json:"-"`

	Params *PairingParams `json:"params,omitempty"`

	// Value is the 128 bit payload of Confirm, Random, Encryption
	// Information, Identity Information, Signing Information and DHKey
	// Check.
	Value []byte `json:"value,omitempty"`

	Reason    smp.Reason     `json:"reason,omitempty"`
	EDIV      uint16         `json:"ediv,omitempty"`
	Rand      uint64         `json:"rand,omitempty"`
	Addr      *smp.Addr      `json:"addr,omitempty"`
	AuthReq   smp.AuthReq    `json:"authReq,omitempty"`
	PublicKey *smp.PublicKey `json:"publicKey,omitempty"`
	Keypress  smp.Keypress   `json:"keypress,omitempty"`
}

func (c *Command) String() string {
	return fmt.Sprintf("%v [%v]", c.Op, hex.EncodeToString(c.Raw))
}

// ParseCommand decodes and validates a PDU received from the peer.
// Errors carry the smp.Reason the pairing fails with: CommandNotSupported
// for unknown opcodes, InvalidParameters (or EncryptionKeySize) otherwise.
// Use errors.Cause to recover it.
func ParseCommand(b []byte) (*Command, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(smp.InvalidParameters, "empty pdu")
	}

	op := Opcode(b[0])
	if !op.valid() {
		return nil, errors.Wrapf(smp.CommandNotSupported, "opcode 0x%02x", b[0])
	}
	if len(b) != opTable[op].len {
		return nil, errors.Wrapf(smp.InvalidParameters, "%v: invalid length %v", op, len(b))
	}

	c := &Command{Op: op, Raw: append([]byte(nil), b...)}
	data := c.Raw[1:]

	switch op {
	case OpPairingRequest, OpPairingResponse:
		p := &PairingParams{
			IoCapability: smp.IoCapability(data[0]),
			OobFlag:      data[1],
			AuthReq:      smp.AuthReq(data[2]),
			MaxKeySize:   data[3],
			InitKeys:     smp.KeyDist(data[4]),
			RespKeys:     smp.KeyDist(data[5]),
		}
		if err := p.validate(); err != nil {
			return nil, errors.Wrap(err, op.String())
		}
		c.Params = p

	case OpPairingConfirm, OpPairingRandom, OpEncryptionInfo, OpIdentityInfo, OpSigningInfo, OpPairingDHKeyCheck:
		c.Value = data

	case OpPairingFailed:
		c.Reason = smp.Reason(data[0])

	case OpCentralID:
		c.EDIV = binary.LittleEndian.Uint16(data[0:2])
		c.Rand = binary.LittleEndian.Uint64(data[2:10])

	case OpIdentityAddrInfo:
		t := smp.AddrType(data[0])
		if t > smp.AddrRandom {
			return nil, errors.Wrapf(smp.InvalidParameters, "%v: address type 0x%02x", op, data[0])
		}
		a := smp.AddrFromWire(data[1:7], t)
		c.Addr = &a

	case OpSecurityRequest:
		c.AuthReq = smp.AuthReq(data[0])

	case OpPairingPublicKey:
		var k smp.PublicKey
		copy(k[:], data)
		c.PublicKey = &k

	case OpPairingKeypress:
		c.Keypress = smp.Keypress(data[0])
		if !c.Keypress.Valid() {
			return nil, errors.Wrapf(smp.InvalidParameters, "%v: type 0x%02x", op, data[0])
		}
	}

	return c, nil
}

func buildPDU(op Opcode, parts ...[]byte) []byte {
	out := []byte{byte(op)}
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func pairingFailedPDU(r smp.Reason) []byte {
	return []byte{byte(OpPairingFailed), byte(r.WireReason())}
}

func securityRequestPDU(a smp.AuthReq) []byte {
	return []byte{byte(OpSecurityRequest), byte(a)}
}

func centralIDPDU(ediv uint16, rand uint64) []byte {
	b := make([]byte, 11)
	b[0] = byte(OpCentralID)
	binary.LittleEndian.PutUint16(b[1:], ediv)
	binary.LittleEndian.PutUint64(b[3:], rand)
	return b
}

func identityAddrPDU(a smp.Addr) []byte {
	return buildPDU(OpIdentityAddrInfo, []byte{byte(a.Type)}, a.Octets[:])
}

func keypressPDU(k smp.Keypress) []byte {
	return []byte{byte(OpPairingKeypress), byte(k)}
}

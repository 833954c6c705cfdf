package smp

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AddrType is the LE address type carried next to a device address.
type AddrType uint8

const (
	AddrPublic AddrType = 0x00
	AddrRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrPublic:
		return "public"
	case AddrRandom:
		return "random"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// Addr represents an LE device address. Octets are stored in wire order,
// least significant first.
type Addr struct {
	Octets [6]byte
	Type   AddrType
}

// NewAddr parses "aa:bb:cc:dd:ee:ff" (most significant first) or its
// 12 character hex form.
func NewAddr(s string, t AddrType) (Addr, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Addr{}, errors.Wrapf(err, "can't decode address %q", s)
	}
	if len(b) != 6 {
		return Addr{}, errors.Errorf("address %q: want 6 octets, got %d", s, len(b))
	}

	a := Addr{Type: t}
	for i := range b {
		a.Octets[5-i] = b[i]
	}
	return a, nil
}

// AddrFromWire builds an Addr from a 6 octet little-endian buffer.
func AddrFromWire(b []byte, t AddrType) Addr {
	a := Addr{Type: t}
	copy(a.Octets[:], b)
	return a
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a.Octets[5], a.Octets[4], a.Octets[3], a.Octets[2], a.Octets[1], a.Octets[0])
}

// Key is the form used to index bond storage: 12 lowercase hex digits,
// most significant first.
func (a Addr) Key() string {
	return strings.Replace(a.String(), ":", "", -1)
}

// Bytes7 returns the 56 bit address form used by f5 and f6: the six
// address octets followed by the type.
func (a Addr) Bytes7() []byte {
	out := make([]byte, 7)
	copy(out, a.Octets[:])
	out[6] = byte(a.Type)
	return out
}

func (a Addr) IsZero() bool {
	return a.Octets == [6]byte{}
}

package hci

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

// Event parameter views. Getters fail on short events.

type disconnectionComplete []byte

func (e disconnectionComplete) StatusWErr() (uint8, error)            { return getByte(e, 0, 0xff) }
func (e disconnectionComplete) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }
func (e disconnectionComplete) ReasonWErr() (uint8, error)            { return getByte(e, 3, 0) }

type encryptionChange []byte

func (e encryptionChange) StatusWErr() (uint8, error)            { return getByte(e, 0, 0xff) }
func (e encryptionChange) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }
func (e encryptionChange) EncryptionEnabledWErr() (uint8, error) { return getByte(e, 3, 0) }

type encryptionKeyRefreshComplete []byte

func (e encryptionKeyRefreshComplete) StatusWErr() (uint8, error) { return getByte(e, 0, 0xff) }
func (e encryptionKeyRefreshComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}

type commandComplete []byte

func (e commandComplete) CommandOpcodeWErr() (uint16, error)    { return getUint16LE(e, 1, 0xffff) }
func (e commandComplete) ReturnParametersWErr() ([]byte, error) { return getBytes(e, 3, -1) }

type commandStatus []byte

func (e commandStatus) StatusWErr() (uint8, error)         { return getByte(e, 0, 0xff) }
func (e commandStatus) CommandOpcodeWErr() (uint16, error) { return getUint16LE(e, 2, 0xffff) }

// leConnectionComplete covers both the legacy and the enhanced event, the
// fields used here sit at the same offsets.
type leConnectionComplete []byte

func (e leConnectionComplete) StatusWErr() (uint8, error)            { return getByte(e, 1, 0xff) }
func (e leConnectionComplete) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 2, 0xffff) }
func (e leConnectionComplete) RoleWErr() (uint8, error)              { return getByte(e, 4, 0xff) }

func (e leConnectionComplete) PeerAddressWErr() (smp.Addr, error) {
	t, err := getByte(e, 5, 0)
	if err != nil {
		return smp.Addr{}, err
	}
	b, err := getBytes(e, 6, 6)
	if err != nil {
		return smp.Addr{}, err
	}
	// 0x02/0x03 are resolved identity addresses in the enhanced event
	return smp.AddrFromWire(b, smp.AddrType(t&0x01)), nil
}

type leLongTermKeyRequest []byte

func (e leLongTermKeyRequest) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }

func (e leLongTermKeyRequest) RandomNumberWErr() (uint64, error) {
	b, err := getBytes(e, 3, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (e leLongTermKeyRequest) EncryptedDiversifierWErr() (uint16, error) {
	return getUint16LE(e, 11, 0)
}

//get or default
func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

//get or default
func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getBytes(bytes []byte, start int, count int) ([]byte, error) {
	if bytes == nil || start > len(bytes) || (start == len(bytes) && count != -1) {
		return nil, errors.Errorf("index %d out of range (len %d)", start, len(bytes))
	}

	if count < 0 {
		return bytes[start:], nil
	}

	end := start + count
	//end is non-inclusive
	if end > len(bytes) {
		return nil, errors.Errorf("index %d out of range (len %d)", end, len(bytes))
	}

	return bytes[start:end], nil
}

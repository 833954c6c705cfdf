package hci

import (
	"time"

	"github.com/pkg/errors"
)

const (
	headerLengthEvent = 3 // type, code, plen
	headerLengthACL   = 5 // type, handle, dlen

	frameTimeout = 500 * time.Millisecond
)

var errShortFrame = errors.New("not enough bytes")

// frame reassembles H4 packets from a byte stream. A UART may split or
// merge packets arbitrarily; a partial packet older than frameTimeout is
// dropped and the stream resynchronized on the next packet type byte.
type frame struct {
	b       []byte
	timeout time.Time
	pktType byte

	now func() time.Time
}

func newFrame() *frame {
	return &frame{now: time.Now}
}

// Assemble consumes b and returns every packet it completed, each
// beginning with its H4 packet type.
func (f *frame) Assemble(b []byte) [][]byte {
	var out [][]byte

	if len(f.b) != 0 && !f.timeout.IsZero() && f.now().After(f.timeout) {
		f.reset()
	}

	for len(b) > 0 {
		if len(f.b) == 0 {
			var ok bool
			if b, ok = f.waitStart(b); !ok {
				return out
			}
		}

		tl, err := f.length()
		if err != nil && err != errShortFrame {
			f.reset()
			return out
		}
		if err == errShortFrame {
			// header not complete yet, pull in at most what it needs
			need := headerLengthACL - len(f.b)
			if f.pktType == pktTypeEvent {
				need = headerLengthEvent - len(f.b)
			}
			if need > len(b) {
				need = len(b)
			}
			f.b = append(f.b, b[:need]...)
			b = b[need:]
			continue
		}

		need := tl - len(f.b)
		if need > len(b) {
			f.b = append(f.b, b...)
			return out
		}

		f.b = append(f.b, b[:need]...)
		b = b[need:]
		out = append(out, f.b)
		f.reset()
	}

	return out
}

func (f *frame) reset() {
	f.b = nil
	f.timeout = time.Time{}
}

// waitStart skips to the first packet type byte the host accepts.
func (f *frame) waitStart(b []byte) ([]byte, bool) {
	for i, v := range b {
		switch v {
		case pktTypeEvent, pktTypeACLData:
		default:
			continue
		}

		f.pktType = v
		f.timeout = f.now().Add(frameTimeout)
		f.b = make([]byte, 0, 256)
		return b[i:], true
	}
	return nil, false
}

// length is the total packet length, known once the header is in.
func (f *frame) length() (int, error) {
	switch f.pktType {
	case pktTypeACLData:
		if len(f.b) < headerLengthACL {
			return 0, errShortFrame
		}
		return headerLengthACL + (int(f.b[3]) | int(f.b[4])<<8), nil

	case pktTypeEvent:
		if len(f.b) < headerLengthEvent {
			return 0, errShortFrame
		}
		return headerLengthEvent + int(f.b[2]), nil

	default:
		return 0, errors.Errorf("invalid packet type 0x%02x", f.pktType)
	}
}

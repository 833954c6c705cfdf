package hci

import (
	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

// conn is one LE connection. It reassembles inbound L2CAP frames and
// carries the pairing engine's requests to the controller.
type conn struct {
	h      *Host
	handle uint16
	peer   smp.Addr

	// partial L2CAP frame, touched by the read loop only
	rx []byte

	// LE Start Encryption sent, no Encryption Change yet. Guarded by
	// Host.muConns.
	encPending bool
}

// putPacket takes one ACL packet and returns the SMP payload when it
// completes a frame on CidSMP.
func (c *conn) putPacket(p aclPacket) ([]byte, error) {
	switch p.pbf() {
	case pbfControllerToHostStart, pbfHostToControllerStart, pbfCompleteL2CAPPDU:
		if len(c.rx) != 0 {
			c.h.log.Debugf("hci %04x: dropping partial frame (%d bytes)", c.handle, len(c.rx))
		}
		c.rx = append([]byte(nil), p.data()...)

	case pbfContinuing:
		if len(c.rx) == 0 {
			return nil, errors.Errorf("continuing fragment without start, handle %04x", c.handle)
		}
		c.rx = append(c.rx, p.data()...)
	}

	if len(c.rx) < 4 {
		return nil, nil
	}

	f := pdu(c.rx)
	switch {
	case len(f) < 4+f.dlen():
		return nil, nil
	case len(f) > 4+f.dlen():
		c.rx = nil
		return nil, errors.Errorf("l2cap frame overrun, handle %04x: want %d, got %d", c.handle, 4+f.dlen(), len(f))
	}

	c.rx = nil
	if f.cid() != CidSMP {
		return nil, nil
	}
	return f.payload(), nil
}

func (c *conn) Send(pdu []byte) error {
	for _, b := range aclFragments(c.handle, CidSMP, pdu, c.h.aclDataLen) {
		if err := c.h.write(b); err != nil {
			return errors.Wrapf(err, "can't send smp pdu to %04x", c.handle)
		}
	}
	return nil
}

func (c *conn) StartEncryption(ltk []byte, ediv uint16, rand uint64) error {
	if len(ltk) != 16 {
		return errors.Errorf("ltk must be 16 bytes, got %d", len(ltk))
	}
	c.h.muConns.Lock()
	c.encPending = true
	c.h.muConns.Unlock()

	return errors.Wrap(c.h.write(leStartEncryption(c.handle, rand, ediv, ltk)), "can't start encryption")
}

func (c *conn) LtkReply(ltk []byte) error {
	if ltk == nil {
		return errors.Wrap(c.h.write(leLongTermKeyRequestNegativeReply(c.handle)), "can't send ltk negative reply")
	}
	if len(ltk) != 16 {
		return errors.Errorf("ltk must be 16 bytes, got %d", len(ltk))
	}
	return errors.Wrap(c.h.write(leLongTermKeyRequestReply(c.handle, ltk)), "can't send ltk reply")
}

package pairing

import (
	"encoding/binary"

	"github.com/rigado/smp"
)

// keyDistribute sends our keys once it is our turn: the responder
// distributes first. The Enc key is sent through a KeyReady round trip so
// sendEncInfo can resume distribution afterwards.
func keyDistribute(c *Context, data *EventData) {
	if c.role == Central && c.peerKeys != 0 {
		c.log.Debugf("waiting for peer keys %v", c.peerKeys)
		return
	}

	for c.localKeys != 0 {
		switch {
		case c.localKeys&smp.KeyDistEnc != 0:
			b, err := c.tb.Random(16 + 2 + 8)
			if err != nil {
				c.failErr(err)
				return
			}
			ek := &smp.EncKey{
				LTK:  c.maskKey(b[:16]),
				EDIV: binary.LittleEndian.Uint16(b[16:18]),
				Rand: binary.LittleEndian.Uint64(b[18:26]),
			}
			c.localEnc = ek
			c.raise(EventKeyReady, &EventData{KeyType: KeyLTK, Key: ek.LTK})
			return

		case c.localKeys&smp.KeyDistID != 0:
			irk := c.cfg.IRK
			if irk == [16]byte{} {
				if !c.newRandom(&irk) {
					return
				}
			}
			id := c.cfg.IdentityAddress
			if id.IsZero() {
				id = c.local
			}
			if !c.send(buildPDU(OpIdentityInfo, irk[:])) || !c.send(identityAddrPDU(id)) {
				return
			}
			c.localKeys &^= smp.KeyDistID

		case c.localKeys&smp.KeyDistSign != 0:
			csrk, err := c.tb.Random(16)
			if err != nil {
				c.failErr(err)
				return
			}
			if !c.send(buildPDU(OpSigningInfo, csrk)) {
				return
			}
			c.localCSRK = csrk
			c.localKeys &^= smp.KeyDistSign

		default:
			// only bits we never send are left
			c.localKeys = 0
		}
	}

	if c.peerKeys == 0 && c.state == StateBondPending {
		c.complete(smp.Success)
	}
}

func sendEncInfo(c *Context, data *EventData) {
	if c.localEnc == nil {
		c.fail(smp.InternalError)
		return
	}
	if !c.send(buildPDU(OpEncryptionInfo, c.localEnc.LTK)) ||
		!c.send(centralIDPDU(c.localEnc.EDIV, c.localEnc.Rand)) {
		return
	}
	c.localKeys &^= smp.KeyDistEnc
	keyDistribute(c, data)
}

// peerKey checks that the PDU in data carries a key the peer is still
// expected to send.
func peerKey(c *Context, data *EventData, bit smp.KeyDist) (*Command, bool) {
	if data == nil || data.Command == nil {
		c.fail(smp.InvalidParameters)
		return nil, false
	}
	if c.peerKeys&bit == 0 {
		c.log.Warnf("unexpected %v, expecting %v", data.Command.Op, c.peerKeys)
		c.fail(smp.InvalidParameters)
		return nil, false
	}
	return data.Command, true
}

func procEncInfo(c *Context, data *EventData) {
	cmd, ok := peerKey(c, data, smp.KeyDistEnc)
	if !ok {
		return
	}
	c.peerEnc = &smp.EncKey{LTK: append([]byte(nil), cmd.Value...)}
}

func procCentralID(c *Context, data *EventData) {
	cmd, ok := peerKey(c, data, smp.KeyDistEnc)
	if !ok {
		return
	}
	if c.peerEnc == nil {
		// central id before encryption information
		c.fail(smp.InvalidParameters)
		return
	}
	c.peerEnc.EDIV = cmd.EDIV
	c.peerEnc.Rand = cmd.Rand
	c.peerKeys &^= smp.KeyDistEnc
	keyDistribute(c, data)
}

func procIDInfo(c *Context, data *EventData) {
	cmd, ok := peerKey(c, data, smp.KeyDistID)
	if !ok {
		return
	}
	c.peerIRK = append([]byte(nil), cmd.Value...)
}

func procIDAddr(c *Context, data *EventData) {
	cmd, ok := peerKey(c, data, smp.KeyDistID)
	if !ok {
		return
	}
	if c.peerIRK == nil || cmd.Addr == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	a := *cmd.Addr
	c.identity = &a
	c.peerKeys &^= smp.KeyDistID
	keyDistribute(c, data)
}

func procSrkInfo(c *Context, data *EventData) {
	cmd, ok := peerKey(c, data, smp.KeyDistSign)
	if !ok {
		return
	}
	c.peerCSRK = append([]byte(nil), cmd.Value...)
	c.peerKeys &^= smp.KeyDistSign
	keyDistribute(c, data)
}

// sirkVerify finishes bonding. A central whose application verifies set
// membership waits for its SirkReply.
func sirkVerify(c *Context, data *EventData) {
	if data == nil || data.Status != smp.Success {
		c.redirect(StateIdle)
		sendPairFail(c, data)
		pairingComplete(c, data)
		return
	}

	if v, ok := c.app.(SirkVerifier); ok && c.role == Central && v.VerifySirk(c.peer) {
		c.log.Debugf("waiting for sirk verification")
		return
	}
	c.redirect(StateIdle)
	pairingComplete(c, data)
}

package pairing

import (
	"bytes"
	"encoding/hex"

	"github.com/rigado/smp"
)

// c1 computes a legacy confirm value over the link's request, response
// and addresses.
func (c *Context) c1(r []byte) ([]byte, bool) {
	out, err := c.tb.C1(c.tk[:], r, c.preq, c.pres, c.centralAddr(), c.peripheralAddr())
	if err != nil {
		c.failErr(err)
		return nil, false
	}
	return out, true
}

func (c *Context) newRandom(dst *[16]byte) bool {
	b, err := c.tb.Random(16)
	if err != nil {
		c.failErr(err)
		return false
	}
	copy(dst[:], b)
	return true
}

// generateConfirm computes Mconfirm on the central once the TK is known.
func generateConfirm(c *Context, data *EventData) {
	if data != nil && data.KeyType == KeyTK {
		copy(c.tk[:], data.Key)
	}
	if !c.newRandom(&c.localRand) {
		return
	}

	conf, ok := c.c1(c.localRand[:])
	if !ok {
		return
	}
	copy(c.localConfirm[:], conf)
	c.raise(EventKeyReady, &EventData{KeyType: KeyConfirm, Key: conf})
}

func sendConfirm(c *Context, data *EventData) {
	c.send(buildPDU(OpPairingConfirm, c.localConfirm[:]))
}

// procConfirm stores the peer's confirm. Without data it only marks that
// the confirm is in.
func procConfirm(c *Context, data *EventData) {
	if data != nil && data.Command != nil {
		copy(c.peerConfirm[:], data.Command.Value)
	}
	c.flags |= flagPeerConfirm
}

func sendRand(c *Context, data *EventData) {
	c.send(buildPDU(OpPairingRandom, c.localRand[:]))
}

func procRand(c *Context, data *EventData) {
	if data == nil || data.Command == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	copy(c.peerRand[:], data.Command.Value)
}

// generateCompare computes the confirm the peer should have sent.
func generateCompare(c *Context, data *EventData) {
	exp, ok := c.c1(c.peerRand[:])
	if !ok {
		return
	}
	c.raise(EventKeyReady, &EventData{KeyType: KeyCompare, Key: exp})
}

func procCompare(c *Context, data *EventData) {
	if data == nil || !bytes.Equal(data.Key, c.peerConfirm[:]) {
		c.log.Warnf("confirm mismatch, exp %v", hex.EncodeToString(c.peerConfirm[:]))
		c.fail(smp.ConfirmValueFailed)
		return
	}

	c.keySize = int(min8(c.localParams.MaxKeySize, c.peerParams.MaxKeySize))
	if c.role == Peripheral {
		c.raise(EventRand, nil)
		return
	}
	c.raise(EventEncReq, nil)
}

// procSlKey handles keys becoming ready on the peripheral: the TK, after
// which Sconfirm is computed, then Sconfirm itself.
func procSlKey(c *Context, data *EventData) {
	if data == nil {
		return
	}

	switch data.KeyType {
	case KeyTK:
		copy(c.tk[:], data.Key)
		if !c.newRandom(&c.localRand) {
			return
		}
		conf, ok := c.c1(c.localRand[:])
		if !ok {
			return
		}
		copy(c.localConfirm[:], conf)
		c.raise(EventKeyReady, &EventData{KeyType: KeyConfirm, Key: conf})

	case KeyConfirm:
		c.redirect(StateWaitConfirm)
		if c.flags.has(flagPeerConfirm) {
			// central's confirm came in while ours was being computed
			c.raise(EventConfirm, nil)
		}
	}
}

// generateStk derives the key the link is encrypted with: s1 for legacy,
// the f5 LTK for Secure Connections.
func generateStk(c *Context, data *EventData) {
	var key []byte
	if c.sc {
		if c.linkKey == nil {
			c.fail(smp.InternalError)
			return
		}
		key = append([]byte(nil), c.linkKey...)
	} else {
		srand, mrand := c.localRand[:], c.peerRand[:]
		if c.role == Central {
			srand, mrand = mrand, srand
		}
		stk, err := c.tb.S1(c.tk[:], srand, mrand)
		if err != nil {
			c.failErr(err)
			return
		}
		key = stk
	}

	if c.keySize == 0 {
		c.keySize = int(min8(c.localParams.MaxKeySize, c.peerParams.MaxKeySize))
	}
	c.linkKey = c.maskKey(key)
	c.raise(EventKeyReady, &EventData{KeyType: KeySTK, Key: c.linkKey})
}

package pairing

import (
	"time"

	"github.com/rigado/smp"
)

// sendPairFail tells the peer why pairing stopped. Local conditions the
// peer has no code for, and outcomes that are not failures, are not sent.
func sendPairFail(c *Context, data *EventData) {
	if data != nil {
		c.status = data.Status
	}

	switch c.status {
	case smp.Success, smp.ResponseTimeout, smp.ConnectionTerminated, smp.EncryptionFailed, smp.SirkDeviceInvalid:
		return
	}
	if err := c.tr.Send(pairingFailedPDU(c.status)); err != nil {
		c.log.Warnf("send pairing failed: %v", err)
	}
}

func procPairFail(c *Context, data *EventData) {
	c.status = smp.UnspecifiedReason
	if data != nil && data.Command != nil {
		c.status = data.Command.Reason
	}
	if c.status == smp.Success || !c.status.Wire() {
		c.status = smp.UnspecifiedReason
	}
	c.log.Warnf("peer failed pairing: %v", c.status)
}

// pairingComplete reports the attempt's result to the application and
// leaves the Context finished. Keys are only handed out on success.
func pairingComplete(c *Context, data *EventData) {
	if data != nil && (c.event == EventAuthComplete || c.event == EventSirkVerify) {
		c.status = data.Status
	}

	res := smp.Result{Reason: c.status}
	if c.status == smp.Success && c.linkKey != nil {
		res.Keys = c.keySet()
	}

	c.clearEphemeral()
	c.clearKeys()

	if res.Keys != nil && res.Keys.Bonded && c.bonds != nil {
		if err := c.bonds.Save(res.Keys); err != nil {
			c.log.Errorf("save bond: %v", err)
		}
	}

	c.flags |= flagFinished
	c.state = StateIdle
	if c.status == smp.Success {
		c.log.Infof("pairing complete, model %v, secure connections %v", c.model, c.sc)
	} else {
		c.log.Infof("pairing complete: %v", c.status)
	}
	c.app.PairingComplete(c.peer, res)
}

// keySet copies the derived keys out, clearKeys wipes the originals.
func (c *Context) keySet() *smp.KeySet {
	ks := &smp.KeySet{
		Peer:              c.peer,
		LinkKey:           append([]byte(nil), c.linkKey...),
		KeySize:           c.keySize,
		Authenticated:     c.model.Authenticated(),
		SecureConnections: c.sc,
		Bonded:            c.localParams.AuthReq.Bonding() && c.peerParams.AuthReq.Bonding(),
		PeerIRK:           c.peerIRK,
		LocalCSRK:         c.localCSRK,
		PeerCSRK:          c.peerCSRK,
		Created:           time.Now(),
		Attempt:           c.attempt,
	}

	if c.sc {
		ks.LocalEnc = &smp.EncKey{LTK: append([]byte(nil), c.linkKey...)}
		ks.PeerEnc = &smp.EncKey{LTK: append([]byte(nil), c.linkKey...)}
	} else {
		ks.LocalEnc = copyEncKey(c.localEnc)
		ks.PeerEnc = copyEncKey(c.peerEnc)
	}
	if c.identity != nil {
		a := *c.identity
		ks.IdentityAddr = &a
	}
	return ks
}

func copyEncKey(k *smp.EncKey) *smp.EncKey {
	if k == nil {
		return nil
	}
	return &smp.EncKey{LTK: append([]byte(nil), k.LTK...), EDIV: k.EDIV, Rand: k.Rand}
}

func pairTerminate(c *Context, data *EventData) {
	c.status = smp.ConnectionTerminated
	pairingComplete(c, nil)
	c.flags |= flagClosed
}

// idleTerminate handles a disconnect before anything was exchanged. Only
// a locally requested attempt has anyone waiting for a result.
func idleTerminate(c *Context, data *EventData) {
	c.status = smp.ConnectionTerminated
	if c.flags.has(flagWeStarted) {
		pairingComplete(c, nil)
	} else {
		c.clearEphemeral()
		c.clearKeys()
	}
	c.flags |= flagClosed
}

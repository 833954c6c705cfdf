package pairing

import (
	"encoding/binary"

	"github.com/rigado/smp"
)

// sendAppCallback issues the pending application request.
func sendAppCallback(c *Context, data *EventData) {
	req := c.pending
	c.pending = reqNone

	switch req {
	case reqSecurity:
		if c.flags.has(flagDiscard) {
			c.flags &^= flagDiscard
			c.raise(EventDiscardSecReq, nil)
			return
		}
		c.app.SecurityRequest(c.peer)
	case reqIoCap:
		c.app.IoCapabilityRequest(c.peer)
	case reqPasskey:
		c.app.PasskeyRequest(c.peer)
	case reqNumericComparison:
		c.app.NumericComparison(c.peer, c.ncValue)
	case reqLegacyOob:
		c.app.OobRequest(c.peer, false)
	case reqScOob:
		c.app.OobRequest(c.peer, true)
	case reqKeypress:
		// a keypress does not answer what the app was asked before
		c.pending = c.keypressPrev
		c.app.KeypressNotify(c.peer, c.keypressIn)
	case reqLocalOob:
		if h, ok := c.app.(LocalOobHandler); ok && c.oob != nil {
			h.LocalOobData(c.oob.data, nil)
		}
	default:
		c.log.Debugf("no app request pending in %v", c.state)
	}
}

// procSecReq handles a Security Request from the peripheral.
func procSecReq(c *Context, data *EventData) {
	if data == nil || data.Command == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	auth := data.Command.AuthReq
	c.peerParams.AuthReq = auth

	if ek := bondedKey(c, auth); ek != nil {
		c.log.Infof("security request: encrypting with stored key")
		c.reencrypt = ek
		c.raise(EventEncReq, nil)
		return
	}

	c.pending = reqSecurity
	if c.flags.has(flagEncrypted) {
		c.flags |= flagDiscard
	}
}

// bondedKey returns the stored key to encrypt with when it satisfies
// the requested security.
func bondedKey(c *Context, auth smp.AuthReq) *smp.EncKey {
	if c.bonds == nil || !c.bonds.Exists(c.peer) {
		return nil
	}
	ks, err := c.bonds.Find(c.peer)
	if err != nil {
		c.log.Warnf("bond lookup: %v", err)
		return nil
	}

	switch {
	case auth.MITM() && !ks.Authenticated:
		return nil
	case auth.SC() && c.cfg.AuthReq.SC() && !ks.SecureConnections:
		return nil
	case ks.SecureConnections && len(ks.LinkKey) > 0:
		return &smp.EncKey{LTK: ks.LinkKey}
	case ks.PeerEnc != nil:
		return ks.PeerEnc
	}
	return nil
}

func procSecGrant(c *Context, data *EventData) {
	if data == nil || !data.Accept {
		c.fail(smp.PairingNotSupported)
		return
	}
	c.pending = reqIoCap
}

// applyIoCap takes the application's parameters for this attempt.
func applyIoCap(c *Context, data *EventData) {
	if data == nil || data.IoCap == nil {
		return
	}
	r := data.IoCap
	c.localParams.IoCapability = r.IoCapability
	c.localParams.OobFlag = r.OobFlag
	c.localParams.AuthReq = r.AuthReq
	if r.MaxKeySize != 0 {
		c.localParams.MaxKeySize = r.MaxKeySize
	}
	c.localParams.InitKeys = r.InitKeys
	c.localParams.RespKeys = r.RespKeys
}

func sendPairReq(c *Context, data *EventData) {
	applyIoCap(c, data)
	if err := c.localParams.validate(); err != nil {
		c.log.Errorf("pairing request: %v", err)
		c.fail(smp.InternalError)
		return
	}

	c.localParams.InitKeys &^= smp.KeyDistLink
	c.localParams.RespKeys &^= smp.KeyDistLink
	if !c.localParams.AuthReq.SC() {
		// CT2 only means something with SC
		c.localParams.AuthReq &^= smp.AuthCT2
	}

	c.preq = c.localParams.Bytes(OpPairingRequest)
	c.send(c.preq)
}

// procPairCmd records the peer's Pairing Request or Response.
func procPairCmd(c *Context, data *EventData) {
	if data == nil || data.Command == nil || data.Command.Params == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	cmd := data.Command
	p := *cmd.Params
	c.peerParams = p

	if c.role == Central {
		c.pres = cmd.Raw
	} else {
		c.preq = cmd.Raw
	}

	if int(min8(c.localParams.MaxKeySize, p.MaxKeySize)) < int(c.cfg.MinKeySize) {
		c.fail(smp.EncryptionKeySize)
		return
	}
	if c.cfg.SecureConnectionsOnly && !p.AuthReq.SC() {
		c.fail(smp.AuthRequirements)
		return
	}

	if c.role == Peripheral {
		if !c.flags.has(flagWeStarted) {
			c.pending = reqSecurity
			return
		}
		peripheralRespond(c)
		return
	}

	// the responder may only drop keys it was asked for
	if p.InitKeys&^c.localParams.InitKeys != 0 || p.RespKeys&^c.localParams.RespKeys != 0 {
		c.fail(smp.InvalidParameters)
		return
	}
	c.setKeyDistribution(p.InitKeys, p.RespKeys)

	sc := c.localParams.AuthReq.SC() && p.AuthReq.SC()
	m, err := associationModel(c.localParams, p, sc)
	if err == nil && sc && m == OutOfBand && needPeerOob(c) {
		c.pending = reqScOob
		c.raise(EventTKRequest, nil)
		return
	}
	decideAssociationModel(c, data)
}

// procIoRsp runs on the peripheral once the app chose its parameters.
func procIoRsp(c *Context, data *EventData) {
	applyIoCap(c, data)

	if c.flags.has(flagWeStarted) && c.preq == nil {
		c.redirect(StateSecurityRequestPending)
		c.send(securityRequestPDU(c.localParams.AuthReq))
		return
	}
	peripheralRespond(c)
}

// peripheralRespond builds the Pairing Response from the request and
// the local parameters, then sends it unless OOB data must be asked for
// first.
func peripheralRespond(c *Context) {
	req := c.peerParams
	lp := &c.localParams

	lp.InitKeys &= req.InitKeys &^ smp.KeyDistLink
	lp.RespKeys &= req.RespKeys &^ smp.KeyDistLink
	if !req.AuthReq.Bonding() || !lp.AuthReq.Bonding() {
		lp.InitKeys, lp.RespKeys = 0, 0
	}
	if err := lp.validate(); err != nil {
		c.log.Errorf("pairing response: %v", err)
		c.fail(smp.InternalError)
		return
	}
	c.setKeyDistribution(lp.InitKeys, lp.RespKeys)

	sc := lp.AuthReq.SC() && req.AuthReq.SC()
	m, err := associationModel(req, *lp, sc)
	if err == nil && sc && m == OutOfBand && needPeerOob(c) {
		c.pending = reqScOob
		c.raise(EventTKRequest, nil)
		return
	}
	sendPairRsp(c, nil)
}

// needPeerOob reports whether the peer's SC OOB data is still missing.
func needPeerOob(c *Context) bool {
	return c.localParams.OobFlag == smp.OobPresent && c.peerOob == nil
}

// setKeyDistribution records which keys each side still has to send.
func (c *Context) setKeyDistribution(init, resp smp.KeyDist) {
	if !c.localParams.AuthReq.Bonding() || !c.peerParams.AuthReq.Bonding() {
		init, resp = 0, 0
	}
	init &^= smp.KeyDistLink
	resp &^= smp.KeyDistLink
	if c.localParams.AuthReq.SC() && c.peerParams.AuthReq.SC() {
		init &^= smp.KeyDistEnc
		resp &^= smp.KeyDistEnc
	}

	if c.role == Central {
		c.localKeys, c.peerKeys = init, resp
	} else {
		c.localKeys, c.peerKeys = resp, init
	}
}

func sendPairRsp(c *Context, data *EventData) {
	if data != nil && data.Oob != nil {
		c.peerOob = data.Oob
	}

	c.pres = c.localParams.Bytes(OpPairingResponse)
	if !c.send(c.pres) {
		return
	}
	decideAssociationModel(c, data)
}

// commitModel fixes the association model of the attempt. It can only
// happen once.
func (c *Context) commitModel(m Model, sc bool) bool {
	if c.committed {
		c.log.Errorf("association model already decided (%v), refusing %v", c.model, m)
		c.fail(smp.InternalError)
		return false
	}
	c.model, c.sc, c.committed = m, sc, true
	c.log.Infof("association model %v, secure connections %v", m, sc)
	return true
}

func decideAssociationModel(c *Context, data *EventData) {
	sc := c.localParams.AuthReq.SC() && c.peerParams.AuthReq.SC()
	m, err := associationModel(c.initParams(), c.respParams(), sc)
	if err != nil {
		c.fail(smp.UnknownIoCapability)
		return
	}
	if !c.commitModel(m, sc) {
		return
	}

	if m == JustWorks && (c.localParams.AuthReq.MITM() || c.cfg.SecureConnectionsOnly) {
		c.fail(smp.AuthRequirements)
		return
	}

	if sc {
		c.raise(EventPublicKeyExchReq, nil)
		return
	}

	switch m {
	case JustWorks:
		zero16(&c.tk)
		c.raise(EventKeyReady, &EventData{KeyType: KeyTK, Key: make([]byte, 16)})

	case PasskeyEntry:
		c.passkeyDisplay = displaysPasskey(c.localParams.IoCapability, c.peerParams.IoCapability, c.initiator())
		if !c.passkeyDisplay {
			c.pending = reqPasskey
			c.raise(EventTKRequest, nil)
			return
		}
		pk, ok := generatePasskey(c)
		if !ok {
			return
		}
		c.app.PasskeyDisplay(c.peer, pk)
		c.raise(EventKeyReady, &EventData{KeyType: KeyTK, Key: legacyTK(pk)})

	case OutOfBand:
		c.pending = reqLegacyOob
		c.raise(EventTKRequest, nil)
	}
}

func generatePasskey(c *Context) (uint32, bool) {
	b, err := c.tb.Random(4)
	if err != nil {
		c.failErr(err)
		return 0, false
	}
	c.passkey = binary.LittleEndian.Uint32(b) % (smp.MaxPasskey + 1)
	return c.passkey, true
}

// legacyTK is the TK of passkey entry: the passkey as a 128 bit
// little-endian value.
func legacyTK(passkey uint32) []byte {
	tk := make([]byte, 16)
	binary.LittleEndian.PutUint32(tk, passkey)
	return tk
}

// procDiscard drops a security request that needs no pairing.
func procDiscard(c *Context, data *EventData) {
	c.log.Debugf("security request discarded")
	c.clearEphemeral()
	c.flags |= flagFinished
}

// procEncCmpl finishes a Security Request the central answered by
// encrypting with a stored key.
func procEncCmpl(c *Context, data *EventData) {
	if data == nil || data.Status != smp.Success {
		c.fail(smp.EncryptionFailed)
		return
	}
	c.flags |= flagEncrypted
	c.complete(smp.Success)
}

func min8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

package pairing

import (
	"bytes"
	"encoding/binary"

	"github.com/rigado/smp"
)

// createPrivateKey provides the local P-256 keypair. An OOB attempt the
// peer has our data for reuses the keypair that data was made from.
func createPrivateKey(c *Context, data *EventData) {
	if c.committed && c.model == OutOfBand && c.peerParams.OobFlag == smp.OobPresent &&
		c.oob != nil && c.oob.data != nil {
		c.privKey = c.oob.priv
		c.localPub = c.oob.data.PublicKey
	} else {
		prv, pub, err := c.tb.GenerateKeyPair()
		if err != nil {
			c.failErr(err)
			return
		}
		c.privKey, c.localPub = prv, pub
	}

	c.flags |= flagLocalPublicKey
	c.raise(EventLocalPublicKeyCreated, nil)
}

// useOobPrivateKey continues a central OOB attempt once the app handed
// over the peer's data.
func useOobPrivateKey(c *Context, data *EventData) {
	if data == nil || data.Oob == nil {
		c.fail(smp.OobNotAvailable)
		return
	}
	c.peerOob = data.Oob

	if !c.commitModel(OutOfBand, true) {
		return
	}
	createPrivateKey(c, data)
}

func sendPairPublicKey(c *Context, data *EventData) {
	c.send(buildPDU(OpPairingPublicKey, c.localPub[:]))
}

func processPairPublicKey(c *Context, data *EventData) {
	if data == nil || data.Command == nil || data.Command.PublicKey == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	k := *data.Command.PublicKey

	if !c.tb.ValidPublicKey(k) {
		c.log.Warnf("peer public key not on curve")
		c.fail(smp.InvalidParameters)
		return
	}
	if c.flags.has(flagLocalPublicKey) && bytes.Equal(k.X(), c.localPub.X()) {
		c.log.Warnf("peer public key reflects ours")
		c.fail(smp.DHKeyCheckFailed)
		return
	}

	c.peerPub = k
	c.flags |= flagPeerPublicKey
	waitForBothPublicKeys(c, data)
}

func waitForBothPublicKeys(c *Context, data *EventData) {
	if c.flags.has(flagLocalPublicKey) && c.flags.has(flagPeerPublicKey) {
		c.raise(EventBothPublicKeysReceived, nil)
	}
}

// haveBothPublicKeys computes the DHKey. The peripheral sends its key
// only now, after the central's.
func haveBothPublicKeys(c *Context, data *EventData) {
	if bytes.Equal(c.peerPub.X(), c.localPub.X()) {
		c.fail(smp.DHKeyCheckFailed)
		return
	}

	dhk, err := c.tb.DHKey(c.privKey, c.peerPub)
	if err != nil {
		c.log.Warnf("dhkey: %v", err)
		c.fail(smp.DHKeyCheckFailed)
		return
	}
	copy(c.dhkey[:], dhk)

	if c.role == Peripheral {
		if !c.send(buildPDU(OpPairingPublicKey, c.localPub[:])) {
			return
		}
	}
	c.raise(EventScDHKeyComplete, nil)
}

func generateNonce(c *Context) {
	if !c.newRandom(&c.localRand) {
		return
	}
	c.raise(EventHaveLocalNonce, nil)
}

func startScPhase1(c *Context, data *EventData) {
	switch c.model {
	case JustWorks, NumericComparison:
		generateNonce(c)

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
		c.raise(EventKeyReady, &EventData{Passkey: pk})

	case OutOfBand:
		processScOobData(c, data)
		if !c.failed {
			generateNonce(c)
		}
	}
}

// processScOobData checks the peer's OOB commitment against the key it
// sent in band, and picks the r values for the DHKey checks.
func processScOobData(c *Context, data *EventData) {
	zero16(&c.localR)
	if c.peerParams.OobFlag == smp.OobPresent && c.oob != nil && c.oob.data != nil {
		c.localR = c.oob.data.Random
	}

	zero16(&c.peerR)
	if c.localParams.OobFlag != smp.OobPresent {
		return
	}
	if c.peerOob == nil {
		c.fail(smp.OobNotAvailable)
		return
	}

	exp, err := c.tb.F4(c.peerPub.X(), c.peerPub.X(), c.peerOob.Random[:], 0)
	if err != nil {
		c.failErr(err)
		return
	}
	if !bytes.Equal(exp, c.peerOob.Confirm[:]) {
		c.log.Warnf("oob commitment mismatch")
		c.fail(smp.ConfirmValueFailed)
		return
	}
	c.peerR = c.peerOob.Random
}

func (c *Context) passkeyBit() uint8 {
	return 0x80 | uint8((c.passkey>>uint(c.round))&1)
}

// commitment computes f4(PKx local, PKx peer, local nonce, z).
func (c *Context) commitment(z uint8) bool {
	conf, err := c.tb.F4(c.localPub.X(), c.peerPub.X(), c.localRand[:], z)
	if err != nil {
		c.failErr(err)
		return false
	}
	copy(c.localConfirm[:], conf)
	return true
}

// checkCommitment verifies the peer's commitment against its nonce.
func (c *Context) checkCommitment(z uint8) bool {
	exp, err := c.tb.F4(c.peerPub.X(), c.localPub.X(), c.peerRand[:], z)
	if err != nil {
		c.failErr(err)
		return false
	}
	if !bytes.Equal(exp, c.peerConfirm[:]) {
		c.log.Warnf("commitment mismatch in round %d", c.round)
		c.fail(smp.ConfirmValueFailed)
		return false
	}
	return true
}

func processLocalNonce(c *Context, data *EventData) {
	switch c.model {
	case JustWorks, NumericComparison:
		if c.role == Peripheral {
			if !c.commitment(0) || !c.send(buildPDU(OpPairingConfirm, c.localConfirm[:])) {
				return
			}
			c.redirect(StateWaitNonce)
			return
		}
		if c.flags.has(flagPeerCommitment) {
			sendRand(c, data)
			c.redirect(StateWaitNonce)
		}

	case PasskeyEntry:
		if !c.commitment(c.passkeyBit()) {
			return
		}
		if c.role == Central {
			c.send(buildPDU(OpPairingConfirm, c.localConfirm[:]))
			return
		}
		if c.flags.has(flagPeerCommitment) {
			sendCommitment(c, data)
			c.redirect(StateWaitNonce)
		}

	case OutOfBand:
		if c.role == Central {
			sendRand(c, data)
		}
		c.redirect(StateWaitNonce)
	}
}

func sendCommitment(c *Context, data *EventData) {
	c.send(buildPDU(OpPairingConfirm, c.localConfirm[:]))
}

func processPairingCommitment(c *Context, data *EventData) {
	if data == nil || data.Command == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	copy(c.peerConfirm[:], data.Command.Value)
	c.flags |= flagPeerCommitment
}

func processPeerNonce(c *Context, data *EventData) {
	switch c.model {
	case JustWorks, NumericComparison:
		if c.role == Central && !c.checkCommitment(0) {
			return
		}
		if c.role == Peripheral {
			sendRand(c, data)
		}
		if c.model == JustWorks {
			c.raise(EventScPhase1Complete, nil)
			return
		}
		c.redirect(StateWaitNonce)
		c.raise(EventScCalcNC, nil)

	case PasskeyEntry:
		if !c.checkCommitment(c.passkeyBit()) {
			return
		}
		if c.role == Peripheral {
			sendRand(c, data)
		}
		c.round++
		if c.round < passkeyIterationCount {
			c.redirect(StateScPhase1Start)
			c.flags &^= flagPeerCommitment
			generateNonce(c)
			return
		}
		c.raise(EventScPhase1Complete, nil)

	case OutOfBand:
		if c.role == Peripheral {
			sendRand(c, data)
		}
		c.raise(EventScPhase1Complete, nil)
	}
}

func calcNcDisplayNumber(c *Context, data *EventData) {
	var v uint32
	var err error
	if c.role == Central {
		v, err = c.tb.G2(c.localPub.X(), c.peerPub.X(), c.localRand[:], c.peerRand[:])
	} else {
		v, err = c.tb.G2(c.peerPub.X(), c.localPub.X(), c.peerRand[:], c.localRand[:])
	}
	if err != nil {
		c.failErr(err)
		return
	}
	if v > smp.MaxPasskey {
		c.fail(smp.NumericComparisonFailed)
		return
	}

	c.ncValue = v
	c.pending = reqNumericComparison
	c.raise(EventScDisplayNC, nil)
}

func moveToScPhase2(c *Context, data *EventData) {
	c.raise(EventScPhase1Complete, nil)
}

// ioCapBytes is the IOcap argument of f6: AuthReq, OOB flag, IO
// capability, most significant first.
func ioCapBytes(p PairingParams) []byte {
	return []byte{byte(p.IoCapability), p.OobFlag, byte(p.AuthReq)}
}

// calcLocalDhkeyCheck derives MacKey and LTK, then our DHKey check.
func calcLocalDhkeyCheck(c *Context, data *EventData) {
	nc, np := c.localRand[:], c.peerRand[:]
	if c.role == Peripheral {
		nc, np = np, nc
	}

	mk, ltk, err := c.tb.F5(c.dhkey[:], nc, np, c.centralAddr(), c.peripheralAddr())
	if err != nil {
		c.failErr(err)
		return
	}
	copy(c.macKey[:], mk)
	c.linkKey = ltk

	chk, err := c.tb.F6(c.macKey[:], c.localRand[:], c.peerRand[:], c.peerR[:], ioCapBytes(c.localParams), c.local, c.peer)
	if err != nil {
		c.failErr(err)
		return
	}
	copy(c.localDhkCheck[:], chk)
}

func sendDhkeyCheck(c *Context, data *EventData) {
	c.send(buildPDU(OpPairingDHKeyCheck, c.localDhkCheck[:]))
}

// dhkeyChecksPresent lets the peripheral continue when the central's
// check arrived before its own was computed.
func dhkeyChecksPresent(c *Context, data *EventData) {
	if c.flags.has(flagPeerDHKeyCheck) {
		c.raise(EventSc2DHKeyChecksPresent, nil)
	}
}

func processDhkeyCheck(c *Context, data *EventData) {
	if data == nil || data.Command == nil {
		c.fail(smp.InvalidParameters)
		return
	}
	copy(c.peerDhkCheck[:], data.Command.Value)
	c.flags |= flagPeerDHKeyCheck
}

func calcPeerDhkeyCheck(c *Context, data *EventData) {
	exp, err := c.tb.F6(c.macKey[:], c.peerRand[:], c.localRand[:], c.localR[:], ioCapBytes(c.peerParams), c.peer, c.local)
	if err != nil {
		c.failErr(err)
		return
	}
	c.raise(EventScKeyReady, &EventData{KeyType: KeyDHKeyCheck, Key: exp})
}

func matchDhkeyChecks(c *Context, data *EventData) {
	if data == nil || !bytes.Equal(data.Key, c.peerDhkCheck[:]) {
		c.fail(smp.DHKeyCheckFailed)
		return
	}

	c.keySize = int(min8(c.localParams.MaxKeySize, c.peerParams.MaxKeySize))
	if c.role == Peripheral {
		c.raise(EventPairDHKeyCheck, nil)
		return
	}
	c.raise(EventEncReq, nil)
}

// startPasskeyVerification begins the twenty commitment rounds.
func startPasskeyVerification(c *Context, data *EventData) {
	if data != nil && data.Passkey != 0 {
		c.passkey = data.Passkey
	}
	if c.passkey > smp.MaxPasskey {
		c.fail(smp.PasskeyEntryFailed)
		return
	}

	zero16(&c.localR)
	binary.LittleEndian.PutUint32(c.localR[:], c.passkey)
	c.peerR = c.localR
	c.round = 0
	generateNonce(c)
}

func processKeypress(c *Context, data *EventData) {
	if data == nil || data.Command == nil {
		return
	}
	c.keypressIn = data.Command.Keypress
	c.keypressPrev = c.pending
	c.pending = reqKeypress
}

func sendKeypress(c *Context, data *EventData) {
	if data == nil {
		return
	}
	if !c.localParams.AuthReq.Keypress() || !c.peerParams.AuthReq.Keypress() {
		c.log.Debugf("keypress notifications not negotiated")
		return
	}
	c.send(keypressPDU(data.Keypress))
}

// setLocalOobKeys keeps the keypair the local OOB data is made from.
func setLocalOobKeys(c *Context, data *EventData) {
	if c.oob == nil {
		c.fail(smp.InternalError)
		return
	}
	c.oob.priv = c.privKey
	c.oob.data = &smp.OobData{Addr: c.local, PublicKey: c.localPub}
	generateNonce(c)
}

// setLocalOobRandCommitment finishes local OOB data: r and
// C = f4(PKx, PKx, r, 0).
func setLocalOobRandCommitment(c *Context, data *EventData) {
	if c.oob == nil || c.oob.data == nil {
		c.fail(smp.InternalError)
		return
	}
	d := c.oob.data
	d.Random = c.localRand
	conf, err := c.tb.F4(d.PublicKey.X(), d.PublicKey.X(), d.Random[:], 0)
	if err != nil {
		c.failErr(err)
		return
	}
	copy(d.Confirm[:], conf)

	c.pending = reqLocalOob
	sendAppCallback(c, data)

	c.clearEphemeral()
	c.flags |= flagFinished
}

// abortLocalOob ends a local OOB data creation that failed or lost its
// link. The peer is not pairing, so nothing is sent and no pairing result
// is reported.
func abortLocalOob(c *Context, data *EventData) {
	reason := smp.InternalError
	switch {
	case c.event == EventDisconnected:
		reason = smp.ConnectionTerminated
		c.flags |= flagClosed
	case data != nil && data.Status != smp.Success:
		reason = data.Status
	}
	c.log.Warnf("local oob data not created: %v", reason.String())

	if c.oob != nil {
		c.oob.data, c.oob.priv = nil, nil
	}
	c.clearEphemeral()
	c.clearKeys()
	c.flags |= flagFinished

	if h, ok := c.app.(LocalOobHandler); ok {
		h.LocalOobData(nil, reason)
	}
}

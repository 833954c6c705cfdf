package pairing

import "github.com/rigado/smp"

// lookup returns the transition for ev in the current state of c.
func lookup(role Role, state State, ev Event) (row, bool) {
	entry := entryTables[role][ev-1][state]
	if entry == 0 {
		return row{}, false
	}

	if entry&allTableMask != 0 {
		idx := int(entry&^allTableMask) - 1
		if idx >= len(allTable) {
			return row{}, false
		}
		return allTable[idx], true
	}

	rows := stateTables[role][state]
	idx := int(entry) - 1
	if idx >= len(rows) {
		return row{}, false
	}
	return rows[idx], true
}

// Dispatch runs one event through the tables of c: the state moves to the
// row's next state, then the row's actions run in order. It returns false
// when the event does not apply to the current state, nothing changes in
// that case. Events raised by the actions are left on c for the caller.
func Dispatch(c *Context, ev Event, data *EventData) bool {
	if c == nil || c.role >= roleMax || !c.state.Valid() || !ev.Valid() {
		return false
	}
	if c.flags.has(flagClosed | flagFinished) {
		c.log.Debugf("%v refused, attempt over", ev)
		return false
	}

	r, ok := lookup(c.role, c.state, ev)
	if !ok {
		c.log.Debugf("%v ignored in %v", ev, c.state)
		return false
	}

	c.log.Debugf("%v: %v -> %v", ev, c.state, r.next)
	c.state = r.next
	c.event = ev
	c.failed = false

	for _, a := range r.act {
		if a == actNone {
			continue
		}
		if c.trace != nil {
			c.trace(a)
		}
		run(a, c, data)
		if c.failed {
			break
		}
	}
	return true
}

func run(a Action, c *Context, data *EventData) {
	switch a {
	case actProcSecReq:
		procSecReq(c, data)
	case actSendPairReq:
		sendPairReq(c, data)
	case actSendPairRsp:
		sendPairRsp(c, data)
	case actProcPairCmd:
		procPairCmd(c, data)
	case actProcIoRsp:
		procIoRsp(c, data)
	case actProcSecGrant:
		procSecGrant(c, data)
	case actDecideAssociationModel:
		decideAssociationModel(c, data)
	case actSendAppCallback:
		sendAppCallback(c, data)
	case actProcDiscard:
		procDiscard(c, data)
	case actProcEncCmpl:
		procEncCmpl(c, data)

	case actGenerateConfirm:
		generateConfirm(c, data)
	case actSendConfirm:
		sendConfirm(c, data)
	case actProcConfirm:
		procConfirm(c, data)
	case actSendRand:
		sendRand(c, data)
	case actProcRand:
		procRand(c, data)
	case actGenerateCompare:
		generateCompare(c, data)
	case actProcCompare:
		procCompare(c, data)
	case actProcSlKey:
		procSlKey(c, data)
	case actGenerateStk:
		generateStk(c, data)

	case actCreatePrivateKey:
		createPrivateKey(c, data)
	case actUseOobPrivateKey:
		useOobPrivateKey(c, data)
	case actSendPairPublicKey:
		sendPairPublicKey(c, data)
	case actProcessPairPublicKey:
		processPairPublicKey(c, data)
	case actWaitForBothPublicKeys:
		waitForBothPublicKeys(c, data)
	case actHaveBothPublicKeys:
		haveBothPublicKeys(c, data)
	case actStartScPhase1:
		startScPhase1(c, data)
	case actProcessScOobData:
		processScOobData(c, data)
	case actProcessLocalNonce:
		processLocalNonce(c, data)
	case actSendCommitment:
		sendCommitment(c, data)
	case actProcessPairingCommitment:
		processPairingCommitment(c, data)
	case actProcessPeerNonce:
		processPeerNonce(c, data)
	case actCalcNcDisplayNumber:
		calcNcDisplayNumber(c, data)
	case actMoveToScPhase2:
		moveToScPhase2(c, data)
	case actCalcLocalDhkeyCheck:
		calcLocalDhkeyCheck(c, data)
	case actSendDhkeyCheck:
		sendDhkeyCheck(c, data)
	case actDhkeyChecksPresent:
		dhkeyChecksPresent(c, data)
	case actProcessDhkeyCheck:
		processDhkeyCheck(c, data)
	case actCalcPeerDhkeyCheck:
		calcPeerDhkeyCheck(c, data)
	case actMatchDhkeyChecks:
		matchDhkeyChecks(c, data)
	case actStartPasskeyVerification:
		startPasskeyVerification(c, data)
	case actProcessKeypress:
		processKeypress(c, data)
	case actSendKeypress:
		sendKeypress(c, data)
	case actSetLocalOobKeys:
		setLocalOobKeys(c, data)
	case actSetLocalOobRandCommitment:
		setLocalOobRandCommitment(c, data)
	case actAbortLocalOob:
		abortLocalOob(c, data)

	case actStartEnc:
		startEnc(c, data)
	case actSendLtkReply:
		sendLtkReply(c, data)
	case actCheckAuthReq:
		checkAuthReq(c, data)

	case actKeyDistribute:
		keyDistribute(c, data)
	case actSendEncInfo:
		sendEncInfo(c, data)
	case actProcEncInfo:
		procEncInfo(c, data)
	case actProcCentralID:
		procCentralID(c, data)
	case actProcIDInfo:
		procIDInfo(c, data)
	case actProcIDAddr:
		procIDAddr(c, data)
	case actProcSrkInfo:
		procSrkInfo(c, data)
	case actSirkVerify:
		sirkVerify(c, data)

	case actSendPairFail:
		sendPairFail(c, data)
	case actProcPairFail:
		procPairFail(c, data)
	case actPairingComplete:
		pairingComplete(c, data)
	case actPairTerminate:
		pairTerminate(c, data)
	case actIdleTerminate:
		idleTerminate(c, data)

	default:
		c.log.Errorf("unknown action %v", a)
		c.fail(smp.InternalError)
	}
}

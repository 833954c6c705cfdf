package pairing

import "fmt"

// Action names one step of the pairing protocol. Transition rows refer to
// actions by value; run maps each value to its implementation.
type Action uint8

const (
	actNone Action = iota

	// feature exchange
	actProcSecReq
	actSendPairReq
	actSendPairRsp
	actProcPairCmd
	actProcIoRsp
	actProcSecGrant
	actDecideAssociationModel
	actSendAppCallback
	actProcDiscard
	actProcEncCmpl

	// legacy
	actGenerateConfirm
	actSendConfirm
	actProcConfirm
	actSendRand
	actProcRand
	actGenerateCompare
	actProcCompare
	actProcSlKey
	actGenerateStk

	// secure connections
	actCreatePrivateKey
	actUseOobPrivateKey
	actSendPairPublicKey
	actProcessPairPublicKey
	actWaitForBothPublicKeys
	actHaveBothPublicKeys
	actStartScPhase1
	actProcessScOobData
	actProcessLocalNonce
	actSendCommitment
	actProcessPairingCommitment
	actProcessPeerNonce
	actCalcNcDisplayNumber
	actMoveToScPhase2
	actCalcLocalDhkeyCheck
	actSendDhkeyCheck
	actDhkeyChecksPresent
	actProcessDhkeyCheck
	actCalcPeerDhkeyCheck
	actMatchDhkeyChecks
	actStartPasskeyVerification
	actProcessKeypress
	actSendKeypress
	actSetLocalOobKeys
	actSetLocalOobRandCommitment
	actAbortLocalOob

	// encryption
	actStartEnc
	actSendLtkReply
	actCheckAuthReq

	// key distribution
	actKeyDistribute
	actSendEncInfo
	actProcEncInfo
	actProcCentralID
	actProcIDInfo
	actProcIDAddr
	actProcSrkInfo
	actSirkVerify

	// termination
	actSendPairFail
	actProcPairFail
	actPairingComplete
	actPairTerminate
	actIdleTerminate

	actionMax
)

var actionNames = [actionMax]string{
	"none",
	"procSecReq",
	"sendPairReq",
	"sendPairRsp",
	"procPairCmd",
	"procIoRsp",
	"procSecGrant",
	"decideAssociationModel",
	"sendAppCallback",
	"procDiscard",
	"procEncCmpl",
	"generateConfirm",
	"sendConfirm",
	"procConfirm",
	"sendRand",
	"procRand",
	"generateCompare",
	"procCompare",
	"procSlKey",
	"generateStk",
	"createPrivateKey",
	"useOobPrivateKey",
	"sendPairPublicKey",
	"processPairPublicKey",
	"waitForBothPublicKeys",
	"haveBothPublicKeys",
	"startScPhase1",
	"processScOobData",
	"processLocalNonce",
	"sendCommitment",
	"processPairingCommitment",
	"processPeerNonce",
	"calcNcDisplayNumber",
	"moveToScPhase2",
	"calcLocalDhkeyCheck",
	"sendDhkeyCheck",
	"dhkeyChecksPresent",
	"processDhkeyCheck",
	"calcPeerDhkeyCheck",
	"matchDhkeyChecks",
	"startPasskeyVerification",
	"processKeypress",
	"sendKeypress",
	"setLocalOobKeys",
	"setLocalOobRandCommitment",
	"abortLocalOob",
	"startEnc",
	"sendLtkReply",
	"checkAuthReq",
	"keyDistribute",
	"sendEncInfo",
	"procEncInfo",
	"procCentralID",
	"procIDInfo",
	"procIDAddr",
	"procSrkInfo",
	"sirkVerify",
	"sendPairFail",
	"procPairFail",
	"pairingComplete",
	"pairTerminate",
	"idleTerminate",
}

func (a Action) Valid() bool { return a < actionMax }

func (a Action) String() string {
	if a.Valid() {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

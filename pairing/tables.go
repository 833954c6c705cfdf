package pairing

// Entry table cells: 0 ignores the event, otherwise the value is a one
// based row index into the role's table for the current state. Cells with
// allTableMask set index allTable instead.
const allTableMask = 0x80

type entryTable [numEvents][stateMax]uint8

type row struct {
	act  [2]Action
	next State
}

func r1(a Action, next State) row    { return row{act: [2]Action{a, actNone}, next: next} }
func r2(a, b Action, next State) row { return row{act: [2]Action{a, b}, next: next} }

// allTable holds the transitions shared by both roles and every state.
var allTable = [...]row{
	// PairingFailed
	r2(actProcPairFail, actPairingComplete, StateIdle),
	// AuthComplete
	r2(actSendPairFail, actPairingComplete, StateIdle),
	// Disconnected
	r1(actPairTerminate, StateIdle),
}

// Columns of both entry tables, in State order:
//
//	Idle, WaitAppRsp, SecReqPend, PairReqRsp, WaitCfm, Confirm, Rand,
//	PubKeyExch, ScPhs1, WaitCmtm, WaitNonce, ScPhs2, WaitDhk, DhkChk,
//	EncPend, BondPend, CrLocScOob

var centralEntry = entryTable{
	// PairingRequest
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairingResponse
	{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Confirm
	{0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Rand
	{0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0},
	// PairingFailed
	{0, 0x81, 0, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0, 0x81, 0},
	// EncInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0},
	// CentralID
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0},
	// IDInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0},
	// IDAddr
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0},
	// SignInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0},
	// SecurityRequest
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairPublicKey
	{0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairDHKeyCheck
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0},
	// PairKeypress
	{0, 8, 0, 0, 0, 0, 0, 0, 5, 2, 0, 0, 0, 0, 0, 0, 0},
	// PairCommitment
	{0, 0, 0, 0, 0, 0, 0, 0, 6, 1, 0, 0, 0, 0, 0, 0, 0},
	// KeyReady
	{0, 3, 0, 3, 1, 0, 2, 0, 4, 0, 0, 0, 0, 0, 1, 6, 0},
	// Encrypted
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0},
	// Connected
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Disconnected
	{3, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 3},
	// IoResponse
	{0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// SecurityGrant
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// TKRequest
	{0, 0, 0, 2, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0},
	// AuthComplete
	{4, 0x82, 0, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 7, 3},
	// EncReq
	{0, 4, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0},
	// BondReq
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0},
	// DiscardSecReq
	{0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PublicKeyExchReq
	{0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// LocalPublicKeyCreated
	{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	// BothPublicKeysReceived
	{0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// ScDHKeyComplete
	{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	// HaveLocalNonce
	{0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 2},
	// ScPhase1Complete
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
	// ScCalcNC
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0},
	// ScDisplayNC
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0},
	// ScNCOk
	{0, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Sc2DHKeyChecksPresent
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// ScKeyReady
	{0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0},
	// Keypress
	{0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// ScOobData
	{0, 10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// CreateLocalScOobData
	{5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// SirkVerify
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x82, 0},
}

var peripheralEntry = entryTable{
	// PairingRequest
	{2, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairingResponse
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Confirm
	{0, 4, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Rand
	{0, 0, 0, 0, 0, 1, 2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0},
	// PairingFailed
	{0, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0, 0},
	// EncInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0},
	// CentralID
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0},
	// IDInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0},
	// IDAddr
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 6, 0},
	// SignInfo
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0},
	// SecurityRequest
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairPublicKey
	{0, 0, 0, 5, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PairDHKeyCheck
	{0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 1, 2, 0, 0, 0},
	// PairKeypress
	{0, 9, 0, 0, 0, 0, 0, 0, 5, 2, 0, 0, 0, 0, 0, 0, 0},
	// PairCommitment
	{0, 8, 0, 0, 0, 0, 0, 0, 6, 1, 0, 0, 0, 0, 0, 0, 0},
	// KeyReady
	{0, 3, 0, 3, 2, 2, 1, 0, 4, 0, 0, 0, 0, 0, 2, 1, 0},
	// Encrypted
	{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0},
	// Connected
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Disconnected
	{4, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 0x83, 3},
	// IoResponse
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// SecurityGrant
	{0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// TKRequest
	{0, 0, 0, 2, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0},
	// AuthComplete
	{0, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 0x82, 7, 3},
	// EncReq
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0},
	// BondReq
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0},
	// DiscardSecReq
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// PublicKeyExchReq
	{0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// LocalPublicKeyCreated
	{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	// BothPublicKeysReceived
	{0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// ScDHKeyComplete
	{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	// HaveLocalNonce
	{0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 2},
	// ScPhase1Complete
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
	// ScCalcNC
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0},
	// ScDisplayNC
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0},
	// ScNCOk
	{0, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// Sc2DHKeyChecksPresent
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0},
	// ScKeyReady
	{0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0},
	// Keypress
	{0, 10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// ScOobData
	{0, 11, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// CreateLocalScOobData
	{3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	// SirkVerify
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
}

var centralTables = [stateMax][]row{
	StateIdle: {
		r1(actSendAppCallback, StateWaitAppResponse),                // Connected
		r2(actProcSecReq, actSendAppCallback, StateWaitAppResponse), // SecurityRequest
		r1(actIdleTerminate, StateIdle),                             // Disconnected
		r1(actPairingComplete, StateIdle),                           // AuthComplete
		r1(actCreatePrivateKey, StateCreateLocalScOobData),          // CreateLocalScOobData
	},
	StateWaitAppResponse: {
		r2(actProcSecGrant, actSendAppCallback, StateWaitAppResponse),    // SecurityGrant
		r1(actSendPairReq, StatePairReqRsp),                              // IoResponse
		r1(actGenerateConfirm, StateWaitConfirm),                         // KeyReady (TK)
		r1(actStartEnc, StateEncryptionPending),                          // EncReq
		r1(actProcDiscard, StateIdle),                                    // DiscardSecReq
		r1(actMoveToScPhase2, StateScPhase2Start),                        // ScNCOk
		r1(actStartPasskeyVerification, StateScPhase1Start),              // ScKeyReady
		r2(actProcessKeypress, actSendAppCallback, StateWaitAppResponse), // PairKeypress
		r1(actSendKeypress, StateWaitAppResponse),                        // Keypress
		r1(actUseOobPrivateKey, StatePublicKeyExchange),                  // ScOobData
	},
	StatePairReqRsp: {
		r1(actProcPairCmd, StatePairReqRsp),             // PairingResponse
		r1(actSendAppCallback, StateWaitAppResponse),    // TKRequest
		r1(actGenerateConfirm, StateWaitConfirm),        // KeyReady (TK)
		r1(actCreatePrivateKey, StatePublicKeyExchange), // PublicKeyExchReq
	},
	StateWaitConfirm: {
		r1(actSendConfirm, StateConfirm), // KeyReady (confirm)
	},
	StateConfirm: {
		r2(actProcConfirm, actSendRand, StateRand), // Confirm
	},
	StateRand: {
		r2(actProcRand, actGenerateCompare, StateRand), // Rand
		r1(actProcCompare, StateRand),                  // KeyReady (compare)
		r1(actGenerateStk, StateEncryptionPending),     // EncReq
	},
	StatePublicKeyExchange: {
		r1(actSendPairPublicKey, StatePublicKeyExchange),    // LocalPublicKeyCreated
		r1(actProcessPairPublicKey, StatePublicKeyExchange), // PairPublicKey
		r1(actHaveBothPublicKeys, StateScPhase1Start),       // BothPublicKeysReceived
	},
	StateScPhase1Start: {
		r1(actStartScPhase1, StateScPhase1Start),                       // ScDHKeyComplete
		r1(actProcessLocalNonce, StateWaitCommitment),                  // HaveLocalNonce
		r1(actSendAppCallback, StateWaitAppResponse),                   // TKRequest
		r1(actStartPasskeyVerification, StateScPhase1Start),            // KeyReady (passkey shown)
		r2(actProcessKeypress, actSendAppCallback, StateScPhase1Start), // PairKeypress
		r1(actProcessPairingCommitment, StateScPhase1Start),            // PairCommitment
	},
	StateWaitCommitment: {
		r2(actProcessPairingCommitment, actSendRand, StateWaitNonce),    // PairCommitment
		r2(actProcessKeypress, actSendAppCallback, StateWaitCommitment), // PairKeypress
	},
	StateWaitNonce: {
		r2(actProcRand, actProcessPeerNonce, StateScPhase2Start), // Rand
		r1(actCalcNcDisplayNumber, StateWaitNonce),               // ScCalcNC
		r1(actSendAppCallback, StateWaitAppResponse),             // ScDisplayNC
	},
	StateScPhase2Start: {
		r2(actCalcLocalDhkeyCheck, actSendDhkeyCheck, StateWaitDhkCheck), // ScPhase1Complete
	},
	StateWaitDhkCheck: {
		r2(actProcessDhkeyCheck, actCalcPeerDhkeyCheck, StateDhkCheck), // PairDHKeyCheck
	},
	StateDhkCheck: {
		r1(actMatchDhkeyChecks, StateDhkCheck),     // ScKeyReady
		r1(actGenerateStk, StateEncryptionPending), // EncReq
	},
	StateEncryptionPending: {
		r1(actStartEnc, StateEncryptionPending),     // KeyReady (stk)
		r1(actCheckAuthReq, StateEncryptionPending), // Encrypted
		r1(actKeyDistribute, StateBondPending),      // BondReq
	},
	StateBondPending: {
		r1(actProcEncInfo, StateBondPending),   // EncInfo
		r1(actProcIDInfo, StateBondPending),    // IDInfo
		r1(actProcSrkInfo, StateBondPending),   // SignInfo
		r1(actProcCentralID, StateBondPending), // CentralID
		r1(actProcIDAddr, StateBondPending),    // IDAddr
		r1(actSendEncInfo, StateBondPending),   // KeyReady (ltk)
		r1(actSirkVerify, StateBondPending),    // AuthComplete
	},
	StateCreateLocalScOobData: {
		r1(actSetLocalOobKeys, StateCreateLocalScOobData), // LocalPublicKeyCreated
		r1(actSetLocalOobRandCommitment, StateIdle),       // HaveLocalNonce
		r1(actAbortLocalOob, StateIdle),                   // AuthComplete, Disconnected
	},
}

var peripheralTables = [stateMax][]row{
	StateIdle: {
		r1(actSendAppCallback, StateWaitAppResponse),                 // Connected
		r2(actProcPairCmd, actSendAppCallback, StateWaitAppResponse), // PairingRequest
		r1(actCreatePrivateKey, StateCreateLocalScOobData),           // CreateLocalScOobData
		r1(actIdleTerminate, StateIdle),                              // Disconnected
	},
	StateWaitAppResponse: {
		r1(actProcIoRsp, StatePairReqRsp),                                // IoResponse
		r2(actProcSecGrant, actSendAppCallback, StateWaitAppResponse),    // SecurityGrant
		r1(actProcSlKey, StateWaitAppResponse),                           // KeyReady (TK)
		r1(actProcConfirm, StateConfirm),                                 // Confirm
		r1(actProcessDhkeyCheck, StateWaitAppResponse),                   // PairDHKeyCheck, central ahead of us
		r1(actMoveToScPhase2, StateScPhase2Start),                        // ScNCOk
		r1(actStartPasskeyVerification, StateScPhase1Start),              // ScKeyReady
		r1(actProcessPairingCommitment, StateWaitAppResponse),            // PairCommitment
		r2(actProcessKeypress, actSendAppCallback, StateWaitAppResponse), // PairKeypress
		r1(actSendKeypress, StateWaitAppResponse),                        // Keypress
		r1(actSendPairRsp, StatePairReqRsp),                              // ScOobData
	},
	StateSecurityRequestPending: {
		r1(actProcPairCmd, StatePairReqRsp), // PairingRequest
		r1(actProcEncCmpl, StatePairReqRsp), // Encrypted
	},
	StatePairReqRsp: {
		r1(actProcConfirm, StateConfirm),                // Confirm
		r1(actSendAppCallback, StateWaitAppResponse),    // TKRequest
		r1(actProcSlKey, StatePairReqRsp),               // KeyReady (TK or confirm)
		r1(actCreatePrivateKey, StatePublicKeyExchange), // PublicKeyExchReq
		r1(actProcessPairPublicKey, StatePairReqRsp),    // PairPublicKey
	},
	StateWaitConfirm: {
		r2(actProcConfirm, actSendConfirm, StateConfirm), // Confirm
		r1(actProcSlKey, StateWaitConfirm),               // KeyReady
	},
	StateConfirm: {
		r2(actProcRand, actGenerateCompare, StateRand), // Rand
		r1(actProcSlKey, StateConfirm),                 // KeyReady
	},
	StateRand: {
		r1(actProcCompare, StateRand),           // KeyReady (compare)
		r1(actSendRand, StateEncryptionPending), // Rand
	},
	StatePublicKeyExchange: {
		r1(actWaitForBothPublicKeys, StatePublicKeyExchange), // LocalPublicKeyCreated
		r1(actProcessPairPublicKey, StatePublicKeyExchange),  // PairPublicKey
		r1(actHaveBothPublicKeys, StateScPhase1Start),        // BothPublicKeysReceived
	},
	StateScPhase1Start: {
		r1(actStartScPhase1, StateScPhase1Start),                       // ScDHKeyComplete
		r1(actProcessLocalNonce, StateWaitCommitment),                  // HaveLocalNonce
		r1(actSendAppCallback, StateWaitAppResponse),                   // TKRequest
		r1(actStartPasskeyVerification, StateScPhase1Start),            // KeyReady (passkey shown)
		r2(actProcessKeypress, actSendAppCallback, StateScPhase1Start), // PairKeypress
		r1(actProcessPairingCommitment, StateScPhase1Start),            // PairCommitment
	},
	StateWaitCommitment: {
		r2(actProcessPairingCommitment, actSendCommitment, StateWaitNonce), // PairCommitment
		r2(actProcessKeypress, actSendAppCallback, StateWaitCommitment),    // PairKeypress
	},
	StateWaitNonce: {
		r2(actProcRand, actProcessPeerNonce, StateScPhase2Start), // Rand
		r1(actCalcNcDisplayNumber, StateWaitNonce),               // ScCalcNC
		r1(actSendAppCallback, StateWaitAppResponse),             // ScDisplayNC
	},
	StateScPhase2Start: {
		r2(actCalcLocalDhkeyCheck, actDhkeyChecksPresent, StateWaitDhkCheck), // ScPhase1Complete
		r1(actProcessDhkeyCheck, StateScPhase2Start),                         // PairDHKeyCheck, central ahead of us
	},
	StateWaitDhkCheck: {
		r2(actProcessDhkeyCheck, actCalcPeerDhkeyCheck, StateDhkCheck), // PairDHKeyCheck
		r1(actCalcPeerDhkeyCheck, StateDhkCheck),                       // Sc2DHKeyChecksPresent
	},
	StateDhkCheck: {
		r1(actMatchDhkeyChecks, StateDhkCheck),        // ScKeyReady
		r1(actSendDhkeyCheck, StateEncryptionPending), // PairDHKeyCheck (checks matched)
	},
	StateEncryptionPending: {
		r1(actGenerateStk, StateEncryptionPending),  // EncReq
		r1(actSendLtkReply, StateEncryptionPending), // KeyReady (stk)
		r1(actCheckAuthReq, StateEncryptionPending), // Encrypted
		r1(actKeyDistribute, StateBondPending),      // BondReq
	},
	StateBondPending: {
		r1(actSendEncInfo, StateBondPending),   // KeyReady (ltk)
		r1(actProcSrkInfo, StateBondPending),   // SignInfo
		r1(actProcEncInfo, StateBondPending),   // EncInfo
		r1(actProcIDInfo, StateBondPending),    // IDInfo
		r1(actProcCentralID, StateBondPending), // CentralID
		r1(actProcIDAddr, StateBondPending),    // IDAddr
		r1(actSirkVerify, StateBondPending),    // AuthComplete
	},
	StateCreateLocalScOobData: {
		r1(actSetLocalOobKeys, StateCreateLocalScOobData), // LocalPublicKeyCreated
		r1(actSetLocalOobRandCommitment, StateIdle),       // HaveLocalNonce
		r1(actAbortLocalOob, StateIdle),                   // AuthComplete, Disconnected
	},
}

var entryTables = [roleMax]*entryTable{Central: &centralEntry, Peripheral: &peripheralEntry}

var stateTables = [roleMax]*[stateMax][]row{Central: &centralTables, Peripheral: &peripheralTables}

package pairing

import "github.com/rigado/smp"

// Application is the user facing side of pairing. Requests are answered
// asynchronously through the matching Session method; answering from
// inside the callback is allowed.
type Application interface {
	// SecurityRequest asks whether pairing may proceed. Answer with
	// Session.SecurityGrant.
	SecurityRequest(peer smp.Addr)
	// IoCapabilityRequest asks for this attempt's parameters. Answer with
	// Session.IoCapabilityReply, nil keeps the configured values.
	IoCapabilityRequest(peer smp.Addr)
	// PasskeyRequest asks for the passkey shown on the peer. Answer with
	// Session.PasskeyReply.
	PasskeyRequest(peer smp.Addr)
	PasskeyDisplay(peer smp.Addr, passkey uint32)
	// NumericComparison shows a six digit value. Answer with
	// Session.ConfirmReply.
	NumericComparison(peer smp.Addr, value uint32)
	// OobRequest asks for out of band data: a TK through Session.OobReply
	// for legacy pairing, the peer's data through Session.ScOobReply when
	// sc is set.
	OobRequest(peer smp.Addr, sc bool)
	KeypressNotify(peer smp.Addr, k smp.Keypress)
	// PairingComplete is called exactly once per attempt.
	PairingComplete(peer smp.Addr, res smp.Result)
}

// LocalOobHandler receives the result of Session.CreateLocalOobData. On
// failure d is nil and err is the smp.Reason.
type LocalOobHandler interface {
	LocalOobData(d *smp.OobData, err error)
}

// SirkVerifier is consulted when bonding completes. Returning true holds
// completion until Session.SirkReply.
type SirkVerifier interface {
	VerifySirk(peer smp.Addr) bool
}

// Transport carries PDUs and link encryption requests to the controller.
type Transport interface {
	// Send writes one SMP PDU on the fixed channel.
	Send(pdu []byte) error
	// StartEncryption encrypts the link as central.
	StartEncryption(ltk []byte, ediv uint16, rand uint64) error
	// LtkReply answers the controller's LTK request as peripheral, nil
	// sends a negative reply.
	LtkReply(ltk []byte) error
}

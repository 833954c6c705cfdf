package pairing

import (
	"crypto"

	"github.com/google/uuid"
	"github.com/rigado/smp"
	"github.com/rigado/smp/sliceops"
)

type flags uint16

const (
	// peer confirm arrived before the local one was computed
	flagPeerConfirm flags = 1 << iota
	flagLocalPublicKey
	flagPeerPublicKey
	flagPeerCommitment
	flagPeerDHKeyCheck
	// the local side asked for security
	flagWeStarted
	flagEncrypted
	// a security request is to be discarded instead of asking the app
	flagDiscard
	flagStarted
	flagFinished
	flagClosed
)

func (f flags) has(b flags) bool { return f&b != 0 }

// request is the application callback sendAppCallback issues next.
type request uint8

const (
	reqNone request = iota
	reqSecurity
	reqIoCap
	reqPasskey
	reqNumericComparison
	reqLegacyOob
	reqScOob
	reqKeypress
	reqLocalOob
)

type raisedEvent struct {
	ev   Event
	data *EventData
}

// localOob is the Secure Connections OOB data created on this device. It
// outlives the attempt that created it.
type localOob struct {
	data *smp.OobData
	priv crypto.PrivateKey
}

// deps are the collaborators a Context calls into.
type deps struct {
	tb    Toolbox
	tr    Transport
	app   Application
	bonds smp.BondManager
	oob   *localOob
	log   smp.Logger
}

// Context is the state of one pairing attempt on one link.
type Context struct {
	deps

	role  Role
	state State
	event Event
	flags flags

	cfg         smp.Config
	local, peer smp.Addr

	localParams, peerParams PairingParams
	preq, pres              []byte

	model     Model
	sc        bool
	committed bool

	passkeyDisplay bool
	passkey        uint32
	round          int
	ncValue        uint32

	tk                        [16]byte
	localConfirm, peerConfirm [16]byte
	localRand, peerRand       [16]byte
	localR, peerR             [16]byte

	privKey           crypto.PrivateKey
	localPub, peerPub smp.PublicKey
	dhkey             [32]byte
	macKey            [16]byte

	localDhkCheck, peerDhkCheck [16]byte

	keySize     int
	linkKey     []byte
	localKeys   smp.KeyDist // still to send
	peerKeys    smp.KeyDist // still to receive
	localEnc    *smp.EncKey
	peerEnc     *smp.EncKey
	peerIRK     []byte
	identity    *smp.Addr
	localCSRK   []byte
	peerCSRK    []byte

	keypressIn   smp.Keypress
	keypressPrev request

	// reencrypt is the stored key a Security Request is answered with.
	reencrypt *smp.EncKey

	peerOob *smp.OobData

	pending request
	status  smp.Reason
	raised  []raisedEvent
	failed  bool

	attempt string

	// trace sees every action run, tests use it.
	trace func(Action)
}

func newContext(role Role, cfg smp.Config, local, peer smp.Addr, d deps) *Context {
	c := &Context{
		deps:    d,
		role:    role,
		state:   StateIdle,
		cfg:     cfg,
		local:   local,
		peer:    peer,
		attempt: uuid.New().String(),
	}
	if c.log == nil {
		c.log = smp.GetLogger()
	}
	c.log = c.log.ChildLogger(map[string]interface{}{"attempt": c.attempt})
	c.localParams = PairingParams{
		IoCapability: cfg.IoCapability,
		OobFlag:      cfg.OobFlag,
		AuthReq:      cfg.AuthReq,
		MaxKeySize:   cfg.MaxKeySize,
		InitKeys:     cfg.InitiatorKeys,
		RespKeys:     cfg.ResponderKeys,
	}
	return c
}

func (c *Context) Role() Role   { return c.role }
func (c *Context) State() State { return c.state }

// Model returns the association model and whether it was decided yet.
func (c *Context) Model() (Model, bool) { return c.model, c.committed }

func (c *Context) SecureConnections() bool { return c.sc }

// Finished reports whether the attempt reported its result.
func (c *Context) Finished() bool { return c.flags.has(flagFinished) }

// Closed reports whether the link went away.
func (c *Context) Closed() bool { return c.flags.has(flagClosed) }

func (c *Context) initiator() bool { return c.role == Central }

// raise queues an event to be dispatched right after the current one.
func (c *Context) raise(ev Event, data *EventData) {
	c.raised = append(c.raised, raisedEvent{ev, data})
}

func (c *Context) takeRaised() []raisedEvent {
	r := c.raised
	c.raised = nil
	return r
}

// complete ends the attempt with reason. Remaining actions of the current
// row are skipped when it is a failure.
func (c *Context) complete(reason smp.Reason) {
	c.status = reason
	c.raise(EventAuthComplete, &EventData{Status: reason})
}

func (c *Context) fail(reason smp.Reason) {
	c.log.Warnf("pairing failed in %v: %v", c.state, reason)
	c.failed = true
	c.complete(reason)
}

// failErr logs err and fails with InternalError.
func (c *Context) failErr(err error) {
	c.log.Errorf("%v: %v", c.state, err)
	c.fail(smp.InternalError)
}

// redirect moves the state from within an action.
func (c *Context) redirect(s State) {
	c.log.Debugf("redirect %v -> %v", c.state, s)
	c.state = s
}

func (c *Context) send(pdu []byte) bool {
	if err := c.tr.Send(pdu); err != nil {
		c.failErr(err)
		return false
	}
	return true
}

// centralAddr and peripheralAddr order the link addresses for f5, f6, c1.
func (c *Context) centralAddr() smp.Addr {
	if c.role == Central {
		return c.local
	}
	return c.peer
}

func (c *Context) peripheralAddr() smp.Addr {
	if c.role == Central {
		return c.peer
	}
	return c.local
}

func (c *Context) initParams() PairingParams {
	if c.role == Central {
		return c.localParams
	}
	return c.peerParams
}

func (c *Context) respParams() PairingParams {
	if c.role == Central {
		return c.peerParams
	}
	return c.localParams
}

func zero16(b *[16]byte) { sliceops.Zero(b[:]) }

// clearEphemeral wipes every secret that is not part of the result.
func (c *Context) clearEphemeral() {
	for _, b := range []*[16]byte{
		&c.tk, &c.localConfirm, &c.peerConfirm, &c.localRand, &c.peerRand,
		&c.localR, &c.peerR, &c.macKey, &c.localDhkCheck, &c.peerDhkCheck,
	} {
		zero16(b)
	}
	sliceops.Zero(c.dhkey[:])
	c.privKey = nil
	c.localPub = smp.PublicKey{}
	c.peerPub = smp.PublicKey{}
	c.passkey = 0
	c.ncValue = 0
	c.round = 0
	c.peerOob = nil
	c.flags &^= flagLocalPublicKey | flagPeerPublicKey | flagPeerCommitment | flagPeerDHKeyCheck | flagPeerConfirm
}

// clearKeys drops the derived keys once they were handed out.
func (c *Context) clearKeys() {
	sliceops.Zero(c.linkKey)
	c.linkKey = nil
	c.localEnc, c.peerEnc = nil, nil
	c.peerIRK, c.localCSRK, c.peerCSRK = nil, nil, nil
	c.identity = nil
	c.reencrypt = nil
}

// maskKey truncates a key to the negotiated size.
func (c *Context) maskKey(k []byte) []byte {
	if c.keySize > 0 && c.keySize < len(k) {
		for i := c.keySize; i < len(k); i++ {
			k[i] = 0
		}
	}
	return k
}

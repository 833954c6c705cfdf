package pairing

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

var (
	// ErrBusy is returned when a pairing is already in progress, on this
	// link or, with single pairing configured, on another one.
	ErrBusy = errors.New("pairing in progress")
	// ErrNoSession is returned for a link or attempt that does not exist.
	ErrNoSession = errors.New("no pairing session")
	// ErrClosed is returned once the link disconnected or SMP timed out on it.
	ErrClosed = errors.New("session closed")
)

// Link describes one LE connection as seen by the local device.
type Link struct {
	Role      Role
	Local     smp.Addr
	Peer      smp.Addr
	Transport Transport
}

// job produces the next event to dispatch. It runs on the draining
// goroutine, which owns the Session's protocol state. A nil Context
// drops the job.
type job func() (*Context, Event, *EventData)

// Session runs the pairing attempts of one link. Events are dispatched one
// at a time in post order; events raised while dispatching go first.
type Session struct {
	cfg   smp.Config
	link  Link
	tb    Toolbox
	app   Application
	bonds smp.BondManager
	log   smp.Logger

	// busyElsewhere reports a pairing running on another link.
	busyElsewhere func(*Session) bool

	mu       sync.Mutex
	queue    []job
	draining bool
	ctx      *Context
	closed   bool
	timedOut bool
	lastOob  *smp.OobData

	// owned by the drainer
	encrypted bool
	timer     *time.Timer
	oob       localOob

	// trace is handed to every Context, tests use it.
	trace func(Action)
}

// NewSession returns a Session for l. bonds may be nil; tb defaults to a
// DefaultToolbox.
func NewSession(l Link, cfg smp.Config, app Application, bonds smp.BondManager, tb Toolbox) *Session {
	if tb == nil {
		tb = NewToolbox(nil)
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = smp.DefaultResponseTimeout
	}
	return &Session{
		cfg:   cfg,
		link:  l,
		tb:    tb,
		app:   app,
		bonds: bonds,
		log: smp.GetLogger().ChildLogger(map[string]interface{}{
			"peer": l.Peer.String(),
			"role": l.Role.String(),
		}),
	}
}

func (s *Session) Role() Role     { return s.link.Role }
func (s *Session) Peer() smp.Addr { return s.link.Peer }

// Pairing reports whether an attempt is in progress.
func (s *Session) Pairing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil
}

// Context returns the running attempt, or nil.
func (s *Session) Context() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) post(j job) {
	s.mu.Lock()
	s.queue = append(s.queue, j)
	if s.draining {
		s.mu.Unlock()
		return
	}

	s.draining = true
	for len(s.queue) > 0 {
		j := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.run(j)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) run(j job) {
	c, ev, data := j()
	if c == nil || ev == eventNone {
		return
	}

	Dispatch(c, ev, data)

	if r := c.takeRaised(); len(r) > 0 {
		jobs := make([]job, 0, len(r))
		for _, e := range r {
			jobs = append(jobs, s.bound(c, e.ev, e.data))
		}
		s.mu.Lock()
		s.queue = append(jobs, s.queue...)
		s.mu.Unlock()
	}

	if c.flags.has(flagEncrypted) {
		s.encrypted = true
	}
	if c.Finished() || c.Closed() {
		s.settle(c)
	}
}

// bound delivers ev only while c is still the running attempt.
func (s *Session) bound(c *Context, ev Event, data *EventData) job {
	return func() (*Context, Event, *EventData) {
		if s.current() != c {
			return nil, eventNone, nil
		}
		return c, ev, data
	}
}

// reply posts an application answer to the attempt running now. f builds
// the event once the job runs.
func (s *Session) reply(f func(c *Context) (Event, *EventData)) error {
	s.mu.Lock()
	c, closed := s.ctx, s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case c == nil:
		return ErrNoSession
	}

	s.post(func() (*Context, Event, *EventData) {
		if s.current() != c {
			return nil, eventNone, nil
		}
		ev, data := f(c)
		return c, ev, data
	})
	return nil
}

func (s *Session) current() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// begin creates and installs a new attempt. Only the drainer calls it.
func (s *Session) begin(weStarted bool) *Context {
	c := newContext(s.link.Role, s.cfg, s.link.Local, s.link.Peer, deps{
		tb:    s.tb,
		tr:    s.link.Transport,
		app:   s.app,
		bonds: s.bonds,
		oob:   &s.oob,
		log:   s.log,
	})
	c.trace = s.trace
	c.flags |= flagStarted
	if weStarted {
		c.flags |= flagWeStarted
	}
	if s.encrypted {
		c.flags |= flagEncrypted
	}

	s.mu.Lock()
	s.ctx = c
	s.mu.Unlock()
	return c
}

// settle drops a Context once its attempt is over.
func (s *Session) settle(c *Context) {
	s.stopTimer()

	s.mu.Lock()
	if s.ctx == c {
		s.ctx = nil
	}
	s.lastOob = s.oob.data
	s.mu.Unlock()
}

// arm restarts the response timer for c.
func (s *Session) arm(c *Context) {
	s.stopTimer()
	s.timer = time.AfterFunc(s.cfg.ResponseTimeout, func() {
		s.post(func() (*Context, Event, *EventData) {
			if s.current() != c {
				return nil, eventNone, nil
			}
			s.log.Warnf("smp timeout in %v", c.State())

			// no further SMP on this link until it reconnects
			s.mu.Lock()
			s.timedOut = true
			s.mu.Unlock()
			return c, EventAuthComplete, &EventData{Status: smp.ResponseTimeout}
		})
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// usable reports whether a new attempt may start on the link. gate also
// applies the single pairing limit.
func (s *Session) usable(gate bool) error {
	s.mu.Lock()
	closed, timedOut, busy := s.closed, s.timedOut, s.ctx != nil
	s.mu.Unlock()

	switch {
	case closed || timedOut:
		return ErrClosed
	case busy:
		return ErrBusy
	case gate && s.busyElsewhere != nil && s.busyElsewhere(s):
		return ErrBusy
	}
	return nil
}

// Pair starts pairing as central. The result arrives through
// Application.PairingComplete.
func (s *Session) Pair() error {
	if s.link.Role != Central {
		return errors.New("pair: link is not central")
	}
	return s.start()
}

// Secure asks the central for security by sending a Security Request once
// the application supplied its IO capabilities.
func (s *Session) Secure() error {
	if s.link.Role != Peripheral {
		return errors.New("secure: link is not peripheral")
	}
	return s.start()
}

// start posts a local attempt. Both roles begin by asking the app for its
// IO capabilities.
func (s *Session) start() error {
	if err := s.usable(true); err != nil {
		return err
	}

	s.post(func() (*Context, Event, *EventData) {
		if s.usable(true) != nil {
			s.log.Debugf("pair request dropped, link busy")
			return nil, eventNone, nil
		}
		c := s.begin(true)
		c.pending = reqIoCap
		s.arm(c)
		return c, EventConnected, nil
	})
	return nil
}

// CreateLocalOobData generates Secure Connections OOB data for this
// device. It is delivered to the application's LocalOobHandler, and used
// by the next OOB pairing on the link.
func (s *Session) CreateLocalOobData() error {
	if err := s.usable(false); err != nil {
		return err
	}

	s.post(func() (*Context, Event, *EventData) {
		if s.usable(false) != nil {
			return nil, eventNone, nil
		}
		c := s.begin(false)
		return c, EventCreateLocalScOobData, nil
	})
	return nil
}

// LocalOobData returns the last data CreateLocalOobData produced, or nil.
func (s *Session) LocalOobData() *smp.OobData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOob == nil {
		return nil
	}
	d := *s.lastOob
	return &d
}

// Receive handles one SMP PDU from the peer. The returned error reports a
// malformed PDU; the pairing outcome still goes to the application.
func (s *Session) Receive(pdu []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	cmd, perr := ParseCommand(pdu)
	s.post(func() (*Context, Event, *EventData) {
		return s.receive(cmd, perr)
	})
	return perr
}

func (s *Session) receive(cmd *Command, perr error) (*Context, Event, *EventData) {
	s.mu.Lock()
	timedOut, c := s.timedOut, s.ctx
	s.mu.Unlock()
	if timedOut {
		s.log.Debugf("smp timed out on link, pdu dropped")
		return nil, eventNone, nil
	}

	if perr != nil {
		reason, ok := errors.Cause(perr).(smp.Reason)
		if !ok {
			reason = smp.InvalidParameters
		}
		s.log.Warnf("bad pdu: %v", perr)
		if c == nil {
			s.sendFailed(reason)
			return nil, eventNone, nil
		}
		return c, EventAuthComplete, &EventData{Status: reason}
	}

	if c == nil {
		if c = s.incoming(cmd); c == nil {
			return nil, eventNone, nil
		}
	}
	s.arm(c)

	ev := cmd.Op.Event()
	if cmd.Op == OpPairingConfirm && c.localParams.AuthReq.SC() && c.peerParams.AuthReq.SC() {
		ev = EventPairCommitment
	}
	return c, ev, &EventData{Command: cmd}
}

// incoming starts an attempt for a PDU that arrived with none running.
func (s *Session) incoming(cmd *Command) *Context {
	role := s.link.Role
	switch {
	case role == Peripheral && cmd.Op == OpPairingRequest,
		role == Central && cmd.Op == OpSecurityRequest:
		if s.busyElsewhere != nil && s.busyElsewhere(s) {
			s.log.Infof("%v refused, pairing busy on another link", cmd.Op)
			s.sendFailed(smp.UnspecifiedReason)
			return nil
		}
		return s.begin(false)

	case role == Central && cmd.Op == OpPairingRequest:
		s.sendFailed(smp.CommandNotSupported)
		return nil
	}

	s.log.Debugf("%v dropped, no pairing in progress", cmd.Op)
	return nil
}

func (s *Session) sendFailed(r smp.Reason) {
	if err := s.link.Transport.Send(pairingFailedPDU(r)); err != nil {
		s.log.Warnf("send pairing failed: %v", err)
	}
}

// Disconnected ends the link. Any attempt completes with
// ConnectionTerminated.
func (s *Session) Disconnected() {
	s.post(func() (*Context, Event, *EventData) {
		s.mu.Lock()
		c := s.ctx
		s.closed = true
		s.mu.Unlock()

		s.stopTimer()
		if c == nil {
			return nil, eventNone, nil
		}
		return c, EventDisconnected, nil
	})
}

// EncryptionChanged reports the result of link encryption.
func (s *Session) EncryptionChanged(ok bool) {
	s.post(func() (*Context, Event, *EventData) {
		s.encrypted = ok
		c := s.current()
		if c == nil {
			return nil, eventNone, nil
		}
		st := smp.Success
		if !ok {
			st = smp.EncryptionFailed
		}
		return c, EventEncrypted, &EventData{Status: st}
	})
}

// LtkRequest answers the controller's request for the key of the link as
// peripheral, either from the running attempt or from the stored bond.
func (s *Session) LtkRequest(ediv uint16, rand uint64) {
	s.post(func() (*Context, Event, *EventData) {
		c := s.current()
		if c != nil && c.State() == StateEncryptionPending {
			return c, EventEncReq, nil
		}

		key := s.bondedLtk(ediv, rand)
		if err := s.link.Transport.LtkReply(key); err != nil {
			s.log.Errorf("ltk reply: %v", err)
		}
		return nil, eventNone, nil
	})
}

func (s *Session) bondedLtk(ediv uint16, rand uint64) []byte {
	if s.bonds == nil || !s.bonds.Exists(s.link.Peer) {
		return nil
	}
	ks, err := s.bonds.Find(s.link.Peer)
	if err != nil {
		s.log.Warnf("bond lookup: %v", err)
		return nil
	}

	switch {
	case ks.SecureConnections && ediv == 0 && rand == 0:
		return ks.LinkKey
	case !ks.SecureConnections && ks.LocalEnc != nil && ks.LocalEnc.EDIV == ediv && ks.LocalEnc.Rand == rand:
		return ks.LocalEnc.LTK
	}
	s.log.Infof("no key for ediv 0x%04x rand 0x%016x", ediv, rand)
	return nil
}

// SecurityGrant answers Application.SecurityRequest.
func (s *Session) SecurityGrant(ok bool) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		return EventSecurityGrant, &EventData{Accept: ok}
	})
}

// IoCapabilityReply answers Application.IoCapabilityRequest. nil keeps
// the configured parameters.
func (s *Session) IoCapabilityReply(r *smp.IoCapReply) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		return EventIoResponse, &EventData{IoCap: r}
	})
}

// PasskeyReply answers Application.PasskeyRequest.
func (s *Session) PasskeyReply(ok bool, passkey uint32) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		if !ok || passkey > smp.MaxPasskey {
			return EventAuthComplete, &EventData{Status: smp.PasskeyEntryFailed}
		}
		if c.sc {
			return EventScKeyReady, &EventData{Passkey: passkey}
		}
		return EventKeyReady, &EventData{KeyType: KeyTK, Key: legacyTK(passkey)}
	})
}

// ConfirmReply answers Application.NumericComparison.
func (s *Session) ConfirmReply(ok bool) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		if !ok {
			return EventAuthComplete, &EventData{Status: smp.NumericComparisonFailed}
		}
		return EventScNCOk, nil
	})
}

// OobReply answers a legacy Application.OobRequest with the 16 octet TK,
// nil when there is none.
func (s *Session) OobReply(tk []byte) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		if len(tk) != 16 {
			return EventAuthComplete, &EventData{Status: smp.OobNotAvailable}
		}
		return EventKeyReady, &EventData{KeyType: KeyTK, Key: append([]byte(nil), tk...)}
	})
}

// ScOobReply answers a Secure Connections Application.OobRequest with the
// peer's data, nil when there is none.
func (s *Session) ScOobReply(d *smp.OobData) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		if d == nil {
			return EventAuthComplete, &EventData{Status: smp.OobNotAvailable}
		}
		return EventScOobData, &EventData{Oob: d}
	})
}

// SendKeypress notifies the peer of passkey entry progress.
func (s *Session) SendKeypress(k smp.Keypress) error {
	if !k.Valid() {
		return errors.Errorf("invalid keypress %v", k)
	}
	return s.reply(func(c *Context) (Event, *EventData) {
		return EventKeypress, &EventData{Keypress: k}
	})
}

// SirkReply answers SirkVerifier.VerifySirk.
func (s *Session) SirkReply(ok bool) error {
	return s.reply(func(c *Context) (Event, *EventData) {
		st := smp.Success
		if !ok {
			st = smp.SirkDeviceInvalid
		}
		return EventSirkVerify, &EventData{Status: st}
	})
}

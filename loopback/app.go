package loopback

import (
	"sync"
	"time"

	"github.com/rigado/smp"
	"github.com/rigado/smp/pairing"
)

// passkeyWait bounds how long a passkey request waits for the other side
// to display one.
const passkeyWait = 5 * time.Second

// Board carries what one side displays to the user of the other side: the
// passkey, and the out of band data exchanged before pairing.
type Board struct {
	passkey chan uint32

	mu  sync.Mutex
	oob map[string]*smp.OobData
}

func NewBoard() *Board {
	return &Board{
		passkey: make(chan uint32, 1),
		oob:     make(map[string]*smp.OobData),
	}
}

func (b *Board) show(passkey uint32) {
	select {
	case b.passkey <- passkey:
	default:
		// an older passkey nobody typed in
		select {
		case <-b.passkey:
		default:
		}
		b.passkey <- passkey
	}
}

// PutOob publishes the local OOB data of the device at d.Addr.
func (b *Board) PutOob(d *smp.OobData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.oob[d.Addr.Key()] = d
}

func (b *Board) getOob(a smp.Addr) *smp.OobData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oob[a.Key()]
}

// AutoApp answers every pairing request without user interaction. The
// zero value accepts everything with the configured parameters; set Board
// to share passkeys and OOB data with the AutoApp of the other side.
type AutoApp struct {
	Board *Board

	// IoCap is the reply to IO capability requests, nil keeps the
	// configured parameters.
	IoCap *smp.IoCapReply
	// Reject declines security requests and numeric comparisons.
	Reject bool
	// WrongPasskey enters a passkey off by one, for failure tests.
	WrongPasskey bool
	// OobTK is the legacy OOB temporary key.
	OobTK []byte
	// Keypresses are sent while a passkey is being entered.
	Keypresses []smp.Keypress

	// Results receives every PairingComplete.
	Results chan smp.Result

	// Lookup finds sessions that were not attached, usually
	// pairing.Manager.Find.
	Lookup func(peer smp.Addr) (*pairing.Session, bool)

	mu        sync.Mutex
	sessions  map[string]*pairing.Session
	compared  []uint32
	displayed []uint32
	notified  []smp.Keypress
	asked     int
	localOob  *smp.OobData
}

// NewAutoApp returns an AutoApp using b.
func NewAutoApp(b *Board) *AutoApp {
	return &AutoApp{Board: b, Results: make(chan smp.Result, 16)}
}

// Attach lets the app answer requests about the peer of s.
func (a *AutoApp) Attach(s *pairing.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessions == nil {
		a.sessions = make(map[string]*pairing.Session)
	}
	a.sessions[s.Peer().Key()] = s
}

func (a *AutoApp) session(peer smp.Addr) *pairing.Session {
	a.mu.Lock()
	s := a.sessions[peer.Key()]
	a.mu.Unlock()
	if s == nil && a.Lookup != nil {
		s, _ = a.Lookup(peer)
	}
	return s
}

func (a *AutoApp) reply(peer smp.Addr, f func(s *pairing.Session) error) {
	s := a.session(peer)
	if s == nil {
		smp.GetLogger().Warnf("auto app: no session for %v", peer)
		return
	}
	if err := f(s); err != nil {
		smp.GetLogger().Warnf("auto app: reply to %v: %v", peer, err)
	}
}

func (a *AutoApp) SecurityRequest(peer smp.Addr) {
	a.reply(peer, func(s *pairing.Session) error { return s.SecurityGrant(!a.Reject) })
}

func (a *AutoApp) IoCapabilityRequest(peer smp.Addr) {
	a.reply(peer, func(s *pairing.Session) error { return s.IoCapabilityReply(a.IoCap) })
}

// PasskeyRequest waits for the passkey the other side displays. It
// answers from its own goroutine so the display can happen meanwhile.
func (a *AutoApp) PasskeyRequest(peer smp.Addr) {
	a.mu.Lock()
	a.asked++
	a.mu.Unlock()

	s := a.session(peer)
	if s == nil || a.Board == nil {
		a.reply(peer, func(s *pairing.Session) error { return s.PasskeyReply(false, 0) })
		return
	}

	go func() {
		for _, k := range a.Keypresses {
			if err := s.SendKeypress(k); err != nil {
				smp.GetLogger().Debugf("auto app: keypress: %v", err)
			}
		}

		select {
		case pk := <-a.Board.passkey:
			if a.WrongPasskey {
				pk = (pk + 1) % (smp.MaxPasskey + 1)
			}
			s.PasskeyReply(true, pk)
		case <-time.After(passkeyWait):
			s.PasskeyReply(false, 0)
		}
	}()
}

func (a *AutoApp) PasskeyDisplay(peer smp.Addr, passkey uint32) {
	a.mu.Lock()
	a.displayed = append(a.displayed, passkey)
	a.mu.Unlock()
	if a.Board != nil {
		a.Board.show(passkey)
	}
}

func (a *AutoApp) NumericComparison(peer smp.Addr, value uint32) {
	a.mu.Lock()
	a.compared = append(a.compared, value)
	a.mu.Unlock()
	a.reply(peer, func(s *pairing.Session) error { return s.ConfirmReply(!a.Reject) })
}

func (a *AutoApp) OobRequest(peer smp.Addr, sc bool) {
	if !sc {
		a.reply(peer, func(s *pairing.Session) error { return s.OobReply(a.OobTK) })
		return
	}

	var d *smp.OobData
	if a.Board != nil {
		d = a.Board.getOob(peer)
	}
	a.reply(peer, func(s *pairing.Session) error { return s.ScOobReply(d) })
}

func (a *AutoApp) KeypressNotify(peer smp.Addr, k smp.Keypress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notified = append(a.notified, k)
}

func (a *AutoApp) PairingComplete(peer smp.Addr, res smp.Result) {
	select {
	case a.Results <- res:
	default:
		smp.GetLogger().Warnf("auto app: result for %v dropped: %v", peer, res.Reason)
	}
}

// LocalOobData publishes data created by Session.CreateLocalOobData on
// the board.
func (a *AutoApp) LocalOobData(d *smp.OobData, err error) {
	if err != nil {
		smp.GetLogger().Warnf("auto app: no local oob data: %v", err)
	}
	a.mu.Lock()
	a.localOob = d
	a.mu.Unlock()
	if a.Board != nil && d != nil {
		a.Board.PutOob(d)
	}
}

// Compared returns the numeric comparison values shown so far.
func (a *AutoApp) Compared() []uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint32(nil), a.compared...)
}

// Displayed returns the passkeys shown so far.
func (a *AutoApp) Displayed() []uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint32(nil), a.displayed...)
}

// Notified returns the keypress notifications received so far.
func (a *AutoApp) Notified() []smp.Keypress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]smp.Keypress(nil), a.notified...)
}

// Asked returns how many passkeys were requested.
func (a *AutoApp) Asked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.asked
}

// Wait returns the next result, or false after d.
func (a *AutoApp) Wait(d time.Duration) (smp.Result, bool) {
	select {
	case r := <-a.Results:
		return r, true
	case <-time.After(d):
		return smp.Result{}, false
	}
}

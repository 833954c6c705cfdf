package pairing

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

// Manager keeps the Session of every connected link of one local device,
// keyed by connection handle.
type Manager struct {
	cfg   smp.Config
	app   Application
	bonds smp.BondManager
	tb    Toolbox

	mu       sync.RWMutex
	sessions map[uint16]*Session
}

// NewManager returns a Manager pairing with cfg. bonds may be nil, which
// disables bonding storage; tb nil selects DefaultToolbox.
func NewManager(cfg smp.Config, app Application, bonds smp.BondManager, tb Toolbox) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "pairing config")
	}
	if app == nil {
		return nil, errors.New("pairing: nil application")
	}
	if tb == nil {
		tb = NewToolbox(nil)
	}
	return &Manager{
		cfg:      cfg,
		app:      app,
		bonds:    bonds,
		tb:       tb,
		sessions: make(map[uint16]*Session),
	}, nil
}

// Connect creates the Session of a new link.
func (m *Manager) Connect(handle uint16, l Link) (*Session, error) {
	if l.Transport == nil {
		return nil, errors.Errorf("link 0x%04x: nil transport", handle)
	}

	s := NewSession(l, m.cfg, m.app, m.bonds, m.tb)
	if m.cfg.SinglePairing {
		s.busyElsewhere = m.pairingElsewhere
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[handle]; ok {
		return nil, errors.Errorf("link 0x%04x already connected", handle)
	}
	m.sessions[handle] = s
	return s, nil
}

// Disconnect ends the link's Session. A running attempt completes with
// ConnectionTerminated.
func (m *Manager) Disconnect(handle uint16) error {
	m.mu.Lock()
	s, ok := m.sessions[handle]
	delete(m.sessions, handle)
	m.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	// outside the lock, the session may call back into pairingElsewhere
	s.Disconnected()
	return nil
}

// Receive hands an SMP PDU to the link's Session.
func (m *Manager) Receive(handle uint16, pdu []byte) error {
	s, ok := m.Session(handle)
	if !ok {
		return ErrNoSession
	}
	return s.Receive(pdu)
}

func (m *Manager) Session(handle uint16) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[handle]
	return s, ok
}

// Find returns the Session of the link to peer.
func (m *Manager) Find(peer smp.Addr) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.link.Peer == peer {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of connected links.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) pairingElsewhere(self *Session) bool {
	m.mu.RLock()
	others := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != self {
			others = append(others, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range others {
		if s.Pairing() {
			return true
		}
	}
	return false
}

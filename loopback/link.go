// Package loopback connects a central and a peripheral pairing Manager
// in one process. PDUs and encryption requests cross an in-memory link,
// so complete pairings run without a controller.
package loopback

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
	"github.com/rigado/smp/pairing"
)

// Handle is the connection handle both sides use for the link.
const Handle = 0x0040

const queueSize = 256

// end is one side of the link. Work for its Session runs in order on the
// end's own goroutine, as a controller would deliver it.
type end struct {
	l    *Link
	mgr  *pairing.Manager
	peer *end
	name string

	q    chan func()
	done chan struct{}
}

func newEnd(l *Link, mgr *pairing.Manager, name string) *end {
	e := &end{
		l:    l,
		mgr:  mgr,
		name: name,
		q:    make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *end) loop() {
	for {
		select {
		case f := <-e.q:
			f()
		case <-e.done:
			return
		}
	}
}

func (e *end) post(f func()) error {
	select {
	case <-e.done:
		return errors.Errorf("%v: link closed", e.name)
	case e.q <- f:
		return nil
	}
}

func (e *end) session() (*pairing.Session, bool) {
	return e.mgr.Session(Handle)
}

// Send delivers pdu to the other side.
func (e *end) Send(pdu []byte) error {
	b := append([]byte(nil), pdu...)
	e.l.count(b)
	p := e.peer
	return p.post(func() {
		if err := p.mgr.Receive(Handle, b); err != nil {
			e.l.log.Debugf("%v: receive % X: %v", p.name, b, err)
		}
	})
}

// StartEncryption asks the peripheral for the key, as the controller's
// LE Long Term Key Request would.
func (e *end) StartEncryption(ltk []byte, ediv uint16, rand uint64) error {
	if len(ltk) != 16 {
		return errors.Errorf("ltk must be 16 bytes, got %d", len(ltk))
	}
	e.l.mu.Lock()
	e.l.ltk = append([]byte(nil), ltk...)
	e.l.mu.Unlock()

	p := e.peer
	return p.post(func() {
		if s, ok := p.session(); ok {
			s.LtkRequest(ediv, rand)
		}
	})
}

// LtkReply completes encryption on both sides. It only succeeds when the
// peripheral's key is the one the central started with.
func (e *end) LtkReply(ltk []byte) error {
	e.l.mu.Lock()
	ok := ltk != nil && e.l.ltk != nil && bytes.Equal(ltk, e.l.ltk)
	e.l.ltk = nil
	if ok {
		e.l.encrypted = append([]byte(nil), ltk...)
	}
	e.l.mu.Unlock()

	if !ok {
		e.l.log.Debugf("ltk mismatch, encryption failed")
	}

	// the central hears first, it must be encrypted before the
	// peripheral's first distributed key arrives
	for _, x := range []*end{e.peer, e} {
		x := x
		if err := x.post(func() {
			if s, found := x.session(); found {
				s.EncryptionChanged(ok)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// Link is an established connection between two Managers.
type Link struct {
	central, peripheral *end
	log                 smp.Logger

	mu        sync.Mutex
	ltk       []byte
	encrypted []byte
	pdus      map[pairing.Opcode]int

	closeOnce sync.Once
}

// New connects central and peripheral. centralAddr and peripheralAddr are
// the devices' own addresses.
func New(central, peripheral *pairing.Manager, centralAddr, peripheralAddr smp.Addr) (*Link, error) {
	l := &Link{
		log:  smp.GetLogger().ChildLogger(map[string]interface{}{"loopback": centralAddr.String()}),
		pdus: make(map[pairing.Opcode]int),
	}
	l.central = newEnd(l, central, "central")
	l.peripheral = newEnd(l, peripheral, "peripheral")
	l.central.peer, l.peripheral.peer = l.peripheral, l.central

	if _, err := central.Connect(Handle, pairing.Link{
		Role: pairing.Central, Local: centralAddr, Peer: peripheralAddr, Transport: l.central,
	}); err != nil {
		l.stop()
		return nil, errors.Wrap(err, "central connect")
	}
	if _, err := peripheral.Connect(Handle, pairing.Link{
		Role: pairing.Peripheral, Local: peripheralAddr, Peer: centralAddr, Transport: l.peripheral,
	}); err != nil {
		central.Disconnect(Handle)
		l.stop()
		return nil, errors.Wrap(err, "peripheral connect")
	}
	return l, nil
}

// Central returns the central's Session of the link.
func (l *Link) Central() *pairing.Session {
	s, _ := l.central.session()
	return s
}

// Peripheral returns the peripheral's Session of the link.
func (l *Link) Peripheral() *pairing.Session {
	s, _ := l.peripheral.session()
	return s
}

// EncryptionKey returns the key the link was last encrypted with.
func (l *Link) EncryptionKey() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.encrypted...)
}

// Sent returns how many PDUs with opcode op crossed the link, both ways.
func (l *Link) Sent(op pairing.Opcode) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pdus[op]
}

func (l *Link) count(pdu []byte) {
	if len(pdu) == 0 {
		return
	}
	l.mu.Lock()
	l.pdus[pairing.Opcode(pdu[0])]++
	l.mu.Unlock()
}

// Close disconnects both sides. Running attempts complete with
// ConnectionTerminated.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		wait := make(chan struct{}, 2)
		for _, e := range []*end{l.central, l.peripheral} {
			e := e
			if err := e.post(func() {
				e.mgr.Disconnect(Handle)
				wait <- struct{}{}
			}); err != nil {
				wait <- struct{}{}
			}
		}
		<-wait
		<-wait
		l.stop()
	})
}

func (l *Link) stop() {
	close(l.central.done)
	close(l.peripheral.done)
}

package pairing

import (
	"io"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/rigado/smp"
)

func TestMain(m *testing.M) {
	smp.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

var (
	testCentralAddr    = smp.Addr{Octets: [6]byte{0xa6, 0xa5, 0xa4, 0xa3, 0xa2, 0xa1}, Type: smp.AddrRandom}
	testPeripheralAddr = smp.Addr{Octets: [6]byte{0xb6, 0xb5, 0xb4, 0xb3, 0xb2, 0xb1}, Type: smp.AddrPublic}
)

// seededToolbox is deterministic across runs.
func seededToolbox(seed int64) *DefaultToolbox {
	return NewToolbox(rand.New(rand.NewSource(seed)))
}

type encStart struct {
	ltk  []byte
	ediv uint16
	rand uint64
}

// recTransport records everything the engine asks of the transport.
type recTransport struct {
	mu   sync.Mutex
	pdus [][]byte
	enc  []encStart
	ltks [][]byte
	err  error
}

func (t *recTransport) Send(pdu []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pdus = append(t.pdus, append([]byte(nil), pdu...))
	return t.err
}

func (t *recTransport) StartEncryption(ltk []byte, ediv uint16, rand uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enc = append(t.enc, encStart{append([]byte(nil), ltk...), ediv, rand})
	return t.err
}

func (t *recTransport) LtkReply(ltk []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ltks = append(t.ltks, append([]byte(nil), ltk...))
	return t.err
}

func (t *recTransport) sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.pdus...)
}

func (t *recTransport) count(op Opcode) int {
	n := 0
	for _, p := range t.sent() {
		if len(p) > 0 && Opcode(p[0]) == op {
			n++
		}
	}
	return n
}

func (t *recTransport) last() []byte {
	p := t.sent()
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// recApp records application callbacks. Results are also delivered on a
// channel for tests that wait.
type recApp struct {
	mu      sync.Mutex
	calls   []string
	results []smp.Result
	oob     []oobResult
	done    chan smp.Result
}

type oobResult struct {
	data *smp.OobData
	err  error
}

func newRecApp() *recApp {
	return &recApp{done: make(chan smp.Result, 16)}
}

func (a *recApp) record(s string) {
	a.mu.Lock()
	a.calls = append(a.calls, s)
	a.mu.Unlock()
}

func (a *recApp) SecurityRequest(peer smp.Addr)                 { a.record("security") }
func (a *recApp) IoCapabilityRequest(peer smp.Addr)             { a.record("iocap") }
func (a *recApp) PasskeyRequest(peer smp.Addr)                  { a.record("passkey") }
func (a *recApp) PasskeyDisplay(peer smp.Addr, passkey uint32)  { a.record("display") }
func (a *recApp) NumericComparison(peer smp.Addr, value uint32) { a.record("nc") }
func (a *recApp) OobRequest(peer smp.Addr, sc bool)             { a.record("oob") }
func (a *recApp) KeypressNotify(peer smp.Addr, k smp.Keypress)  { a.record("keypress") }

func (a *recApp) PairingComplete(peer smp.Addr, res smp.Result) {
	a.mu.Lock()
	a.results = append(a.results, res)
	a.mu.Unlock()
	a.done <- res
}

func (a *recApp) LocalOobData(d *smp.OobData, err error) {
	a.mu.Lock()
	a.oob = append(a.oob, oobResult{d, err})
	a.mu.Unlock()
}

func (a *recApp) localOob() []oobResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]oobResult(nil), a.oob...)
}

func (a *recApp) has(call string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (a *recApp) completed() []smp.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]smp.Result(nil), a.results...)
}

func newTestContext(t *testing.T, role Role) (*Context, *recTransport, *recApp) {
	t.Helper()

	tr := &recTransport{}
	app := newRecApp()
	local, peer := testCentralAddr, testPeripheralAddr
	if role == Peripheral {
		local, peer = peer, local
	}
	c := newContext(role, smp.DefaultConfig(), local, peer, deps{
		tb:  seededToolbox(1),
		tr:  tr,
		app: app,
		oob: &localOob{},
	})
	return c, tr, app
}

// drain dispatches raised events the way Session does: each event's own
// raises go before anything raised earlier.
func drain(c *Context) {
	q := c.takeRaised()
	for len(q) > 0 {
		e := q[0]
		q = q[1:]
		Dispatch(c, e.ev, e.data)
		q = append(c.takeRaised(), q...)
	}
}

func cmdData(t *testing.T, pdu []byte) *EventData {
	t.Helper()
	cmd, err := ParseCommand(pdu)
	if err != nil {
		t.Fatalf("parse %x: %v", pdu, err)
	}
	return &EventData{Command: cmd}
}

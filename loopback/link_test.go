package loopback

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rigado/smp"
	"github.com/rigado/smp/bond"
	"github.com/rigado/smp/pairing"
)

func TestMain(m *testing.M) {
	smp.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

const resultWait = 5 * time.Second

var (
	centralAddr    = smp.Addr{Octets: [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xc0}, Type: smp.AddrRandom}
	peripheralAddr = smp.Addr{Octets: [6]byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16}, Type: smp.AddrPublic}
)

type side struct {
	app   *AutoApp
	mgr   *pairing.Manager
	bonds *bond.Manager
}

func newSide(t *testing.T, b *Board, opts ...smp.Option) *side {
	t.Helper()
	cfg, err := smp.NewConfig(opts...)
	if err != nil {
		t.Fatal(err)
	}
	s := &side{
		app:   NewAutoApp(b),
		bonds: bond.NewManager(filepath.Join(t.TempDir(), "bonds.json")),
	}
	if s.mgr, err = pairing.NewManager(cfg, s.app, s.bonds, nil); err != nil {
		t.Fatal(err)
	}
	return s
}

func connect(t *testing.T, c, p *side) *Link {
	t.Helper()
	l, err := New(c.mgr, p.mgr, centralAddr, peripheralAddr)
	if err != nil {
		t.Fatal(err)
	}
	c.app.Attach(l.Central())
	p.app.Attach(l.Peripheral())
	return l
}

func results(t *testing.T, c, p *side) (smp.Result, smp.Result) {
	t.Helper()
	rc, ok := c.app.Wait(resultWait)
	if !ok {
		t.Fatal("no result on the central")
	}
	rp, ok := p.app.Wait(resultWait)
	if !ok {
		t.Fatal("no result on the peripheral")
	}
	return rc, rp
}

func pair(t *testing.T, c, p *side) (*Link, smp.Result, smp.Result) {
	t.Helper()
	l := connect(t, c, p)
	if err := l.Central().Pair(); err != nil {
		t.Fatal(err)
	}
	rc, rp := results(t, c, p)
	return l, rc, rp
}

func checkSuccess(t *testing.T, l *Link, rc, rp smp.Result) {
	t.Helper()
	if rc.Reason != smp.Success || rp.Reason != smp.Success {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
	if rc.Keys == nil || rp.Keys == nil {
		t.Fatal("success without keys")
	}
	if !bytes.Equal(rc.Keys.LinkKey, rp.Keys.LinkKey) {
		t.Fatalf("link keys differ: %x %x", rc.Keys.LinkKey, rp.Keys.LinkKey)
	}
	if !bytes.Equal(rc.Keys.LinkKey, l.EncryptionKey()) {
		t.Fatal("link not encrypted with the derived key")
	}
	if rc.Keys.Peer != peripheralAddr || rp.Keys.Peer != centralAddr {
		t.Fatalf("peers %v %v", rc.Keys.Peer, rp.Keys.Peer)
	}
}

func TestLegacyJustWorks(t *testing.T) {
	c := newSide(t, nil, smp.OptSecureConnections(false))
	p := newSide(t, nil, smp.OptSecureConnections(false))

	l, rc, rp := pair(t, c, p)
	defer l.Close()
	checkSuccess(t, l, rc, rp)

	k := rc.Keys
	if k.SecureConnections || k.Authenticated || !k.Bonded {
		t.Fatalf("keys %+v", k)
	}
	if k.PeerEnc == nil || rp.Keys.LocalEnc == nil || !bytes.Equal(k.PeerEnc.LTK, rp.Keys.LocalEnc.LTK) ||
		k.PeerEnc.EDIV != rp.Keys.LocalEnc.EDIV || k.PeerEnc.Rand != rp.Keys.LocalEnc.Rand {
		t.Fatal("peripheral ltk not received")
	}
	if rp.Keys.PeerEnc == nil || !bytes.Equal(rp.Keys.PeerEnc.LTK, k.LocalEnc.LTK) {
		t.Fatal("central ltk not received")
	}
	if k.IdentityAddr == nil || *k.IdentityAddr != peripheralAddr {
		t.Fatalf("identity %v", k.IdentityAddr)
	}
	if !bytes.Equal(k.PeerCSRK, rp.Keys.LocalCSRK) || !bytes.Equal(rp.Keys.PeerCSRK, k.LocalCSRK) {
		t.Fatal("signing keys differ")
	}
	if l.Sent(pairing.OpPairingPublicKey) != 0 {
		t.Fatal("public key exchanged in legacy pairing")
	}

	if !c.bonds.Exists(peripheralAddr) || !p.bonds.Exists(centralAddr) {
		t.Fatal("bond not stored")
	}
}

func TestSecureConnectionsJustWorks(t *testing.T) {
	c := newSide(t, nil)
	p := newSide(t, nil)

	l, rc, rp := pair(t, c, p)
	defer l.Close()
	checkSuccess(t, l, rc, rp)

	if !rc.Keys.SecureConnections || rc.Keys.Authenticated {
		t.Fatalf("keys %+v", rc.Keys)
	}
	if l.Sent(pairing.OpEncryptionInfo) != 0 {
		t.Fatal("ltk distributed under secure connections")
	}
	if n := l.Sent(pairing.OpPairingDHKeyCheck); n != 2 {
		t.Fatalf("%d dhkey checks", n)
	}
}

func TestNumericComparison(t *testing.T) {
	c := newSide(t, nil, smp.OptIoCapability(smp.DisplayYesNo), smp.OptMITM(true))
	p := newSide(t, nil, smp.OptIoCapability(smp.DisplayYesNo), smp.OptMITM(true))

	l, rc, rp := pair(t, c, p)
	defer l.Close()
	checkSuccess(t, l, rc, rp)

	if !rc.Keys.Authenticated || !rp.Keys.Authenticated {
		t.Fatal("numeric comparison not authenticated")
	}
	vc, vp := c.app.Compared(), p.app.Compared()
	if len(vc) != 1 || len(vp) != 1 || vc[0] != vp[0] {
		t.Fatalf("compared %v and %v", vc, vp)
	}
	if vc[0] > smp.MaxPasskey {
		t.Fatalf("value %d has more than six digits", vc[0])
	}
}

func TestNumericComparisonRejected(t *testing.T) {
	c := newSide(t, nil, smp.OptIoCapability(smp.DisplayYesNo), smp.OptMITM(true))
	p := newSide(t, nil, smp.OptIoCapability(smp.DisplayYesNo), smp.OptMITM(true))
	c.app.Reject = true

	l, rc, rp := pair(t, c, p)
	defer l.Close()

	if rc.Reason != smp.NumericComparisonFailed || rp.Reason != smp.NumericComparisonFailed {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
	if rc.Keys != nil || rp.Keys != nil {
		t.Fatal("keys handed out on failure")
	}
	if c.bonds.Exists(peripheralAddr) {
		t.Fatal("failed pairing stored")
	}
}

func passkeySides(t *testing.T, opts ...smp.Option) (*side, *side) {
	b := NewBoard()
	c := newSide(t, b, append([]smp.Option{smp.OptIoCapability(smp.KeyboardOnly), smp.OptMITM(true)}, opts...)...)
	p := newSide(t, b, append([]smp.Option{smp.OptIoCapability(smp.DisplayOnly), smp.OptMITM(true)}, opts...)...)
	return c, p
}

func TestSecureConnectionsPasskey(t *testing.T) {
	c, p := passkeySides(t, smp.OptKeypress(true))
	c.app.Keypresses = []smp.Keypress{smp.KeypressEntryStarted, smp.KeypressDigitEntered, smp.KeypressEntryCompleted}

	l, rc, rp := pair(t, c, p)
	defer l.Close()
	checkSuccess(t, l, rc, rp)

	if !rc.Keys.Authenticated || !rc.Keys.SecureConnections {
		t.Fatalf("keys %+v", rc.Keys)
	}
	if len(p.app.Displayed()) != 1 || len(c.app.Displayed()) != 0 {
		t.Fatalf("displayed %v / %v", c.app.Displayed(), p.app.Displayed())
	}
	// one commitment each way per passkey bit
	if n := l.Sent(pairing.OpPairingConfirm); n != 40 {
		t.Fatalf("%d commitments", n)
	}
	if n := len(p.app.Notified()); n != 3 {
		t.Fatalf("%d keypresses notified", n)
	}
}

func TestLegacyPasskey(t *testing.T) {
	c, p := passkeySides(t, smp.OptSecureConnections(false))

	l, rc, rp := pair(t, c, p)
	defer l.Close()
	checkSuccess(t, l, rc, rp)

	if !rc.Keys.Authenticated || rc.Keys.SecureConnections {
		t.Fatalf("keys %+v", rc.Keys)
	}
}

func TestWrongPasskey(t *testing.T) {
	c, p := passkeySides(t)
	c.app.WrongPasskey = true

	l, rc, rp := pair(t, c, p)
	defer l.Close()

	if rc.Reason != smp.ConfirmValueFailed || rp.Reason != smp.ConfirmValueFailed {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
	if l.Sent(pairing.OpPairingFailed) != 1 {
		t.Fatalf("%d pairing failed pdus", l.Sent(pairing.OpPairingFailed))
	}
	if l.Sent(pairing.OpPairingDHKeyCheck) != 0 {
		t.Fatal("dhkey check after a failed commitment")
	}
}

func TestSecureConnectionsOob(t *testing.T) {
	b := NewBoard()
	c := newSide(t, b, smp.OptOobFlag(true))
	p := newSide(t, b)

	l := connect(t, c, p)
	defer l.Close()

	if err := l.Peripheral().CreateLocalOobData(); err != nil {
		t.Fatal(err)
	}
	if b.getOob(peripheralAddr) == nil {
		t.Fatal("local oob data not published")
	}

	if err := l.Central().Pair(); err != nil {
		t.Fatal(err)
	}
	rc, rp := results(t, c, p)
	checkSuccess(t, l, rc, rp)
	if !rc.Keys.Authenticated {
		t.Fatal("oob pairing not authenticated")
	}
}

func TestSecureConnectionsOobMissing(t *testing.T) {
	c := newSide(t, NewBoard(), smp.OptOobFlag(true))
	p := newSide(t, nil)

	l, rc, rp := pair(t, c, p)
	defer l.Close()

	if rc.Reason != smp.OobNotAvailable {
		t.Fatalf("central %v", rc.Reason)
	}
	// the peripheral hears the reason on the wire
	if rp.Reason != smp.OobNotAvailable {
		t.Fatalf("peripheral %v", rp.Reason)
	}
}

func TestSecureConnectionsOnlyRejectsLegacy(t *testing.T) {
	c := newSide(t, nil, smp.OptSecureConnectionsOnly())
	p := newSide(t, nil, smp.OptSecureConnections(false))

	l, rc, rp := pair(t, c, p)
	defer l.Close()

	if rc.Reason != smp.AuthRequirements || rp.Reason != smp.AuthRequirements {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
}

func TestPeripheralSecurityRequest(t *testing.T) {
	c := newSide(t, nil)
	p := newSide(t, nil)

	l := connect(t, c, p)
	defer l.Close()
	if err := l.Peripheral().Secure(); err != nil {
		t.Fatal(err)
	}
	rc, rp := results(t, c, p)
	checkSuccess(t, l, rc, rp)
	if l.Sent(pairing.OpSecurityRequest) != 1 {
		t.Fatal("no security request sent")
	}
}

func TestSecurityRequestDeclined(t *testing.T) {
	c := newSide(t, nil)
	p := newSide(t, nil)
	c.app.Reject = true

	l := connect(t, c, p)
	defer l.Close()
	if err := l.Peripheral().Secure(); err != nil {
		t.Fatal(err)
	}
	rc, rp := results(t, c, p)
	if rc.Reason != smp.PairingNotSupported || rp.Reason != smp.PairingNotSupported {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
}

func TestReencryptWithBond(t *testing.T) {
	c := newSide(t, nil)
	p := newSide(t, nil)

	l, rc, rp := pair(t, c, p)
	checkSuccess(t, l, rc, rp)
	ltk := rc.Keys.LinkKey
	l.Close()

	l = connect(t, c, p)
	defer l.Close()
	if err := l.Peripheral().Secure(); err != nil {
		t.Fatal(err)
	}
	rc, rp = results(t, c, p)
	if rc.Reason != smp.Success || rp.Reason != smp.Success {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
	if rc.Keys != nil || rp.Keys != nil {
		t.Fatal("re-encryption produced new keys")
	}
	if l.Sent(pairing.OpPairingRequest) != 0 {
		t.Fatal("bonded central paired again")
	}
	if !bytes.Equal(l.EncryptionKey(), ltk) {
		t.Fatal("link not encrypted with the bonded key")
	}
}

func TestDisconnectWhilePairing(t *testing.T) {
	// both sides wait for a passkey nobody displays
	c := newSide(t, NewBoard(), smp.OptIoCapability(smp.KeyboardOnly), smp.OptMITM(true))
	p := newSide(t, NewBoard(), smp.OptIoCapability(smp.KeyboardOnly), smp.OptMITM(true))

	l := connect(t, c, p)
	cs := l.Central()
	if err := cs.Pair(); err != nil {
		t.Fatal(err)
	}

	for deadline := time.Now().Add(resultWait); c.app.Asked() == 0 || p.app.Asked() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("passkey never requested")
		}
		time.Sleep(5 * time.Millisecond)
	}

	l.Close()
	rc, rp := results(t, c, p)
	if rc.Reason != smp.ConnectionTerminated || rp.Reason != smp.ConnectionTerminated {
		t.Fatalf("central %v, peripheral %v", rc.Reason, rp.Reason)
	}
	if err := cs.Pair(); err != pairing.ErrClosed {
		t.Fatalf("pair after disconnect: %v", err)
	}
	if l.Sent(pairing.OpPairingFailed) != 0 {
		t.Fatal("pairing failed sent on disconnect")
	}
}

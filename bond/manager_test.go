package bond

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

func tempManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "bonds.json"))
}

func testKeys(t *testing.T, addr string) *smp.KeySet {
	t.Helper()
	peer, err := smp.NewAddr(addr, smp.AddrRandom)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := smp.NewAddr("00:11:22:33:44:55", smp.AddrPublic)
	return &smp.KeySet{
		Peer:     peer,
		LinkKey:  bytes.Repeat([]byte{0x11}, 16),
		KeySize:  16,
		Bonded:   true,
		LocalEnc: &smp.EncKey{LTK: bytes.Repeat([]byte{0x22}, 16), EDIV: 0x1234, Rand: 0x0102030405060708},
		PeerEnc:  &smp.EncKey{LTK: bytes.Repeat([]byte{0x33}, 16), EDIV: 0xbeef, Rand: 0xfffefdfcfbfaf9f8},
		PeerIRK:  bytes.Repeat([]byte{0x44}, 16),
		PeerCSRK: bytes.Repeat([]byte{0x55}, 16),
		// json drops the monotonic clock reading
		Created:      time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC),
		IdentityAddr: &id,
	}
}

func TestSaveFind(t *testing.T) {
	m := tempManager(t)
	ks := testKeys(t, "c0:01:02:03:04:05")

	if m.Exists(ks.Peer) {
		t.Fatal("bond exists before save")
	}
	if _, err := m.Find(ks.Peer); errors.Cause(err) != ErrNotFound {
		t.Fatalf("got %v", err)
	}
	if err := m.Save(ks); err != nil {
		t.Fatal(err)
	}
	if !m.Exists(ks.Peer) {
		t.Fatal("bond not found after save")
	}

	got, err := m.Find(ks.Peer)
	if err != nil {
		t.Fatal(err)
	}
	if got.Peer != ks.Peer || !bytes.Equal(got.LinkKey, ks.LinkKey) || !got.Legacy() {
		t.Fatalf("got %+v", got)
	}
	if got.LocalEnc == nil || !bytes.Equal(got.LocalEnc.LTK, ks.LocalEnc.LTK) || got.LocalEnc.EDIV != 0x1234 || got.LocalEnc.Rand != 0x0102030405060708 {
		t.Fatalf("local enc %+v", got.LocalEnc)
	}
	if got.PeerEnc.EDIV != 0xbeef || got.PeerEnc.Rand != 0xfffefdfcfbfaf9f8 || !bytes.Equal(got.PeerEnc.LTK, ks.PeerEnc.LTK) {
		t.Fatalf("peer enc %+v", got.PeerEnc)
	}
	if got.IdentityAddr == nil || *got.IdentityAddr != *ks.IdentityAddr {
		t.Fatalf("identity %v", got.IdentityAddr)
	}
	if !got.Created.Equal(ks.Created) || got.LocalCSRK != nil {
		t.Fatalf("got %+v", got)
	}

	// the identity address finds the bond too
	if !m.Exists(*ks.IdentityAddr) {
		t.Fatal("identity address lookup failed")
	}
}

func TestSaveReplaces(t *testing.T) {
	m := tempManager(t)
	ks := testKeys(t, "c0:01:02:03:04:05")
	m.Save(ks)
	m.Save(testKeys(t, "c0:aa:bb:cc:dd:ee"))

	ks.LinkKey = bytes.Repeat([]byte{0x99}, 16)
	ks.SecureConnections = true
	if err := m.Save(ks); err != nil {
		t.Fatal(err)
	}

	all, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("%d bonds", len(all))
	}
	if !bytes.Equal(all[0].LinkKey, ks.LinkKey) || all[0].Legacy() {
		t.Fatalf("bond not replaced: %+v", all[0])
	}
}

func TestDelete(t *testing.T) {
	m := tempManager(t)
	ks := testKeys(t, "c0:01:02:03:04:05")
	m.Save(ks)

	if err := m.Delete(ks.Peer); err != nil {
		t.Fatal(err)
	}
	if m.Exists(ks.Peer) {
		t.Fatal("bond survived delete")
	}
	if err := m.Delete(ks.Peer); errors.Cause(err) != ErrNotFound {
		t.Fatalf("got %v", err)
	}
}

func TestPersists(t *testing.T) {
	m := tempManager(t)
	ks := testKeys(t, "c0:01:02:03:04:05")
	m.Save(ks)

	if !NewManager(m.Path()).Exists(ks.Peer) {
		t.Fatal("bond not on disk")
	}
}

func TestRejects(t *testing.T) {
	m := tempManager(t)
	if err := m.Save(nil); err == nil {
		t.Fatal("saved nil keys")
	}
	if err := m.Save(&smp.KeySet{}); err == nil {
		t.Fatal("saved keys without a peer")
	}

	if err := ioutil.WriteFile(m.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.List(); err == nil {
		t.Fatal("parsed a corrupt bond file")
	}

	bad := `{"bonds":[{"address":"c00102030405","longTermKey":"zz"}]}`
	ioutil.WriteFile(m.Path(), []byte(bad), 0600)
	peer, _ := smp.NewAddr("c00102030405", smp.AddrPublic)
	if _, err := m.Find(peer); err == nil {
		t.Fatal("decoded a bad long term key")
	}
}

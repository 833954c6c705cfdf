package pairing

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

func TestParseCommandRejects(t *testing.T) {
	cases := []struct {
		name string
		pdu  string
		exp  smp.Reason
	}{
		{"empty", "", smp.InvalidParameters},
		{"opcode zero", "00", smp.CommandNotSupported},
		{"opcode past keypress", "0f00", smp.CommandNotSupported},
		{"short request", "0103000910", smp.InvalidParameters},
		{"long confirm", "03" + "00000000000000000000000000000000" + "00", smp.InvalidParameters},
		{"short public key", "0c0102", smp.InvalidParameters},
		{"io capability", "01050009100707", smp.InvalidParameters},
		{"oob flag", "01030209100707", smp.InvalidParameters},
		{"key size low", "01030009060707", smp.EncryptionKeySize},
		{"key size high", "02030009110707", smp.EncryptionKeySize},
		{"keypress type", "0e05", smp.InvalidParameters},
		{"id addr type", "0902a1a2a3a4a5a6", smp.InvalidParameters},
	}

	for _, tc := range cases {
		b := s2h(t, false, tc.pdu)
		c, err := ParseCommand(b)
		if err == nil {
			t.Fatalf("%v: parsed %v", tc.name, c)
		}
		if r, ok := errors.Cause(err).(smp.Reason); !ok || r != tc.exp {
			t.Fatalf("%v: got %v, exp %v", tc.name, err, tc.exp)
		}
	}
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand(s2h(t, false, "01040009100703"))
	if err != nil {
		t.Fatal(err)
	}
	exp := PairingParams{
		IoCapability: smp.KeyboardDisplay,
		AuthReq:      smp.AuthBonding | smp.AuthSC,
		MaxKeySize:   16,
		InitKeys:     smp.KeyDistAll,
		RespKeys:     smp.KeyDistEnc | smp.KeyDistID,
	}
	if c.Op != OpPairingRequest || c.Params == nil || *c.Params != exp {
		t.Fatalf("got %+v", c.Params)
	}
	if !bytes.Equal(c.Params.Bytes(OpPairingRequest), c.Raw) {
		t.Fatal("params don't round trip to the raw pdu")
	}

	c, err = ParseCommand(s2h(t, false, "0734125634127856341278"))
	if err != nil {
		t.Fatal(err)
	}
	if c.EDIV != 0x1234 || c.Rand != 0x7812345678123456 {
		t.Fatalf("ediv 0x%04x rand 0x%016x", c.EDIV, c.Rand)
	}
	if !bytes.Equal(centralIDPDU(c.EDIV, c.Rand), c.Raw) {
		t.Fatal("central id doesn't round trip")
	}

	c, err = ParseCommand(s2h(t, false, "0901a6a5a4a3a2a1"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr == nil || *c.Addr != testCentralAddr {
		t.Fatalf("addr %v", c.Addr)
	}
	if !bytes.Equal(identityAddrPDU(*c.Addr), c.Raw) {
		t.Fatal("identity address doesn't round trip")
	}
}

func TestConfirmOpcodeEvent(t *testing.T) {
	for op := OpPairingRequest; op < opMax; op++ {
		if !op.Event().Valid() {
			t.Fatalf("%v has no event", op)
		}
	}
	if Opcode(0x20).Event() != eventNone {
		t.Fatal("unknown opcode mapped to an event")
	}
}

func TestPairingFailedPDU(t *testing.T) {
	cases := map[smp.Reason]byte{
		smp.ConfirmValueFailed:  0x04,
		smp.KeyRejected:         0x0f,
		smp.UnknownIoCapability: 0x0a,
		smp.InternalError:       0x08,
		smp.Busy:                0x08,
	}
	for r, exp := range cases {
		if got := pairingFailedPDU(r); !bytes.Equal(got, []byte{0x05, exp}) {
			t.Fatalf("%v: %x", r, got)
		}
	}
}

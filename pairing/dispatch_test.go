package pairing

import (
	"bytes"
	"testing"

	"github.com/rigado/smp"
)

func rowActions(r row) []Action {
	var out []Action
	for _, a := range r.act {
		if a != actNone {
			out = append(out, a)
		}
	}
	return out
}

func TestTableWalk(t *testing.T) {
	for role := Central; role < roleMax; role++ {
		for st := StateIdle; st < stateMax; st++ {
			for ev := eventNone + 1; ev < eventMax; ev++ {
				c, _, _ := newTestContext(t, role)
				c.state = st

				var ran []Action
				c.trace = func(a Action) { ran = append(ran, a) }

				r, ok := lookup(role, st, ev)
				got := Dispatch(c, ev, nil)
				if got != ok {
					t.Fatalf("%v %v %v: dispatch %v, table %v", role, st, ev, got, ok)
				}

				if !ok {
					if c.state != st || len(ran) != 0 {
						t.Fatalf("%v %v %v: ignored event changed state to %v or ran %v", role, st, ev, c.state, ran)
					}
					continue
				}

				if !c.state.Valid() {
					t.Fatalf("%v %v %v: invalid state %v", role, st, ev, c.state)
				}
				want := rowActions(r)
				if len(ran) == 0 || len(ran) > len(want) {
					t.Fatalf("%v %v %v: ran %v, row %v", role, st, ev, ran, want)
				}
				for i := range ran {
					if ran[i] != want[i] {
						t.Fatalf("%v %v %v: ran %v, row %v", role, st, ev, ran, want)
					}
				}
				if len(ran) < len(want) && !c.failed {
					t.Fatalf("%v %v %v: row cut short without a failure", role, st, ev)
				}
			}
		}
	}
}

// Every row is reachable and every entry points at a row.
func TestTablesConsistent(t *testing.T) {
	for role := Central; role < roleMax; role++ {
		used := make(map[[2]int]bool)
		allUsed := make(map[int]bool)

		for ev := 0; ev < numEvents; ev++ {
			for st := 0; st < int(stateMax); st++ {
				e := entryTables[role][ev][st]
				switch {
				case e == 0:
				case e&allTableMask != 0:
					idx := int(e&^allTableMask) - 1
					if idx < 0 || idx >= len(allTable) {
						t.Fatalf("%v %v %v: bad all table entry 0x%02x", role, Event(ev+1), State(st), e)
					}
					allUsed[idx] = true
				default:
					if int(e) > len(stateTables[role][st]) {
						t.Fatalf("%v %v %v: entry %d past %d rows", role, Event(ev+1), State(st), e, len(stateTables[role][st]))
					}
					used[[2]int{st, int(e) - 1}] = true
				}
			}
		}

		for st := 0; st < int(stateMax); st++ {
			for i := range stateTables[role][st] {
				if !used[[2]int{st, i}] {
					t.Errorf("%v %v: row %d unreachable", role, State(st), i+1)
				}
			}
		}
		if len(allUsed) != len(allTable) {
			t.Errorf("%v: all table rows used %v", role, allUsed)
		}
	}
}

func TestCentralNeverSecurityRequestPending(t *testing.T) {
	for st, rows := range centralTables {
		for i, r := range rows {
			if r.next == StateSecurityRequestPending {
				t.Fatalf("central %v row %d targets SecurityRequestPending", State(st), i+1)
			}
			for _, a := range r.act {
				if a == actProcIoRsp {
					t.Fatalf("central %v row %d runs procIoRsp", State(st), i+1)
				}
			}
		}
	}
	for ev := 0; ev < numEvents; ev++ {
		e := centralEntry[ev][StateSecurityRequestPending]
		if e != 0 && Event(ev+1) != EventDisconnected {
			t.Fatalf("central handles %v in SecurityRequestPending", Event(ev+1))
		}
	}
}

func fillEphemeral(c *Context) {
	for _, b := range []*[16]byte{&c.tk, &c.localConfirm, &c.peerConfirm, &c.localRand, &c.peerRand, &c.macKey} {
		for i := range b {
			b[i] = 0x5a
		}
	}
	for i := range c.dhkey {
		c.dhkey[i] = 0xa5
	}
	c.localPub[0], c.peerPub[0] = 1, 2
	c.privKey = struct{}{}
	c.passkey = 123456
	c.linkKey = bytes.Repeat([]byte{0x11}, 16)
}

func ephemeralZero(c *Context) bool {
	var z16 [16]byte
	for _, b := range []*[16]byte{&c.tk, &c.localConfirm, &c.peerConfirm, &c.localRand, &c.peerRand, &c.macKey} {
		if *b != z16 {
			return false
		}
	}
	return c.dhkey == [32]byte{} && c.privKey == nil && c.localPub == smp.PublicKey{} &&
		c.peerPub == smp.PublicKey{} && c.passkey == 0 && c.linkKey == nil
}

func TestDisconnectEverywhere(t *testing.T) {
	for role := Central; role < roleMax; role++ {
		for st := StateIdle; st < stateMax; st++ {
			c, tr, app := newTestContext(t, role)
			c.state = st
			c.flags |= flagWeStarted
			fillEphemeral(c)

			if !Dispatch(c, EventDisconnected, nil) {
				t.Fatalf("%v %v: disconnect ignored", role, st)
			}
			drain(c)

			if c.state != StateIdle || !c.Closed() {
				t.Fatalf("%v %v: state %v closed %v", role, st, c.state, c.Closed())
			}
			if !ephemeralZero(c) {
				t.Fatalf("%v %v: ephemeral material left", role, st)
			}

			res := app.completed()
			if st == StateCreateLocalScOobData {
				// local work only, there is no pairing to report
				if len(res) != 0 {
					t.Fatalf("%v %v: results %+v", role, st, res)
				}
			} else if len(res) != 1 || res[0].Reason != smp.ConnectionTerminated || res[0].Keys != nil {
				t.Fatalf("%v %v: results %+v", role, st, res)
			}
			if n := tr.count(OpPairingFailed); n != 0 {
				t.Fatalf("%v %v: %d pairing failed sent on disconnect", role, st, n)
			}

			for ev := eventNone + 1; ev < eventMax; ev++ {
				if Dispatch(c, ev, nil) {
					t.Fatalf("%v %v: %v accepted after disconnect", role, st, ev)
				}
			}
		}
	}
}

func TestDisconnectIdleNotStarted(t *testing.T) {
	c, _, app := newTestContext(t, Peripheral)
	if !Dispatch(c, EventDisconnected, nil) {
		t.Fatal("disconnect ignored")
	}
	if len(app.completed()) != 0 {
		t.Fatal("peer started nothing, nobody to tell")
	}
}

func TestAbortOnce(t *testing.T) {
	c, tr, app := newTestContext(t, Central)
	c.state = StateConfirm

	if !Dispatch(c, EventPairingFailed, cmdData(t, []byte{0x05, 0x04})) {
		t.Fatal("pairing failed ignored")
	}
	drain(c)
	if Dispatch(c, EventPairingFailed, cmdData(t, []byte{0x05, 0x04})) {
		t.Fatal("second pairing failed accepted")
	}

	res := app.completed()
	if len(res) != 1 || res[0].Reason != smp.ConfirmValueFailed {
		t.Fatalf("results %+v", res)
	}
	if tr.count(OpPairingFailed) != 0 {
		t.Fatal("answered the peer's pairing failed")
	}

	c, tr, app = newTestContext(t, Peripheral)
	c.state = StateWaitNonce
	Dispatch(c, EventAuthComplete, &EventData{Status: smp.ConfirmValueFailed})
	Dispatch(c, EventAuthComplete, &EventData{Status: smp.ConfirmValueFailed})
	if n := tr.count(OpPairingFailed); n != 1 {
		t.Fatalf("%d pairing failed sent", n)
	}
	if len(app.completed()) != 1 {
		t.Fatal("completion not reported exactly once")
	}
}

func TestPeerFailReasonRange(t *testing.T) {
	for _, r := range []byte{0x00, 0x10, 0xff} {
		c, _, app := newTestContext(t, Central)
		c.state = StateRand
		Dispatch(c, EventPairingFailed, cmdData(t, []byte{0x05, r}))
		if got := app.completed()[0].Reason; got != smp.UnspecifiedReason {
			t.Fatalf("reason 0x%02x reported as %v", r, got)
		}
	}
}

func TestModelCommittedOnce(t *testing.T) {
	c, _, _ := newTestContext(t, Central)
	if !c.commitModel(PasskeyEntry, true) {
		t.Fatal("first commit refused")
	}
	if c.commitModel(JustWorks, false) {
		t.Fatal("second commit accepted")
	}
	if m, ok := c.Model(); !ok || m != PasskeyEntry || !c.SecureConnections() {
		t.Fatalf("model %v sc %v changed", m, c.SecureConnections())
	}
	if len(c.raised) != 1 || c.raised[0].ev != EventAuthComplete || c.raised[0].data.Status != smp.InternalError {
		t.Fatalf("refusal not reported: %+v", c.raised)
	}
}

func TestCentralConfirmSendsRand(t *testing.T) {
	c, tr, _ := newTestContext(t, Central)
	c.state = StateConfirm
	copy(c.localRand[:], bytes.Repeat([]byte{0x3c}, 16))

	var ran []Action
	c.trace = func(a Action) { ran = append(ran, a) }

	peerConfirm := bytes.Repeat([]byte{0x77}, 16)
	if !Dispatch(c, EventConfirm, cmdData(t, append([]byte{0x03}, peerConfirm...))) {
		t.Fatal("confirm ignored")
	}

	if c.state != StateRand {
		t.Fatalf("state %v", c.state)
	}
	if len(ran) != 2 || ran[0] != actProcConfirm || ran[1] != actSendRand {
		t.Fatalf("ran %v", ran)
	}
	if !bytes.Equal(c.peerConfirm[:], peerConfirm) {
		t.Fatal("peer confirm not stored")
	}
	exp := append([]byte{0x04}, bytes.Repeat([]byte{0x3c}, 16)...)
	if !bytes.Equal(tr.last(), exp) {
		t.Fatalf("sent %x, exp %x", tr.last(), exp)
	}
}

func TestDHKeyCheckMismatch(t *testing.T) {
	c, tr, app := newTestContext(t, Central)
	c.state = StateWaitDhkCheck
	c.sc, c.committed = true, true
	fillEphemeral(c)

	if !Dispatch(c, EventPairDHKeyCheck, cmdData(t, append([]byte{0x0d}, bytes.Repeat([]byte{0xee}, 16)...))) {
		t.Fatal("dhkey check ignored")
	}
	drain(c)

	if c.state != StateIdle {
		t.Fatalf("state %v", c.state)
	}
	res := app.completed()
	if len(res) != 1 || res[0].Reason != smp.DHKeyCheckFailed || res[0].Keys != nil {
		t.Fatalf("results %+v", res)
	}
	if !bytes.Equal(tr.last(), []byte{0x05, 0x0b}) {
		t.Fatalf("sent %x", tr.last())
	}
	if !ephemeralZero(c) {
		t.Fatal("ephemeral material left after failure")
	}
}

func TestDisconnectInPublicKeyExchange(t *testing.T) {
	c, _, app := newTestContext(t, Peripheral)
	c.state = StatePublicKeyExchange

	Dispatch(c, EventDisconnected, nil)
	if c.state != StateIdle {
		t.Fatalf("state %v", c.state)
	}
	if r := app.completed(); len(r) != 1 || r[0].Reason != smp.ConnectionTerminated {
		t.Fatalf("results %+v", r)
	}

	var k smp.PublicKey
	k[0] = 1
	if Dispatch(c, EventPairPublicKey, &EventData{Command: &Command{Op: OpPairingPublicKey, PublicKey: &k}}) {
		t.Fatal("public key accepted after disconnect")
	}
}

func TestReflectedPublicKey(t *testing.T) {
	c, _, app := newTestContext(t, Central)
	c.state = StatePublicKeyExchange
	createPrivateKey(c, nil)
	c.takeRaised()

	k := c.localPub
	Dispatch(c, EventPairPublicKey, &EventData{Command: &Command{Op: OpPairingPublicKey, PublicKey: &k}})
	drain(c)

	if r := app.completed(); len(r) != 1 || r[0].Reason != smp.DHKeyCheckFailed {
		t.Fatalf("results %+v", r)
	}
}

func TestPublicKeyOffCurve(t *testing.T) {
	c, tr, app := newTestContext(t, Peripheral)
	c.state = StatePublicKeyExchange

	var k smp.PublicKey
	k[0], k[32] = 1, 1
	Dispatch(c, EventPairPublicKey, &EventData{Command: &Command{Op: OpPairingPublicKey, PublicKey: &k}})
	drain(c)

	if r := app.completed(); len(r) != 1 || r[0].Reason != smp.InvalidParameters {
		t.Fatalf("results %+v", r)
	}
	if !bytes.Equal(tr.last(), []byte{0x05, 0x0a}) {
		t.Fatalf("sent %x", tr.last())
	}
}

func TestUnexpectedDistributedKey(t *testing.T) {
	c, tr, app := newTestContext(t, Central)
	c.state = StateBondPending
	c.peerKeys = smp.KeyDistID

	Dispatch(c, EventSignInfo, cmdData(t, append([]byte{0x0a}, make([]byte, 16)...)))
	drain(c)

	if r := app.completed(); len(r) != 1 || r[0].Reason != smp.InvalidParameters {
		t.Fatalf("results %+v", r)
	}
	if !bytes.Equal(tr.last(), []byte{0x05, 0x0a}) {
		t.Fatalf("sent %x", tr.last())
	}
}

func TestUnknownActionFails(t *testing.T) {
	c, _, _ := newTestContext(t, Central)
	run(actionMax, c, nil)
	if !c.failed || c.status != smp.InternalError {
		t.Fatal("unknown action did not fail")
	}
}

func TestDispatchRefusesBadInput(t *testing.T) {
	if Dispatch(nil, EventConnected, nil) {
		t.Fatal("nil context")
	}

	c, _, _ := newTestContext(t, Central)
	for _, ev := range []Event{eventNone, eventMax, 0xff} {
		if Dispatch(c, ev, nil) {
			t.Fatalf("event %v accepted", ev)
		}
	}

	c.state = stateMax
	if Dispatch(c, EventDisconnected, nil) {
		t.Fatal("invalid state accepted")
	}
}

// Local reasons reach the peer as the nearest wire code. Outcomes the
// peer learns some other way send nothing.
func TestFailureSentToPeer(t *testing.T) {
	cases := map[smp.Reason][]byte{
		smp.DHKeyCheckFailed:     {0x05, 0x0b},
		smp.UnknownIoCapability:  {0x05, 0x0a},
		smp.InternalError:        {0x05, 0x08},
		smp.Busy:                 {0x05, 0x08},
		smp.ResponseTimeout:      nil,
		smp.ConnectionTerminated: nil,
		smp.EncryptionFailed:     nil,
		smp.SirkDeviceInvalid:    nil,
	}
	for r, exp := range cases {
		c, tr, app := newTestContext(t, Central)
		c.state = StateWaitDhkCheck
		if !Dispatch(c, EventAuthComplete, &EventData{Status: r}) {
			t.Fatalf("%v ignored", r)
		}
		if !bytes.Equal(tr.last(), exp) {
			t.Fatalf("%v: sent %x", r, tr.sent())
		}
		if res := app.completed(); len(res) != 1 || res[0].Reason != r {
			t.Fatalf("%v: results %+v", r, res)
		}
	}
}

func TestPeripheralKeepsEarlyDHKeyCheck(t *testing.T) {
	chk := append([]byte{0x0d}, bytes.Repeat([]byte{0x3c}, 16)...)

	c, tr, _ := newTestContext(t, Peripheral)
	c.state = StateScPhase2Start
	if !Dispatch(c, EventPairDHKeyCheck, cmdData(t, chk)) {
		t.Fatal("early dhkey check ignored")
	}
	if c.state != StateScPhase2Start || !c.flags.has(flagPeerDHKeyCheck) {
		t.Fatalf("state %v, check kept %v", c.state, c.flags.has(flagPeerDHKeyCheck))
	}
	if len(tr.sent()) != 0 || len(c.raised) != 0 {
		t.Fatal("early check acted on")
	}

	if !Dispatch(c, EventScPhase1Complete, nil) {
		t.Fatal("phase 1 completion ignored")
	}
	if c.state != StateWaitDhkCheck {
		t.Fatalf("state %v", c.state)
	}
	r := c.takeRaised()
	if len(r) != 1 || r[0].ev != EventSc2DHKeyChecksPresent {
		t.Fatalf("raised %+v", r)
	}
	if !Dispatch(c, r[0].ev, r[0].data) {
		t.Fatal("both checks present ignored")
	}
	if r = c.takeRaised(); len(r) != 1 || r[0].ev != EventScKeyReady {
		t.Fatalf("raised %+v", r)
	}
}

func TestLocalOobFailureStaysLocal(t *testing.T) {
	for role := Central; role < roleMax; role++ {
		c, tr, app := newTestContext(t, role)
		c.state = StateCreateLocalScOobData
		c.oob.data = &smp.OobData{}

		if !Dispatch(c, EventAuthComplete, &EventData{Status: smp.InternalError}) {
			t.Fatalf("%v: failure ignored", role)
		}
		if len(tr.sent()) != 0 || len(app.completed()) != 0 {
			t.Fatalf("%v: sent %x, results %+v", role, tr.sent(), app.completed())
		}
		if c.state != StateIdle || !c.Finished() || c.oob.data != nil {
			t.Fatalf("%v: state %v finished %v", role, c.state, c.Finished())
		}
		if got := app.localOob(); len(got) != 1 || got[0].err != smp.InternalError {
			t.Fatalf("%v: handler got %+v", role, got)
		}
	}
}

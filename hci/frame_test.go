package hci

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

func h2b(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Replace(s, " ", "", -1))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestFrameAssemble(t *testing.T) {
	// encryption change, then an acl packet carrying a security request
	evt := "04 08 04 00 4000 01"
	acl := "02 4020 0600 0200 0600 0b0d"

	cases := []struct {
		name   string
		chunks []string
	}{
		{"whole", []string{evt + acl}},
		{"split header", []string{"04", "08", "04 00 4000 01 02 40", "20 0600 0200 0600 0b", "0d"}},
		{"byte by byte", strings.Split(strings.Replace(evt+acl, " ", "", -1), "")},
		{"leading garbage", []string{"ff 00 77", evt, acl}},
	}

	for _, tc := range cases {
		f := newFrame()
		var got [][]byte
		var in string
		for i, c := range tc.chunks {
			if tc.name == "byte by byte" {
				// hex digits come in pairs
				if i%2 == 0 {
					in = c
					continue
				}
				c = in + c
			}
			got = append(got, f.Assemble(h2b(t, c))...)
		}

		if len(got) != 2 {
			t.Fatalf("%v: %d packets: %x", tc.name, len(got), got)
		}
		if !bytes.Equal(got[0], h2b(t, evt)) || !bytes.Equal(got[1], h2b(t, acl)) {
			t.Fatalf("%v: got %x", tc.name, got)
		}
	}
}

func TestFrameTimeout(t *testing.T) {
	now := time.Unix(1000, 0)
	f := newFrame()
	f.now = func() time.Time { return now }

	if p := f.Assemble(h2b(t, "04 08 04 00")); len(p) != 0 {
		t.Fatalf("got %x", p)
	}
	now = now.Add(time.Second)

	// the stale half packet is dropped, the new one stands alone
	p := f.Assemble(h2b(t, "04 05 04 00 4000 13"))
	if len(p) != 1 || !bytes.Equal(p[0], h2b(t, "04 05 04 00 4000 13")) {
		t.Fatalf("got %x", p)
	}
}

func TestACLFragments(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5a}, 65)
	frags := aclFragments(0x0040, CidSMP, payload, defaultACLDataLen)
	if len(frags) != 3 {
		t.Fatalf("%d fragments", len(frags))
	}

	exp := h2b(t, "02 4000 1b00 4100 0600")
	if !bytes.Equal(frags[0][:len(exp)], exp) {
		t.Fatalf("first fragment %x", frags[0])
	}
	if exp := h2b(t, "02 4010 1b00"); !bytes.Equal(frags[1][:5], exp) {
		t.Fatalf("second fragment %x", frags[1][:5])
	}

	c := &conn{h: &Host{log: testLogger()}, handle: 0x0040}
	var out []byte
	for i, b := range frags {
		p := aclPacket(b[1:])
		if i == 0 {
			// as the controller would deliver it
			p[1] = p[1]&0x0f | pbfControllerToHostStart<<4
		}
		sdu, err := c.putPacket(p)
		if err != nil {
			t.Fatal(err)
		}
		if i < len(frags)-1 && sdu != nil {
			t.Fatalf("frame completed after fragment %d", i)
		}
		out = sdu
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("reassembled %x", out)
	}
}

func TestPutPacketRejects(t *testing.T) {
	c := &conn{h: &Host{log: testLogger()}, handle: 0x0040}

	if _, err := c.putPacket(aclPacket(h2b(t, "4010 0100 00"))); err == nil {
		t.Fatal("continuation without start accepted")
	}
	if _, err := c.putPacket(aclPacket(h2b(t, "4020 0700 0200 0600 0b0d00"))); err == nil {
		t.Fatal("overrun accepted")
	}

	// attribute protocol traffic is not ours
	sdu, err := c.putPacket(aclPacket(h2b(t, "4020 0700 0300 0400 0a0100")))
	if err != nil || sdu != nil {
		t.Fatalf("att frame: %x, %v", sdu, err)
	}
}

func TestCommands(t *testing.T) {
	ltk := h2b(t, "000102030405060708090a0b0c0d0e0f")

	cases := []struct {
		got []byte
		exp string
	}{
		{leStartEncryption(0x0041, 0x1122334455667788, 0xbeef, ltk),
			"01 1920 1c 4100 8877665544332211 efbe 000102030405060708090a0b0c0d0e0f"},
		{leLongTermKeyRequestReply(0x0041, ltk), "01 1a20 12 4100 000102030405060708090a0b0c0d0e0f"},
		{leLongTermKeyRequestNegativeReply(0x0041), "01 1b20 02 4100"},
	}
	for _, tc := range cases {
		if !bytes.Equal(tc.got, h2b(t, tc.exp)) {
			t.Fatalf("got %x, exp %v", tc.got, tc.exp)
		}
	}
}

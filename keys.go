package smp

import "time"

// PublicKey is a P-256 public key in SMP wire form: X then Y, each 32
// octets little-endian.
type PublicKey [64]byte

// X returns the little-endian X coordinate.
func (k PublicKey) X() []byte { return k[:32] }

// EncKey is a long term key together with the values identifying it
// during encryption setup.
type EncKey struct {
	LTK  []byte `json:"ltk"`
	EDIV uint16 `json:"ediv"`
	Rand uint64 `json:"rand"`
}

// KeySet is everything a completed pairing produced for one peer.
type KeySet struct {
	Peer Addr `json:"peer"`

	// LinkKey is the STK for legacy pairing, the LTK for Secure Connections.
	LinkKey           []byte `json:"linkKey,omitempty"`
	KeySize           int    `json:"keySize"`
	Authenticated     bool   `json:"authenticated"`
	SecureConnections bool   `json:"secureConnections"`
	Bonded            bool   `json:"bonded"`

	// LocalEnc is what we distributed and PeerEnc what the peer
	// distributed. Under Secure Connections both are the LinkKey with zero
	// EDIV/Rand.
	LocalEnc *EncKey `json:"localEnc,omitempty"`
	PeerEnc  *EncKey `json:"peerEnc,omitempty"`

	PeerIRK      []byte `json:"peerIrk,omitempty"`
	IdentityAddr *Addr  `json:"identityAddr,omitempty"`
	PeerCSRK     []byte `json:"peerCsrk,omitempty"`
	LocalCSRK    []byte `json:"localCsrk,omitempty"`

	Created time.Time `json:"created"`
	// Attempt identifies the pairing attempt that produced the keys, as it
	// appears in the logs.
	Attempt string `json:"attempt,omitempty"`
}

// Legacy reports whether the keys came from legacy pairing.
func (k *KeySet) Legacy() bool { return !k.SecureConnections }

// OobData is Secure Connections out of band data for one device
// [Vol 3, Part H, 2.3.5.6.4].
type OobData struct {
	Addr      Addr
	Random    [16]byte
	Confirm   [16]byte
	PublicKey PublicKey
}

// IoCapReply carries the application's answer to an IO capability
// request. A nil reply means "use the configured values".
type IoCapReply struct {
	IoCapability IoCapability
	OobFlag      uint8
	AuthReq      AuthReq
	MaxKeySize   uint8
	InitKeys     KeyDist
	RespKeys     KeyDist
}

// Result is the single terminal notification of a pairing attempt.
// Keys is only set when Reason is Success and a key was derived.
type Result struct {
	Reason Reason
	Keys   *KeySet
}

func (r Result) Err() error {
	if r.Reason == Success {
		return nil
	}
	return r.Reason
}

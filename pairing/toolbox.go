package pairing

import (
	"crypto"
	"crypto/aes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"github.com/rigado/smp"
	"github.com/rigado/smp/sliceops"
	"github.com/wsddn/go-ecdh"
)

// Toolbox is the cryptographic function set of the Security Manager
// [Vol 3, Part H, 2.2]. All values are little-endian, as on the wire.
type Toolbox interface {
	GenerateKeyPair() (crypto.PrivateKey, smp.PublicKey, error)
	DHKey(priv crypto.PrivateKey, peer smp.PublicKey) ([]byte, error)
	ValidPublicKey(k smp.PublicKey) bool
	Random(n int) ([]byte, error)

	C1(k, r, preq, pres []byte, ia, ra smp.Addr) ([]byte, error)
	S1(k, r1, r2 []byte) ([]byte, error)
	F4(u, v, x []byte, z uint8) ([]byte, error)
	F5(w, n1, n2 []byte, a1, a2 smp.Addr) (macKey, ltk []byte, err error)
	F6(w, n1, n2, r, ioCap []byte, a1, a2 smp.Addr) ([]byte, error)
	G2(u, v, x, y []byte) (uint32, error)
}

// DefaultToolbox implements Toolbox with AES-CMAC and P-256.
type DefaultToolbox struct {
	mu   sync.Mutex
	rand io.Reader
	ecdh ecdh.ECDH
}

// NewToolbox returns a toolbox reading randomness from r, or crypto/rand
// when r is nil.
func NewToolbox(r io.Reader) *DefaultToolbox {
	if r == nil {
		r = rand.Reader
	}
	return &DefaultToolbox{rand: r, ecdh: ecdh.NewEllipticECDH(elliptic.P256())}
}

func (t *DefaultToolbox) Random(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := make([]byte, n)
	if _, err := io.ReadFull(t.rand, b); err != nil {
		return nil, errors.Wrap(err, "random")
	}
	return b, nil
}

func (t *DefaultToolbox) GenerateKeyPair() (crypto.PrivateKey, smp.PublicKey, error) {
	t.mu.Lock()
	prv, pub, err := t.ecdh.GenerateKey(t.rand)
	t.mu.Unlock()
	if err != nil {
		return nil, smp.PublicKey{}, errors.Wrap(err, "generate p-256 key")
	}

	// uncompressed point: 0x04 || X || Y, big-endian
	ba := t.ecdh.Marshal(pub)
	var k smp.PublicKey
	copy(k[:32], sliceops.SwapBuf(ba[1:33]))
	copy(k[32:], sliceops.SwapBuf(ba[33:65]))
	return prv, k, nil
}

func (t *DefaultToolbox) unmarshal(k smp.PublicKey) (crypto.PublicKey, bool) {
	r := make([]byte, 0, 65)
	r = append(r, 0x04)
	r = append(r, sliceops.SwapBuf(k[:32])...)
	r = append(r, sliceops.SwapBuf(k[32:])...)
	return t.ecdh.Unmarshal(r)
}

// ValidPublicKey reports whether k is a point on P-256.
func (t *DefaultToolbox) ValidPublicKey(k smp.PublicKey) bool {
	_, ok := t.unmarshal(k)
	return ok
}

func (t *DefaultToolbox) DHKey(priv crypto.PrivateKey, peer smp.PublicKey) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("dhkey: no private key")
	}
	pub, ok := t.unmarshal(peer)
	if !ok {
		return nil, errors.New("dhkey: peer key not on curve")
	}

	b, err := t.ecdh.GenerateSharedSecret(priv, pub)
	if err != nil {
		return nil, errors.Wrap(err, "dhkey")
	}

	// the X coordinate loses its leading zero octets in big.Int form
	x := make([]byte, 32)
	copy(x[32-len(b):], b)
	return sliceops.SwapBuf(x), nil
}

// smpE is the security function e [Vol 3, Part H, 2.2.1] on little-endian
// operands.
func smpE(key, msg []byte) ([]byte, error) {
	c, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}

	out := make([]byte, 16)
	c.Encrypt(out, sliceops.SwapBuf(msg))
	return sliceops.SwapBuf(out), nil
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	c, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}

	mac, err := cmac.New(c)
	if err != nil {
		return nil, errors.Wrap(err, "cmac")
	}

	mac.Write(sliceops.SwapBuf(msg))
	return sliceops.SwapBuf(mac.Sum(nil)), nil
}

// C1 is the legacy confirm value generation function.
func (t *DefaultToolbox) C1(k, r, preq, pres []byte, ia, ra smp.Addr) ([]byte, error) {
	if len(k) != 16 || len(r) != 16 || len(preq) != 7 || len(pres) != 7 {
		return nil, errors.New("c1: length error")
	}

	p1 := make([]byte, 0, 16)
	p1 = append(p1, byte(ia.Type), byte(ra.Type))
	p1 = append(p1, preq...)
	p1 = append(p1, pres...)

	p2 := make([]byte, 0, 16)
	p2 = append(p2, ra.Octets[:]...)
	p2 = append(p2, ia.Octets[:]...)
	p2 = append(p2, 0, 0, 0, 0)

	res, err := smpE(k, sliceops.Xor(r, p1))
	if err != nil {
		return nil, err
	}
	return smpE(k, sliceops.Xor(res, p2))
}

// S1 is the legacy STK generation function.
func (t *DefaultToolbox) S1(k, r1, r2 []byte) ([]byte, error) {
	if len(k) != 16 || len(r1) != 16 || len(r2) != 16 {
		return nil, errors.New("s1: length error")
	}

	r := make([]byte, 0, 16)
	r = append(r, r2[:8]...)
	r = append(r, r1[:8]...)
	return smpE(k, r)
}

func (t *DefaultToolbox) F4(u, v, x []byte, z uint8) ([]byte, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 {
		return nil, errors.New("f4: length error")
	}

	m := make([]byte, 0, 65)
	m = append(m, z)
	m = append(m, v...)
	m = append(m, u...)

	return aesCMAC(x, m)
}

func (t *DefaultToolbox) F5(w, n1, n2 []byte, a1, a2 smp.Addr) ([]byte, []byte, error) {
	switch {
	case len(w) != 32:
		return nil, nil, errors.New("f5: length error w")
	case len(n1) != 16:
		return nil, nil, errors.New("f5: length error n1")
	case len(n2) != 16:
		return nil, nil, errors.New("f5: length error n2")
	}

	btle := []byte{0x65, 0x6c, 0x74, 0x62}
	salt := []byte{0xbe, 0x83, 0x60, 0x5a, 0xdb, 0x0b, 0x37, 0x60,
		0x38, 0xa5, 0xf5, 0xaa, 0x91, 0x83, 0x88, 0x6c}

	key, err := aesCMAC(salt, w)
	if err != nil {
		return nil, nil, errors.Wrap(err, "f5 key")
	}

	m := make([]byte, 0, 53)
	m = append(m, 0x00, 0x01) // length, 256 bits
	m = append(m, a2.Bytes7()...)
	m = append(m, a1.Bytes7()...)
	m = append(m, n2...)
	m = append(m, n1...)
	m = append(m, btle...)
	m = append(m, 0x00)

	macKey, err := aesCMAC(key, m)
	if err != nil {
		return nil, nil, errors.Wrap(err, "f5 mackey")
	}

	// counter
	m[52] = 0x01

	ltk, err := aesCMAC(key, m)
	if err != nil {
		return nil, nil, errors.Wrap(err, "f5 ltk")
	}

	return macKey, ltk, nil
}

func (t *DefaultToolbox) F6(w, n1, n2, r, ioCap []byte, a1, a2 smp.Addr) ([]byte, error) {
	if len(w) != 16 || len(n1) != 16 || len(n2) != 16 || len(r) != 16 || len(ioCap) != 3 {
		return nil, errors.New("f6: length error")
	}

	m := make([]byte, 0, 65)
	m = append(m, a2.Bytes7()...)
	m = append(m, a1.Bytes7()...)
	m = append(m, ioCap...)
	m = append(m, r...)
	m = append(m, n2...)
	m = append(m, n1...)

	return aesCMAC(w, m)
}

func (t *DefaultToolbox) G2(u, v, x, y []byte) (uint32, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 || len(y) != 16 {
		return 0, errors.New("g2: length error")
	}

	m := make([]byte, 0, 80)
	m = append(m, y...)
	m = append(m, v...)
	m = append(m, u...)

	h, err := aesCMAC(x, m)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(h[:4]) % 1000000, nil
}

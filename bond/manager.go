package bond

import (
	"encoding/binary"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

// ErrNotFound is returned by Find and Delete for an unknown peer.
var ErrNotFound = errors.New("bond not found")

const bondFilename = "bonds.json"

// Manager is a smp.BondManager that keeps every bond in one JSON file.
type Manager struct {
	path string
	lock sync.RWMutex
}

type bondInfo struct {
	Bonds []remoteKeyInfo `json:"bonds"`
}

type remoteKeyInfo struct {
	Address     string `json:"address"`
	AddressType uint8  `json:"addressType"`

	LinkKey       string `json:"linkKey,omitempty"`
	KeySize       int    `json:"keySize"`
	Authenticated bool   `json:"authenticated"`
	Legacy        bool   `json:"legacy"`

	// peer distributed encryption info
	LongTermKey           string `json:"longTermKey,omitempty"`
	EncryptionDiversifier string `json:"encryptionDiversifier,omitempty"`
	RandomValue           string `json:"randomValue,omitempty"`

	// what we handed out
	LocalLongTermKey           string `json:"localLongTermKey,omitempty"`
	LocalEncryptionDiversifier string `json:"localEncryptionDiversifier,omitempty"`
	LocalRandomValue           string `json:"localRandomValue,omitempty"`

	IdentityResolvingKey string `json:"identityResolvingKey,omitempty"`
	IdentityAddress      string `json:"identityAddress,omitempty"`
	IdentityAddressType  uint8  `json:"identityAddressType,omitempty"`

	PeerSigningKey  string `json:"peerSigningKey,omitempty"`
	LocalSigningKey string `json:"localSigningKey,omitempty"`

	Created time.Time `json:"created"`
}

// NewManager stores bonds at path. An empty path means bonds.json in
// $SNAP_DATA (the working directory when unset).
func NewManager(path string) *Manager {
	if path == "" {
		path = filepath.Join(os.Getenv("SNAP_DATA"), bondFilename)
	}
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) Exists(peer smp.Addr) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		smp.GetLogger().Warnf("bond: %v", err)
		return false
	}
	return bonds.index(peer) >= 0
}

func (m *Manager) Find(peer smp.Addr) (*smp.KeySet, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		return nil, err
	}

	i := bonds.index(peer)
	if i < 0 {
		return nil, errors.Wrapf(ErrNotFound, "%v", peer)
	}
	ks, err := bonds.Bonds[i].keySet()
	if err != nil {
		return nil, errors.Wrapf(err, "bond for %v", peer)
	}
	return ks, nil
}

// Save adds keys, replacing any existing bond for the same peer.
func (m *Manager) Save(keys *smp.KeySet) error {
	if keys == nil {
		return errors.New("empty bond information")
	}
	if keys.Peer.IsZero() {
		return errors.New("bond has no peer address")
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	rki := createRemoteKeyInfo(keys)
	if i := bonds.index(keys.Peer); i >= 0 {
		bonds.Bonds[i] = rki
	} else {
		bonds.Bonds = append(bonds.Bonds, rki)
	}

	return m.store(bonds)
}

func (m *Manager) Delete(peer smp.Addr) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	i := bonds.index(peer)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "%v", peer)
	}
	bonds.Bonds = append(bonds.Bonds[:i], bonds.Bonds[i+1:]...)

	return m.store(bonds)
}

// List returns every stored bond in file order.
func (m *Manager) List() ([]*smp.KeySet, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		return nil, err
	}

	out := make([]*smp.KeySet, 0, len(bonds.Bonds))
	for _, b := range bonds.Bonds {
		ks, err := b.keySet()
		if err != nil {
			return nil, errors.Wrapf(err, "bond for %v", b.Address)
		}
		out = append(out, ks)
	}
	return out, nil
}

// index matches the connection address or the distributed identity address.
func (b *bondInfo) index(peer smp.Addr) int {
	key := peer.Key()
	for i, rki := range b.Bonds {
		if rki.Address == key || (rki.IdentityAddress != "" && rki.IdentityAddress == key) {
			return i
		}
	}
	return -1
}

func createRemoteKeyInfo(ks *smp.KeySet) remoteKeyInfo {
	rki := remoteKeyInfo{
		Address:              ks.Peer.Key(),
		AddressType:          uint8(ks.Peer.Type),
		LinkKey:              hex.EncodeToString(ks.LinkKey),
		KeySize:              ks.KeySize,
		Authenticated:        ks.Authenticated,
		Legacy:               ks.Legacy(),
		IdentityResolvingKey: hex.EncodeToString(ks.PeerIRK),
		PeerSigningKey:       hex.EncodeToString(ks.PeerCSRK),
		LocalSigningKey:      hex.EncodeToString(ks.LocalCSRK),
		Created:              ks.Created,
	}

	if ks.PeerEnc != nil {
		rki.LongTermKey, rki.EncryptionDiversifier, rki.RandomValue = encodeEncKey(ks.PeerEnc)
	}
	if ks.LocalEnc != nil {
		rki.LocalLongTermKey, rki.LocalEncryptionDiversifier, rki.LocalRandomValue = encodeEncKey(ks.LocalEnc)
	}
	if ks.IdentityAddr != nil {
		rki.IdentityAddress = ks.IdentityAddr.Key()
		rki.IdentityAddressType = uint8(ks.IdentityAddr.Type)
	}

	return rki
}

func encodeEncKey(k *smp.EncKey) (ltk, ediv, rand string) {
	eDiv := make([]byte, 2)
	binary.LittleEndian.PutUint16(eDiv, k.EDIV)

	randVal := make([]byte, 8)
	binary.LittleEndian.PutUint64(randVal, k.Rand)

	return hex.EncodeToString(k.LTK), hex.EncodeToString(eDiv), hex.EncodeToString(randVal)
}

func decodeEncKey(ltk, ediv, rand string) (*smp.EncKey, error) {
	k, err := hex.DecodeString(ltk)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode long term key")
	}

	eDiv, err := hex.DecodeString(ediv)
	if err != nil || len(eDiv) != 2 {
		return nil, errors.New("invalid ediv in bond file")
	}

	randVal, err := hex.DecodeString(rand)
	if err != nil || len(randVal) != 8 {
		return nil, errors.New("invalid random value in bond file")
	}

	return &smp.EncKey{
		LTK:  k,
		EDIV: binary.LittleEndian.Uint16(eDiv),
		Rand: binary.LittleEndian.Uint64(randVal),
	}, nil
}

func (rki *remoteKeyInfo) keySet() (*smp.KeySet, error) {
	peer, err := smp.NewAddr(rki.Address, smp.AddrType(rki.AddressType))
	if err != nil {
		return nil, err
	}

	ks := &smp.KeySet{
		Peer:              peer,
		KeySize:           rki.KeySize,
		Authenticated:     rki.Authenticated,
		SecureConnections: !rki.Legacy,
		Bonded:            true,
		Created:           rki.Created,
	}

	fields := []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"link key", rki.LinkKey, &ks.LinkKey},
		{"identity resolving key", rki.IdentityResolvingKey, &ks.PeerIRK},
		{"peer signing key", rki.PeerSigningKey, &ks.PeerCSRK},
		{"local signing key", rki.LocalSigningKey, &ks.LocalCSRK},
	}
	for _, f := range fields {
		if f.in == "" {
			continue
		}
		b, err := hex.DecodeString(f.in)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %v", f.name)
		}
		*f.out = b
	}

	if rki.LongTermKey != "" {
		if ks.PeerEnc, err = decodeEncKey(rki.LongTermKey, rki.EncryptionDiversifier, rki.RandomValue); err != nil {
			return nil, err
		}
	}
	if rki.LocalLongTermKey != "" {
		if ks.LocalEnc, err = decodeEncKey(rki.LocalLongTermKey, rki.LocalEncryptionDiversifier, rki.LocalRandomValue); err != nil {
			return nil, err
		}
	}
	if rki.IdentityAddress != "" {
		a, err := smp.NewAddr(rki.IdentityAddress, smp.AddrType(rki.IdentityAddressType))
		if err != nil {
			return nil, err
		}
		ks.IdentityAddr = &a
	}

	return ks, nil
}

func (m *Manager) load() (*bondInfo, error) {
	var bonds bondInfo

	_, err := os.Stat(m.path)
	if os.IsNotExist(err) {
		return &bonds, nil
	}

	fileData, err := ioutil.ReadFile(m.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read bond file")
	}

	if len(fileData) > 0 {
		if err := jsoniter.Unmarshal(fileData, &bonds); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal bond file")
		}
	}

	return &bonds, nil
}

// store replaces the bond file through a temporary copy.
func (m *Manager) store(bonds *bondInfo) error {
	out, err := jsoniter.MarshalIndent(bonds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal bonds to json")
	}

	tmp := m.path + ".tmp"
	if err := ioutil.WriteFile(tmp, out, 0600); err != nil {
		return errors.Wrap(err, "failed to update bond information")
	}
	return errors.Wrap(os.Rename(tmp, m.path), "failed to update bond information")
}

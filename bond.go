package smp

// BondManager persists the keys of bonded peers.
type BondManager interface {
	Find(peer Addr) (*KeySet, error)
	Save(keys *KeySet) error
	Exists(peer Addr) bool
	Delete(peer Addr) error
}

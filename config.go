package smp

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultResponseTimeout is the SMP transaction timeout [Vol 3, Part H, 3.4].
const DefaultResponseTimeout = 30 * time.Second

// Config holds the local pairing parameters of a device.
type Config struct {
	IoCapability IoCapability
	OobFlag      uint8
	AuthReq      AuthReq
	MaxKeySize   uint8
	MinKeySize   uint8

	// InitiatorKeys and ResponderKeys are the key distribution fields this
	// side requests (as central) or accepts (as peripheral).
	InitiatorKeys KeyDist
	ResponderKeys KeyDist

	// SecureConnectionsOnly rejects legacy peers and Just Works.
	SecureConnectionsOnly bool

	// SinglePairing allows one pairing in progress per device; pairing
	// from a second peer is refused while one is running.
	SinglePairing bool

	ResponseTimeout time.Duration

	// IdentityAddress and IRK are distributed when the ID key is
	// negotiated. A zero IRK is replaced by a random one.
	IdentityAddress Addr
	IRK             [16]byte
}

// DefaultConfig is a NoInputNoOutput bonding device with Secure
// Connections enabled.
func DefaultConfig() Config {
	return Config{
		IoCapability:    NoInputNoOutput,
		OobFlag:         OobNotPresent,
		AuthReq:         AuthBonding | AuthSC,
		MaxKeySize:      MaxKeySize,
		MinKeySize:      MinKeySize,
		InitiatorKeys:   KeyDistAll,
		ResponderKeys:   KeyDistAll,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// NewConfig returns DefaultConfig with opts applied.
func NewConfig(opts ...Option) (Config, error) {
	c := DefaultConfig()
	err := c.Apply(opts...)
	return c, err
}

// Apply runs opts in order and validates the result.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch {
	case !c.IoCapability.Valid():
		return errors.Errorf("invalid io capability 0x%02x", uint8(c.IoCapability))
	case c.OobFlag > OobPresent:
		return errors.Errorf("invalid oob flag 0x%02x", c.OobFlag)
	case c.MaxKeySize < MinKeySize || c.MaxKeySize > MaxKeySize:
		return errors.Errorf("max key size %d out of range", c.MaxKeySize)
	case c.MinKeySize < MinKeySize || c.MinKeySize > c.MaxKeySize:
		return errors.Errorf("min key size %d out of range", c.MinKeySize)
	case c.ResponseTimeout <= 0:
		return errors.New("response timeout must be positive")
	}

	if c.SecureConnectionsOnly && !c.AuthReq.SC() {
		return errors.New("secure connections only requires the SC bit")
	}
	return nil
}

package smp

import (
	"time"

	"github.com/pkg/errors"
)

// An Option is a configuration function, which configures the pairing
// parameters.
type Option func(*Config) error

// OptIoCapability sets the local IO capability.
func OptIoCapability(c IoCapability) Option {
	return func(cfg *Config) error {
		if !c.Valid() {
			return errors.Errorf("invalid io capability 0x%02x", uint8(c))
		}
		cfg.IoCapability = c
		return nil
	}
}

// OptAuthReq replaces the whole AuthReq field.
func OptAuthReq(a AuthReq) Option {
	return func(cfg *Config) error {
		cfg.AuthReq = a
		return nil
	}
}

func setBit(cfg *Config, bit AuthReq, on bool) {
	if on {
		cfg.AuthReq |= bit
	} else {
		cfg.AuthReq &^= bit
	}
}

// OptBonding requests (or stops requesting) bonding.
func OptBonding(on bool) Option {
	return func(cfg *Config) error {
		setBit(cfg, AuthBonding, on)
		return nil
	}
}

// OptMITM requires an authenticated association model.
func OptMITM(on bool) Option {
	return func(cfg *Config) error {
		setBit(cfg, AuthMITM, on)
		return nil
	}
}

// OptSecureConnections advertises LE Secure Connections support.
func OptSecureConnections(on bool) Option {
	return func(cfg *Config) error {
		setBit(cfg, AuthSC, on)
		return nil
	}
}

// OptSecureConnectionsOnly refuses to pair with legacy peers.
func OptSecureConnectionsOnly() Option {
	return func(cfg *Config) error {
		setBit(cfg, AuthSC, true)
		cfg.SecureConnectionsOnly = true
		return nil
	}
}

// OptKeypress enables keypress notifications during passkey entry.
func OptKeypress(on bool) Option {
	return func(cfg *Config) error {
		setBit(cfg, AuthKeypress, on)
		return nil
	}
}

// OptOobFlag marks out of band data as present.
func OptOobFlag(present bool) Option {
	return func(cfg *Config) error {
		cfg.OobFlag = OobNotPresent
		if present {
			cfg.OobFlag = OobPresent
		}
		return nil
	}
}

// OptKeySize sets the accepted encryption key size range.
func OptKeySize(min, max uint8) Option {
	return func(cfg *Config) error {
		if min > max {
			return errors.Errorf("min key size %d above max %d", min, max)
		}
		cfg.MinKeySize, cfg.MaxKeySize = min, max
		return nil
	}
}

// OptKeyDistribution sets the initiator and responder key distribution.
func OptKeyDistribution(init, resp KeyDist) Option {
	return func(cfg *Config) error {
		cfg.InitiatorKeys = init & KeyDistAll
		cfg.ResponderKeys = resp & KeyDistAll
		return nil
	}
}

// OptResponseTimeout overrides the 30 second SMP timeout.
func OptResponseTimeout(d time.Duration) Option {
	return func(cfg *Config) error {
		cfg.ResponseTimeout = d
		return nil
	}
}

// OptSinglePairing refuses a second concurrent pairing on the device.
func OptSinglePairing() Option {
	return func(cfg *Config) error {
		cfg.SinglePairing = true
		return nil
	}
}

// OptIdentity sets the identity distributed with the ID key.
func OptIdentity(a Addr, irk [16]byte) Option {
	return func(cfg *Config) error {
		cfg.IdentityAddress = a
		cfg.IRK = irk
		return nil
	}
}

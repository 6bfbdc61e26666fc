package inbound

import (
	"fmt"

	"github.com/roadrunner-server/errors"
	"github.com/roadrunner-server/pool/pool"

	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/email"
)

// ArchiveConfig enables the maildir copy of every inbound message
type ArchiveConfig struct {
	// Dir: maildir root, created when missing
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Config holds the complete inbound plugin configuration
type Config struct {
	// BaseAddress: canonical receiving address, e.g. "support@example.com"
	BaseAddress string `mapstructure:"base_address" yaml:"base_address"`

	// Namespace: scope of the signed extensions minted for this feature
	Namespace string `mapstructure:"namespace" yaml:"namespace"`

	// SigningKey: current key material, never logged
	SigningKey string `mapstructure:"signing_key" yaml:"signing_key"`

	// SigningKeyFallbacks: retired keys still accepted for verification, newest first
	SigningKeyFallbacks []string `mapstructure:"signing_key_fallbacks" yaml:"signing_key_fallbacks"`

	// SupportedAlgorithms: strongest first; the first one signs
	SupportedAlgorithms []string `mapstructure:"supported_algorithms" yaml:"supported_algorithms"`

	// IncludeRaw: include the raw message in worker events (default: false)
	IncludeRaw bool `mapstructure:"include_raw" yaml:"include_raw"`

	// Archive: optional maildir archive
	Archive *ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	// Pool: PHP worker pool configuration, the worker receiver is enabled when set
	Pool *pool.Config `mapstructure:"pool" yaml:"-"`

	base       email.Address
	algorithms []addressing.Algorithm
}

// InitDefault validates configuration and sets defaults. An unusable base
// address is reported as email.ErrInvalidAddress, reachable with errors.Is.
func (c *Config) InitDefault() error {
	const op = errors.Op("inbound_config_init_default")

	base, err := email.ParseAddress(c.BaseAddress)
	if err != nil {
		// errors.E does not unwrap; keep the sentinel visible to callers
		return fmt.Errorf("%s: base_address %q: %w", op, c.BaseAddress, err)
	}
	c.base = base

	if c.Namespace == "" {
		return errors.E(op, errors.Str("empty namespace"))
	}

	if c.SigningKey == "" {
		return errors.E(op, errors.Str("empty signing_key"))
	}

	c.algorithms, err = addressing.ParseAlgorithms(c.SupportedAlgorithms)
	if err != nil {
		return errors.E(op, err)
	}

	if c.Archive != nil && c.Archive.Dir == "" {
		return errors.E(op, errors.Str("empty archive.dir"))
	}

	if c.Pool != nil {
		c.Pool.InitDefaults()
	}

	return nil
}

// Base returns the parsed base address; valid after InitDefault
func (c *Config) Base() email.Address {
	return c.base
}

// Keys returns the signing keys
func (c *Config) Keys() addressing.Keys {
	return addressing.Keys{
		Current:   c.SigningKey,
		Fallbacks: c.SigningKeyFallbacks,
	}
}

// Algorithms returns the validated algorithm list; valid after InitDefault
func (c *Config) Algorithms() []addressing.Algorithm {
	return c.algorithms
}

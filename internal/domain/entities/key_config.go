package entities

import (
	"fmt"
)

// Backend names an encryption backend
type Backend string

// Supported encryption backends
const (
	BackendAge     Backend = "age"
	BackendAgeCLI  Backend = "age-cli"
	BackendOpenPGP Backend = "openpgp"
)

// KeyMode selects how key material is obtained
type KeyMode string

// Key modes
const (
	KeyModeIdentity   KeyMode = "identity"
	KeyModePassphrase KeyMode = "passphrase"
)

// KeyConfig is the user's config.yml
type KeyConfig struct {
	Backend      Backend
	Mode         KeyMode
	IdentityFile string
	Recipients   []string
	Keyring      bool
	AgeBinary    string
	LogLevel     string
	LogFormat    string
}

// DefaultKeyConfig returns the configuration used when config.yml is absent
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{
		Backend:   BackendAge,
		Mode:      KeyModeIdentity,
		AgeBinary: "age",
		LogLevel:  "warn",
		LogFormat: "console",
	}
}

// Validate checks backend and mode combinations
func (c KeyConfig) Validate() error {
	switch c.Backend {
	case BackendAge, BackendAgeCLI, BackendOpenPGP:
	default:
		return fmt.Errorf("unknown backend %q (want age, age-cli or openpgp)", c.Backend)
	}

	switch c.Mode {
	case KeyModeIdentity, KeyModePassphrase:
	default:
		return fmt.Errorf("unknown key mode %q (want identity or passphrase)", c.Mode)
	}

	if c.Backend == BackendOpenPGP && c.Mode != KeyModePassphrase {
		return fmt.Errorf("backend openpgp requires mode passphrase")
	}

	// age -p only reads passphrases from a terminal, so it cannot be driven from here
	if c.Backend == BackendAgeCLI && c.Mode != KeyModeIdentity {
		return fmt.Errorf("backend age-cli requires mode identity")
	}

	if c.Mode == KeyModeIdentity && c.IdentityFile == "" {
		return fmt.Errorf("mode identity requires identity_file")
	}

	return nil
}

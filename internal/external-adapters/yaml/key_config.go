package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

// yamlKeyConfig represents the raw config.yml structure
type yamlKeyConfig struct {
	Backend      string   `yaml:"backend,omitempty"`
	Mode         string   `yaml:"mode,omitempty"`
	IdentityFile string   `yaml:"identity_file,omitempty"`
	Recipients   []string `yaml:"recipients,omitempty"`
	Keyring      bool     `yaml:"keyring,omitempty"`
	AgeBinary    string   `yaml:"age_binary,omitempty"`
	LogLevel     string   `yaml:"log_level,omitempty"`
	LogFormat    string   `yaml:"log_format,omitempty"`
}

// KeyConfigStore reads and writes config.yml
type KeyConfigStore struct {
	path     string
	defaults entities.KeyConfig
	home     string
	lookup   services.LookupFunc
}

// NewKeyConfigStore creates a store for the config file at path
func NewKeyConfigStore(path string, defaults entities.KeyConfig, home string, lookup services.LookupFunc) *KeyConfigStore {
	return &KeyConfigStore{path: path, defaults: defaults, home: home, lookup: lookup}
}

// Path returns the config file location
func (s *KeyConfigStore) Path() string {
	return s.path
}

// Exists reports whether config.yml has been written
func (s *KeyConfigStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the configuration, falling back to defaults for a missing file or empty fields
func (s *KeyConfigStore) Load() (entities.KeyConfig, error) {
	//nolint:gosec // G304: path is the vault config file
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.defaults, nil
		}
		return entities.KeyConfig{}, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	cfg, err := s.Parse(data)
	if err != nil {
		return entities.KeyConfig{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return cfg, nil
}

// Parse parses YAML bytes over the store's defaults
func (s *KeyConfigStore) Parse(data []byte) (entities.KeyConfig, error) {
	var raw yamlKeyConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return entities.KeyConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := s.defaults
	if raw.Backend != "" {
		cfg.Backend = entities.Backend(raw.Backend)
	}
	if raw.Mode != "" {
		cfg.Mode = entities.KeyMode(raw.Mode)
	}
	if raw.IdentityFile != "" {
		p, err := services.ExpandPath(raw.IdentityFile, s.home, s.lookup)
		if err != nil {
			return entities.KeyConfig{}, fmt.Errorf("invalid identity_file: %w", err)
		}
		cfg.IdentityFile = p
	}
	if len(raw.Recipients) > 0 {
		cfg.Recipients = raw.Recipients
	}
	cfg.Keyring = cfg.Keyring || raw.Keyring
	if raw.AgeBinary != "" {
		cfg.AgeBinary = raw.AgeBinary
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.LogFormat = raw.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return entities.KeyConfig{}, err
	}

	return cfg, nil
}

// Save writes cfg atomically
func (s *KeyConfigStore) Save(cfg entities.KeyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw := yamlKeyConfig{
		Backend:    string(cfg.Backend),
		Mode:       string(cfg.Mode),
		Recipients: cfg.Recipients,
		Keyring:    cfg.Keyring,
		AgeBinary:  cfg.AgeBinary,
		LogLevel:   cfg.LogLevel,
		LogFormat:  cfg.LogFormat,
	}
	if cfg.Mode == entities.KeyModeIdentity {
		raw.IdentityFile = cfg.IdentityFile
	}

	var buf bytes.Buffer
	buf.WriteString("# vault configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomic.WriteFile(s.path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	return nil
}

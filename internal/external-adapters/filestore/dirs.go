// Package filestore keeps vault state on the local filesystem: the paths file, the manifest and encrypted blobs.
package filestore

import (
	"fmt"
	"path/filepath"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// File and directory names under the config and data directories
const (
	PathsFileName      = "paths"
	ScanConfigFileName = "scan.yml"
	KeyConfigFileName  = "config.yml"
	IdentityFileName   = "identity.txt"
	ManifestFileName   = "manifest.json"
	LockFileName       = "vault.lock"
	BlobsDirName       = "blobs"
	TmpDirName         = "tmp"
	BlobExt            = entities.BlobExt
)

// Dirs are the resolved per-user locations
type Dirs struct {
	Home   string
	Config string
	Data   string
}

// ResolveDirs applies VAULT_CONFIG_DIR / VAULT_DATA_DIR, then XDG, then the ~/.config and ~/.local/share defaults
func ResolveDirs(home string, getenv func(string) string) (Dirs, error) {
	if home == "" {
		return Dirs{}, fmt.Errorf("home directory unknown")
	}

	d := Dirs{Home: home}

	d.Config = pick(getenv, "VAULT_CONFIG_DIR", "XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	d.Data = pick(getenv, "VAULT_DATA_DIR", "XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	if !filepath.IsAbs(d.Config) || !filepath.IsAbs(d.Data) {
		return Dirs{}, fmt.Errorf("config and data directories must be absolute (got %q, %q)", d.Config, d.Data)
	}

	return d, nil
}

func pick(getenv func(string) string, override, xdg, fallback string) string {
	if v := getenv(override); v != "" {
		return filepath.Clean(v)
	}
	if v := getenv(xdg); v != "" {
		return filepath.Join(v, "vault")
	}
	return filepath.Join(fallback, "vault")
}

// PathsFile is the user's list of sensitive paths
func (d Dirs) PathsFile() string { return filepath.Join(d.Config, PathsFileName) }

// ScanConfigFile is the user's scan configuration override
func (d Dirs) ScanConfigFile() string { return filepath.Join(d.Config, ScanConfigFileName) }

// KeyConfigFile is config.yml
func (d Dirs) KeyConfigFile() string { return filepath.Join(d.Config, KeyConfigFileName) }

// IdentityFile is the default age identity location
func (d Dirs) IdentityFile() string { return filepath.Join(d.Config, IdentityFileName) }

// Prune lists the vault's own directories: the scanner skips them and lockdown refuses them
func (d Dirs) Prune() []string { return []string{d.Config, d.Data} }

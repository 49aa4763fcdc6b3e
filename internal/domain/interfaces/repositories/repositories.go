// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"
	"os"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// PathsRepository reads and edits the user's paths file
type PathsRepository interface {
	// Load returns configured paths in file order, or ErrNotConfigured when the file is missing
	Load(ctx context.Context) ([]entities.SensitivePath, error)

	// Add appends paths not already present and returns the ones added
	Add(ctx context.Context, raws []string) ([]entities.SensitivePath, error)

	// Remove drops matching paths and returns how many lines were removed
	Remove(ctx context.Context, raws []string) (int, error)
}

// VaultStore persists the manifest and encrypted blobs
type VaultStore interface {
	LoadManifest(ctx context.Context) (*entities.Manifest, error)
	SaveManifest(ctx context.Context, m *entities.Manifest) error

	// TempFile creates a private scratch file inside the store
	TempFile(pattern string) (*os.File, error)

	// CommitBlob moves a finished scratch file into place under name
	CommitBlob(tmpPath, name string) error
	BlobPath(name string) string
	RemoveBlob(name string) error

	// Blobs lists committed blob names
	Blobs() ([]string, error)

	// Acquire takes the store's process lock, or fails with ErrBusy
	Acquire(ctx context.Context) (release func() error, err error)
}

// SecretStore supplies passphrases for passphrase-mode backends
type SecretStore interface {
	// Passphrase returns the passphrase; confirm asks twice when prompting interactively
	Passphrase(ctx context.Context, confirm bool) (string, error)
	Persist(ctx context.Context, passphrase string) error
	Forget(ctx context.Context) error
}

package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
)

// Store implements VaultStore under a data directory:
//
//	<data>/manifest.json
//	<data>/vault.lock
//	<data>/blobs/<id>.vault
//	<data>/tmp/
type Store struct {
	dir    string
	logger interfaces.Logger
	now    func() time.Time
}

// NewStore creates a store rooted at dir; nothing is created until first use
func NewStore(dir string, logger interfaces.Logger) *Store {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) manifestPath() string { return filepath.Join(s.dir, ManifestFileName) }
func (s *Store) blobsDir() string     { return filepath.Join(s.dir, BlobsDirName) }
func (s *Store) tmpDir() string       { return filepath.Join(s.dir, TmpDirName) }

func (s *Store) ensureDirs() error {
	for _, d := range []string{s.dir, s.blobsDir(), s.tmpDir()} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
		if err := os.Chmod(d, 0o700); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", d, err)
		}
	}
	return nil
}

// LoadManifest reads manifest.json; a missing file is an empty manifest
func (s *Store) LoadManifest(_ context.Context) (*entities.Manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := entities.NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", s.manifestPath(), entities.ErrCorrupt, err)
	}
	if m.Version > entities.ManifestVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, entities.ManifestVersion)
	}
	if m.Entries == nil {
		m.Entries = []entities.LockEntry{}
	}

	return m, nil
}

// SaveManifest stamps and atomically replaces manifest.json
func (s *Store) SaveManifest(_ context.Context, m *entities.Manifest) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}

	m.Version = entities.ManifestVersion
	m.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	return WriteSecretFile(s.manifestPath(), bytes.NewReader(data))
}

// TempFile creates a 0600 scratch file under <data>/tmp
func (s *Store) TempFile(pattern string) (*os.File, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.tmpDir(), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return f, nil
}

// CommitBlob renames a finished scratch file to blobs/<name>
func (s *Store) CommitBlob(tmpPath, name string) error {
	if err := validBlobName(name); err != nil {
		return err
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	dst := s.BlobPath(name)
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to chmod blob: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to commit blob %s: %w", name, err)
	}

	s.logger.Debug("committed blob", interfaces.F("blob", name))
	return nil
}

// BlobPath returns the location of a committed blob
func (s *Store) BlobPath(name string) string {
	return filepath.Join(s.blobsDir(), name)
}

// RemoveBlob deletes a committed blob; a missing blob is not an error
func (s *Store) RemoveBlob(name string) error {
	if err := validBlobName(name); err != nil {
		return err
	}
	if err := os.Remove(s.BlobPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove blob %s: %w", name, err)
	}
	return nil
}

// Acquire takes vault.lock without waiting. Leftover scratch files from an
// interrupted run are removed once the lock is held.
func (s *Store) Acquire(ctx context.Context) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(s.dir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is held by another process: %w", fl.Path(), entities.ErrBusy)
	}

	s.cleanTemp()

	return fl.Unlock, nil
}

func (s *Store) cleanTemp() {
	entries, err := os.ReadDir(s.tmpDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		p := filepath.Join(s.tmpDir(), e.Name())
		if err := os.RemoveAll(p); err != nil {
			s.logger.Warn("failed to remove stale temp file", interfaces.F("path", p), interfaces.Err(err))
			continue
		}
		s.logger.Debug("removed stale temp file", interfaces.F("path", p))
	}
}

// Blobs lists committed blob names
func (s *Store) Blobs() ([]string, error) {
	entries, err := os.ReadDir(s.blobsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), BlobExt) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func validBlobName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

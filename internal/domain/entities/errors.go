package entities

import "errors"

// Sentinel errors shared across layers. Wrap them with fmt.Errorf and check with errors.Is.
var (
	// ErrNotConfigured is returned when the paths file does not exist yet
	ErrNotConfigured = errors.New("no sensitive paths configured")

	// ErrUnsafePath is returned for paths that must never be locked (/, $HOME, the vault's own directories)
	ErrUnsafePath = errors.New("refusing to lock unsafe path")

	// ErrAlreadyLocked is returned when a path already has a vault entry
	ErrAlreadyLocked = errors.New("already locked")

	// ErrParentLocked is returned when unlocking a path whose parent is still locked
	ErrParentLocked = errors.New("parent path is still locked")

	// ErrNotLocked is returned when unlocking a path with no vault entry
	ErrNotLocked = errors.New("path is not locked")

	// ErrDestinationExists is returned when a restore would overwrite an existing path
	ErrDestinationExists = errors.New("destination already exists")

	// ErrBusy is returned when another vault process holds the store lock
	ErrBusy = errors.New("vault is busy: another lockdown or unlock is running")

	// ErrCorrupt is returned when a blob or its plaintext fails checksum verification
	ErrCorrupt = errors.New("vault blob is corrupt")

	// ErrDecrypt is returned when the configured key material cannot decrypt a blob
	ErrDecrypt = errors.New("unable to decrypt: wrong key or passphrase")

	// ErrNoPassphrase is returned when no passphrase source is available
	ErrNoPassphrase = errors.New("no passphrase available")

	// ErrBackendMismatch is returned when an entry was encrypted with a different backend
	ErrBackendMismatch = errors.New("encryption backend mismatch")

	// ErrUnsafeArchive is returned when an archive entry would escape its restore target
	ErrUnsafeArchive = errors.New("archive entry escapes restore target")
)

package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/gateways"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/repositories"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/services"
	domainservices "github.com/gabrielkoerich/vault/internal/domain/services"
)

// LockdownOrchestrator coordinates lockdown, unlock and status
type LockdownOrchestrator struct {
	paths    repositories.PathsRepository
	store    repositories.VaultStore
	archiver gateways.Archiver
	checksum gateways.ChecksumVerifier
	lockdown services.LockdownService
	logger   interfaces.Logger
	guard    services.Guard
	stat     services.StatFunc
	now      func() time.Time
	newID    func() string
}

// LockdownOrchestratorConfig holds configuration for the orchestrator
type LockdownOrchestratorConfig struct {
	Home      string
	Protected []string          // never locked, e.g. the vault's config and data dirs
	Stat      services.StatFunc // defaults to os.Lstat
}

// NewLockdownOrchestrator creates a new lockdown orchestrator
func NewLockdownOrchestrator(
	paths repositories.PathsRepository,
	store repositories.VaultStore,
	archiver gateways.Archiver,
	checksum gateways.ChecksumVerifier,
	lockdown services.LockdownService,
	logger interfaces.Logger,
	config LockdownOrchestratorConfig,
) *LockdownOrchestrator {
	stat := config.Stat
	if stat == nil {
		stat = os.Lstat
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &LockdownOrchestrator{
		paths:    paths,
		store:    store,
		archiver: archiver,
		checksum: checksum,
		lockdown: lockdown,
		logger:   logger,
		guard:    services.Guard{Home: config.Home, Protected: config.Protected},
		stat:     stat,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// LockdownOptions tunes a lockdown run
type LockdownOptions struct {
	Keep bool // leave the plaintext in place
}

// LockdownResult contains the outcome of a lockdown run
type LockdownResult struct {
	Plan     *entities.LockPlan
	Locked   []entities.LockEntry
	Skipped  []entities.PlanItem
	Failed   []entities.PathError
	Duration time.Duration
}

// Err joins every per-path failure, or returns nil
func (r *LockdownResult) Err() error {
	return joinPathErrors(r.Failed)
}

// UnlockOptions tunes an unlock run
type UnlockOptions struct {
	Paths []string // absolute paths; empty selects every entry
	Force bool     // replace paths that exist again
}

// UnlockResult contains the outcome of an unlock run
type UnlockResult struct {
	Restored []entities.LockEntry
	Failed   []entities.PathError
	Duration time.Duration
}

// Err joins every per-path failure, or returns nil
func (r *UnlockResult) Err() error {
	return joinPathErrors(r.Failed)
}

// StatusItem is one line of a status report
type StatusItem struct {
	Path       string              `json:"path"`
	Raw        string              `json:"raw,omitempty"`
	Status     entities.PathStatus `json:"status"`
	Configured bool                `json:"configured"`
	LockedBy   string              `json:"locked_by,omitempty"`
	Entry      *entities.LockEntry `json:"entry,omitempty"`
}

// StatusReport summarizes the vault
type StatusReport struct {
	State      entities.VaultState `json:"state"`
	Backend    string              `json:"backend,omitempty"`
	Configured bool                `json:"configured"`
	Items      []StatusItem        `json:"items"`
	Orphans    []string            `json:"orphans,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Plan loads the paths file and manifest and decides what lockdown would do
func (o *LockdownOrchestrator) Plan(ctx context.Context) (*entities.LockPlan, *entities.Manifest, error) {
	paths, err := o.paths.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load paths: %w", err)
	}

	manifest, err := o.store.LoadManifest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	return o.lockdown.Plan(paths, manifest, o.guard, o.stat), manifest, nil
}

// Lockdown encrypts every planned path into the store. A failure on one path
// is recorded and the run moves on to the next.
func (o *LockdownOrchestrator) Lockdown(ctx context.Context, enc gateways.Encryptor, opts LockdownOptions) (*LockdownResult, error) {
	startTime := time.Now()

	release, err := o.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.release(release)

	plan, manifest, err := o.Plan(ctx)
	if err != nil {
		return nil, err
	}

	if !manifest.Accepts(enc.Name(), enc.Format()) {
		return nil, fmt.Errorf("vault holds %s blobs, configured backend is %s: %w",
			manifest.Backend, enc.Name(), entities.ErrBackendMismatch)
	}

	result := &LockdownResult{Plan: plan, Skipped: plan.Skipped()}

	for _, item := range plan.ToLock() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := item.Path.Path
		o.logger.Info("locking", interfaces.F("path", path), interfaces.F("kind", item.Kind))

		entry, err := o.lockOne(ctx, enc, item)
		if err != nil {
			o.fail(&result.Failed, path, err)
			continue
		}

		manifest.Add(entry)
		if err := o.store.SaveManifest(ctx, manifest); err != nil {
			manifest.Remove(entry.ID)
			o.removeBlob(entry.Blob)
			o.fail(&result.Failed, path, fmt.Errorf("failed to save manifest: %w", err))
			continue
		}

		if !opts.Keep {
			if err := o.archiver.Purge(ctx, path); err != nil {
				// The blob is committed and verified, so the entry stays.
				o.fail(&result.Failed, path, fmt.Errorf("locked but failed to remove plaintext: %w", err))
				continue
			}
		}

		result.Locked = append(result.Locked, entry)
	}

	result.Duration = time.Since(startTime)
	o.logger.Info("lockdown complete",
		interfaces.F("locked", len(result.Locked)),
		interfaces.F("skipped", len(result.Skipped)),
		interfaces.F("failed", len(result.Failed)),
		interfaces.F("duration", result.Duration))

	return result, nil
}

// lockOne archives, encrypts, commits and verifies one path
func (o *LockdownOrchestrator) lockOne(ctx context.Context, enc gateways.Encryptor, item entities.PlanItem) (entities.LockEntry, error) {
	path := item.Path.Path

	info, err := o.stat(path)
	if err != nil {
		return entities.LockEntry{}, fmt.Errorf("failed to stat: %w", err)
	}

	// Step 1: Archive to a scratch file, hashing as it is written
	var plain gateways.HashingWriter
	archivePath, err := o.writeTemp("archive-*", func(w io.Writer) error {
		plain = o.checksum.HashWriter(w)
		return o.archiver.Archive(ctx, path, plain)
	})
	if err != nil {
		return entities.LockEntry{}, fmt.Errorf("failed to archive: %w", err)
	}
	defer o.removeTemp(archivePath)

	// Step 2: Encrypt into a scratch blob
	var cipher gateways.HashingWriter
	blobTmp, err := o.writeTemp("blob-*", func(w io.Writer) error {
		cipher = o.checksum.HashWriter(w)
		return o.encryptFile(ctx, enc, cipher, archivePath)
	})
	if err != nil {
		return entities.LockEntry{}, fmt.Errorf("failed to encrypt: %w", err)
	}
	defer o.removeTemp(blobTmp)

	// Step 3: Commit the blob
	id := o.newID()
	entry := entities.LockEntry{
		ID:           id,
		Path:         path,
		Kind:         item.Kind,
		Mode:         uint32(info.Mode()),
		Blob:         entities.BlobName(id),
		PlainSHA256:  plain.Sum(),
		CipherSHA256: cipher.Sum(),
		Size:         plain.Count(),
		Backend:      enc.Name(),
		Format:       enc.Format(),
		LockedAt:     o.now().UTC(),
	}

	if err := o.store.CommitBlob(blobTmp, entry.Blob); err != nil {
		return entities.LockEntry{}, err
	}

	// Step 4: Prove the committed blob decrypts back to the archive
	if err := o.verifyBlob(ctx, enc, entry); err != nil {
		o.removeBlob(entry.Blob)
		return entities.LockEntry{}, fmt.Errorf("verification failed: %w", err)
	}

	return entry, nil
}

func (o *LockdownOrchestrator) verifyBlob(ctx context.Context, enc gateways.Encryptor, entry entities.LockEntry) error {
	plainTmp, err := o.decryptBlob(ctx, enc, entry)
	if err != nil {
		return err
	}
	defer o.removeTemp(plainTmp)

	return o.checksum.VerifyChecksum(ctx, plainTmp, entry.PlainSHA256)
}

// Unlock restores the selected entries, parents first
func (o *LockdownOrchestrator) Unlock(ctx context.Context, enc gateways.Encryptor, opts UnlockOptions) (*UnlockResult, error) {
	startTime := time.Now()

	release, err := o.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.release(release)

	manifest, err := o.store.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	result := &UnlockResult{}
	selected, err := o.selectEntries(manifest, opts.Paths)
	if err != nil {
		return nil, err
	}

	for _, entry := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		o.logger.Info("unlocking", interfaces.F("path", entry.Path), interfaces.F("blob", entry.Blob))

		if err := o.unlockOne(ctx, enc, entry, opts.Force); err != nil {
			o.fail(&result.Failed, entry.Path, err)
			continue
		}

		manifest.Remove(entry.ID)
		if err := o.store.SaveManifest(ctx, manifest); err != nil {
			// Restored, but the entry still points at a valid blob; keep the blob.
			manifest.Add(entry)
			o.fail(&result.Failed, entry.Path, fmt.Errorf("restored but failed to save manifest: %w", err))
			continue
		}

		o.removeBlob(entry.Blob)
		result.Restored = append(result.Restored, entry)
	}

	result.Duration = time.Since(startTime)
	o.logger.Info("unlock complete",
		interfaces.F("restored", len(result.Restored)),
		interfaces.F("failed", len(result.Failed)),
		interfaces.F("duration", result.Duration))

	return result, nil
}

// Select returns the entries Unlock would restore for paths, without taking the
// store lock. Callers use it to fail before asking for key material.
func (o *LockdownOrchestrator) Select(ctx context.Context, paths []string) ([]entities.LockEntry, error) {
	manifest, err := o.store.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return o.selectEntries(manifest, paths)
}

func (o *LockdownOrchestrator) selectEntries(manifest *entities.Manifest, paths []string) ([]entities.LockEntry, error) {
	if len(manifest.Entries) == 0 {
		if len(paths) > 0 {
			return nil, fmt.Errorf("%s: %w", paths[0], entities.ErrNotLocked)
		}
		return nil, nil
	}
	return o.lockdown.SelectForUnlock(manifest, paths)
}

func (o *LockdownOrchestrator) unlockOne(ctx context.Context, enc gateways.Encryptor, entry entities.LockEntry, force bool) error {
	if !entry.ReadableBy(enc.Name(), enc.Format()) {
		return fmt.Errorf("blob was written by %s, configured backend is %s: %w",
			entry.Backend, enc.Name(), entities.ErrBackendMismatch)
	}

	if !force {
		if _, err := o.stat(entry.Path); err == nil {
			return fmt.Errorf("%w (use --force to replace it)", entities.ErrDestinationExists)
		}
	}

	// Step 1: Verify the blob has not changed since lockdown
	if err := o.checksum.VerifyChecksum(ctx, o.store.BlobPath(entry.Blob), entry.CipherSHA256); err != nil {
		return fmt.Errorf("blob %s: %w", entry.Blob, err)
	}

	// Step 2: Decrypt and verify the archive
	plainTmp, err := o.decryptBlob(ctx, enc, entry)
	if err != nil {
		return err
	}
	defer o.removeTemp(plainTmp)

	if err := o.checksum.VerifyChecksum(ctx, plainTmp, entry.PlainSHA256); err != nil {
		return fmt.Errorf("decrypted archive: %w", err)
	}

	// Step 3: Restore
	//nolint:gosec // G304: temp file created by the store
	f, err := os.Open(plainTmp)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if err := o.archiver.Restore(ctx, f, entry.Path, force); err != nil {
		return fmt.Errorf("failed to restore: %w", err)
	}

	return nil
}

// Status reports the vault state and every configured or locked path
func (o *LockdownOrchestrator) Status(ctx context.Context) (*StatusReport, error) {
	configured := true
	paths, err := o.paths.Load(ctx)
	if err != nil {
		if !errors.Is(err, entities.ErrNotConfigured) {
			return nil, fmt.Errorf("failed to load paths: %w", err)
		}
		configured = false
	}

	manifest, err := o.store.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	lockable := make([]entities.SensitivePath, 0, len(paths))
	for _, p := range paths {
		if !o.unsafe(p.Path) {
			lockable = append(lockable, p)
		}
	}

	report := &StatusReport{
		State:      o.lockdown.State(lockable, manifest, o.stat),
		Backend:    manifest.Backend,
		Configured: configured,
		Items:      make([]StatusItem, 0, len(paths)+len(manifest.Entries)),
		UpdatedAt:  manifest.UpdatedAt,
	}

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p.Path] = true
		item := StatusItem{Path: p.Path, Raw: p.Raw, Configured: true}

		if entry, ok := manifest.Find(p.Path); ok {
			e := *entry
			item.Status = entities.PathLocked
			item.Entry = &e
		} else if o.unsafe(p.Path) {
			item.Status = entities.PathUnsafe
		} else if parent := lockedParent(p.Path, manifest); parent != "" {
			item.Status = entities.PathLocked
			item.LockedBy = parent
		} else if _, err := o.stat(p.Path); err == nil {
			item.Status = entities.PathExposed
		} else {
			item.Status = entities.PathMissing
		}

		report.Items = append(report.Items, item)
	}

	for i := range manifest.Entries {
		e := manifest.Entries[i]
		if seen[e.Path] {
			continue
		}
		report.Items = append(report.Items, StatusItem{Path: e.Path, Status: entities.PathLocked, Entry: &e})
	}

	blobs, err := o.store.Blobs()
	if err != nil {
		o.logger.Warn("unable to list blobs", interfaces.Err(err))
	}
	referenced := make(map[string]bool, len(manifest.Entries))
	for _, e := range manifest.Entries {
		referenced[e.Blob] = true
	}
	for _, b := range blobs {
		if !referenced[b] {
			report.Orphans = append(report.Orphans, b)
		}
	}
	sort.Strings(report.Orphans)

	return report, nil
}

func (o *LockdownOrchestrator) unsafe(path string) bool {
	return domainservices.IsUnsafePath(path, o.guard.Home, o.guard.Protected...)
}

func lockedParent(path string, manifest *entities.Manifest) string {
	for _, e := range manifest.Entries {
		if domainservices.IsWithin(path, e.Path) {
			return e.Path
		}
	}
	return ""
}

// writeTemp creates a store scratch file, fills it with fill and returns its path.
// The file is removed if fill fails.
func (o *LockdownOrchestrator) writeTemp(pattern string, fill func(io.Writer) error) (string, error) {
	f, err := o.store.TempFile(pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()

	if err := fill(f); err != nil {
		_ = f.Close()
		o.removeTemp(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		o.removeTemp(name)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	return name, nil
}

func (o *LockdownOrchestrator) encryptFile(ctx context.Context, enc gateways.Encryptor, dst io.Writer, src string) error {
	//nolint:gosec // G304: temp file created by the store
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return enc.Encrypt(ctx, dst, f)
}

func (o *LockdownOrchestrator) decryptBlob(ctx context.Context, enc gateways.Encryptor, entry entities.LockEntry) (string, error) {
	//nolint:gosec // G304: blob path is built by the store
	blob, err := os.Open(o.store.BlobPath(entry.Blob))
	if err != nil {
		return "", fmt.Errorf("failed to open blob: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer blob.Close()

	return o.writeTemp("plain-*", func(w io.Writer) error {
		return enc.Decrypt(ctx, w, blob)
	})
}

func (o *LockdownOrchestrator) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("failed to remove temp file", interfaces.F("path", path), interfaces.Err(err))
	}
}

func (o *LockdownOrchestrator) removeBlob(name string) {
	if err := o.store.RemoveBlob(name); err != nil {
		o.logger.Warn("failed to remove blob", interfaces.F("blob", name), interfaces.Err(err))
	}
}

func (o *LockdownOrchestrator) release(release func() error) {
	if err := release(); err != nil {
		o.logger.Warn("failed to release vault lock", interfaces.Err(err))
	}
}

func (o *LockdownOrchestrator) fail(failed *[]entities.PathError, path string, err error) {
	o.logger.Error("path failed", interfaces.F("path", path), interfaces.Err(err))
	*failed = append(*failed, entities.PathError{Path: path, Err: err})
}

func joinPathErrors(failed []entities.PathError) error {
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

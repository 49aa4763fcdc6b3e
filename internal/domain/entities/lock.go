package entities

import (
	"time"
)

// ManifestVersion is the current on-disk manifest format
const ManifestVersion = 1

// BlobExt is the file extension of encrypted blobs in the store
const BlobExt = ".vault"

// BlobName returns the store file name for an entry ID
func BlobName(id string) string {
	return id + BlobExt
}

// Blob formats. Backends that write the same format can read each other's blobs.
const (
	FormatAgeX25519 = "age-x25519"
	FormatAgeScrypt = "age-scrypt"
	FormatOpenPGP   = "openpgp"
)

// LockEntry records one locked path and the blob holding it
type LockEntry struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Kind         PathKind  `json:"kind"`
	Mode         uint32    `json:"mode"`
	Blob         string    `json:"blob"`
	PlainSHA256  string    `json:"plain_sha256"`
	CipherSHA256 string    `json:"cipher_sha256"`
	Size         int64     `json:"size"`
	Backend      string    `json:"backend"`
	Format       string    `json:"format,omitempty"`
	LockedAt     time.Time `json:"locked_at"`
}

// ReadableBy reports whether a backend writing format can decrypt the entry's blob
func (e LockEntry) ReadableBy(backend, format string) bool {
	return compatible(e.Backend, e.Format, backend, format)
}

// Manifest is the index of everything currently held in the vault store
type Manifest struct {
	Version   int         `json:"version"`
	Backend   string      `json:"backend,omitempty"`
	Format    string      `json:"format,omitempty"`
	Entries   []LockEntry `json:"entries"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewManifest returns an empty manifest
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Entries: []LockEntry{},
	}
}

// Find returns the entry for an absolute path
func (m *Manifest) Find(path string) (*LockEntry, bool) {
	for i := range m.Entries {
		if m.Entries[i].Path == path {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// Add appends an entry
func (m *Manifest) Add(entry LockEntry) {
	m.Entries = append(m.Entries, entry)
	if entry.Backend != "" {
		m.Backend = entry.Backend
		m.Format = entry.Format
	}
}

// Accepts reports whether new entries from backend can join the manifest
func (m *Manifest) Accepts(backend, format string) bool {
	if len(m.Entries) == 0 || m.Backend == "" {
		return true
	}
	return compatible(m.Backend, m.Format, backend, format)
}

// compatible compares formats when both sides recorded one; older entries only carry the backend
func compatible(recordedBackend, recordedFormat, backend, format string) bool {
	if recordedBackend == "" {
		return true
	}
	if recordedFormat != "" && format != "" {
		return recordedFormat == format
	}
	return recordedBackend == backend
}

// Remove drops the entry with the given ID and reports whether it existed
func (m *Manifest) Remove(id string) bool {
	for i := range m.Entries {
		if m.Entries[i].ID == id {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			if len(m.Entries) == 0 {
				m.Backend = ""
				m.Format = ""
			}
			return true
		}
	}
	return false
}

// VaultState summarizes whether configured paths are locked
type VaultState string

// Vault states
const (
	StateUnlocked VaultState = "unlocked"
	StateLocked   VaultState = "locked"
	StatePartial  VaultState = "partial"
)

// PathStatus is the state of one path in a status report
type PathStatus string

// Path statuses
const (
	PathLocked  PathStatus = "locked"
	PathExposed PathStatus = "exposed"
	PathMissing PathStatus = "missing"
	PathUnsafe  PathStatus = "unsafe"
)

// PlanAction is what lockdown will do with a configured path
type PlanAction string

// Plan actions
const (
	ActionLock PlanAction = "lock"
	ActionSkip PlanAction = "skip"
)

// PlanItem is one configured path and the decision taken for it
type PlanItem struct {
	Path   SensitivePath
	Kind   PathKind
	Action PlanAction
	Reason string
}

// LockPlan is the ordered list of decisions for a lockdown run
type LockPlan struct {
	Items []PlanItem
}

// ToLock returns the items that will be locked
func (p *LockPlan) ToLock() []PlanItem {
	items := make([]PlanItem, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Action == ActionLock {
			items = append(items, item)
		}
	}
	return items
}

// Skipped returns the items that will be left alone
func (p *LockPlan) Skipped() []PlanItem {
	items := make([]PlanItem, 0)
	for _, item := range p.Items {
		if item.Action == ActionSkip {
			items = append(items, item)
		}
	}
	return items
}

// PathError pairs a path with the error that stopped it
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e PathError) Unwrap() error {
	return e.Err
}

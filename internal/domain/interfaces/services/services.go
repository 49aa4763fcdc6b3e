// Package services defines interfaces for domain service contracts.
package services

import (
	"io/fs"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// ScanService turns raw rule hits into ranked candidates
type ScanService interface {
	Merge(hits []entities.Hit, configured []entities.SensitivePath, minScore int) []entities.Candidate
}

// StatFunc is os.Lstat, injectable for tests
type StatFunc func(path string) (fs.FileInfo, error)

// Guard names the paths lockdown must never take: the home directory and its
// ancestors, plus protected paths such as the vault's own config and data dirs
type Guard struct {
	Home      string
	Protected []string
}

// LockdownService holds the pure decisions behind lockdown and unlock
type LockdownService interface {
	Plan(paths []entities.SensitivePath, manifest *entities.Manifest, guard Guard, stat StatFunc) *entities.LockPlan
	SelectForUnlock(manifest *entities.Manifest, paths []string) ([]entities.LockEntry, error)
	State(paths []entities.SensitivePath, manifest *entities.Manifest, stat StatFunc) entities.VaultState
}

package services

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/services"
)

// lockdownService implements LockdownService with pure business logic
type lockdownService struct{}

// NewLockdownService creates a new lockdown service
func NewLockdownService() services.LockdownService {
	return &lockdownService{}
}

// Plan decides, in paths file order, which configured paths lockdown will encrypt
func (s *lockdownService) Plan(
	paths []entities.SensitivePath,
	manifest *entities.Manifest,
	guard services.Guard,
	stat services.StatFunc,
) *entities.LockPlan {
	plan := &entities.LockPlan{Items: make([]entities.PlanItem, 0, len(paths))}
	seen := make(map[string]bool, len(paths))

	for _, p := range paths {
		item := entities.PlanItem{Path: p, Action: entities.ActionSkip}

		switch {
		case seen[p.Path]:
			item.Reason = "duplicate"
		case IsUnsafePath(p.Path, guard.Home, guard.Protected...):
			item.Reason = entities.ErrUnsafePath.Error()
		default:
			item.Kind, item.Action, item.Reason = s.classify(p.Path, manifest, stat)
		}

		seen[p.Path] = true
		plan.Items = append(plan.Items, item)
	}

	for i := range plan.Items {
		if plan.Items[i].Action != entities.ActionLock {
			continue
		}
		for j := range plan.Items {
			outer := plan.Items[j]
			if i == j || outer.Action != entities.ActionLock || outer.Kind != entities.KindDir {
				continue
			}
			if IsWithin(plan.Items[i].Path.Path, outer.Path.Path) {
				plan.Items[i].Action = entities.ActionSkip
				plan.Items[i].Reason = "inside " + outer.Path.Path
				break
			}
		}
	}

	return plan
}

func (s *lockdownService) classify(
	path string,
	manifest *entities.Manifest,
	stat services.StatFunc,
) (entities.PathKind, entities.PlanAction, string) {
	if _, ok := manifest.Find(path); ok {
		return "", entities.ActionSkip, entities.ErrAlreadyLocked.Error()
	}

	for _, e := range manifest.Entries {
		if IsWithin(path, e.Path) {
			return "", entities.ActionSkip, "inside locked " + e.Path
		}
	}

	info, err := stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", entities.ActionSkip, "missing"
		}
		return "", entities.ActionSkip, err.Error()
	}

	return KindOf(info.Mode()), entities.ActionLock, ""
}

// KindOf maps a file mode to a PathKind
func KindOf(mode fs.FileMode) entities.PathKind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return entities.KindSymlink
	case mode.IsDir():
		return entities.KindDir
	default:
		return entities.KindFile
	}
}

// SelectForUnlock returns the entries to restore, parents before children.
// An empty paths list selects every entry. A child cannot be selected while a
// parent entry stays locked: restoring it would recreate the parent directory.
func (s *lockdownService) SelectForUnlock(manifest *entities.Manifest, paths []string) ([]entities.LockEntry, error) {
	selected := make([]entities.LockEntry, 0, len(manifest.Entries))

	if len(paths) == 0 {
		selected = append(selected, manifest.Entries...)
	} else {
		for _, p := range paths {
			entry, ok := manifest.Find(p)
			if !ok {
				return nil, fmt.Errorf("%s: %w", p, entities.ErrNotLocked)
			}
			selected = append(selected, *entry)
		}

		for _, e := range selected {
			for _, parent := range manifest.Entries {
				if IsWithin(e.Path, parent.Path) && !containsPath(selected, parent.Path) {
					return nil, fmt.Errorf("%s: %s: %w", e.Path, parent.Path, entities.ErrParentLocked)
				}
			}
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		di := strings.Count(selected[i].Path, string(filepath.Separator))
		dj := strings.Count(selected[j].Path, string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return selected[i].Path < selected[j].Path
	})

	return selected, nil
}

func containsPath(entries []entities.LockEntry, path string) bool {
	for _, e := range entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// State reports locked only when no configured path is still readable in plaintext
func (s *lockdownService) State(
	paths []entities.SensitivePath,
	manifest *entities.Manifest,
	stat services.StatFunc,
) entities.VaultState {
	if len(manifest.Entries) == 0 {
		return entities.StateUnlocked
	}

	for _, p := range paths {
		if _, ok := manifest.Find(p.Path); ok {
			continue
		}
		if s.insideLocked(p.Path, manifest) {
			continue
		}
		if _, err := stat(p.Path); err == nil {
			return entities.StatePartial
		}
	}

	return entities.StateLocked
}

func (s *lockdownService) insideLocked(path string, manifest *entities.Manifest) bool {
	for _, e := range manifest.Entries {
		if IsWithin(path, e.Path) {
			return true
		}
	}
	return false
}

package gateways

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

// fileFinder walks scan roots looking for well-known locations and sensitive names
type fileFinder struct {
	logger interfaces.Logger
}

// NewFileFinder creates a new file finder
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewFileFinder(logger interfaces.Logger) *fileFinder {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &fileFinder{logger: logger}
}

type nameMatcher struct {
	rule entities.NameRule
	g    glob.Glob
}

// compiledRules holds globs compiled once per Find call
type compiledRules struct {
	exclude []glob.Glob
	names   []nameMatcher
}

func compileRules(cfg *entities.ScanConfig) (*compiledRules, error) {
	rules := &compiledRules{}

	for _, pattern := range cfg.Exclude {
		// '/' is a separator so "*" stays within a segment and "**" crosses them
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		rules.exclude = append(rules.exclude, g)
	}

	for _, rule := range cfg.NameRules {
		g, err := glob.Compile(rule.Glob)
		if err != nil {
			return nil, fmt.Errorf("invalid name rule %q: %w", rule.Glob, err)
		}
		rules.names = append(rules.names, nameMatcher{rule: rule, g: g})
	}

	return rules, nil
}

func (r *compiledRules) excluded(rel, base string) bool {
	for _, g := range r.exclude {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// Find walks every root up to cfg.MaxDepth. Matched directories are walked too;
// the scan service folds their contents into them once scores are known.
func (f *fileFinder) Find(ctx context.Context, cfg *entities.ScanConfig, prune []string) (*entities.ScanInventory, error) {
	rules, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}

	inv := &entities.ScanInventory{}
	reported := make(map[string]bool)

	for _, root := range cfg.Roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			f.logger.Warn("skipping scan root", interfaces.F("root", root), interfaces.Err(err))
			continue
		}

		for _, loc := range cfg.Locations {
			p := filepath.Join(root, filepath.FromSlash(loc.Path))
			locInfo, err := os.Lstat(p)
			if err != nil {
				continue
			}
			inv.Hits = append(inv.Hits, entities.Hit{
				Path:   p,
				Kind:   services.KindOf(locInfo.Mode()),
				Reason: loc.Reason,
				Score:  loc.Score,
			})
			reported[p] = true
		}

		if err := f.walk(ctx, root, cfg, rules, prune, reported, inv); err != nil {
			return nil, err
		}
	}

	f.logger.Debug("file finder done",
		interfaces.F("dirs", inv.DirsVisited),
		interfaces.F("files", inv.FilesVisited),
		interfaces.F("hits", len(inv.Hits)))

	return inv, nil
}

func (f *fileFinder) walk(
	ctx context.Context,
	root string,
	cfg *entities.ScanConfig,
	rules *compiledRules,
	prune []string,
	reported map[string]bool,
	inv *entities.ScanInventory,
) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			// Unreadable entries are common in home directories (sockets, other users' files)
			f.logger.Debug("walk error", interfaces.F("path", p), interfaces.Err(err))
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}

		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1

		if d.IsDir() {
			inv.DirsVisited++
		} else {
			inv.FilesVisited++
		}

		if isPruned(p, prune) || rules.excluded(rel, d.Name()) {
			return skip(d)
		}

		if !reported[p] {
			kind := services.KindOf(d.Type())
			for _, m := range rules.names {
				if m.g.Match(d.Name()) {
					inv.Hits = append(inv.Hits, entities.Hit{Path: p, Kind: kind, Reason: m.rule.Reason, Score: m.rule.Score})
				}
			}
		}

		if d.IsDir() {
			if depth >= cfg.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		f.collectFile(p, d, cfg, inv)
		return nil
	})
}

// collectFile queues regular files (and symlinked files when allowed) for content search
func (f *fileFinder) collectFile(p string, d fs.DirEntry, cfg *entities.ScanConfig, inv *entities.ScanInventory) {
	var info fs.FileInfo
	var err error

	switch {
	case d.Type().IsRegular():
		info, err = d.Info()
	case d.Type()&fs.ModeSymlink != 0 && cfg.FollowSymlinks:
		// Only files are followed; following directory links risks cycles
		info, err = os.Stat(p)
	default:
		return
	}

	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Debug("stat failed", interfaces.F("path", p), interfaces.Err(err))
		}
		return
	}

	if !info.Mode().IsRegular() || info.Size() == 0 || info.Size() > cfg.MaxFileSize {
		return
	}

	inv.Files = append(inv.Files, p)
}

func skip(d fs.DirEntry) error {
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

func isPruned(p string, prune []string) bool {
	for _, dir := range prune {
		if dir == "" {
			continue
		}
		if p == dir || services.IsWithin(p, dir) {
			return true
		}
	}
	return false
}

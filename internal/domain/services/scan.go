package services

import (
	"sort"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/services"
)

// scanService implements ScanService with pure business logic
type scanService struct{}

// NewScanService creates a new scan service
func NewScanService() services.ScanService {
	return &scanService{}
}

// Merge groups hits by path, sums scores, drops paths below minScore, collapses
// candidates nested inside a kept directory and ranks the rest by score then path
func (s *scanService) Merge(hits []entities.Hit, configured []entities.SensitivePath, minScore int) []entities.Candidate {
	byPath := make(map[string]*entities.Candidate)
	reasons := make(map[string]map[string]struct{})

	for _, hit := range hits {
		c, ok := byPath[hit.Path]
		if !ok {
			c = &entities.Candidate{Path: hit.Path, Kind: hit.Kind}
			byPath[hit.Path] = c
			reasons[hit.Path] = make(map[string]struct{})
		}

		if _, dup := reasons[hit.Path][hit.Reason]; dup {
			continue
		}
		reasons[hit.Path][hit.Reason] = struct{}{}

		c.Score += hit.Score
		if hit.Kind == entities.KindDir {
			c.Kind = entities.KindDir
		}
	}

	// Only directories that are kept absorb what lies below them
	dirs := make([]string, 0)
	for path, c := range byPath {
		if c.Score > entities.MaxCandidateScore {
			c.Score = entities.MaxCandidateScore
		}
		if c.Kind == entities.KindDir && c.Score >= minScore {
			dirs = append(dirs, path)
		}
	}

	candidates := make([]entities.Candidate, 0, len(byPath))
	for path, c := range byPath {
		if c.Score < minScore || insideAny(path, dirs) {
			continue
		}

		c.Reasons = make([]string, 0, len(reasons[path]))
		for r := range reasons[path] {
			c.Reasons = append(c.Reasons, r)
		}
		sort.Strings(c.Reasons)

		c.Configured = isConfigured(path, configured)
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Path < candidates[j].Path
	})

	return candidates
}

func insideAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if IsWithin(path, dir) {
			return true
		}
	}
	return false
}

func isConfigured(path string, configured []entities.SensitivePath) bool {
	for _, p := range configured {
		if p.Path == path || IsWithin(path, p.Path) {
			return true
		}
	}
	return false
}

// Package orchestrators coordinates workflows across domain services, gateways and repositories.
package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/gateways"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces/services"
)

// ScanOrchestrator runs the finder, the content search and the ranking
type ScanOrchestrator struct {
	finder   gateways.FileFinder
	searcher gateways.TextSearcher
	scan     services.ScanService
	logger   interfaces.Logger
}

// NewScanOrchestrator creates a new scan orchestrator
func NewScanOrchestrator(
	finder gateways.FileFinder,
	searcher gateways.TextSearcher,
	scan services.ScanService,
	logger interfaces.Logger,
) *ScanOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ScanOrchestrator{finder: finder, searcher: searcher, scan: scan, logger: logger}
}

// ScanOptions tunes a single run
type ScanOptions struct {
	MinScore   int
	NoContent  bool
	Prune      []string
	Configured []entities.SensitivePath
}

// ScanResult contains the ranked candidates and walk statistics
type ScanResult struct {
	Candidates    []entities.Candidate
	DirsVisited   int
	FilesVisited  int
	FilesSearched int
	Duration      time.Duration
}

// New returns the candidates that are not configured yet
func (r *ScanResult) New() []entities.Candidate {
	out := make([]entities.Candidate, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if !c.Configured {
			out = append(out, c)
		}
	}
	return out
}

// Run scans cfg.Roots and ranks what it finds
func (o *ScanOrchestrator) Run(ctx context.Context, cfg *entities.ScanConfig, opts ScanOptions) (*ScanResult, error) {
	startTime := time.Now()
	result := &ScanResult{}

	// Step 1: Walk roots for location and name hits
	inv, err := o.finder.Find(ctx, cfg, opts.Prune)
	if err != nil {
		return nil, fmt.Errorf("failed to walk scan roots: %w", err)
	}
	result.DirsVisited = inv.DirsVisited
	result.FilesVisited = inv.FilesVisited

	hits := inv.Hits

	// Step 2: Search file contents
	if !opts.NoContent && len(cfg.ContentRules) > 0 {
		contentHits, err := o.searcher.Search(ctx, inv.Files, cfg)
		if err != nil {
			return nil, fmt.Errorf("content search failed: %w", err)
		}
		result.FilesSearched = len(inv.Files)
		hits = append(hits, contentHits...)
	}

	// Step 3: Merge and rank
	result.Candidates = o.scan.Merge(hits, opts.Configured, opts.MinScore)
	result.Duration = time.Since(startTime)

	o.logger.Info("scan complete",
		interfaces.F("candidates", len(result.Candidates)),
		interfaces.F("dirs", result.DirsVisited),
		interfaces.F("files", result.FilesVisited),
		interfaces.F("searched", result.FilesSearched),
		interfaces.F("duration", result.Duration))

	return result, nil
}

package gateways

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
)

// sniffLen is how much of a file is checked for NUL bytes before it is treated as binary
const sniffLen = 8 * 1024

type contentMatcher struct {
	rule entities.ContentRule
	re   *regexp.Regexp
}

// textSearcher greps candidate files for content rules with a bounded worker pool
type textSearcher struct {
	logger interfaces.Logger
}

// NewTextSearcher creates a new text searcher
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewTextSearcher(logger interfaces.Logger) *textSearcher {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &textSearcher{logger: logger}
}

// Search returns one hit per (file, matching rule), ordered by path
func (s *textSearcher) Search(ctx context.Context, files []string, cfg *entities.ScanConfig) ([]entities.Hit, error) {
	if len(cfg.ContentRules) == 0 || len(files) == 0 {
		return nil, nil
	}

	matchers := make([]contentMatcher, 0, len(cfg.ContentRules))
	for _, rule := range cfg.ContentRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid content rule %q: %w", rule.Name, err)
		}
		matchers = append(matchers, contentMatcher{rule: rule, re: re})
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu   sync.Mutex
		hits []entities.Hit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			found := s.searchFile(file, cfg.MaxFileSize, matchers)
			if len(found) == 0 {
				return nil
			}

			mu.Lock()
			hits = append(hits, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].Reason < hits[j].Reason
	})

	return hits, nil
}

func (s *textSearcher) searchFile(path string, maxSize int64, matchers []contentMatcher) []entities.Hit {
	//nolint:gosec // G304: path comes from the file finder
	f, err := os.Open(path)
	if err != nil {
		s.logger.Debug("cannot open file for content search", interfaces.F("path", path), interfaces.Err(err))
		return nil
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil {
		s.logger.Debug("cannot read file for content search", interfaces.F("path", path), interfaces.Err(err))
		return nil
	}

	if isBinary(data) {
		return nil
	}

	var hits []entities.Hit
	for _, m := range matchers {
		if m.re.Match(data) {
			hits = append(hits, entities.Hit{
				Path:   path,
				Kind:   entities.KindFile,
				Reason: "content: " + m.rule.Name,
				Score:  m.rule.Score,
			})
		}
	}

	return hits
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > sniffLen {
		n = sniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

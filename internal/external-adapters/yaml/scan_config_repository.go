package yaml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// EmbeddedSource names the built-in default configuration
const EmbeddedSource = "<built-in>"

// ScanConfigRepository resolves scan.yml from an explicit path, a list of
// well-known locations, or the embedded default
type ScanConfigRepository struct {
	searchPaths []string
	embedded    []byte
	parser      *ScanConfigParser
}

// NewScanConfigRepository creates a repository; searchPaths are tried in order
func NewScanConfigRepository(parser *ScanConfigParser, embedded []byte, searchPaths ...string) *ScanConfigRepository {
	return &ScanConfigRepository{
		searchPaths: searchPaths,
		embedded:    embedded,
		parser:      parser,
	}
}

// Load returns the scan configuration and where it came from
func (r *ScanConfigRepository) Load(_ context.Context, explicit string) (*entities.ScanConfig, string, error) {
	if explicit != "" {
		cfg, err := r.parser.ParseFile(explicit)
		return cfg, explicit, err
	}

	for _, p := range r.searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to stat %s: %w", p, err)
		}

		cfg, err := r.parser.ParseFile(p)
		return cfg, p, err
	}

	cfg, err := r.parser.Parse(r.embedded)
	if err != nil {
		return nil, "", fmt.Errorf("built-in scan config: %w", err)
	}
	return cfg, EmbeddedSource, nil
}

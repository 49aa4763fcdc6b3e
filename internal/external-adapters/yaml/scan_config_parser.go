// Package yaml provides YAML-based scan and key configuration parsing.
package yaml

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

// Defaults applied when scan.yml leaves a field empty
const (
	DefaultMaxDepth    = 4
	DefaultMaxFileSize = "1 MiB"
)

// yamlScanConfig represents the raw YAML structure
type yamlScanConfig struct {
	Roots          []string          `yaml:"roots"`
	MaxDepth       int               `yaml:"max_depth"`
	MaxFileSize    string            `yaml:"max_file_size"`
	Workers        int               `yaml:"workers"`
	FollowSymlinks bool              `yaml:"follow_symlinks"`
	Exclude        []string          `yaml:"exclude"`
	Locations      []yamlLocation    `yaml:"locations"`
	NameRules      []yamlNameRule    `yaml:"name_rules"`
	ContentRules   []yamlContentRule `yaml:"content_rules"`
}

type yamlLocation struct {
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
	Score  int    `yaml:"score"`
}

type yamlNameRule struct {
	Glob   string `yaml:"glob"`
	Reason string `yaml:"reason"`
	Score  int    `yaml:"score"`
}

type yamlContentRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Score   int    `yaml:"score"`
}

// ScanConfigParser parses scan.yml files
type ScanConfigParser struct {
	home   string
	lookup services.LookupFunc
}

// NewScanConfigParser creates a parser that expands roots against home
func NewScanConfigParser(home string, lookup services.LookupFunc) *ScanConfigParser {
	return &ScanConfigParser{home: home, lookup: lookup}
}

// ParseFile parses a scan configuration file
func (p *ScanConfigParser) ParseFile(filePath string) (*entities.ScanConfig, error) {
	//nolint:gosec // G304: filePath is the user's scan configuration
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	cfg, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return cfg, nil
}

// Parse parses YAML bytes into a ScanConfig entity
func (p *ScanConfigParser) Parse(data []byte) (*entities.ScanConfig, error) {
	var raw yamlScanConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &entities.ScanConfig{
		MaxDepth:       raw.MaxDepth,
		Workers:        raw.Workers,
		FollowSymlinks: raw.FollowSymlinks,
		Exclude:        raw.Exclude,
	}

	if len(raw.Roots) == 0 {
		raw.Roots = []string{"$HOME"}
	}
	for _, r := range raw.Roots {
		root, err := services.ExpandPath(r, p.home, p.lookup)
		if err != nil {
			return nil, fmt.Errorf("invalid root: %w", err)
		}
		cfg.Roots = append(cfg.Roots, root)
	}

	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max_depth must be positive, got %d", cfg.MaxDepth)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if raw.MaxFileSize == "" {
		raw.MaxFileSize = DefaultMaxFileSize
	}
	size, err := humanize.ParseBytes(raw.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max_file_size %q: %w", raw.MaxFileSize, err)
	}
	//nolint:gosec // G115: sizes beyond int64 are not meaningful here
	cfg.MaxFileSize = int64(size)

	for _, l := range raw.Locations {
		if l.Path == "" {
			return nil, fmt.Errorf("location without path")
		}
		if err := checkScore(l.Path, l.Score); err != nil {
			return nil, err
		}
		cfg.Locations = append(cfg.Locations, entities.LocationRule{
			Path:   l.Path,
			Reason: orDefault(l.Reason, "location: "+l.Path),
			Score:  l.Score,
		})
	}

	for _, n := range raw.NameRules {
		if n.Glob == "" {
			return nil, fmt.Errorf("name rule without glob")
		}
		if err := checkScore(n.Glob, n.Score); err != nil {
			return nil, err
		}
		cfg.NameRules = append(cfg.NameRules, entities.NameRule{
			Glob:   n.Glob,
			Reason: orDefault(n.Reason, "name: "+n.Glob),
			Score:  n.Score,
		})
	}

	for _, c := range raw.ContentRules {
		if c.Name == "" || c.Pattern == "" {
			return nil, fmt.Errorf("content rule needs name and pattern")
		}
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return nil, fmt.Errorf("content rule %q: %w", c.Name, err)
		}
		if err := checkScore(c.Name, c.Score); err != nil {
			return nil, err
		}
		cfg.ContentRules = append(cfg.ContentRules, entities.ContentRule{
			Name:    c.Name,
			Pattern: c.Pattern,
			Score:   c.Score,
		})
	}

	return cfg, nil
}

func checkScore(rule string, score int) error {
	if score < 0 || score > entities.MaxCandidateScore {
		return fmt.Errorf("rule %q: score %d outside 0..%d", rule, score, entities.MaxCandidateScore)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

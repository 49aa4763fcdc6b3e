package filestore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

// DefaultPathsFile is written by `vault init`
const DefaultPathsFile = `# vault: one sensitive path per line.
# $HOME, ${VAR} and a leading ~ are expanded. Lines starting with # are ignored.
#
# $HOME/.private
# $HOME/.ssh
# $HOME/.config/solana
`

// PathsFile implements PathsRepository over a plain text file
type PathsFile struct {
	path   string
	home   string
	lookup services.LookupFunc
	logger interfaces.Logger
}

// NewPathsFile creates a repository for the paths file at path
func NewPathsFile(path, home string, lookup services.LookupFunc, logger interfaces.Logger) *PathsFile {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &PathsFile{path: path, home: home, lookup: lookup, logger: logger}
}

// Path returns the file location
func (p *PathsFile) Path() string {
	return p.path
}

// Load reads and expands every configured path
func (p *PathsFile) Load(_ context.Context) ([]entities.SensitivePath, error) {
	data, err := p.read()
	if err != nil {
		return nil, err
	}

	paths, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.path, err)
	}
	return paths, nil
}

// Parse reads one path per line. Every bad line is reported, not just the first.
func (p *PathsFile) Parse(r io.Reader) ([]entities.SensitivePath, error) {
	var (
		paths []entities.SensitivePath
		errs  []error
		seen  = map[string]int{}
	)

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		expanded, err := services.ExpandPath(raw, p.home, p.lookup)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		if first, ok := seen[expanded]; ok {
			p.logger.Debug("duplicate path ignored",
				interfaces.F("path", expanded), interfaces.F("line", line), interfaces.F("first", first))
			continue
		}
		seen[expanded] = line

		paths = append(paths, entities.SensitivePath{Raw: raw, Path: expanded, Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read paths: %w", err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return paths, nil
}

// Add appends raws whose expansion is not already configured
func (p *PathsFile) Add(ctx context.Context, raws []string) ([]entities.SensitivePath, error) {
	data, err := p.read()
	if errors.Is(err, entities.ErrNotConfigured) {
		data = []byte(DefaultPathsFile)
	} else if err != nil {
		return nil, err
	}

	existing, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.path, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, sp := range existing {
		seen[sp.Path] = true
	}

	var added []entities.SensitivePath
	var buf bytes.Buffer
	buf.Write(data)
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expanded, err := services.ExpandPath(raw, p.home, p.lookup)
		if err != nil {
			return nil, err
		}
		if seen[expanded] {
			continue
		}
		seen[expanded] = true

		written := p.contract(strings.TrimSpace(raw), expanded)
		buf.WriteString(written + "\n")
		added = append(added, entities.SensitivePath{Raw: written, Path: expanded})
	}

	if len(added) == 0 {
		return nil, nil
	}

	if err := p.write(&buf); err != nil {
		return nil, err
	}
	return added, nil
}

// Remove drops every line whose expansion matches one of raws
func (p *PathsFile) Remove(_ context.Context, raws []string) (int, error) {
	data, err := p.read()
	if err != nil {
		return 0, err
	}

	drop := make(map[string]bool, len(raws))
	for _, raw := range raws {
		expanded, err := services.ExpandPath(raw, p.home, p.lookup)
		if err != nil {
			return 0, err
		}
		drop[expanded] = true
	}

	var buf bytes.Buffer
	removed := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		text := sc.Text()
		raw := strings.TrimSpace(text)
		if raw != "" && !strings.HasPrefix(raw, "#") {
			if expanded, err := services.ExpandPath(raw, p.home, p.lookup); err == nil && drop[expanded] {
				removed++
				continue
			}
		}
		buf.WriteString(text + "\n")
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("failed to read paths: %w", err)
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, p.write(&buf)
}

// contract rewrites paths under home as $HOME/... so the file stays portable
func (p *PathsFile) contract(raw, expanded string) string {
	if strings.ContainsAny(raw, "$~") || p.home == "" {
		return raw
	}
	if services.IsWithin(expanded, p.home) {
		rel, err := filepath.Rel(p.home, expanded)
		if err == nil {
			return "$HOME/" + filepath.ToSlash(rel)
		}
	}
	return expanded
}

func (p *PathsFile) read() ([]byte, error) {
	//nolint:gosec // G304: path is the vault paths file
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s does not exist (run `vault init`): %w", p.path, entities.ErrNotConfigured)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.path, err)
	}
	return data, nil
}

func (p *PathsFile) write(r io.Reader) error {
	return WriteSecretFile(p.path, r)
}

// WriteSecretFile atomically writes a 0600 file, creating its directory with 0700
func WriteSecretFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}

package yaml

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookup(key string) (string, bool) {
	if key == "WORK" {
		return "/srv/work", true
	}
	return "", false
}

func TestScanConfigParser_Parse(t *testing.T) {
	data := []byte(`
roots:
  - $HOME
  - $WORK
max_depth: 6
max_file_size: 512KiB
workers: 3
exclude:
  - node_modules
locations:
  - path: .ssh
    reason: ssh keys
    score: 60
name_rules:
  - glob: "*.pem"
    score: 40
content_rules:
  - name: private-key
    pattern: '-----BEGIN [A-Z ]*PRIVATE KEY-----'
    score: 80
`)

	cfg, err := NewScanConfigParser("/home/dev", testLookup).Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"/home/dev", "/srv/work"}, cfg.Roots)
	assert.Equal(t, 6, cfg.MaxDepth)
	assert.Equal(t, int64(512*1024), cfg.MaxFileSize)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"node_modules"}, cfg.Exclude)
	require.Len(t, cfg.Locations, 1)
	assert.Equal(t, "ssh keys", cfg.Locations[0].Reason)
	require.Len(t, cfg.NameRules, 1)
	assert.Equal(t, "name: *.pem", cfg.NameRules[0].Reason, "reason defaults to the glob")
	require.Len(t, cfg.ContentRules, 1)
}

func TestScanConfigParser_Defaults(t *testing.T) {
	cfg, err := NewScanConfigParser("/home/dev", testLookup).Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/home/dev"}, cfg.Roots)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, int64(1<<20), cfg.MaxFileSize)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
}

func TestScanConfigParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad yaml", yaml: "roots: [", want: "failed to parse YAML"},
		{name: "bad root", yaml: "roots: [$NOPE/x]", want: "undefined variable NOPE"},
		{name: "bad size", yaml: "max_file_size: lots", want: "invalid max_file_size"},
		{name: "negative depth", yaml: "max_depth: -1", want: "max_depth"},
		{name: "bad regex", yaml: "content_rules: [{name: x, pattern: '(', score: 1}]", want: `content rule "x"`},
		{name: "score too high", yaml: "name_rules: [{glob: '*.key', score: 101}]", want: "outside 0..100"},
		{name: "location without path", yaml: "locations: [{reason: r}]", want: "location without path"},
		{name: "name rule without glob", yaml: "name_rules: [{score: 1}]", want: "without glob"},
	}

	parser := NewScanConfigParser("/home/dev", testLookup)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScanConfigRepository_Load(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	parser := NewScanConfigParser("/home/dev", testLookup)
	embedded := []byte("max_depth: 2\n")

	userCfg := filepath.Join(dir, "scan.yml")
	shared := filepath.Join(dir, "share", "scan.yml")
	repo := NewScanConfigRepository(parser, embedded, userCfg, shared)

	cfg, source, err := repo.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, EmbeddedSource, source)
	assert.Equal(t, 2, cfg.MaxDepth)

	require.NoError(t, os.MkdirAll(filepath.Dir(shared), 0o700))
	require.NoError(t, os.WriteFile(shared, []byte("max_depth: 3\n"), 0o600))
	cfg, source, err = repo.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, shared, source)
	assert.Equal(t, 3, cfg.MaxDepth)

	require.NoError(t, os.WriteFile(userCfg, []byte("max_depth: 5\n"), 0o600))
	cfg, source, err = repo.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, userCfg, source)
	assert.Equal(t, 5, cfg.MaxDepth)

	explicit := filepath.Join(dir, "other.yml")
	require.NoError(t, os.WriteFile(explicit, []byte("max_depth: 9\n"), 0o600))
	cfg, source, err = repo.Load(ctx, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, source)
	assert.Equal(t, 9, cfg.MaxDepth)

	_, _, err = repo.Load(ctx, filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read file"))
}

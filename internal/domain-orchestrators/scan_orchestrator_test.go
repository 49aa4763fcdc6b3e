package orchestrators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	domainservices "github.com/gabrielkoerich/vault/internal/domain/services"
)

type mockFileFinder struct {
	inv   *entities.ScanInventory
	err   error
	prune []string
}

func (m *mockFileFinder) Find(_ context.Context, _ *entities.ScanConfig, prune []string) (*entities.ScanInventory, error) {
	m.prune = prune
	if m.err != nil {
		return nil, m.err
	}
	return m.inv, nil
}

type mockTextSearcher struct {
	hits   []entities.Hit
	err    error
	called bool
}

func (m *mockTextSearcher) Search(_ context.Context, _ []string, _ *entities.ScanConfig) ([]entities.Hit, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func scanFixture() (*mockFileFinder, *mockTextSearcher, *entities.ScanConfig) {
	finder := &mockFileFinder{inv: &entities.ScanInventory{
		Hits: []entities.Hit{
			{Path: "/h/.ssh", Kind: entities.KindDir, Reason: "location: .ssh", Score: 90},
			{Path: "/h/.ssh/id_rsa", Kind: entities.KindFile, Reason: "name: id_*", Score: 60},
			{Path: "/h/notes.txt", Kind: entities.KindFile, Reason: "name: notes", Score: 10},
		},
		Files:        []string{"/h/notes.txt", "/h/work/server.pem"},
		DirsVisited:  3,
		FilesVisited: 7,
	}}
	searcher := &mockTextSearcher{hits: []entities.Hit{
		{Path: "/h/work/server.pem", Kind: entities.KindFile, Reason: "content: private-key", Score: 80},
		{Path: "/h/notes.txt", Kind: entities.KindFile, Reason: "content: mnemonic", Score: 30},
	}}
	cfg := &entities.ScanConfig{ContentRules: []entities.ContentRule{{Name: "private-key", Pattern: "x", Score: 80}}}
	return finder, searcher, cfg
}

func TestScanOrchestrator_Run(t *testing.T) {
	finder, searcher, cfg := scanFixture()
	o := NewScanOrchestrator(finder, searcher, domainservices.NewScanService(), nil)

	result, err := o.Run(context.Background(), cfg, ScanOptions{
		MinScore:   30,
		Prune:      []string{"/h/.config/vault"},
		Configured: []entities.SensitivePath{{Raw: "$HOME/.ssh", Path: "/h/.ssh"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/h/.config/vault"}, finder.prune)
	assert.Equal(t, 3, result.DirsVisited)
	assert.Equal(t, 7, result.FilesVisited)
	assert.Equal(t, 2, result.FilesSearched)

	paths := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"/h/.ssh", "/h/work/server.pem", "/h/notes.txt"}, paths)
	assert.True(t, result.Candidates[0].Configured)
	assert.Equal(t, 40, result.Candidates[2].Score)

	fresh := result.New()
	require.Len(t, fresh, 2)
	assert.Equal(t, "/h/work/server.pem", fresh[0].Path)
}

func TestScanOrchestrator_NoContent(t *testing.T) {
	finder, searcher, cfg := scanFixture()
	o := NewScanOrchestrator(finder, searcher, domainservices.NewScanService(), nil)

	result, err := o.Run(context.Background(), cfg, ScanOptions{NoContent: true})
	require.NoError(t, err)

	assert.False(t, searcher.called)
	assert.Zero(t, result.FilesSearched)
	assert.Len(t, result.Candidates, 2, "nested id_rsa collapses into .ssh")
}

func TestScanOrchestrator_Errors(t *testing.T) {
	finder, searcher, cfg := scanFixture()
	finder.err = errors.New("permission denied")
	o := NewScanOrchestrator(finder, searcher, domainservices.NewScanService(), nil)

	_, err := o.Run(context.Background(), cfg, ScanOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "walk")

	finder, searcher, cfg = scanFixture()
	searcher.err = context.Canceled
	o = NewScanOrchestrator(finder, searcher, domainservices.NewScanService(), nil)

	_, err = o.Run(context.Background(), cfg, ScanOptions{})
	assert.True(t, errors.Is(err, context.Canceled))
}

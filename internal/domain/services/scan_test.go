package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

func TestScanService_Merge(t *testing.T) {
	hits := []entities.Hit{
		{Path: "/h/.ssh", Kind: entities.KindDir, Reason: "ssh keys", Score: 60},
		{Path: "/h/.ssh/id_ed25519", Kind: entities.KindFile, Reason: "name: id_*", Score: 50},
		{Path: "/h/work/server.pem", Kind: entities.KindFile, Reason: "name: *.pem", Score: 40},
		{Path: "/h/work/server.pem", Kind: entities.KindFile, Reason: "content: private-key", Score: 80},
		{Path: "/h/work/server.pem", Kind: entities.KindFile, Reason: "content: private-key", Score: 80},
		{Path: "/h/notes.txt", Kind: entities.KindFile, Reason: "content: mnemonic", Score: 10},
		{Path: "/h/.aws", Kind: entities.KindDir, Reason: "aws credentials", Score: 60},
	}
	configured := []entities.SensitivePath{{Path: "/h/.aws"}}

	got := NewScanService().Merge(hits, configured, 20)
	require.Len(t, got, 3)

	assert.Equal(t, "/h/work/server.pem", got[0].Path)
	assert.Equal(t, 100, got[0].Score, "score is capped and duplicate reasons count once")
	assert.Equal(t, []string{"content: private-key", "name: *.pem"}, got[0].Reasons)
	assert.False(t, got[0].Configured)

	// equal scores are ordered by path
	assert.Equal(t, "/h/.aws", got[1].Path)
	assert.True(t, got[1].Configured)
	assert.Equal(t, "/h/.ssh", got[2].Path)
	assert.Equal(t, entities.KindDir, got[2].Kind)
}

func TestScanService_MergeEmpty(t *testing.T) {
	got := NewScanService().Merge(nil, nil, 0)
	assert.Empty(t, got)
}

func TestScanService_MergeConfiguredParent(t *testing.T) {
	hits := []entities.Hit{
		{Path: "/h/.config/solana/id.json", Kind: entities.KindFile, Reason: "solana keypair", Score: 70},
	}
	configured := []entities.SensitivePath{{Path: "/h/.config/solana"}}

	got := NewScanService().Merge(hits, configured, 0)
	require.Len(t, got, 1)
	assert.True(t, got[0].Configured)
}

func TestScanService_MergeLowScoreDirKeepsChildren(t *testing.T) {
	hits := []entities.Hit{
		{Path: "/h/backup.age", Kind: entities.KindDir, Reason: "age encrypted file", Score: 20},
		{Path: "/h/backup.age/wallet.pem", Kind: entities.KindFile, Reason: "pem file", Score: 40},
		{Path: "/h/backup.age/wallet.pem", Kind: entities.KindFile, Reason: "content: private-key", Score: 80},
	}

	got := NewScanService().Merge(hits, nil, 30)
	require.Len(t, got, 1)
	assert.Equal(t, "/h/backup.age/wallet.pem", got[0].Path)

	// once the directory itself is shown, its contents fold into it
	got = NewScanService().Merge(hits, nil, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "/h/backup.age", got[0].Path)
}

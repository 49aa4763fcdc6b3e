// Package gateways defines interfaces for filesystem, archive and crypto adapters.
package gateways

import (
	"context"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// FileFinder walks scan roots and applies location and name rules
type FileFinder interface {
	// Find walks every root in cfg. Paths in prune (and anything below them) are never visited.
	Find(ctx context.Context, cfg *entities.ScanConfig, prune []string) (*entities.ScanInventory, error)
}

// TextSearcher applies content rules to candidate files
type TextSearcher interface {
	Search(ctx context.Context, files []string, cfg *entities.ScanConfig) ([]entities.Hit, error)
}

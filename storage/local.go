package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalResolver serves PDFs from a directory on disk.
type LocalResolver struct {
	basePath string
}

// NewLocalResolver creates a resolver rooted at basePath.
func NewLocalResolver(basePath string) *LocalResolver {
	return &LocalResolver{basePath: basePath}
}

// Resolve returns the path under basePath. No copy is made; cleanup is a
// no-op.
func (r *LocalResolver) Resolve(ctx context.Context, filename string) (string, func(), error) {
	fullPath := filepath.Join(r.basePath, filename)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("file not found: %s", fullPath)
		}
		return "", nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return fullPath, func() {}, nil
}

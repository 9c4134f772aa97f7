// Package fetch stages a dataset's descriptor and data files into a work area.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tordrt/sdohload/internal/registry"
)

// Files are the staged paths of one dataset
type Files struct {
	Descriptor string
	Data       string
}

// Fetcher makes a dataset's files available under dir
type Fetcher interface {
	Fetch(ctx context.Context, ds registry.Dataset, dir string) (Files, error)
}

// LocalFetcher copies files from a local data directory. Relative registry
// paths are resolved against BaseDir.
type LocalFetcher struct {
	BaseDir string
}

// NewLocalFetcher creates a fetcher reading from baseDir
func NewLocalFetcher(baseDir string) *LocalFetcher {
	return &LocalFetcher{BaseDir: baseDir}
}

// Fetch copies the descriptor and data files of ds into dir
func (f *LocalFetcher) Fetch(ctx context.Context, ds registry.Dataset, dir string) (Files, error) {
	desc, err := f.copy(ctx, ds.Descriptor, dir, "descriptor")
	if err != nil {
		return Files{}, err
	}
	data, err := f.copy(ctx, ds.Data, dir, "data")
	if err != nil {
		return Files{}, err
	}
	return Files{Descriptor: desc, Data: data}, nil
}

func (f *LocalFetcher) copy(ctx context.Context, src, dir, role string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !filepath.IsAbs(src) {
		src = filepath.Join(f.BaseDir, src)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s file: %w", role, err)
	}
	defer func() { _ = in.Close() }()

	// keep the extension, it selects the reader
	dst := filepath.Join(dir, role+filepath.Ext(src))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to stage %s file: %w", role, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to stage %s file: %w", role, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to stage %s file: %w", role, err)
	}
	return dst, nil
}

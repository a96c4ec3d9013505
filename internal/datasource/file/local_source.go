// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"csvingest/internal/datasource"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct {
	path  string
	hints datasource.Meta
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. Metadata is derived from the file extension only.
func NewLocal(path string) *Local { return &Local{path: path} }

// NewLocalWithMeta is NewLocal with caller-supplied hints. Non-empty fields of
// hints take precedence over the extension-derived metadata.
func NewLocalWithMeta(path string, hints datasource.Meta) *Local {
	return &Local{path: path, hints: hints}
}

// Path returns the filesystem path the source is bound to.
func (l *Local) Path() string { return l.path }

// Meta returns the metadata Open would report, without touching the disk.
func (l *Local) Meta() datasource.Meta {
	return datasource.MetaFromName(l.path).Merge(l.hints)
}

// Open opens the configured path for reading.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, datasource.Meta, error) {
	select {
	case <-ctx.Done():
		return nil, datasource.Meta{}, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, datasource.Meta{}, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, l.Meta(), nil
}

var _ datasource.Source = (*Local)(nil)

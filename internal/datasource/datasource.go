// Package datasource defines where ingestion bytes come from and the
// metadata that travels with them.
//
// A Source yields an io.ReadCloser plus a Meta describing what the bytes are
// (compression, character set, a filename-like hint). Concrete sources live in
// subpackages: file (local disk) and httpds (HTTP/HTTPS).
package datasource

import (
	"context"
	"io"
)

// Source opens a byte stream together with the metadata needed to pick the
// decompression and transcoding stages.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, Meta, error)
}

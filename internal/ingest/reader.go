package ingest

import (
	"context"
	"errors"
	"io"

	"csvingest/internal/datasource"
	"csvingest/internal/datasource/file"
)

// pipeReader is the decoded byte stream handed to the CSV scanner. Closing it
// closes the decompressor and then the raw source.
type pipeReader struct {
	io.Reader
	dec io.Closer
	raw io.Closer
}

func (p *pipeReader) Close() error {
	return errors.Join(p.dec.Close(), p.raw.Close())
}

// BuildReader layers decompression and charset transcoding over raw according
// to meta. The returned Resolution records what was applied.
func BuildReader(raw io.ReadCloser, meta datasource.Meta) (io.ReadCloser, datasource.Resolution) {
	res := datasource.Resolve(meta)
	dec := Decompress(raw, res.Compression)
	var r io.Reader = dec
	if !res.IsUTF8() {
		r = NewTranscodeReader(dec, res.Charset)
	}
	return &pipeReader{Reader: r, dec: dec, raw: raw}, res
}

// OpenSource opens src and wraps it with BuildReader.
func OpenSource(ctx context.Context, src datasource.Source) (io.ReadCloser, datasource.Resolution, error) {
	raw, meta, err := src.Open(ctx)
	if err != nil {
		return nil, datasource.Resolution{}, ioError("open source", err)
	}
	rc, res := BuildReader(raw, meta)
	return rc, res, nil
}

// ReaderFromPath opens a local file and returns its decoded UTF-8 byte stream,
// with compression inferred from the file name.
func ReaderFromPath(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, _, err := OpenSource(ctx, file.NewLocal(path))
	return rc, err
}

package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"csvingest/internal/datasource"
)

// readBufferSize is the buffered reader size placed in front of the
// decompressor (1 MiB keeps syscalls and decoder refills rare).
const readBufferSize = 1 << 20

// Decompress wraps r in a 1 MiB buffered reader and applies c as a streaming
// filter. CompressionNone passes bytes through unmodified.
//
// The decoder is built on the first Read, so Decompress itself never fails
// and reads nothing. A malformed stream surfaces from Read at the first
// invalid sequence. Close releases decoder resources only; r is not closed.
func Decompress(r io.Reader, c datasource.Compression) io.ReadCloser {
	br := bufio.NewReaderSize(r, readBufferSize)
	switch c {
	case datasource.CompressionGzip:
		return &lazyDecoder{name: "gzip", open: func() (io.Reader, func() error, error) {
			zr, err := gzip.NewReader(br)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr.Close, nil
		}}
	case datasource.CompressionZstd:
		return &lazyDecoder{name: "zstd", open: func() (io.Reader, func() error, error) {
			zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, nil, err
			}
			return zr, func() error { zr.Close(); return nil }, nil
		}}
	case datasource.CompressionXz:
		return &lazyDecoder{name: "xz", open: func() (io.Reader, func() error, error) {
			zr, err := xz.NewReader(br)
			if err != nil {
				return nil, nil, err
			}
			return zr, nil, nil
		}}
	default:
		return io.NopCloser(br)
	}
}

// lazyDecoder defers decoder construction (which reads the stream header)
// until the consumer first asks for bytes.
type lazyDecoder struct {
	name  string
	open  func() (io.Reader, func() error, error)
	r     io.Reader
	close func() error
	err   error
}

func (d *lazyDecoder) Read(p []byte) (int, error) {
	if d.r == nil && d.err == nil {
		d.r, d.close, d.err = d.open()
		if errors.Is(d.err, io.EOF) {
			// Zero-byte compressed input is an empty stream, not corruption.
			d.err = io.EOF
		} else if d.err != nil {
			d.err = fmt.Errorf("%s: %w", d.name, d.err)
		}
	}
	if d.err != nil {
		return 0, d.err
	}
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%s: %w", d.name, err)
	}
	return n, err
}

func (d *lazyDecoder) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// ctxCheckEvery is how many rows a fast-path worker scans between context
// checks.
const ctxCheckEvery = 1 << 16

// FastOptions configures FastLocal. Zero values pick the defaults.
type FastOptions struct {
	// Required header names, exact match.
	Required []string
	// Verify folds the required columns of every row into a checksum.
	Verify bool
	// Limit caps rows per chunk at ceil(Limit/chunks); 0 means no limit.
	Limit int64
	// Delimiter defaults to ','.
	Delimiter byte
	// LineBreak defaults to '\n'. With '\n' a trailing '\r' is dropped from
	// each line.
	LineBreak byte
	// Workers defaults to runtime.NumCPU().
	Workers int
}

func (o FastOptions) withDefaults() FastOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.LineBreak == 0 {
		o.LineBreak = '\n'
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// FastLocal counts (and optionally verifies) the rows of an uncompressed UTF-8
// CSV file by memory-mapping it and scanning line-aligned chunks in parallel.
//
// The file is assumed to have no quoted embedded line breaks; that and the
// encoding are the caller's responsibility. The mapping is released before
// FastLocal returns.
func FastLocal(ctx context.Context, path string, opt FastOptions) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, ioError("open", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Result{}, ioError("stat", err)
	}
	if st.Size() == 0 {
		return Result{Summary: Summary{Headers: []string{}}, Strategy: StrategyFast}, nil
	}
	if st.Size() > math.MaxInt {
		return Result{}, ioError("mmap", fmt.Errorf("%s: file too large to map (%d bytes)", path, st.Size()))
	}

	data, release, err := mapFile(f, int(st.Size()))
	if err != nil {
		return Result{}, ioError("mmap", fmt.Errorf("%s: %w", path, err))
	}
	defer release()

	return scanMapped(ctx, data, opt)
}

// scanMapped runs the fast path over an in-memory buffer.
func scanMapped(ctx context.Context, data []byte, opt FastOptions) (Result, error) {
	opt = opt.withDefaults()
	res := Result{Strategy: StrategyFast, Verified: opt.Verify}
	if len(data) == 0 {
		res.Headers = []string{}
		res.Verified = false
		return res, nil
	}

	headerEnd := bytes.IndexByte(data, opt.LineBreak)
	if headerEnd < 0 {
		headerEnd = len(data)
	}
	headers, err := parseHeaderLine(data[:headerEnd], opt)
	if err != nil {
		return Result{}, err
	}

	reqIdx, err := resolveRequired(headers, opt.Required)
	if err != nil {
		return Result{}, err
	}
	slices.Sort(reqIdx)
	reqIdx = slices.Compact(reqIdx)

	body := data[min(headerEnd+1, len(data)):]
	chunks := partition(body, opt.Workers, opt.LineBreak)

	var perChunk int64
	if opt.Limit > 0 && len(chunks) > 0 {
		perChunk = ceilDiv(opt.Limit, int64(len(chunks)))
	}

	var (
		total atomic.Int64
		crc   atomic.Uint32
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		seg := body[c.start:c.end]
		g.Go(func() error {
			acc, err := scanChunk(gctx, seg, opt, reqIdx, perChunk)
			if err != nil {
				return err
			}
			total.Add(acc.rows)
			if opt.Verify {
				xorFold(&crc, acc.crc)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.RowCount = total.Load()
	res.Headers = headers
	res.Checksum = crc.Load()
	return res, nil
}

// parseHeaderLine splits the header line on the delimiter. The line must be
// valid UTF-8.
func parseHeaderLine(line []byte, opt FastOptions) ([]string, error) {
	if opt.LineBreak == '\n' {
		line = bytes.TrimSuffix(line, []byte{'\r'})
	}
	line = bytes.TrimPrefix(line, []byte(utf8BOM))
	if !utf8.Valid(line) {
		return nil, ioError("parse header", fmt.Errorf("header line is not valid UTF-8"))
	}
	fields := bytes.Split(line, []byte{opt.Delimiter})
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = string(f)
	}
	return headers, nil
}

// accumulator is one worker's private tally.
type accumulator struct {
	rows int64
	crc  uint32
}

// scanChunk walks seg line by line. A final line without a line break (only
// possible in the last chunk) still counts as a row.
func scanChunk(ctx context.Context, seg []byte, opt FastOptions, reqIdx []int, limit int64) (accumulator, error) {
	var acc accumulator
	for len(seg) > 0 {
		var row []byte
		if i := bytes.IndexByte(seg, opt.LineBreak); i >= 0 {
			row, seg = seg[:i], seg[i+1:]
		} else {
			row, seg = seg, nil
		}
		acc.rows++

		if opt.Verify {
			if opt.LineBreak == '\n' && len(row) > 0 && row[len(row)-1] == '\r' {
				row = row[:len(row)-1]
			}
			acc.crc = foldRequired(acc.crc, row, opt.Delimiter, reqIdx)
		}
		if limit > 0 && acc.rows >= limit {
			break
		}
		if acc.rows%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return acc, err
			}
		}
	}
	return acc, nil
}

// foldRequired folds the fields at the sorted, distinct positions reqIdx into
// crc, separated by the sentinel byte. Scanning stops once the highest
// required position has been passed.
func foldRequired(crc uint32, row []byte, delim byte, reqIdx []int) uint32 {
	if len(reqIdx) == 0 {
		return crc
	}
	k, col, start := 0, 0, 0
	for {
		end := bytes.IndexByte(row[start:], delim)
		field := row[start:]
		if end >= 0 {
			field = row[start : start+end]
		}
		if col == reqIdx[k] {
			if k > 0 {
				crc = crc32.Update(crc, crc32.IEEETable, sentinel)
			}
			crc = crc32.Update(crc, crc32.IEEETable, field)
			if k++; k == len(reqIdx) {
				return crc
			}
		}
		if end < 0 {
			return crc
		}
		start += end + 1
		col++
	}
}

// xorFold XORs v into dst without a lock.
func xorFold(dst *atomic.Uint32, v uint32) {
	for {
		old := dst.Load()
		if dst.CompareAndSwap(old, old^v) {
			return
		}
	}
}

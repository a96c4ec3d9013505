// Package ingest validates and counts CSV data.
//
// Two paths share one result model. The stream path reads any Source through
// decompression and charset transcoding and parses with encoding/csv, so
// quoted fields with embedded line breaks are handled. The fast path maps an
// uncompressed UTF-8 local file into memory and scans line-aligned chunks in
// parallel; it assumes no quoted line breaks.
package ingest

import (
	"context"
	"log"
	"time"

	"csvingest/internal/datasource"
	"csvingest/internal/metrics"
)

// Options configures an Ingestor.
type Options struct {
	// Job labels metrics. Defaults to "csvingest".
	Job string
	// Required header names, exact match.
	Required []string
	// Verify enables strict mode and a checksum.
	Verify bool
	// Limit caps the rows scanned; 0 means no limit.
	Limit int64
	// Delimiter defaults to ','.
	Delimiter byte
	// LineBreak is used by the fast path only. Defaults to '\n'.
	LineBreak byte
	// FastLocal selects the fast path for eligible local files.
	FastLocal bool
	// Workers for the fast path. Defaults to runtime.NumCPU().
	Workers int
	// Logger receives progress heartbeats. Nil disables them.
	Logger *log.Logger
}

// Ingestor runs ingestions with fixed options. It is safe for concurrent use.
type Ingestor struct {
	opt Options
}

// New returns an Ingestor for opt.
func New(opt Options) *Ingestor {
	if opt.Job == "" {
		opt.Job = "csvingest"
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = ','
	}
	if opt.LineBreak == 0 {
		opt.LineBreak = '\n'
	}
	return &Ingestor{opt: opt}
}

// localFile is implemented by sources backed by a file on disk.
type localFile interface {
	Path() string
	Meta() datasource.Meta
}

// Run ingests src. The fast path is taken only when FastLocal is set and src
// is a local file that resolves to no compression and UTF-8; everything else
// streams.
func (in *Ingestor) Run(ctx context.Context, src datasource.Source) (Result, error) {
	start := time.Now()
	res, err := in.run(ctx, src)
	metrics.RecordStep(in.opt.Job, "ingest", err, time.Since(start))
	if err == nil {
		metrics.RecordRow(in.opt.Job, string(res.Strategy), res.RowCount)
	} else {
		metrics.RecordRow(in.opt.Job, "error_"+KindOf(err).String(), 1)
	}
	return res, err
}

func (in *Ingestor) run(ctx context.Context, src datasource.Source) (Result, error) {
	if lf, ok := src.(localFile); ok && in.opt.FastLocal {
		if r := datasource.Resolve(lf.Meta()); r.Compression == datasource.CompressionNone && r.IsUTF8() {
			res, err := FastLocal(ctx, lf.Path(), FastOptions{
				Required:  in.opt.Required,
				Verify:    in.opt.Verify,
				Limit:     in.opt.Limit,
				Delimiter: in.opt.Delimiter,
				LineBreak: in.opt.LineBreak,
				Workers:   in.opt.Workers,
			})
			res.Compression = r.Compression
			res.Charset = datasource.CharsetName(r.Charset)
			return res, err
		}
		if in.opt.Logger != nil {
			in.opt.Logger.Printf("ingest: %s not eligible for fast path, streaming", lf.Path())
		}
	}

	rc, resolution, err := OpenSource(ctx, src)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	res, err := scanStream(ctx, rc, streamConfig{
		required: in.opt.Required,
		strict:   in.opt.Verify,
		limit:    in.opt.Limit,
		comma:    rune(in.opt.Delimiter),
		logger:   in.opt.Logger,
	})
	res.Compression = resolution.Compression
	res.Charset = datasource.CharsetName(resolution.Charset)
	return res, err
}

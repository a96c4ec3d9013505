// Command csvingest validates and counts CSV data from a local file or an
// HTTP URL, transparently handling gzip/zstd/xz and non-UTF-8 charsets.
//
// Usage:
//
//	csvingest -path data.csv.gz -required sku,price -verify
//	csvingest -url https://example.org/export -required sku -charset windows-1250
//	csvingest -path big.csv -fast-local -workers 16
//	csvingest -list sources.txt -required sku
//	csvingest -config job.json
//
// One result line per source is printed to stdout:
//
//	source=data.csv.gz rows=100000 headers=["sku" "price"] crc=0x1a2b3c4d
//	elapsed=0.4s rows/sec=250000
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"csvingest/internal/config"
	"csvingest/internal/datasource"
	"csvingest/internal/datasource/file"
	"csvingest/internal/datasource/httpds"
	"csvingest/internal/ingest"
	"csvingest/internal/ledger"
	"csvingest/internal/metrics"
	"csvingest/internal/metrics/datadog"
	"csvingest/internal/metrics/prompush"

	// register all ledger backends; the job picks one by kind.
	_ "csvingest/internal/ledger/all"
)

// listFlag collects a repeatable, comma-separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

func main() {
	var (
		cfgPath  string
		path     string
		rawURL   string
		listPath string
		required listFlag
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "", "job config JSON path; flags below override its values")
	flag.StringVar(&path, "path", "", "local CSV file (.csv, .csv.gz, .csv.zst, .csv.xz)")
	flag.StringVar(&rawURL, "url", "", "HTTP(S) URL of the CSV export")
	flag.StringVar(&listPath, "list", "", "file listing one source per line: <path-or-url> [charset]")
	flag.Var(&required, "required", "required header name (repeatable or comma-separated)")
	verify := flag.Bool("verify", false, "strict mode: row width checks and CRC-32 checksum")
	limit := flag.Int64("limit", 0, "stop after N rows (0 = no limit)")
	fastLocal := flag.Bool("fast-local", false, "use the mmap+parallel path for local uncompressed UTF-8 files")
	workers := flag.Int("workers", 0, "fast path workers (0 = number of CPUs)")
	delimiter := flag.String("delimiter", ",", "field delimiter (single ASCII character)")
	charset := flag.String("charset", "", "source charset label, e.g. windows-1250 (overrides detection)")
	contentType := flag.String("content-type", "", "override the detected content type")
	contentEncoding := flag.String("content-encoding", "", "override the detected content encoding (gzip, zstd, xz)")
	job := flag.String("job", "", "job name used for metrics and the ledger")
	retries := flag.Int("retries", 3, "HTTP retry attempts after the initial request")
	ledgerKind := flag.String("ledger-kind", "", "record runs in a ledger: sqlite or postgres")
	ledgerDSN := flag.String("ledger-dsn", "", "ledger connection string")
	metricsBackend := flag.String("metrics-backend", "", "metrics backend: none, prometheus or datadog")
	pushGatewayURL := flag.String("pushgateway-url", "", "Prometheus Pushgateway base URL")
	datadogAddr := flag.String("datadog-addr", "", "DogStatsD address, e.g. 127.0.0.1:8125")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	j := defaultJob()
	if cfgPath != "" {
		var err error
		if j, err = config.Load(cfgPath); err != nil {
			fatalf("%v", err)
		}
	}

	// Explicitly set flags win over the job file.
	opts := j.Parser.Options
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			j.Source.Kind, j.Source.File.Path = "file", path
		case "url":
			j.Source.Kind, j.Source.HTTP.URL = "http", rawURL
		case "required":
			opts["required"] = toAny(required)
		case "verify":
			opts["verify"] = *verify
		case "limit":
			opts["limit"] = *limit
		case "fast-local":
			opts["fast_local"] = *fastLocal
		case "workers":
			opts["workers"] = *workers
		case "delimiter":
			opts["delimiter"] = *delimiter
		case "charset":
			j.Source.Charset = *charset
		case "content-type":
			j.Source.ContentType = *contentType
		case "content-encoding":
			j.Source.ContentEncoding = *contentEncoding
		case "job":
			j.Job = *job
		case "retries":
			j.Source.HTTP.MaxRetries = *retries
		case "ledger-kind":
			j.Ledger.Kind = *ledgerKind
		case "ledger-dsn":
			j.Ledger.DSN = *ledgerDSN
		case "metrics-backend":
			j.Metrics.Backend = *metricsBackend
		case "pushgateway-url":
			j.Metrics.PushgatewayURL = *pushGatewayURL
		case "datadog-addr":
			j.Metrics.DatadogAddr = *datadogAddr
		}
	})

	var entries []file.ListEntry
	if listPath != "" {
		var err error
		if entries, err = file.ReadList(listPath); err != nil {
			fatalf("read list %s: %v", listPath, err)
		}
		if len(entries) == 0 {
			fatalf("list %s has no sources", listPath)
		}
		// Validate against the first entry; the rest share every other setting.
		j = withEntry(j, entries[0])
	}
	if j.Source.Kind == "" {
		fatalf("one of -path, -url, -list or -config is required")
	}

	issues := config.ValidateJob(j)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		os.Exit(2)
	}
	if validate {
		log.Printf("configuration is valid")
		return
	}

	flush := setupMetrics(j, *verbose)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var repo ledger.Repository
	if j.Ledger.Kind != "" {
		var err error
		if repo, err = ledger.New(ctx, ledger.Config{Kind: j.Ledger.Kind, DSN: j.Ledger.DSN}); err != nil {
			fatalf("ledger: %v", err)
		}
		defer repo.Close()
	}

	if len(entries) == 0 {
		entries = []file.ListEntry{{}}
	}
	failed := 0
	for _, e := range entries {
		jj := j
		if listPath != "" {
			jj = withEntry(j, e)
		}
		if err := runOne(ctx, jj, repo, os.Stdout, *verbose); err != nil {
			log.Printf("%s: %v", sourceLabel(jj.Source), err)
			failed++
			if ctx.Err() != nil {
				break
			}
		}
	}
	if failed > 0 {
		flush()
		os.Exit(1)
	}
}

func defaultJob() config.Job {
	return config.Job{
		Job:    "csvingest",
		Parser: config.Parser{Kind: "csv", Options: config.Options{}},
		Source: config.Source{HTTP: config.SourceHTTP{MaxRetries: 3}},
	}
}

// withEntry points j at a list entry, picking the source kind from the
// location's scheme.
func withEntry(j config.Job, e file.ListEntry) config.Job {
	if strings.HasPrefix(e.Location, "http://") || strings.HasPrefix(e.Location, "https://") {
		j.Source.Kind, j.Source.HTTP.URL = "http", e.Location
	} else {
		j.Source.Kind, j.Source.File.Path = "file", e.Location
	}
	if e.Charset != "" {
		j.Source.Charset = e.Charset
	}
	return j
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// runOne ingests the job's source, prints the result line, and records the
// run in repo when one is configured.
func runOne(ctx context.Context, j config.Job, repo ledger.Repository, out io.Writer, verbose bool) error {
	src, err := buildSource(j)
	if err != nil {
		return err
	}

	o := j.Parser.Options
	opt := ingest.Options{
		Job:       j.Job,
		Required:  o.StringSlice("required"),
		Verify:    o.Bool("verify", false),
		Limit:     o.Int64("limit", 0),
		Delimiter: o.Byte("delimiter", ','),
		LineBreak: o.Byte("line_break", '\n'),
		FastLocal: o.Bool("fast_local", false),
		Workers:   o.Int("workers", 0),
	}
	if verbose {
		opt.Logger = log.Default()
		log.Printf("ingest: source=%s required=%v verify=%v fast_local=%v", sourceLabel(j.Source), opt.Required, opt.Verify, opt.FastLocal)
	}

	start := time.Now()
	res, runErr := ingest.New(opt).Run(ctx, src)
	elapsed := time.Since(start)

	if repo != nil {
		recordRun(ctx, repo, j, res, runErr, start, elapsed)
	}
	if runErr != nil {
		return runErr
	}

	label := sourceLabel(j.Source)
	if res.Verified {
		fmt.Fprintf(out, "source=%s rows=%d headers=%q crc=0x%08x\n", label, res.RowCount, res.Headers, res.Checksum)
	} else {
		fmt.Fprintf(out, "source=%s rows=%d headers=%q\n", label, res.RowCount, res.Headers)
	}
	rps := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rps = float64(res.RowCount) / s
	}
	fmt.Fprintf(out, "elapsed=%.1fs rows/sec=%.0f\n", elapsed.Seconds(), rps)

	if verbose {
		log.Printf("ingest: strategy=%s compression=%s charset=%s", res.Strategy, res.Compression, res.Charset)
	}
	return nil
}

func buildSource(j config.Job) (datasource.Source, error) {
	hints := datasource.Meta{
		ContentType:     j.Source.ContentType,
		ContentEncoding: j.Source.ContentEncoding,
	}
	if j.Source.Charset != "" {
		enc, err := datasource.LookupCharset(j.Source.Charset)
		if err != nil {
			return nil, err
		}
		hints.Charset = enc
	}

	switch j.Source.Kind {
	case "file":
		return file.NewLocalWithMeta(j.Source.File.Path, hints), nil
	case "http":
		h := j.Source.HTTP
		hdr := http.Header{}
		for k, v := range h.Headers {
			hdr.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
			MaxRetries:         h.MaxRetries,
			InsecureSkipVerify: h.InsecureSkipVerify,
			Headers:            hdr,
		})
		return httpds.NewSource(client, h.URL, hints), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", j.Source.Kind)
	}
}

func sourceLabel(s config.Source) string {
	if s.Kind == "http" {
		return s.HTTP.URL
	}
	return s.File.Path
}

// recordRun writes the run to the ledger, warning first when the header set
// changed since the last successful run of the job. Ledger failures are
// logged, never fatal.
func recordRun(ctx context.Context, repo ledger.Repository, j config.Job, res ingest.Result, runErr error, start time.Time, elapsed time.Duration) {
	run := ledger.Run{
		Job:         j.Job,
		Source:      sourceLabel(j.Source),
		StartedAt:   start,
		Duration:    elapsed,
		Strategy:    string(res.Strategy),
		Compression: res.Compression.String(),
		Charset:     res.Charset,
		Rows:        res.RowCount,
		Headers:     res.Headers,
		Checksum:    res.Checksum,
		Verified:    res.Verified,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	} else {
		run.Fingerprint = ledger.Fingerprint(res.Headers)
		drift, prev, err := ledger.Drift(ctx, repo, j.Job, run.Fingerprint)
		switch {
		case err != nil:
			log.Printf("ledger: %v", err)
		case drift:
			log.Printf("ledger: WARNING header set of job %q changed (fingerprint %s -> %s)", j.Job, prev, run.Fingerprint)
			metrics.RecordHeaderDrift(j.Job)
		}
	}
	if err := repo.Record(ctx, run); err != nil {
		log.Printf("ledger: %v", err)
	}
}

// setupMetrics installs the configured backend and returns a flush func
// that is safe to call more than once.
func setupMetrics(j config.Job, verbose bool) func() {
	var b metrics.Backend
	switch j.Metrics.Backend {
	case "prometheus":
		pb, err := prompush.NewBackend(j.Job, j.Metrics.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{Addr: j.Metrics.DatadogAddr, GlobalTags: []string{"job:" + j.Job}})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		b = db
	default:
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", j.Metrics.Backend)
		}
		return func() {}
	}

	if verbose {
		log.Printf("metrics: backend=%s job_name=%s", j.Metrics.Backend, j.Job)
	}
	metrics.SetBackend(b)
	flushed := false
	return func() {
		if flushed {
			return
		}
		flushed = true
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

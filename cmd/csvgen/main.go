// Command csvgen writes deterministic synthetic CSV for benchmarks and
// fixtures.
//
// Usage:
//
//	csvgen -rows 1000000 -with-header > big.csv
//	csvgen -rows 50000 -cols 8 -delim ';' -o data.csv.zst
//
// Rows look like "SKU0000000042,v1_42,v2_42"; with -with-header the first
// line is "sku,col1,col2".
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Options describes one generated file.
type Options struct {
	Rows       int64
	Cols       int
	Delim      string
	WithHeader bool
}

func main() {
	rows := flag.Int64("rows", -1, "number of data rows (required)")
	cols := flag.Int("cols", 3, "number of columns including sku")
	delim := flag.String("delim", ",", "field delimiter")
	withHeader := flag.Bool("with-header", false, "write a header line")
	compress := flag.String("compress", "", "none, gzip, zstd or xz (default: from -o extension)")
	outPath := flag.String("o", "", "output file (default stdout)")
	flag.Parse()

	if *rows < 0 {
		fatalf("-rows is required")
	}
	if *cols < 1 {
		fatalf("-cols must be at least 1")
	}

	codec := *compress
	if codec == "" {
		codec = codecFromName(*outPath)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fatalf("create %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}

	enc, err := newEncoder(out, codec)
	if err != nil {
		fatalf("%v", err)
	}
	opt := Options{Rows: *rows, Cols: *cols, Delim: *delim, WithHeader: *withHeader}
	if err := Generate(enc, opt); err != nil {
		fatalf("generate: %v", err)
	}
	if err := enc.Close(); err != nil {
		fatalf("close %s encoder: %v", codec, err)
	}
}

// Generate writes opt.Rows rows to w.
func Generate(w io.Writer, opt Options) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	buf := make([]byte, 0, 64+opt.Cols*16)

	if opt.WithHeader {
		buf = append(buf, "sku"...)
		for c := 1; c < opt.Cols; c++ {
			buf = append(buf, opt.Delim...)
			buf = append(buf, "col"...)
			buf = strconv.AppendInt(buf, int64(c), 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	for i := int64(0); i < opt.Rows; i++ {
		buf = fmt.Appendf(buf[:0], "SKU%010d", i)
		for c := 1; c < opt.Cols; c++ {
			buf = append(buf, opt.Delim...)
			buf = append(buf, 'v')
			buf = strconv.AppendInt(buf, int64(c), 10)
			buf = append(buf, '_')
			buf = strconv.AppendInt(buf, i, 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func codecFromName(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return "gzip"
	case strings.HasSuffix(name, ".zst"):
		return "zstd"
	case strings.HasSuffix(name, ".xz"):
		return "xz"
	default:
		return "none"
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newEncoder(w io.Writer, codec string) (io.WriteCloser, error) {
	switch codec {
	case "none":
		return nopWriteCloser{w}, nil
	case "gzip":
		return gzip.NewWriter(w), nil
	case "zstd":
		return zstd.NewWriter(w)
	case "xz":
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown -compress %q; want none, gzip, zstd or xz", codec)
	}
}

func fatalf(format string, a ...any) {
	log.Printf(format, a...)
	os.Exit(1)
}

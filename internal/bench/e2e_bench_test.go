package bench

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"csvingest/internal/datasource/file"
	"csvingest/internal/ingest"
)

const benchRows = 200_000

// BenchmarkEndToEnd measures file open, decompression, parsing and
// required-header checks through Ingestor.Run for each container format,
// plus the mmap fast path on the uncompressed file.
//
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkEndToEnd$ -cpuprofile cpu.out -memprofile mem.out -count=1
func BenchmarkEndToEnd(b *testing.B) {
	dir := b.TempDir()
	plain := sampleCSV(benchRows)

	cases := []struct {
		name string
		ext  string
		data []byte
		fast bool
	}{
		{"plain", ".csv", plain, false},
		{"plain_fast", ".csv", plain, true},
		{"gzip", ".csv.gz", encode(b, "gzip", plain), false},
		{"zstd", ".csv.zst", encode(b, "zstd", plain), false},
		{"xz", ".csv.xz", encode(b, "xz", plain), false},
	}

	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+tc.ext)
		if err := os.WriteFile(path, tc.data, 0o644); err != nil {
			b.Fatal(err)
		}
		b.Run(tc.name, func(b *testing.B) {
			ing := ingest.New(ingest.Options{
				Job:       "bench",
				Required:  []string{"sku", "col2"},
				Verify:    true,
				FastLocal: tc.fast,
			})
			b.SetBytes(int64(len(plain)))
			b.ReportAllocs()
			for b.Loop() {
				res, err := ing.Run(context.Background(), file.NewLocal(path))
				if err != nil {
					b.Fatal(err)
				}
				if res.RowCount != benchRows {
					b.Fatalf("rows = %d, want %d", res.RowCount, benchRows)
				}
			}
		})
	}
}

func sampleCSV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("sku,col1,col2,col3\n")
	for i := range n {
		fmt.Fprintf(&buf, "SKU%010d,v1_%d,v2_%d,v3_%d\n", i, i, i, i)
	}
	return buf.Bytes()
}

func encode(b *testing.B, codec string, data []byte) []byte {
	b.Helper()
	var buf bytes.Buffer
	switch codec {
	case "gzip":
		zw := gzip.NewWriter(&buf)
		zw.Write(data)
		if err := zw.Close(); err != nil {
			b.Fatal(err)
		}
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			b.Fatal(err)
		}
		zw.Write(data)
		if err := zw.Close(); err != nil {
			b.Fatal(err)
		}
	case "xz":
		zw, err := xz.NewWriter(&buf)
		if err != nil {
			b.Fatal(err)
		}
		zw.Write(data)
		if err := zw.Close(); err != nil {
			b.Fatal(err)
		}
	}
	return buf.Bytes()
}

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opt  Options
		want string
	}{
		{
			name: "header",
			opt:  Options{Rows: 2, Cols: 3, Delim: ",", WithHeader: true},
			want: "sku,col1,col2\nSKU0000000000,v1_0,v2_0\nSKU0000000001,v1_1,v2_1\n",
		},
		{
			name: "no_header_semicolon",
			opt:  Options{Rows: 1, Cols: 2, Delim: ";"},
			want: "SKU0000000000;v1_0\n",
		},
		{
			name: "single_column",
			opt:  Options{Rows: 2, Cols: 1, Delim: ",", WithHeader: true},
			want: "sku\nSKU0000000000\nSKU0000000001\n",
		},
		{
			name: "zero_rows",
			opt:  Options{Rows: 0, Cols: 3, Delim: ","},
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := Generate(&buf, tc.opt); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCodecFromName(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]string{
		"":             "none",
		"a.csv":        "none",
		"a.csv.gz":     "gzip",
		"a.csv.zst":    "zstd",
		"a.csv.xz":     "xz",
		"/tmp/x.tsv.z": "none",
	} {
		if got := codecFromName(name); got != want {
			t.Errorf("codecFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestEncoders(t *testing.T) {
	t.Parallel()
	decoders := map[string]func(io.Reader) (io.Reader, error){
		"none": func(r io.Reader) (io.Reader, error) { return r, nil },
		"gzip": func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		"zstd": func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) },
		"xz":   func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) },
	}
	opt := Options{Rows: 1000, Cols: 4, Delim: ",", WithHeader: true}
	var plain bytes.Buffer
	if err := Generate(&plain, opt); err != nil {
		t.Fatal(err)
	}

	for codec, dec := range decoders {
		t.Run(codec, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(t.TempDir(), "out")
			f, err := os.Create(p)
			if err != nil {
				t.Fatal(err)
			}
			enc, err := newEncoder(f, codec)
			if err != nil {
				t.Fatal(err)
			}
			if err := Generate(enc, opt); err != nil {
				t.Fatal(err)
			}
			if err := enc.Close(); err != nil {
				t.Fatal(err)
			}
			f.Close()

			rf, err := os.Open(p)
			if err != nil {
				t.Fatal(err)
			}
			defer rf.Close()
			r, err := dec(rf)
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, plain.Bytes()) {
				t.Fatalf("%s round trip differs: %d bytes vs %d", codec, len(got), plain.Len())
			}
			if !strings.HasPrefix(string(got), "sku,col1,col2,col3\n") {
				t.Fatalf("header = %q", strings.SplitN(string(got), "\n", 2)[0])
			}
		})
	}
}

func TestNewEncoderUnknown(t *testing.T) {
	t.Parallel()
	if _, err := newEncoder(io.Discard, "brotli"); err == nil || !strings.Contains(err.Error(), "brotli") {
		t.Fatalf("err = %v", err)
	}
}

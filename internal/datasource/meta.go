package datasource

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Meta carries the declared or derived properties of an input.
//
// Meta is a plain value: stages copy it rather than share it.
type Meta struct {
	// ContentType, e.g. "application/gzip" or "text/csv".
	ContentType string
	// ContentEncoding is a comma-separated token list, e.g. "gzip" or "zstd".
	ContentEncoding string
	// NameHint is a key or filename used for extension fallback.
	NameHint string
	// Charset is the source character encoding. Nil means UTF-8.
	Charset encoding.Encoding
}

// Compression is the decompression strategy chosen by Resolve.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXz
)

// String returns the short name used in logs and the ledger.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionXz:
		return "xz"
	default:
		return "none"
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Compression Compression
	Charset     encoding.Encoding
}

// IsUTF8 reports whether the resolved charset needs no transcoding.
func (r Resolution) IsUTF8() bool { return IsUTF8(r.Charset) }

// Resolve decides the decompression and character encoding for m.
//
// Precedence: content-encoding token > content-type > name extension; the
// first signal that names a compression decides. Within one signal gzip is
// checked before zstd, and zstd before xz.
func Resolve(m Meta) Resolution {
	res := Resolution{Compression: CompressionNone, Charset: m.Charset}
	if res.Charset == nil {
		res.Charset = unicode.UTF8
	}

	tokens := encodingTokens(m.ContentEncoding)
	ct := strings.ToLower(strings.TrimSpace(m.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	name := strings.ToLower(m.NameHint)

	switch {
	case tokens["gzip"] || tokens["x-gzip"]:
		res.Compression = CompressionGzip
	case tokens["zstd"]:
		res.Compression = CompressionZstd
	case tokens["xz"]:
		res.Compression = CompressionXz
	case ct == "application/gzip" || ct == "application/x-gzip":
		res.Compression = CompressionGzip
	case ct == "application/zstd":
		res.Compression = CompressionZstd
	case ct == "application/x-xz":
		res.Compression = CompressionXz
	case strings.HasSuffix(name, ".gz"):
		res.Compression = CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		res.Compression = CompressionZstd
	case strings.HasSuffix(name, ".xz"):
		res.Compression = CompressionXz
	}
	return res
}

func encodingTokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Split(strings.ToLower(s), ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out[tok] = true
		}
	}
	return out
}

// MetaFromName builds a best-effort Meta from a file name's extension only.
func MetaFromName(name string) Meta {
	m := Meta{NameHint: path.Base(strings.ReplaceAll(name, "\\", "/"))}
	switch strings.ToLower(path.Ext(m.NameHint)) {
	case ".gz":
		m.ContentType = "application/gzip"
		m.ContentEncoding = "gzip"
	case ".zst":
		m.ContentType = "application/zstd"
		m.ContentEncoding = "zstd"
	case ".xz":
		m.ContentType = "application/x-xz"
		m.ContentEncoding = "xz"
	default:
		m.ContentType = "text/csv"
	}
	return m
}

// LookupCharset resolves a WHATWG encoding label ("utf-8", "windows-1250",
// "shift_jis", "latin1", ...). An empty label yields UTF-8.
func LookupCharset(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	return enc, nil
}

// CharsetName returns the canonical label for enc ("utf-8" for nil).
func CharsetName(enc encoding.Encoding) string {
	if enc == nil {
		return "utf-8"
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "unknown"
	}
	return name
}

// IsUTF8 reports whether enc is nil or UTF-8.
func IsUTF8(enc encoding.Encoding) bool {
	return enc == nil || enc == unicode.UTF8 || CharsetName(enc) == "utf-8"
}

// CharsetFromContentType extracts the charset parameter from a Content-Type
// header value, e.g. `text/csv; charset=windows-1250`. Returns "" if absent
// or unparsable.
func CharsetFromContentType(ct string) string {
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Merge returns m with every non-empty field of override applied on top.
func (m Meta) Merge(override Meta) Meta {
	if override.ContentType != "" {
		m.ContentType = override.ContentType
	}
	if override.ContentEncoding != "" {
		m.ContentEncoding = override.ContentEncoding
	}
	if override.NameHint != "" {
		m.NameHint = override.NameHint
	}
	if override.Charset != nil {
		m.Charset = override.Charset
	}
	return m
}

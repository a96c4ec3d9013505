// Package config defines the JSON job file consumed by csvingest. It is small
// and explicit: decoding is done by encoding/json, and parser-specific knobs
// live in a free-form Options bag with typed accessors.
//
// Example:
//
//	{
//	  "job":    "prices",
//	  "source": { "kind": "http", "http": { "url": "https://example.org/export" } },
//	  "parser": { "kind": "csv", "options": { "required": ["sku"], "verify": true } },
//	  "ledger": { "kind": "sqlite", "dsn": "file:runs.db" },
//	  "metrics": { "backend": "prometheus", "pushgateway_url": "http://pg:9091" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job describes one ingestion run. It is the top-level object of a job file.
type Job struct {
	// Job labels metrics and ledger entries.
	Job string `json:"job"`

	Source  Source  `json:"source"`
	Parser  Parser  `json:"parser"`
	Ledger  Ledger  `json:"ledger"`
	Metrics Metrics `json:"metrics"`
}

// Source identifies where bytes come from.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`

	// Charset, ContentType and ContentEncoding override what the source
	// reports (file extension or response headers).
	Charset         string `json:"charset"`
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL string `json:"url"`

	// TimeoutSeconds bounds the whole download. Zero uses the client default.
	TimeoutSeconds     int               `json:"timeout_seconds"`
	MaxRetries         int               `json:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
	Headers            map[string]string `json:"headers"`
}

// Parser selects how bytes become rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is interpreted by the parser. For CSV the keys are:
	//   required ([]string), verify (bool), limit (int), delimiter (string),
	//   line_break (string), fast_local (bool), workers (int)
	Options Options `json:"options"`
}

// Ledger selects where run results are recorded. An empty Kind disables it.
type Ledger struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "prometheus" or "datadog". Empty means "none".
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Load reads and decodes a job file. Unknown fields are rejected so typos
// surface early.
func Load(path string) (Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return Job{}, fmt.Errorf("open job file: %w", err)
	}
	defer f.Close()

	var j Job
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode job file %s: %w", path, err)
	}
	if j.Parser.Options == nil {
		j.Parser.Options = Options{}
	}
	return j, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for parser/transform-specific configuration where the shape
// varies by implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Int64 is Int for values that may exceed the int range on 32-bit platforms.
func (o Options) Int64(key string, def int64) int64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		case int64:
			return n
		}
	}
	return def
}

// Byte returns the first byte of a string value for key, or def if key is
// missing, empty, or starts with a multi-byte character. A backslash escape
// spelled out in JSON (`\t`, `\n`, `\r`) is accepted.
func (o Options) Byte(key string, def byte) byte {
	s := o.String(key, "")
	switch s {
	case "":
		return def
	case `\t`:
		return '\t'
	case `\n`:
		return '\n'
	case `\r`:
		return '\r'
	}
	if s[0] >= 0x80 {
		return def
	}
	return s[0]
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller (e.g., an inline validation contract).
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// This file adds a lightweight linter for Job values. It performs static
// checks over a decoded Job and returns issues (errors and warnings) that the
// CLI surfaces before running anything.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"csvingest/internal/datasource"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Job.
//
// Path is a dotted path into the config (e.g. "source.http.url",
// "parser.options.delimiter"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob performs static validation of a Job. It does not mutate j.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and ledger entries",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateParser(j.Parser, j.Source)...)
	issues = append(issues, validateLedger(j.Ledger)...)
	issues = append(issues, validateMetrics(j.Metrics)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		issues = append(issues, validateHTTP(s.HTTP)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file or http", s.Kind),
		})
	}

	if s.Charset != "" {
		if _, err := datasource.LookupCharset(s.Charset); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.charset",
				Message:  err.Error(),
			})
		}
	}
	return issues
}

func validateHTTP(h SourceHTTP) []Issue {
	var issues []Issue

	u, err := url.Parse(h.URL)
	switch {
	case strings.TrimSpace(h.URL) == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.url",
			Message:  "http source requires a non-empty url",
		})
	case err != nil:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.url",
			Message:  fmt.Sprintf("invalid url: %v", err),
		})
	case u.Scheme != "http" && u.Scheme != "https":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.url",
			Message:  fmt.Sprintf("unsupported scheme %q; want http or https", u.Scheme),
		})
	}
	if h.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}
	if h.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.max_retries",
			Message:  "max_retries must not be negative",
		})
	}
	if h.InsecureSkipVerify {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.http.insecure_skip_verify",
			Message:  "TLS certificate verification is disabled",
		})
	}
	return issues
}

func validateParser(p Parser, s Source) []Issue {
	var issues []Issue

	switch p.Kind {
	case "":
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  "parser.kind must not be empty",
		})
	case "csv":
	default:
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; want csv", p.Kind),
		})
	}

	o := p.Options
	if raw := o.Any("required"); raw != nil {
		if _, ok := raw.([]any); !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.required",
				Message:  "required must be an array of header names",
			})
		}
	}
	seen := map[string]bool{}
	for i, name := range o.StringSlice("required") {
		if name == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("parser.options.required[%d]", i),
				Message:  "required header name must not be empty",
			})
			continue
		}
		if seen[name] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("parser.options.required[%d]", i),
				Message:  fmt.Sprintf("duplicate required header %q", name),
			})
		}
		seen[name] = true
	}

	for _, key := range []string{"delimiter", "line_break"} {
		if v := o.String(key, ""); !singleByte(v) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options." + key,
				Message:  fmt.Sprintf("%s must be a single ASCII character, got %q", key, o.String(key, "")),
			})
		}
	}
	if d, lb := o.Byte("delimiter", ','), o.Byte("line_break", '\n'); d == lb {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.delimiter",
			Message:  "delimiter and line_break must differ",
		})
	}

	if o.Int64("limit", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.limit",
			Message:  "limit must not be negative; 0 means no limit",
		})
	}
	if o.Int("workers", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.workers",
			Message:  "workers must not be negative",
		})
	}
	if o.Bool("fast_local", false) && s.Kind != "file" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.fast_local",
			Message:  "fast_local only applies to uncompressed local files; this source will stream",
		})
	}
	return issues
}

func validateLedger(l Ledger) []Issue {
	if l.Kind == "" {
		return nil
	}
	var issues []Issue
	switch l.Kind {
	case "sqlite", "postgres":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "ledger.kind",
			Message:  fmt.Sprintf("unknown ledger kind %q; ensure a matching backend is registered", l.Kind),
		})
	}
	if strings.TrimSpace(l.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ledger.dsn",
			Message:  "ledger.dsn must not be empty when ledger.kind is set",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, prometheus or datadog", m.Backend),
		})
	}
	return issues
}

// singleByte reports whether v is empty, one ASCII byte, or one of the
// escapes Options.Byte understands.
func singleByte(v string) bool {
	switch v {
	case "", `\t`, `\n`, `\r`:
		return true
	}
	return len(v) == 1 && v[0] < 0x80
}

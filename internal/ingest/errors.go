package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies an ingestion failure.
type Kind int

const (
	KindMissingHeader Kind = iota + 1
	KindIO
	KindRowWidthMismatch
	KindRequiredFieldMissing
)

func (k Kind) String() string {
	switch k {
	case KindMissingHeader:
		return "missing_header"
	case KindIO:
		return "io"
	case KindRowWidthMismatch:
		return "row_width_mismatch"
	case KindRequiredFieldMissing:
		return "required_field_missing"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *Error matches the one for its Kind.
var (
	ErrMissingHeader        = errors.New("missing required header")
	ErrIO                   = errors.New("io failure")
	ErrRowWidthMismatch     = errors.New("row width mismatch")
	ErrRequiredFieldMissing = errors.New("required field missing")
)

// Error is the single error type returned by the ingestion paths.
//
// Which fields are meaningful depends on Kind:
//   - KindMissingHeader:        Header
//   - KindIO:                   Op, Err
//   - KindRowWidthMismatch:     Row, Expected, Actual
//   - KindRequiredFieldMissing: Row, Header
//
// Row is the 1-based data row index (the header row is not counted).
type Error struct {
	Kind     Kind
	Header   string
	Row      int64
	Expected int
	Actual   int
	Op       string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingHeader:
		return fmt.Sprintf("missing required header: %q", e.Header)
	case KindRowWidthMismatch:
		return fmt.Sprintf("row %d width mismatch: got %d, expected %d", e.Row, e.Actual, e.Expected)
	case KindRequiredFieldMissing:
		return fmt.Sprintf("row %d missing required field %q", e.Row, e.Header)
	case KindIO:
		if e.Op != "" {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return fmt.Sprintf("io: %v", e.Err)
	default:
		return "ingest: unknown error"
	}
}

// Unwrap exposes the underlying I/O cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMissingHeader:
		return e.Kind == KindMissingHeader
	case ErrIO:
		return e.Kind == KindIO
	case ErrRowWidthMismatch:
		return e.Kind == KindRowWidthMismatch
	case ErrRequiredFieldMissing:
		return e.Kind == KindRequiredFieldMissing
	}
	return false
}

func missingHeader(name string) error {
	return &Error{Kind: KindMissingHeader, Header: name}
}

func ioError(op string, err error) error {
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func widthMismatch(row int64, expected, actual int) error {
	return &Error{Kind: KindRowWidthMismatch, Row: row, Expected: expected, Actual: actual}
}

func requiredFieldMissing(row int64, name string) error {
	return &Error{Kind: KindRequiredFieldMissing, Row: row, Header: name}
}

// KindOf returns the Kind of err, or 0 when err is not an ingestion error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}

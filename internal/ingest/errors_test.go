package ingest

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMessagesAndKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
		msg      string
	}{
		{"missing_header", missingHeader("price"), ErrMissingHeader, KindMissingHeader, `missing required header: "price"`},
		{"width", widthMismatch(7, 3, 2), ErrRowWidthMismatch, KindRowWidthMismatch, "row 7 width mismatch: got 2, expected 3"},
		{"required_field", requiredFieldMissing(4, "sku"), ErrRequiredFieldMissing, KindRequiredFieldMissing, `row 4 missing required field "sku"`},
		{"io", ioError("read csv row", io.ErrUnexpectedEOF), ErrIO, KindIO, "read csv row: unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.msg {
				t.Errorf("Error() = %q, want %q", got, tt.msg)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			if got := KindOf(fmt.Errorf("wrapped: %w", tt.err)); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestIOErrorUnwrapsAndDoesNotRewrap(t *testing.T) {
	t.Parallel()

	err := ioError("open", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause lost: %v", err)
	}
	inner := widthMismatch(1, 2, 3)
	if got := ioError("read", inner); got != inner {
		t.Fatalf("ioError re-wrapped an ingestion error: %v", got)
	}
	if errors.Is(inner, ErrIO) {
		t.Fatalf("width mismatch must not match ErrIO")
	}
	if KindOf(io.EOF) != 0 {
		t.Fatalf("KindOf(io.EOF) should be 0")
	}
}

package ingest

import (
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const transcodeScratch = 64 << 10

var replacementChar = []byte(string(utf8.RuneError))

// Transcoder incrementally converts bytes in a source encoding to UTF-8.
//
// Input may be split anywhere, including inside a multi-byte sequence: an
// undecodable tail is kept and prefixed to the next Decode input. Malformed
// input becomes U+FFFD; decoding never fails.
//
// Slices returned by Decode and DecodeEOF are only valid until the next call.
type Transcoder struct {
	t       transform.Transformer
	pending []byte
	scratch []byte
	out     []byte
}

// NewTranscoder returns a Transcoder decoding from enc.
func NewTranscoder(enc encoding.Encoding) *Transcoder {
	return &Transcoder{
		t:       enc.NewDecoder(),
		scratch: make([]byte, transcodeScratch),
	}
}

// Decode consumes src and returns the UTF-8 produced, or nil when nothing
// could be decoded yet. Empty src yields nil.
func (tc *Transcoder) Decode(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	tc.pending = append(tc.pending, src...)
	return tc.run(false)
}

// DecodeEOF flushes retained bytes at end of stream, substituting U+FFFD for
// a truncated trailing sequence. It returns nil when there is nothing left.
func (tc *Transcoder) DecodeEOF() []byte {
	if len(tc.pending) == 0 {
		tc.t.Reset()
		return nil
	}
	out := tc.run(true)
	tc.t.Reset()
	return out
}

// Pending reports how many undecoded bytes are retained.
func (tc *Transcoder) Pending() int { return len(tc.pending) }

func (tc *Transcoder) run(atEOF bool) []byte {
	tc.out = tc.out[:0]
	src := tc.pending
	for len(src) > 0 {
		nDst, nSrc, err := tc.t.Transform(tc.scratch, src, atEOF)
		tc.out = append(tc.out, tc.scratch[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				tc.scratch = make([]byte, 2*len(tc.scratch))
			}
			continue
		case errors.Is(err, transform.ErrShortSrc) && !atEOF:
			// Partial sequence: keep it for the next call.
			n := copy(tc.pending, src)
			tc.pending = tc.pending[:n]
			return tc.result()
		default:
			// Decoders report malformed input as U+FFFD themselves; anything
			// else is skipped one byte at a time the same way.
			tc.out = append(tc.out, replacementChar...)
			src = src[1:]
		}
		if err == nil {
			break
		}
	}
	tc.pending = tc.pending[:0]
	return tc.result()
}

func (tc *Transcoder) result() []byte {
	if len(tc.out) == 0 {
		return nil
	}
	return tc.out
}

// transcodeReader adapts a Transcoder to io.Reader.
type transcodeReader struct {
	r    io.Reader
	tc   *Transcoder
	in   []byte
	buf  []byte
	off  int
	done bool
	err  error
}

// NewTranscodeReader returns a reader yielding the UTF-8 form of r, which is
// encoded in enc.
func NewTranscodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	return &transcodeReader{
		r:  r,
		tc: NewTranscoder(enc),
		in: make([]byte, transcodeScratch),
	}
}

func (tr *transcodeReader) Read(p []byte) (int, error) {
	for tr.off >= len(tr.buf) {
		if tr.done {
			return 0, tr.err
		}
		tr.buf, tr.off = tr.buf[:0], 0

		n, err := tr.r.Read(tr.in)
		if n > 0 {
			tr.buf = append(tr.buf, tr.tc.Decode(tr.in[:n])...)
		}
		switch {
		case err == io.EOF:
			tr.buf = append(tr.buf, tr.tc.DecodeEOF()...)
			tr.done, tr.err = true, io.EOF
		case err != nil:
			tr.done, tr.err = true, err
		}
	}
	n := copy(p, tr.buf[tr.off:])
	tr.off += n
	return n, nil
}

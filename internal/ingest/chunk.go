package ingest

import "bytes"

// chunk is a half-open byte range [start, end) of the body.
type chunk struct {
	start, end int
}

// partition splits body into at most n contiguous chunks whose interior
// boundaries each fall on the first byte after a line break, so no row is
// split. Boundaries start from an even split and are snapped forward; the
// last chunk always runs to the end of body. Empty chunks are never produced.
func partition(body []byte, n int, lineBreak byte) []chunk {
	if len(body) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	approx := len(body) / n
	chunks := make([]chunk, 0, n)
	start := 0
	for i := 1; i < n; i++ {
		pos := i * approx
		if pos < start {
			pos = start
		}
		j := bytes.IndexByte(body[pos:], lineBreak)
		if j < 0 {
			break
		}
		end := pos + j + 1
		if end >= len(body) {
			break
		}
		chunks = append(chunks, chunk{start: start, end: end})
		start = end
	}
	return append(chunks, chunk{start: start, end: len(body)})
}

// ceilDiv returns ⌈a/b⌉ for positive b.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

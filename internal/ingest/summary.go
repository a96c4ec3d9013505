package ingest

import "csvingest/internal/datasource"

// Summary is the outcome of a successful ingestion.
type Summary struct {
	RowCount int64
	Headers  []string
}

// Strategy names the execution path that produced a Result.
type Strategy string

const (
	StrategyStream Strategy = "stream"
	StrategyFast   Strategy = "fast"
)

// Result is a Summary plus run details.
//
// Checksum is meaningful only when Verified is true. Checksums from the two
// strategies are not comparable: the stream path hashes every field of every
// row in order, the fast path XOR-folds per-chunk CRCs of required fields.
type Result struct {
	Summary
	Checksum    uint32
	Verified    bool
	Strategy    Strategy
	Compression datasource.Compression
	Charset     string
}

// resolveRequired maps each required header to its position in headers, in
// caller order. The first absent name fails the whole resolution.
func resolveRequired(headers, required []string) ([]int, error) {
	idx := make([]int, len(required))
	for i, name := range required {
		pos := -1
		for j, h := range headers {
			if h == name {
				pos = j
				break
			}
		}
		if pos < 0 {
			return nil, missingHeader(name)
		}
		idx[i] = pos
	}
	return idx, nil
}

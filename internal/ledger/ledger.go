// Package ledger records the outcome of every ingestion run so that later
// runs of the same job can be compared against it, in particular to detect a
// changed header set ("drift") before downstream consumers trip over it.
//
// Backends register a Factory for their kind at init time; callers obtain a
// Repository via New and stay backend-agnostic. Import ledger/all to enable
// every built-in backend.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// Run is one ledger row.
type Run struct {
	Job         string
	Source      string
	StartedAt   time.Time
	Duration    time.Duration
	Strategy    string
	Compression string
	Charset     string
	Rows        int64
	Headers     []string
	// Fingerprint identifies the header set, see Fingerprint.
	Fingerprint string
	Checksum    uint32
	Verified    bool
	// Error is the failure message, empty for successful runs.
	Error string
}

// Repository persists runs.
type Repository interface {
	// Record appends r.
	Record(ctx context.Context, r Run) error
	// LastFingerprint returns the fingerprint of the most recent successful
	// run of job. ok is false when there is none.
	LastFingerprint(ctx context.Context, job string) (fp string, ok bool, err error)
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. It is typically
// called from backend packages' init functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ledger: no backend registered for kind %q (have %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Fingerprint hashes the ordered header names with XXH3. Names are joined
// with the 0x1F unit separator so ["a,b"] and ["a","b"] differ.
func Fingerprint(headers []string) string {
	return strconv.FormatUint(xxh3.HashString(strings.Join(headers, "\x1f")), 16)
}

// Drift reports whether fp differs from the last recorded fingerprint of
// job. A job with no history never drifts.
func Drift(ctx context.Context, repo Repository, job, fp string) (bool, string, error) {
	prev, ok, err := repo.LastFingerprint(ctx, job)
	if err != nil || !ok {
		return false, "", err
	}
	return prev != fp, prev, nil
}

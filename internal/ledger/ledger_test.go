package ledger

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := Fingerprint([]string{"sku", "price"})
	if base != Fingerprint([]string{"sku", "price"}) {
		t.Fatal("Fingerprint is not deterministic")
	}
	for _, other := range [][]string{
		{"price", "sku"},
		{"sku,price"},
		{"sku", "price", ""},
		{"SKU", "price"},
	} {
		if Fingerprint(other) == base {
			t.Errorf("Fingerprint(%q) collides with Fingerprint([sku price])", other)
		}
	}
}

type memRepo struct {
	runs []Run
}

func (m *memRepo) Record(_ context.Context, r Run) error { m.runs = append(m.runs, r); return nil }
func (m *memRepo) LastFingerprint(_ context.Context, job string) (string, bool, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Job == job && m.runs[i].Error == "" {
			return m.runs[i].Fingerprint, true, nil
		}
	}
	return "", false, nil
}
func (m *memRepo) Close() {}

func TestRegistry(t *testing.T) {
	mem := &memRepo{}
	Register("memtest", func(ctx context.Context, cfg Config) (Repository, error) { return mem, nil })

	if !slices.Contains(Kinds(), "memtest") {
		t.Fatalf("Kinds() = %v, want memtest", Kinds())
	}
	repo, err := New(context.Background(), Config{Kind: "memtest"})
	if err != nil || repo != Repository(mem) {
		t.Fatalf("New(memtest) = %v, %v", repo, err)
	}

	_, err = New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("New(nope) err = %v", err)
	}
}

func TestDrift(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &memRepo{}

	if d, _, _ := Drift(ctx, repo, "j", "a"); d {
		t.Fatal("no history must not drift")
	}
	_ = repo.Record(ctx, Run{Job: "j", Fingerprint: "a"})
	if d, prev, _ := Drift(ctx, repo, "j", "a"); d || prev != "a" {
		t.Fatalf("same fingerprint: drift=%v prev=%q", d, prev)
	}
	if d, prev, _ := Drift(ctx, repo, "j", "b"); !d || prev != "a" {
		t.Fatalf("changed fingerprint: drift=%v prev=%q", d, prev)
	}
}

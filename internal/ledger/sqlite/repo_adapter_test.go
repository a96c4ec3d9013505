package sqlite

import (
	"context"
	"testing"

	"csvingest/internal/ledger"
)

// TestRegistrationUsesNewRepositoryHook verifies the "sqlite" factory
// registered in init goes through newRepository and that Close delegates.
// Not parallel: it swaps a package-level hook.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg   Config
		closed   bool
		fakeRepo = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	repo, err := ledger.New(context.Background(), ledger.Config{Kind: "sqlite", DSN: "file:test.db?mode=memory"})
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}
	if gotCfg.DSN != "file:test.db?mode=memory" {
		t.Errorf("hook cfg.DSN = %q", gotCfg.DSN)
	}
	w, ok := repo.(*wrappedRepo)
	if !ok || w.Repository != fakeRepo {
		t.Fatalf("ledger.New() = %T, want *wrappedRepo around the hook's repo", repo)
	}

	repo.Close()
	if !closed {
		t.Fatal("Close() did not invoke closeFn")
	}
}

func TestLedgerNew_RealMemoryDB(t *testing.T) {
	repo, err := ledger.New(context.Background(), ledger.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	defer repo.Close()

	if err := repo.Record(context.Background(), ledger.Run{Job: "j", Fingerprint: "x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

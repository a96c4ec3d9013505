package postgres

import (
	"context"

	"csvingest/internal/ledger"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo delegates to *Repository and closes the pool on Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ ledger.Repository = (*wrappedRepo)(nil)

// Close implements ledger.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	ledger.Register("postgres", func(ctx context.Context, cfg ledger.Config) (ledger.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

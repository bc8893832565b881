package store

import (
	"context"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db"
	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
)

// StoreProvider exposes only the stores needed by a transactional operation.
type StoreProvider interface {
	MergeRequests() MergeRequestStore
	ClosedIssues() ClosedIssueStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(NewStores(q))
	})
}

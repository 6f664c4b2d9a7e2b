package domain

import "context"

// Migration is one versioned schema change.
type Migration struct {
	Version string
	SQL     string
}

// Tx is the view of the store available inside a bootstrap transaction.
type Tx interface {
	Users() UserRepository
	Sites() SiteRepository
	AppliedMigrations(ctx context.Context) (map[string]bool, error)
	ApplyMigration(ctx context.Context, m Migration) error
}

// TxStore runs fn inside one transaction, committing only if fn returns nil.
type TxStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

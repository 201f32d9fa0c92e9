package reconcile

import (
	"context"

	"tallyhub-server/src/models"

	"github.com/google/uuid"
)

// Store is the persistence side of a commit. Postgres implements it in src/db/sql.
type Store interface {
	// InsertRulesIfAbsent saves rules whose (user, keyword) is not taken yet and reports
	// how many were new.
	InsertRulesIfAbsent(ctx context.Context, rules []models.TransactionRule) (int, error)
	// InLedgerTx runs fn in one transaction; an error from fn rolls everything back.
	InLedgerTx(ctx context.Context, fn func(Ledger) error) error
}

// Ledger is the item and log access available inside a ledger transaction.
type Ledger interface {
	// UpsertItems inserts or refreshes items on (user, category, name) and returns them
	// with ids, in input order.
	UpsertItems(ctx context.Context, items []models.Item) ([]models.Item, error)
	CountActualLogs(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (map[models.LogKey]int, error)
	InsertLogs(ctx context.Context, logs []models.Log) (int, error)
}

package db

import (
	"context"

	"tallyhub-server/src/models"
	"tallyhub-server/src/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore binds the SQL functions to one pool for the handlers and the reconciler.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule models.TransactionRule) (*models.TransactionRule, error) {
	return CreateTransactionRule(ctx, s.pool, &rule)
}

func (s *PostgresStore) GetRule(ctx context.Context, userID, ruleID uuid.UUID) (*models.TransactionRule, error) {
	return GetTransactionRuleByID(ctx, s.pool, userID, ruleID)
}

func (s *PostgresStore) ListRules(ctx context.Context, userID uuid.UUID) ([]models.TransactionRule, error) {
	return GetAllTransactionRules(ctx, s.pool, userID)
}

func (s *PostgresStore) UpdateRule(ctx context.Context, rule models.TransactionRule) (*models.TransactionRule, error) {
	return UpdateTransactionRule(ctx, s.pool, &rule)
}

func (s *PostgresStore) DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error {
	return DeleteTransactionRule(ctx, s.pool, userID, ruleID)
}

func (s *PostgresStore) InsertRulesIfAbsent(ctx context.Context, rules []models.TransactionRule) (int, error) {
	return InsertRulesIfAbsent(ctx, s.pool, rules)
}

func (s *PostgresStore) InLedgerTx(ctx context.Context, fn func(reconcile.Ledger) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txLedger{tx: tx})
	})
}

func (s *PostgresStore) SavePlaidItem(ctx context.Context, item models.PlaidItem) (*models.PlaidItem, error) {
	return SavePlaidItem(ctx, s.pool, &item)
}

func (s *PostgresStore) ListPlaidItems(ctx context.Context, userID uuid.UUID) ([]models.PlaidItem, error) {
	return GetPlaidItemsSQL(ctx, s.pool, userID)
}

func (s *PostgresStore) GetPlaidItem(ctx context.Context, userID, id uuid.UUID) (*models.PlaidItem, error) {
	return GetPlaidItemSQL(ctx, s.pool, userID, id)
}

func (s *PostgresStore) GetSyncCursor(ctx context.Context, id uuid.UUID) (string, error) {
	return GetSyncCursor(ctx, s.pool, id)
}

func (s *PostgresStore) AdvanceSyncCursor(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	return AdvanceSyncCursor(ctx, s.pool, id, from, to)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type txLedger struct {
	tx pgx.Tx
}

func (l txLedger) UpsertItems(ctx context.Context, items []models.Item) ([]models.Item, error) {
	return UpsertItems(ctx, l.tx, items)
}

func (l txLedger) CountActualLogs(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (map[models.LogKey]int, error) {
	return CountActualLogs(ctx, l.tx, userID, itemIDs)
}

func (l txLedger) InsertLogs(ctx context.Context, logs []models.Log) (int, error) {
	return InsertLogs(ctx, l.tx, logs)
}

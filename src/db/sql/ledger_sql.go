package db

import (
	"context"
	"fmt"

	"tallyhub-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UpsertItems writes all items in one batch. On (user, category, name) conflict the
// amount and description are refreshed and the item reactivated.
func UpsertItems(ctx context.Context, tx pgx.Tx, items []models.Item) ([]models.Item, error) {
	query := `
		INSERT INTO items (user_id, category, template, name, description, amount, frequency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (user_id, category, name) DO UPDATE SET
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			template = EXCLUDED.template,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id
	`
	batch := &pgx.Batch{}
	out := make([]models.Item, len(items))
	for i, it := range items {
		out[i] = it
		i := i
		batch.Queue(query, it.UserID, it.Category, models.TemplateFor(it.Category), it.Name, it.Description,
			it.Amount.StringFixed(2), it.Frequency, it.IsActive).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&out[i].ID)
			})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("upsert items: %w", err)
	}
	return out, nil
}

// CountActualLogs counts existing actual logs per (item, date, amount) for the given items.
func CountActualLogs(ctx context.Context, tx pgx.Tx, userID uuid.UUID, itemIDs []uuid.UUID) (map[models.LogKey]int, error) {
	counts := make(map[models.LogKey]int)
	if len(itemIDs) == 0 {
		return counts, nil
	}

	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT item_id, date::text, actual_amount::text, COUNT(*)
		FROM logs
		WHERE user_id = $1 AND item_id = ANY($2::uuid[]) AND is_planned = FALSE
		GROUP BY item_id, date, actual_amount
	`
	rows, err := tx.Query(ctx, query, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID       uuid.UUID
			date, amount string
			n            int
		)
		if err := rows.Scan(&itemID, &date, &amount, &n); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("log amount %q: %w", amount, err)
		}
		counts[models.NewLogKey(itemID, date, d)] += n
	}
	return counts, rows.Err()
}

func InsertLogs(ctx context.Context, tx pgx.Tx, logs []models.Log) (int, error) {
	query := `
		INSERT INTO logs (user_id, item_id, date, actual_amount, notes, is_planned)
		VALUES ($1, $2, $3::date, $4::numeric, $5, $6)
	`
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(query, l.UserID, l.ItemID, l.Date, l.ActualAmount.StringFixed(2), l.Notes, l.IsPlanned)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range logs {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert log: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, results.Close()
}

package db

import (
	"context"

	"tallyhub-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const plaidItemColumns = `id, user_id, access_token, item_id, institution_id, institution_name, created_at`

func GetPlaidItemsSQL(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) ([]models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE user_id = $1 ORDER BY created_at`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.PlaidItem{}
	for rows.Next() {
		var item models.PlaidItem
		err := rows.Scan(&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.InstitutionID, &item.InstitutionName, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func GetPlaidItemSQL(ctx context.Context, pool *pgxpool.Pool, userID, id uuid.UUID) (*models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE user_id = $1 AND id = $2`

	var item models.PlaidItem
	err := pool.QueryRow(ctx, query, userID, id).
		Scan(&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.InstitutionID, &item.InstitutionName, &item.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func SavePlaidItem(ctx context.Context, pool *pgxpool.Pool, item *models.PlaidItem) (*models.PlaidItem, error) {
	query := `
		INSERT INTO plaid_items (user_id, item_id, access_token, institution_id, institution_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			institution_name = EXCLUDED.institution_name
		RETURNING ` + plaidItemColumns

	var saved models.PlaidItem
	err := pool.QueryRow(ctx, query, item.UserID, item.ItemID, item.AccessToken, item.InstitutionID, item.InstitutionName).
		Scan(&saved.ID, &saved.UserID, &saved.AccessToken, &saved.ItemID, &saved.InstitutionID, &saved.InstitutionName, &saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func GetSyncCursor(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) (string, error) {
	query := `SELECT sync_cursor FROM plaid_items WHERE id = $1`
	var cursor string
	err := pool.QueryRow(ctx, query, id).Scan(&cursor)
	if err != nil {
		return "", err
	}
	return cursor, nil
}

// AdvanceSyncCursor moves the cursor from one value to the next. It reports false
// when the stored cursor is no longer from, so an older review cannot move it back.
func AdvanceSyncCursor(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, from, to string) (bool, error) {
	query := `UPDATE plaid_items SET sync_cursor = $1 WHERE id = $2 AND sync_cursor = $3`
	tag, err := pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

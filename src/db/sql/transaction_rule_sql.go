package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tallyhub-server/src/db"
	"tallyhub-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKeyword = errors.New("a rule with this keyword already exists")
)

const ruleColumns = `id, user_id, keyword, category, template, created_at, updated_at`

func scanRule(row pgx.Row) (*models.TransactionRule, error) {
	var r models.TransactionRule
	err := row.Scan(&r.ID, &r.UserID, &r.Keyword, &r.Category, &r.Template, &r.CreatedAt, &r.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NormalizeKeyword is how keywords are stored: trimmed and upper-cased.
func NormalizeKeyword(keyword string) string {
	return strings.ToUpper(strings.TrimSpace(keyword))
}

func CreateTransactionRule(ctx context.Context, pool *pgxpool.Pool, rule *models.TransactionRule) (*models.TransactionRule, error) {
	query := `
		INSERT INTO transaction_rules (user_id, keyword, category, template)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + ruleColumns
	r, err := scanRule(pool.QueryRow(ctx, query, rule.UserID, NormalizeKeyword(rule.Keyword), rule.Category, models.TemplateFor(rule.Category)))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateKeyword
	}
	if err != nil {
		return nil, err
	}
	db.DelRuleCache(rule.UserID)
	return r, nil
}

func GetTransactionRuleByID(ctx context.Context, pool *pgxpool.Pool, userID, ruleID uuid.UUID) (*models.TransactionRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM transaction_rules WHERE id = $1 AND user_id = $2`
	return scanRule(pool.QueryRow(ctx, query, ruleID, userID))
}

// GetAllTransactionRules lists a user's rules, served from the rule cache when warm.
func GetAllTransactionRules(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) ([]models.TransactionRule, error) {
	if rules, ok := db.GetRuleCache(userID); ok {
		return rules, nil
	}
	version := db.RuleCacheVersion(userID)

	query := `
		SELECT ` + ruleColumns + `
		FROM transaction_rules
		WHERE user_id = $1
		ORDER BY created_at, keyword
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.TransactionRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	db.SetRuleCache(userID, version, rules)
	return rules, nil
}

func UpdateTransactionRule(ctx context.Context, pool *pgxpool.Pool, rule *models.TransactionRule) (*models.TransactionRule, error) {
	query := `
		UPDATE transaction_rules
		SET keyword = $1, category = $2, template = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING ` + ruleColumns
	r, err := scanRule(pool.QueryRow(ctx, query, NormalizeKeyword(rule.Keyword), rule.Category, models.TemplateFor(rule.Category), rule.ID, rule.UserID))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateKeyword
	}
	if err != nil {
		return nil, err
	}
	db.DelRuleCache(rule.UserID)
	return r, nil
}

func DeleteTransactionRule(ctx context.Context, pool *pgxpool.Pool, userID, ruleID uuid.UUID) error {
	query := `DELETE FROM transaction_rules WHERE id = $1 AND user_id = $2`
	cmd, err := pool.Exec(ctx, query, ruleID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	db.DelRuleCache(userID)
	return nil
}

// InsertRulesIfAbsent adds rules in one round trip, leaving existing (user, keyword)
// pairs untouched. Returns the number of rules actually inserted.
func InsertRulesIfAbsent(ctx context.Context, pool *pgxpool.Pool, rules []models.TransactionRule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO transaction_rules (user_id, keyword, category, template)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, keyword) DO NOTHING
	`
	// a failed batch may still have inserted some rules
	defer func() {
		for _, u := range distinctUsers(rules) {
			db.DelRuleCache(u)
		}
	}()

	batch := &pgx.Batch{}
	for _, r := range rules {
		batch.Queue(query, r.UserID, NormalizeKeyword(r.Keyword), r.Category, models.TemplateFor(r.Category))
	}

	results := pool.SendBatch(ctx, batch)
	inserted := 0
	for range rules {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return inserted, fmt.Errorf("insert rule: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func distinctUsers(rules []models.TransactionRule) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, r := range rules {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	return out
}

// Package reconcile turns reviewed transactions into rules, ledger items and logs.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tallyhub-server/src/logger"
	"tallyhub-server/src/models"
	"tallyhub-server/src/split"
	"tallyhub-server/src/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNothingToCommit = errors.New("no transactions ready to import")

type Stage string

const (
	StageRules Stage = "rules"
	StageItems Stage = "items"
	StageLogs  Stage = "logs"
)

// StageError reports which persistence step failed. Item and log failures leave the
// ledger untouched.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type BlockedRow struct {
	Index    int    `json:"index"`
	Merchant string `json:"merchant"`
	Reason   string `json:"reason"`
}

type Result struct {
	Committed              int          `json:"committed"`
	Blocked                []BlockedRow `json:"blocked"`
	RulesSaved             int          `json:"rules_saved"`
	RuleError              string       `json:"rule_error,omitempty"`
	ItemsUpserted          int          `json:"items_upserted"`
	LogsCreated            int          `json:"logs_created"`
	LogsSkippedAsDuplicate int          `json:"logs_skipped_as_duplicate"`
}

// Entry is one ledger line: a whole transaction or one split of it.
type Entry struct {
	Name         string
	Category     models.Category
	Amount       decimal.Decimal
	Date         string
	Description  string
	BankCategory string
}

type Reconciler struct {
	store Store
}

func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Commit persists txns for userID: rules first, then items and logs in one transaction.
// Rows that fail validation are reported in Result.Blocked and skipped. A rule failure
// is recorded in Result.RuleError; an item or log failure is returned as *StageError.
func (r *Reconciler) Commit(ctx context.Context, userID uuid.UUID, txns []models.MappedTransaction) (*Result, error) {
	log := logger.FromContext(ctx)
	res := &Result{Blocked: []BlockedRow{}}

	ready := make([]models.MappedTransaction, 0, len(txns))
	for i, t := range txns {
		if reason := Validate(t); reason != "" {
			res.Blocked = append(res.Blocked, BlockedRow{Index: i, Merchant: t.Merchant, Reason: reason})
			continue
		}
		t.SetCategory(t.Category)
		ready = append(ready, t)
	}
	if len(ready) == 0 {
		return res, ErrNothingToCommit
	}

	if rules := RulesFor(userID, ready); len(rules) > 0 {
		saved, err := r.store.InsertRulesIfAbsent(ctx, rules)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to save import rules")
			res.RuleError = (&StageError{Stage: StageRules, Err: err}).Error()
		} else {
			res.RulesSaved = saved
		}
	}

	entries := Flatten(ready)
	err := r.store.InLedgerTx(ctx, func(l Ledger) error {
		items, byEntry := itemsFor(userID, entries)
		upserted, err := l.UpsertItems(ctx, items)
		if err != nil {
			return &StageError{Stage: StageItems, Err: err}
		}
		if len(upserted) != len(items) {
			return &StageError{Stage: StageItems, Err: fmt.Errorf("expected %d items, store returned %d", len(items), len(upserted))}
		}

		ids := make([]uuid.UUID, len(upserted))
		for i, it := range upserted {
			ids[i] = it.ID
		}
		existing, err := l.CountActualLogs(ctx, userID, ids)
		if err != nil {
			return &StageError{Stage: StageLogs, Err: err}
		}

		logs, skipped := newLogs(userID, entries, byEntry, ids, existing)
		created := 0
		if len(logs) > 0 {
			created, err = l.InsertLogs(ctx, logs)
			if err != nil {
				return &StageError{Stage: StageLogs, Err: err}
			}
		}

		res.ItemsUpserted = len(upserted)
		res.LogsCreated = created
		res.LogsSkippedAsDuplicate = skipped
		return nil
	})
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			err = &StageError{Stage: StageItems, Err: err}
		}
		res.ItemsUpserted, res.LogsCreated, res.LogsSkippedAsDuplicate = 0, 0, 0
		return res, err
	}

	res.Committed = len(ready)
	log.Info().
		Str("user_id", userID.String()).
		Int("committed", res.Committed).
		Int("blocked", len(res.Blocked)).
		Int("logs_created", res.LogsCreated).
		Int("logs_skipped", res.LogsSkippedAsDuplicate).
		Msg("Import committed")
	return res, nil
}

// Validate returns why t cannot be committed, or "" when it can.
func Validate(t models.MappedTransaction) string {
	if strings.TrimSpace(t.Merchant) == "" {
		return "merchant is empty"
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Sprintf("invalid date %q", t.Date)
	}
	if !t.Amount.IsPositive() {
		return "amount must be positive"
	}
	if !t.Category.Valid() {
		return fmt.Sprintf("unknown category %q", t.Category)
	}
	if !t.IsSplit() {
		return ""
	}
	if len(t.Splits) < split.MinSplits {
		return fmt.Sprintf("a split needs at least %d entries", split.MinSplits)
	}
	for i, s := range t.Splits {
		if !s.Category.Valid() {
			return fmt.Sprintf("split %d: unknown category %q", i+1, s.Category)
		}
		if !s.Amount.IsPositive() {
			return fmt.Sprintf("split %d: amount must be positive", i+1)
		}
	}
	if a := split.FromMapped(t); !a.Valid() {
		return fmt.Sprintf("splits are off by %s", a.Difference().StringFixed(2))
	}
	return ""
}

// Keyword is the rule keyword saved for a merchant: its first word, upper-cased.
func Keyword(merchant string) string {
	fields := strings.Fields(merchant)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// RulesFor builds one rule per distinct keyword among rows flagged SaveRule. The first
// flagged row for a keyword decides its category.
func RulesFor(userID uuid.UUID, txns []models.MappedTransaction) []models.TransactionRule {
	seen := make(map[string]struct{})
	var rules []models.TransactionRule
	for _, t := range txns {
		if !t.SaveRule {
			continue
		}
		kw := Keyword(t.Merchant)
		if util.ValidateKeyword(kw) != nil {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		rules = append(rules, models.TransactionRule{
			UserID:   userID,
			Keyword:  kw,
			Category: t.Category,
			Template: models.TemplateFor(t.Category),
		})
	}
	return rules
}

// Flatten expands split transactions into one entry per split, named so that the
// fragments never group with the unsplit merchant.
func Flatten(txns []models.MappedTransaction) []Entry {
	var out []Entry
	for _, t := range txns {
		if !t.IsSplit() {
			out = append(out, Entry{
				Name:         t.Merchant,
				Category:     t.Category,
				Amount:       t.Amount,
				Date:         t.Date,
				Description:  t.Description,
				BankCategory: t.BankCategory,
			})
			continue
		}
		n := len(t.Splits)
		for i, s := range t.Splits {
			out = append(out, Entry{
				Name:         fmt.Sprintf("%s (split %d/%d)", t.Merchant, i+1, n),
				Category:     s.Category,
				Amount:       s.Amount,
				Date:         t.Date,
				Description:  t.Description,
				BankCategory: t.BankCategory,
			})
		}
	}
	return out
}

// itemsFor collapses entries to one item per (category, name); the last entry wins the
// refreshed amount. byEntry maps each entry to its item index.
func itemsFor(userID uuid.UUID, entries []Entry) ([]models.Item, []int) {
	type key struct {
		category models.Category
		name     string
	}
	index := make(map[key]int)
	var items []models.Item
	byEntry := make([]int, len(entries))
	for i, e := range entries {
		k := key{e.Category, e.Name}
		it := models.Item{
			UserID:      userID,
			Category:    e.Category,
			Template:    models.TemplateFor(e.Category),
			Name:        e.Name,
			Description: e.Description,
			Amount:      e.Amount,
			Frequency:   models.FrequencyOneTime,
			IsActive:    true,
		}
		if j, ok := index[k]; ok {
			items[j] = it
			byEntry[i] = j
			continue
		}
		index[k] = len(items)
		byEntry[i] = len(items)
		items = append(items, it)
	}
	return items, byEntry
}

// newLogs drops as many entries per (item, date, amount) as the ledger already holds, so
// importing the same file twice adds nothing while repeated purchases in one file
// still count.
func newLogs(userID uuid.UUID, entries []Entry, byEntry []int, ids []uuid.UUID, existing map[models.LogKey]int) ([]models.Log, int) {
	remaining := make(map[models.LogKey]int, len(existing))
	for k, v := range existing {
		remaining[k] = v
	}

	var logs []models.Log
	skipped := 0
	for i, e := range entries {
		itemID := ids[byEntry[i]]
		k := models.NewLogKey(itemID, e.Date, e.Amount)
		if remaining[k] > 0 {
			remaining[k]--
			skipped++
			continue
		}
		logs = append(logs, models.Log{
			UserID:       userID,
			ItemID:       itemID,
			Date:         e.Date,
			ActualAmount: e.Amount,
			Notes:        Notes(e.BankCategory),
			IsPlanned:    false,
		})
	}
	return logs, skipped
}

func Notes(bankCategory string) string {
	if strings.TrimSpace(bankCategory) == "" {
		return "Imported"
	}
	return "Imported · bank category: " + bankCategory
}

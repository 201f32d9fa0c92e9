// Package importsession holds the review state of an import between upload and commit.
package importsession

import (
	"errors"
	"fmt"
	"time"

	"tallyhub-server/src/bankcsv"
	"tallyhub-server/src/categorize"
	"tallyhub-server/src/models"
	"tallyhub-server/src/split"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrRowOutOfRange = errors.New("row index out of range")

const (
	SourceCSV   = "csv"
	SourcePlaid = "plaid"
)

// Row is one reviewed transaction. Overridden rows keep their category on recategorize.
type Row struct {
	models.MappedTransaction
	Source     categorize.Source `json:"source"`
	Overridden bool              `json:"overridden"`
}

// PlaidSync is the cursor move a Plaid session makes once it is committed.
type PlaidSync struct {
	ItemID     uuid.UUID `json:"item_id"`
	FromCursor string    `json:"-"`
	NextCursor string    `json:"-"`
}

type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Origin    string     `json:"origin"`
	Filename  string     `json:"filename,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Rows      []Row      `json:"rows"`
	Skipped   int        `json:"skipped"`
	Errors    []string   `json:"errors"`
	Plaid     *PlaidSync `json:"plaid,omitempty"`

	engine *categorize.Engine
}

// New categorizes parsed transactions and opens a session for them.
func New(userID uuid.UUID, origin, filename string, parsed bankcsv.Result, engine *categorize.Engine) *Session {
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Origin:    origin,
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
		Rows:      make([]Row, len(parsed.Transactions)),
		Skipped:   parsed.Skipped,
		Errors:    parsed.Errors,
		engine:    engine,
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}
	for i, m := range engine.MapAll(parsed.Transactions) {
		s.Rows[i] = Row{MappedTransaction: m, Source: engine.Categorize(m.ParsedTransaction).Source}
	}
	return s
}

func (s *Session) clone() *Session {
	c := *s
	c.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		if r.Splits != nil {
			r.Splits = append([]models.TransactionSplit(nil), r.Splits...)
		}
		c.Rows[i] = r
	}
	c.Errors = append([]string(nil), s.Errors...)
	if s.Plaid != nil {
		p := *s.Plaid
		c.Plaid = &p
	}
	return &c
}

// Size approximates the bytes the session holds; it is the session's cache cost.
func (s *Session) Size() int64 {
	n := 256 + len(s.Filename) + len(s.Origin)
	for _, e := range s.Errors {
		n += 16 + len(e)
	}
	for _, r := range s.Rows {
		n += 192 + len(r.Date) + len(r.Merchant) + len(r.BankCategory) + len(r.Description) + len(r.Raw)
		n += 64 * len(r.Splits)
	}
	if s.engine != nil {
		n += 96 * len(s.engine.Rules())
	}
	return int64(n)
}

// KeepRows drops every row whose index is not listed, preserving order. It is used
// after a partial commit so only the rows that still need attention stay in review.
func (s *Session) KeepRows(indices []int) {
	keep := make(map[int]bool, len(indices))
	for _, i := range indices {
		keep[i] = true
	}
	rows := make([]Row, 0, len(indices))
	for i, r := range s.Rows {
		if keep[i] {
			rows = append(rows, r)
		}
	}
	s.Rows = rows
}

func (s *Session) row(i int) (*Row, error) {
	if i < 0 || i >= len(s.Rows) {
		return nil, ErrRowOutOfRange
	}
	return &s.Rows[i], nil
}

// SetCategory overrides the category of row i. Existing splits keep their own categories.
func (s *Session) SetCategory(i int, c models.Category) error {
	r, err := s.row(i)
	if err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("unknown category %q", c)
	}
	r.SetCategory(c)
	r.Overridden = true
	return nil
}

func (s *Session) SetSaveRule(i int, save bool) error {
	r, err := s.row(i)
	if err != nil {
		return err
	}
	r.SaveRule = save
	return nil
}

// EditSplit runs fn on the split allocation of row i and stores the result.
func (s *Session) EditSplit(i int, fn func(split.Allocation) (split.Allocation, error)) error {
	r, err := s.row(i)
	if err != nil {
		return err
	}
	a, err := fn(split.FromMapped(r.MappedTransaction))
	if err != nil {
		return err
	}
	r.MappedTransaction = a.Apply(r.MappedTransaction)
	return nil
}

func (s *Session) StartSplit(i int) error {
	return s.EditSplit(i, func(a split.Allocation) (split.Allocation, error) { return a.Start(), nil })
}

func (s *Session) AddSplit(i int) error {
	return s.EditSplit(i, split.Allocation.Add)
}

func (s *Session) RemoveSplit(i, j int) error {
	return s.EditSplit(i, func(a split.Allocation) (split.Allocation, error) { return a.Remove(j) })
}

// UpdateSplit changes the amount and/or category of split j; nil leaves a field as is.
func (s *Session) UpdateSplit(i, j int, amount *decimal.Decimal, c *models.Category) error {
	return s.EditSplit(i, func(a split.Allocation) (split.Allocation, error) {
		var err error
		if amount != nil {
			if a, err = a.UpdateAmount(j, *amount); err != nil {
				return a, err
			}
		}
		if c != nil {
			if a, err = a.UpdateCategory(j, *c); err != nil {
				return a, err
			}
		}
		return a, nil
	})
}

func (s *Session) CancelSplit(i int) error {
	return s.EditSplit(i, func(a split.Allocation) (split.Allocation, error) { return a.Cancel(), nil })
}

// Recategorize applies the engine again to rows the user has not overridden. Returns
// the number of rows whose category changed.
func (s *Session) Recategorize(engine *categorize.Engine) int {
	s.engine = engine
	changed := 0
	for i := range s.Rows {
		r := &s.Rows[i]
		if r.Overridden {
			continue
		}
		m := engine.Categorize(r.ParsedTransaction)
		if m.Category != r.Category {
			changed++
		}
		r.SetCategory(m.Category)
		r.Source = m.Source
	}
	return changed
}

func (s *Session) parsed() []models.ParsedTransaction {
	out := make([]models.ParsedTransaction, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.ParsedTransaction
	}
	return out
}

func (s *Session) Transactions() []models.MappedTransaction {
	out := make([]models.MappedTransaction, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.MappedTransaction
	}
	return out
}

type RowView struct {
	Index int `json:"index"`
	Row
	SplitValid bool            `json:"split_valid"`
	Difference decimal.Decimal `json:"difference"`
}

type View struct {
	ID       uuid.UUID        `json:"id"`
	Origin   string           `json:"origin"`
	Filename string           `json:"filename,omitempty"`
	Rows     []RowView        `json:"rows"`
	Stats    categorize.Stats `json:"stats"`
	Skipped  int              `json:"skipped"`
	Errors   []string         `json:"errors"`
	Ready    bool             `json:"ready"`
}

// View is the client-facing snapshot. Ready is false while any split is imbalanced or empty.
// Stats are recomputed from the parsed rows, so review overrides do not change them.
func (s *Session) View() View {
	engine := s.engine
	if engine == nil {
		engine = categorize.NewEngine(nil)
	}
	v := View{
		ID:       s.ID,
		Origin:   s.Origin,
		Filename: s.Filename,
		Rows:     make([]RowView, len(s.Rows)),
		Stats:    categorize.Summarize(engine, s.parsed()),
		Skipped:  s.Skipped,
		Errors:   s.Errors,
		Ready:    len(s.Rows) > 0,
	}
	for i, r := range s.Rows {
		a := split.FromMapped(r.MappedTransaction)
		rv := RowView{Index: i, Row: r, SplitValid: a.Valid()}
		if a.IsSplit() {
			rv.Difference = a.Difference()
		}
		if !rv.SplitValid {
			v.Ready = false
		}
		v.Rows[i] = rv
	}
	return v
}

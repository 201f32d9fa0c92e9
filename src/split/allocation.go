// Package split divides one transaction into category-tagged fragments.
package split

import (
	"errors"
	"fmt"

	"tallyhub-server/src/models"

	"github.com/shopspring/decimal"
)

// MinSplits is the smallest number of fragments a split transaction carries.
const MinSplits = 2

// Tolerance is the largest imbalance still treated as equal to the parent amount.
var Tolerance = decimal.RequireFromString("0.01")

var (
	ErrNotSplit        = errors.New("transaction is not split")
	ErrMinimumSplits   = fmt.Errorf("a split needs at least %d entries", MinSplits)
	ErrIndexOutOfRange = errors.New("split index out of range")
	ErrNegativeAmount  = errors.New("split amount cannot be negative")
)

// Allocation is either a single category for the whole amount or a list of at least two
// splits. Every method returns a new value and leaves the receiver untouched.
type Allocation struct {
	parent   decimal.Decimal
	category models.Category
	splits   []models.TransactionSplit
}

func Single(amount decimal.Decimal, c models.Category) Allocation {
	return Allocation{parent: amount, category: c}
}

func FromMapped(m models.MappedTransaction) Allocation {
	a := Single(m.Amount, m.Category)
	if len(m.Splits) > 0 {
		a.splits = cloneSplits(m.Splits)
	}
	return a
}

// Apply writes the allocation onto m. Templates are recomputed from categories.
func (a Allocation) Apply(m models.MappedTransaction) models.MappedTransaction {
	m.SetCategory(a.category)
	m.Splits = nil
	if a.IsSplit() {
		m.Splits = a.Splits()
	}
	return m
}

func (a Allocation) IsSplit() bool { return len(a.splits) > 0 }

func (a Allocation) Splits() []models.TransactionSplit { return cloneSplits(a.splits) }

// Start splits the amount into two halves that inherit the current category. The
// second half absorbs the odd cent so the halves always add up to the parent.
func (a Allocation) Start() Allocation {
	if a.IsSplit() {
		return a
	}
	first := a.parent.DivRound(decimal.NewFromInt(2), 2)
	second := a.parent.Sub(first)
	a.splits = []models.TransactionSplit{
		newSplit(first, a.category),
		newSplit(second, a.category),
	}
	return a
}

// Add appends a split pre-filled with whatever amount is still unallocated.
func (a Allocation) Add() (Allocation, error) {
	if !a.IsSplit() {
		return a, ErrNotSplit
	}
	remainder := a.Difference()
	if remainder.IsNegative() {
		remainder = decimal.Zero
	}
	splits := append(cloneSplits(a.splits), newSplit(remainder, a.category))
	a.splits = splits
	return a, nil
}

func (a Allocation) Remove(i int) (Allocation, error) {
	if !a.IsSplit() {
		return a, ErrNotSplit
	}
	if err := a.checkIndex(i); err != nil {
		return a, err
	}
	if len(a.splits) <= MinSplits {
		return a, ErrMinimumSplits
	}
	splits := make([]models.TransactionSplit, 0, len(a.splits)-1)
	splits = append(splits, a.splits[:i]...)
	splits = append(splits, a.splits[i+1:]...)
	a.splits = splits
	return a, nil
}

func (a Allocation) UpdateAmount(i int, amount decimal.Decimal) (Allocation, error) {
	if err := a.checkIndex(i); err != nil {
		return a, err
	}
	if amount.IsNegative() {
		return a, ErrNegativeAmount
	}
	splits := cloneSplits(a.splits)
	splits[i].Amount = amount
	a.splits = splits
	return a, nil
}

// UpdateCategory changes one split; the parent and sibling splits keep theirs.
func (a Allocation) UpdateCategory(i int, c models.Category) (Allocation, error) {
	if err := a.checkIndex(i); err != nil {
		return a, err
	}
	if !c.Valid() {
		return a, fmt.Errorf("unknown category %q", c)
	}
	splits := cloneSplits(a.splits)
	splits[i] = newSplit(splits[i].Amount, c)
	a.splits = splits
	return a, nil
}

// Cancel drops every split and restores the single-category assignment.
func (a Allocation) Cancel() Allocation {
	a.splits = nil
	return a
}

func (a Allocation) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range a.splits {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Difference is the parent amount minus the split total.
func (a Allocation) Difference() decimal.Decimal {
	return a.parent.Sub(a.Sum())
}

// Valid reports whether every split is positive and the splits add up to the parent
// amount. A single-category allocation is always valid.
func (a Allocation) Valid() bool {
	if !a.IsSplit() {
		return true
	}
	for _, s := range a.splits {
		if !s.Amount.IsPositive() {
			return false
		}
	}
	return len(a.splits) >= MinSplits && a.Difference().Abs().LessThan(Tolerance)
}

func (a Allocation) checkIndex(i int) error {
	if !a.IsSplit() {
		return ErrNotSplit
	}
	if i < 0 || i >= len(a.splits) {
		return ErrIndexOutOfRange
	}
	return nil
}

func newSplit(amount decimal.Decimal, c models.Category) models.TransactionSplit {
	return models.TransactionSplit{Amount: amount, Category: c, Template: models.TemplateFor(c)}
}

func cloneSplits(in []models.TransactionSplit) []models.TransactionSplit {
	if in == nil {
		return nil
	}
	out := make([]models.TransactionSplit, len(in))
	copy(out, in)
	return out
}

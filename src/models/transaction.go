package models

import "github.com/shopspring/decimal"

// ParsedTransaction is one accepted expense row from a bank export or sync.
type ParsedTransaction struct {
	Date         string          `json:"date"`
	Merchant     string          `json:"merchant"`
	Amount       decimal.Decimal `json:"amount"`
	BankCategory string          `json:"bank_category"`
	Description  string          `json:"description,omitempty"`
	Raw          string          `json:"raw,omitempty"`
}

type TransactionSplit struct {
	Amount   decimal.Decimal `json:"amount"`
	Category Category        `json:"category"`
	Template Template        `json:"template"`
}

// MappedTransaction is a parsed transaction with its category assignment. Splits is
// either nil or holds at least two entries.
type MappedTransaction struct {
	ParsedTransaction
	Category Category           `json:"category"`
	Template Template           `json:"template"`
	SaveRule bool               `json:"save_rule"`
	Splits   []TransactionSplit `json:"splits,omitempty"`
}

// SetCategory assigns c and recomputes the template so the two never diverge.
func (m *MappedTransaction) SetCategory(c Category) {
	m.Category = c
	m.Template = TemplateFor(c)
}

func (m MappedTransaction) IsSplit() bool {
	return len(m.Splits) > 0
}

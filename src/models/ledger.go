package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const FrequencyOneTime = "one-time"

// Item is a named expense within a category, unique per (user, category, name).
type Item struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Category    Category        `json:"category"`
	Template    Template        `json:"template"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   string          `json:"frequency"`
	IsActive    bool            `json:"is_active"`
}

type Log struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	Date         string          `json:"date"`
	ActualAmount decimal.Decimal `json:"actual_amount"`
	Notes        string          `json:"notes"`
	IsPlanned    bool            `json:"is_planned"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LogKey identifies actual logs that count as the same occurrence on re-import.
type LogKey struct {
	ItemID uuid.UUID
	Date   string
	Amount string
}

func NewLogKey(itemID uuid.UUID, date string, amount decimal.Decimal) LogKey {
	return LogKey{ItemID: itemID, Date: date, Amount: amount.StringFixed(2)}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionRule struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Keyword   string    `json:"keyword"`
	Category  Category  `json:"category"`
	Template  Template  `json:"template"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

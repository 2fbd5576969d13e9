package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered player. Username doubles as the display name.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"password,omitempty"`
	Balance  int64     `json:"balance"`
	IsAdmin  bool      `json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
}

// BalanceTransaction is one ledger row. Amount is signed: debits are negative.
type BalanceTransaction struct {
	ID           int64     `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

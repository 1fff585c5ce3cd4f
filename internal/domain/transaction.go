package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxBet   TransactionType = "bet"   // Stake debited at placement
	TxWin   TransactionType = "win"   // Payout credited at settlement
	TxAdmin TransactionType = "admin" // Balance override by an admin
)

// Transaction Model, append-only.
// Replaying a user's entries in ID order gives Balance[i] = Balance[i-1] + Amount[i].
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                       // Primary key, creation order
	UserID      uint            `gorm:"index;not null" json:"user_id"`              // Owner of the balance
	Type        TransactionType `gorm:"size:16;index;not null" json:"type"`         // bet, win or admin
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`  // Signed delta
	Balance     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"` // Balance after this entry
	Description string          `gorm:"size:255" json:"description"`                // Human readable reason
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`           // Timestamp of creation
}

// TransactionFilter narrows admin transaction listings
type TransactionFilter struct {
	UserID *uint
	Type   *TransactionType
	Limit  int
	Offset int
}

package domain

import (
	"betmaster/internal/svcerr" // Error taxonomy
	"fmt"
	"time"

	"github.com/shopspring/decimal" // Fixed-point money
)

// BetStatus moves Pending -> Won | Lost exactly once
type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// Terminal reports whether s is a settled status
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost
}

// Bet Model
type Bet struct {
	ID           uint                `gorm:"primaryKey" json:"id"`                                 // Primary key
	UserID       uint                `gorm:"index;not null" json:"user_id"`                        // Bettor
	RoundID      uint                `gorm:"index;not null" json:"round_id"`                       // Targeted round
	BetType      BetType             `gorm:"size:16;not null" json:"bet_type"`                     // number, color or size
	BetValue     string              `gorm:"size:16;not null" json:"bet_value"`                    // Selection within the type
	Amount       decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"amount"`            // Stake
	PotentialWin decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"potential_win"`     // Amount times multiplier, display only
	Status       BetStatus           `gorm:"size:16;index;not null;default:pending" json:"status"` // pending, won or lost
	Payout       decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"payout"`                     // Null while pending
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`                     // Placed at
	SettledAt    *time.Time          `json:"settled_at"`                                           // Judged at
}

// BetLimits bounds a single stake, inclusive
type BetLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultBetLimits matches the stake range offered by the game client
func DefaultBetLimits() BetLimits {
	return BetLimits{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(10000)}
}

// CheckAmount validates a stake against the limits.
// Stakes are whole minor units, at most two fractional digits.
func (l BetLimits) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", svcerr.ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", svcerr.ErrValidation, amount)
	}
	if amount.LessThan(l.Min) || amount.GreaterThan(l.Max) {
		return fmt.Errorf("%w: amount %s outside [%s, %s]", svcerr.ErrValidation, amount, l.Min, l.Max)
	}
	return nil
}

// NewBet validates the selection and stake and prices the bet server side
func NewBet(userID, roundID uint, betType BetType, betValue string, amount decimal.Decimal, limits BetLimits) (*Bet, error) {
	if err := ValidateSelection(betType, betValue); err != nil {
		return nil, err
	}
	if err := limits.CheckAmount(amount); err != nil {
		return nil, err
	}
	mult, err := Multiplier(betType, betValue)
	if err != nil {
		return nil, err
	}
	return &Bet{
		UserID:       userID,
		RoundID:      roundID,
		BetType:      betType,
		BetValue:     betValue,
		Amount:       amount,
		PotentialWin: amount.Mul(decimal.NewFromInt(mult)),
		Status:       BetPending,
	}, nil
}

// Describe renders the selection the way ledger descriptions name it
func (b *Bet) Describe() string {
	return fmt.Sprintf("%s: %s", b.BetType, b.BetValue)
}

// CheckTransition validates the target of the Pending transition: a terminal status, and a zero payout for losses
func CheckTransition(status BetStatus, payout decimal.Decimal) error {
	switch {
	case !status.Terminal():
		return fmt.Errorf("%w: %q is not a terminal bet status", svcerr.ErrValidation, status)
	case payout.IsNegative():
		return fmt.Errorf("%w: negative payout", svcerr.ErrValidation)
	case status == BetLost && !payout.IsZero():
		return fmt.Errorf("%w: lost bet with payout %s", svcerr.ErrValidation, payout)
	}
	return nil
}

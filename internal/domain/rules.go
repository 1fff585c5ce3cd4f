package domain

import (
	"betmaster/internal/svcerr" // Error taxonomy
	"fmt"
	"strconv"

	"github.com/shopspring/decimal" // Fixed-point money
)

// BetType names which property of the outcome a bet predicts
type BetType string

const (
	BetNumber BetType = "number"
	BetColor  BetType = "color"
	BetSize   BetType = "size"
)

// Color of a result number
type Color string

const (
	Green  Color = "green"
	Red    Color = "red"
	Violet Color = "violet"
)

// Size of a result number
type Size string

const (
	Small Size = "small"
	Big   Size = "big"
)

// Fixed house multipliers
const (
	numberMultiplier = 10
	colorMultiplier  = 2
	violetMultiplier = 3
	sizeMultiplier   = 2
)

// ResultColor derives the color of n: 0 green, 5 violet, otherwise even green and odd red
func ResultColor(n int) Color {
	switch {
	case n == 0:
		return Green
	case n == 5:
		return Violet
	case n%2 == 0:
		return Green
	default:
		return Red
	}
}

// ResultSize derives the size of n: below 5 small, otherwise big
func ResultSize(n int) Size {
	if n < 5 {
		return Small
	}
	return Big
}

// Outcome is a revealed result with its derived attributes.
// The zero value is not a valid outcome; use NewOutcome.
type Outcome struct {
	Number int
	Color  Color
	Size   Size
}

// NewOutcome derives color and size for a result in 0..9
func NewOutcome(n int) (Outcome, error) {
	if n < 0 || n > 9 {
		return Outcome{}, fmt.Errorf("%w: result %d outside 0..9", svcerr.ErrValidation, n)
	}
	return Outcome{Number: n, Color: ResultColor(n), Size: ResultSize(n)}, nil
}

// ValidateSelection checks that value is a legal choice for the bet type
func ValidateSelection(betType BetType, value string) error {
	switch betType {
	case BetNumber:
		if len(value) == 1 && value[0] >= '0' && value[0] <= '9' {
			return nil
		}
	case BetColor:
		switch Color(value) {
		case Green, Red, Violet:
			return nil
		}
	case BetSize:
		switch Size(value) {
		case Small, Big:
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown bet type %q", svcerr.ErrValidation, betType)
	}
	return fmt.Errorf("%w: %q is not a valid %s bet", svcerr.ErrValidation, value, betType)
}

// Multiplier returns the payout ratio for a winning selection
func Multiplier(betType BetType, value string) (int64, error) {
	if err := ValidateSelection(betType, value); err != nil {
		return 0, err
	}
	switch betType {
	case BetNumber:
		return numberMultiplier, nil
	case BetColor:
		if Color(value) == Violet {
			return violetMultiplier, nil
		}
		return colorMultiplier, nil
	default:
		return sizeMultiplier, nil
	}
}

// Matches reports whether the selection wins against the outcome
func Matches(betType BetType, value string, o Outcome) bool {
	switch betType {
	case BetNumber:
		return value == strconv.Itoa(o.Number)
	case BetColor:
		return Color(value) == o.Color
	case BetSize:
		return Size(value) == o.Size
	}
	return false
}

// Payout judges a bet against the outcome. Losing or malformed bets pay zero.
func Payout(b *Bet, o Outcome) (decimal.Decimal, bool) {
	if !Matches(b.BetType, b.BetValue, o) {
		return decimal.Zero, false
	}
	mult, err := Multiplier(b.BetType, b.BetValue)
	if err != nil {
		return decimal.Zero, false
	}
	return b.Amount.Mul(decimal.NewFromInt(mult)), true
}

// VerifyOutcome derives the outcome of n and checks it against claimed attributes.
// Empty claims are not checked; a claim that disagrees with the derivation is rejected.
func VerifyOutcome(n int, color Color, size Size) (Outcome, error) {
	o, err := NewOutcome(n)
	if err != nil {
		return Outcome{}, err
	}
	if color != "" && color != o.Color {
		return Outcome{}, fmt.Errorf("%w: result %d is %s, not %s", svcerr.ErrValidation, n, o.Color, color)
	}
	if size != "" && size != o.Size {
		return Outcome{}, fmt.Errorf("%w: result %d is %s, not %s", svcerr.ErrValidation, n, o.Size, size)
	}
	return o, nil
}

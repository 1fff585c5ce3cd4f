package events

import (
	"context"
	"time"

	"github.com/google/uuid"        // Event ids
	"github.com/shopspring/decimal" // Fixed-point money
)

// Type names what happened
type Type string

const (
	BetPlaced    Type = "bet.placed"
	BetSettled   Type = "bet.settled"
	RoundSettled Type = "round.settled"
)

// Event is one fact about money or rounds, published after its unit commits
type Event struct {
	ID          string           `json:"id"`
	Type        Type             `json:"type"`
	RoundNumber int64            `json:"round_number"`
	UserID      uint             `json:"user_id,omitempty"`
	BetID       uint             `json:"bet_id,omitempty"`
	Status      string           `json:"status,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Payout      *decimal.Decimal `json:"payout,omitempty"`
	Result      *int             `json:"result,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// New stamps an event with a fresh id and time
func New(t Type, roundNumber int64) Event {
	return Event{ID: uuid.NewString(), Type: t, RoundNumber: roundNumber, OccurredAt: time.Now().UTC()}
}

// Key partitions events so one user's history stays ordered
func (e Event) Key() string {
	if e.UserID != 0 {
		return "user-" + uintString(e.UserID)
	}
	return "round-" + int64String(e.RoundNumber)
}

// Publisher delivers events. Delivery is best effort; the database stays the source of truth.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event)
	Close()
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) {}
func (Nop) Close()                            {}

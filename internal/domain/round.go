package domain

import "time"

// RoundStatus is Open until an outcome is fixed, then Settled for good
type RoundStatus string

const (
	RoundOpen    RoundStatus = "open"
	RoundSettled RoundStatus = "settled"
)

// Round Model
type Round struct {
	ID          uint        `gorm:"primaryKey" json:"id"`                              // Primary key
	RoundNumber int64       `gorm:"uniqueIndex;not null" json:"round_number"`          // Sequence number shown to users
	Status      RoundStatus `gorm:"size:16;index;not null;default:open" json:"status"` // open or settled
	Result      *int        `json:"result"`                                            // 0-9, nil while open
	ResultColor Color       `gorm:"size:16" json:"result_color,omitempty"`             // Derived from Result
	ResultSize  Size        `gorm:"size:16" json:"result_size,omitempty"`              // Derived from Result
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`                  // Opened at
	EndedAt     *time.Time  `json:"ended_at"`                                          // Settled at
}

// IsOpen reports whether bets may still be placed
func (r *Round) IsOpen() bool {
	return r.Status == RoundOpen
}

// Settle fixes the outcome on an open round.
// Color and size come only from the Outcome, so they always agree with the result.
func (r *Round) Settle(o Outcome, at time.Time) {
	n := o.Number
	r.Status = RoundSettled
	r.Result = &n
	r.ResultColor = o.Color
	r.ResultSize = o.Size
	r.EndedAt = &at
}

// Outcome returns the settled outcome, false while the round is open
func (r *Round) Outcome() (Outcome, bool) {
	if r.Result == nil {
		return Outcome{}, false
	}
	o, err := NewOutcome(*r.Result)
	if err != nil {
		return Outcome{}, false
	}
	return o, true
}

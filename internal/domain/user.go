package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatus gates whether a user may place bets
type UserStatus string

const (
	UserActive  UserStatus = "active"  // May place bets
	UserPending UserStatus = "pending" // Registered, awaiting review
	UserBanned  UserStatus = "banned"  // Rejected by placement
)

// Valid reports whether s is a known status
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserPending, UserBanned:
		return true
	}
	return false
}

// User Model
type User struct {
	ID       uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	Username string          `gorm:"uniqueIndex;size:64;not null" json:"username"`         // Unique username
	Password string          `gorm:"not null" json:"-"`                                    // Hashed password
	Email    string          `gorm:"size:255;not null" json:"email"`                       // Contact email
	Balance  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"` // Current balance, never negative
	Status   UserStatus      `gorm:"size:16;not null;default:active" json:"status"`        // active, pending or banned
	IsAdmin  bool            `gorm:"not null;default:false" json:"is_admin"`               // Settlement and user management capability
	JoinedAt time.Time       `gorm:"autoCreateTime" json:"joined_at"`                      // Registration time
}

package storage

import (
	"betmaster/internal/domain"
	"context"

	"github.com/shopspring/decimal"
)

// Users is the account side of persistence.
type Users interface {
	// CreateUser inserts a user; a taken username fails with svcerr.ErrConflict.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	// GetUser returns the user; inside Store.Atomic the row stays locked until the unit ends.
	GetUser(ctx context.Context, id uint) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUserStatus(ctx context.Context, id uint, status domain.UserStatus) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Ledger owns balances and the append-only transaction log.
type Ledger interface {
	GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error)
	// AdjustBalance applies delta and appends one transaction row in the same unit.
	// A result below zero fails with svcerr.ErrInsufficientFunds and writes nothing.
	AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal, txType domain.TransactionType, description string) (decimal.Decimal, uint, error)
	// SetBalance overrides the balance and records the difference as an admin transaction.
	SetBalance(ctx context.Context, userID uint, balance decimal.Decimal, description string) (*domain.User, uint, error)
	// TransactionsForUser returns entries in creation order.
	TransactionsForUser(ctx context.Context, userID uint) ([]domain.Transaction, error)
	// ListTransactions returns entries newest first.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error)
}

// Rounds stores rounds keyed by round number.
type Rounds interface {
	// CreateRound opens a round; an existing number fails with svcerr.ErrConflict.
	CreateRound(ctx context.Context, roundNumber int64) (*domain.Round, error)
	GetRound(ctx context.Context, id uint) (*domain.Round, error)
	GetRoundByNumber(ctx context.Context, roundNumber int64) (*domain.Round, error)
	// SettleRound moves Open to Settled as a single compare-and-swap.
	// Losing the race, or a round already settled, fails with svcerr.ErrAlreadySettled.
	SettleRound(ctx context.Context, id uint, outcome domain.Outcome) (*domain.Round, error)
	// LatestRounds returns up to limit rounds, highest round number first.
	LatestRounds(ctx context.Context, limit int) ([]domain.Round, error)
}

// Bets stores wagers and their single status transition.
type Bets interface {
	// CreateBet validates and inserts a pending bet.
	CreateBet(ctx context.Context, bet *domain.Bet) (*domain.Bet, error)
	// BetsForRound returns bets of the round, all of them when status is empty.
	BetsForRound(ctx context.Context, roundID uint, status domain.BetStatus) ([]domain.Bet, error)
	// BetsForUser returns the user's bets, most recent first.
	BetsForUser(ctx context.Context, userID uint) ([]domain.Bet, error)
	// UpdateBetStatus moves a pending bet to won or lost.
	// A bet that is not pending fails with svcerr.ErrInvalidTransition.
	UpdateBetStatus(ctx context.Context, id uint, status domain.BetStatus, payout decimal.Decimal) (*domain.Bet, error)
	// PendingRoundIDs lists rounds that still hold pending bets.
	PendingRoundIDs(ctx context.Context) ([]uint, error)
}

// Repos is everything a unit of work can touch.
type Repos interface {
	Users
	Ledger
	Rounds
	Bets
}

// Store is a Repos with atomic units of work.
type Store interface {
	Repos
	// Atomic runs fn so that either every write made through r commits or none does.
	Atomic(ctx context.Context, fn func(r Repos) error) error
}

package gormdb

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal" // Fixed-point money
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // Row locking clauses
)

// Store is the durable backend on top of GORM (MySQL or Postgres in production)
type Store struct {
	*repo
}

// New wraps an open connection. limits are enforced again on every inserted bet.
func New(db *gorm.DB, limits domain.BetLimits) *Store {
	return &Store{repo: &repo{db: db, limits: limits}}
}

var _ storage.Store = (*Store)(nil)

// Atomic runs fn inside one database transaction
func (s *Store) Atomic(ctx context.Context, fn func(r storage.Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repo{db: tx, limits: s.limits, inTx: true})
	})
}

type repo struct {
	db     *gorm.DB
	limits domain.BetLimits
	inTx   bool // Reads take row locks only inside Atomic
}

// write runs fn in the caller's transaction, or a fresh one outside Atomic
func (r *repo) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.inTx {
		return fn(r.db.WithContext(ctx))
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func forShare(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "SHARE"})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, svcerr.ErrNotFound)...)
	}
	return err
}

func (r *repo) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: negative opening balance", svcerr.ErrValidation)
	}
	u := *user
	u.ID = 0
	if u.Status == "" {
		u.Status = domain.UserActive
	}
	err := r.write(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("username = ?", u.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("username %q: %w", u.Username, svcerr.ErrConflict)
		}
		return tx.Create(&u).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("username %q: %w", u.Username, svcerr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	q := r.db.WithContext(ctx)
	if r.inTx {
		q = forUpdate(q)
	}
	var u domain.User
	if err := q.First(&u, id).Error; err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &u, nil
}

func (r *repo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "username %q", username)
	}
	return &u, nil
}

func (r *repo) UpdateUserStatus(ctx context.Context, id uint, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", svcerr.ErrValidation, status)
	}
	var u domain.User
	err := r.write(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&u, id).Error; err != nil {
			return notFound(err, "user %d", id)
		}
		u.Status = status
		return tx.Model(&u).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Select("id", "balance").First(&u, userID).Error; err != nil {
		return decimal.Zero, notFound(err, "user %d", userID)
	}
	return u.Balance, nil
}

func (r *repo) AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal, txType domain.TransactionType, description string) (decimal.Decimal, uint, error) {
	var next decimal.Decimal
	var txID uint
	err := r.write(ctx, func(tx *gorm.DB) error {
		var u domain.User
		if err := forUpdate(tx).First(&u, userID).Error; err != nil { // Single writer per user
			return notFound(err, "user %d", userID)
		}
		next = u.Balance.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("user %d balance %s, delta %s: %w", userID, u.Balance, delta, svcerr.ErrInsufficientFunds)
		}
		if err := tx.Model(&u).Update("balance", next).Error; err != nil {
			return err
		}
		t := domain.Transaction{UserID: userID, Type: txType, Amount: delta, Balance: next, Description: description}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		txID = t.ID
		return nil
	})
	if err != nil {
		return decimal.Zero, 0, err
	}
	return next, txID, nil
}

func (r *repo) SetBalance(ctx context.Context, userID uint, balance decimal.Decimal, description string) (*domain.User, uint, error) {
	if balance.IsNegative() {
		return nil, 0, fmt.Errorf("%w: balance must not be negative", svcerr.ErrValidation)
	}
	var u domain.User
	var txID uint
	err := r.write(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&u, userID).Error; err != nil {
			return notFound(err, "user %d", userID)
		}
		delta := balance.Sub(u.Balance)
		if err := tx.Model(&u).Update("balance", balance).Error; err != nil {
			return err
		}
		u.Balance = balance
		t := domain.Transaction{UserID: userID, Type: domain.TxAdmin, Amount: delta, Balance: balance, Description: description}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		txID = t.ID
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &u, txID, nil
}

func (r *repo) TransactionsForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	if _, err := r.GetBalance(ctx, userID); err != nil {
		return nil, err
	}
	var txs []domain.Transaction
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Transaction{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	q = q.Session(&gorm.Session{}) // Shared by count and page queries
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("id desc")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	txs := []domain.Transaction{}
	if err := q.Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *repo) CreateRound(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	if roundNumber <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", svcerr.ErrValidation)
	}
	rd := domain.Round{RoundNumber: roundNumber, Status: domain.RoundOpen}
	err := r.write(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Round{}).Where("round_number = ?", roundNumber).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("round #%d: %w", roundNumber, svcerr.ErrConflict)
		}
		return tx.Create(&rd).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("round #%d: %w", roundNumber, svcerr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

// GetRound inside Atomic holds a share lock, so a concurrent settle waits for the placing unit
func (r *repo) GetRound(ctx context.Context, id uint) (*domain.Round, error) {
	q := r.db.WithContext(ctx)
	if r.inTx {
		q = forShare(q)
	}
	var rd domain.Round
	if err := q.First(&rd, id).Error; err != nil {
		return nil, notFound(err, "round id %d", id)
	}
	return &rd, nil
}

func (r *repo) GetRoundByNumber(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	var rd domain.Round
	if err := r.db.WithContext(ctx).Where("round_number = ?", roundNumber).First(&rd).Error; err != nil {
		return nil, notFound(err, "round #%d", roundNumber)
	}
	return &rd, nil
}

func (r *repo) SettleRound(ctx context.Context, id uint, outcome domain.Outcome) (*domain.Round, error) {
	var rd domain.Round
	err := r.write(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&rd, id).Error; err != nil {
			return notFound(err, "round id %d", id)
		}
		rd.Settle(outcome, time.Now())
		res := tx.Model(&domain.Round{}).
			Where("id = ? AND status = ?", id, domain.RoundOpen). // Compare-and-swap on status
			Updates(map[string]any{
				"status":       rd.Status,
				"result":       *rd.Result,
				"result_color": rd.ResultColor,
				"result_size":  rd.ResultSize,
				"ended_at":     *rd.EndedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("round #%d: %w", rd.RoundNumber, svcerr.ErrAlreadySettled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *repo) LatestRounds(ctx context.Context, limit int) ([]domain.Round, error) {
	rounds := []domain.Round{}
	if limit <= 0 {
		return rounds, nil
	}
	if err := r.db.WithContext(ctx).Order("round_number desc").Limit(limit).Find(&rounds).Error; err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *repo) CreateBet(ctx context.Context, bet *domain.Bet) (*domain.Bet, error) {
	priced, err := domain.NewBet(bet.UserID, bet.RoundID, bet.BetType, bet.BetValue, bet.Amount, r.limits)
	if err != nil {
		return nil, err
	}
	err = r.write(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("id = ?", priced.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %d: %w", priced.UserID, svcerr.ErrNotFound)
		}
		if err := tx.Model(&domain.Round{}).Where("id = ?", priced.RoundID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("round id %d: %w", priced.RoundID, svcerr.ErrNotFound)
		}
		return tx.Create(priced).Error
	})
	if err != nil {
		return nil, err
	}
	return priced, nil
}

func (r *repo) BetsForRound(ctx context.Context, roundID uint, status domain.BetStatus) ([]domain.Bet, error) {
	q := r.db.WithContext(ctx).Where("round_id = ?", roundID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var bets []domain.Bet
	if err := q.Order("id").Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *repo) BetsForUser(ctx context.Context, userID uint) ([]domain.Bet, error) {
	var bets []domain.Bet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *repo) UpdateBetStatus(ctx context.Context, id uint, status domain.BetStatus, payout decimal.Decimal) (*domain.Bet, error) {
	if err := domain.CheckTransition(status, payout); err != nil {
		return nil, err
	}
	var b domain.Bet
	err := r.write(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&domain.Bet{}).
			Where("id = ? AND status = ?", id, domain.BetPending). // Exactly one transition per bet
			Updates(map[string]any{"status": status, "payout": payout, "settled_at": now})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "bet %d", id)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bet %d is %s: %w", id, b.Status, svcerr.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) PendingRoundIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.Bet{}).
		Where("status = ?", domain.BetPending).
		Distinct("round_id").
		Order("round_id").
		Pluck("round_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

package account

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"betmaster/internal/utils"   // JWT and cache helpers
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"golang.org/x/crypto/bcrypt"    // Password hashing
)

// AdminAdjustment is the ledger description of a balance override
const AdminAdjustment = "Balance adjusted by admin"

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,31}$`)

// Options configure registration and tokens
type Options struct {
	InitialBalance decimal.Decimal // Credited on registration
	JWTSecret      string
	TokenTTL       time.Duration
	CacheTTL       time.Duration
}

// Service owns users, credentials and the admin side of balances
type Service struct {
	store storage.Store
	rdb   *redis.Client // nil disables caching
	opts  Options
}

// NewService wires the account service
func NewService(store storage.Store, opts Options, rdb *redis.Client) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	return &Service{store: store, rdb: rdb, opts: opts}
}

// normalizeUsername lowercases so that usernames are unique regardless of case
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func checkCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be 3-32 letters, digits or underscores, starting with a letter", svcerr.ErrValidation)
	}
	if len(password) < 8 || len(password) > 72 {
		return fmt.Errorf("%w: password must be 8-72 characters", svcerr.ErrValidation)
	}
	return nil
}

// Register creates an active player funded with the opening balance
func (s *Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return s.create(ctx, username, email, password, s.opts.InitialBalance, false)
}

// CreateAdmin creates an administrator. An existing admin with that name is returned untouched
// with created false, so seeding can run repeatedly. A player holding the name is ErrConflict.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string, balance decimal.Decimal) (user *domain.User, created bool, err error) {
	user, err = s.create(ctx, username, email, password, balance, true)
	if errors.Is(err, svcerr.ErrConflict) {
		user, err = s.store.GetUserByUsername(ctx, normalizeUsername(username))
		if err != nil {
			return nil, false, err
		}
		if !user.IsAdmin {
			return nil, false, fmt.Errorf("username %q belongs to a player: %w", user.Username, svcerr.ErrConflict)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) create(ctx context.Context, username, email, password string, balance decimal.Decimal, admin bool) (*domain.User, error) {
	username = normalizeUsername(username)
	if err := checkCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, &domain.User{
		Username: username,
		Password: string(hash),
		Email:    strings.TrimSpace(email),
		Balance:  balance,
		Status:   domain.UserActive,
		IsAdmin:  admin,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"balance":  user.Balance.String(),
		"is_admin": user.IsAdmin,
	}).Info("User registered")
	return user, nil
}

// Authenticate checks credentials and issues a bearer token. Banned users cannot sign in.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, svcerr.ErrNotFound) {
		return "", nil, fmt.Errorf("user %q: %w", username, svcerr.ErrUnauthorized)
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("user %q: %w", username, svcerr.ErrUnauthorized)
	}
	if user.Status == domain.UserBanned {
		return "", nil, fmt.Errorf("user %q is banned: %w", username, svcerr.ErrForbidden)
	}
	token, err := utils.GenerateJWT(user.ID, s.opts.JWTSecret, s.opts.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// Me returns the caller's profile
func (s *Service) Me(ctx context.Context, userID uint) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// IsAdmin re-reads the flag so that revoking it takes effect on the next request
func (s *Service) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// ListUsers returns every user by id
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// ListTransactions returns one page of the global ledger, newest first, with the total match count
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	if filter.Type != nil {
		switch *filter.Type {
		case domain.TxBet, domain.TxWin, domain.TxAdmin:
		default:
			return nil, 0, fmt.Errorf("%w: unknown transaction type %q", svcerr.ErrValidation, *filter.Type)
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative paging", svcerr.ErrValidation)
	}
	return s.store.ListTransactions(ctx, filter)
}

// TransactionsForUser returns a user's ledger in creation order
func (s *Service) TransactionsForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	key := utils.UserTransactionsKey(userID)
	return utils.ReadThrough(ctx, s.rdb, key, utils.VersionKey(key), s.opts.CacheTTL,
		func(ctx context.Context) ([]domain.Transaction, error) {
			txs, err := s.store.TransactionsForUser(ctx, userID)
			if txs == nil && err == nil {
				txs = []domain.Transaction{}
			}
			return txs, err
		})
}

// AdminSetBalance overrides a balance; the ledger records the difference as an admin entry
func (s *Service) AdminSetBalance(ctx context.Context, adminID, userID uint, balance decimal.Decimal) (*domain.User, error) {
	if !balance.Equal(balance.Round(2)) {
		return nil, fmt.Errorf("%w: balance %s has more than two decimal places", svcerr.ErrValidation, balance)
	}
	user, txID, err := s.store.SetBalance(ctx, userID, balance, AdminAdjustment)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"admin_id": adminID,
			"user_id":  userID,
			"balance":  balance.String(),
			"error":    err.Error(),
		}).Warn("Balance override rejected")
		return nil, err
	}
	s.invalidate(ctx, userID)
	logrus.WithFields(logrus.Fields{
		"admin_id":       adminID,
		"user_id":        userID,
		"balance":        user.Balance.String(),
		"transaction_id": txID,
	}).Info("Balance adjusted by admin")
	return user, nil
}

// AdminSetStatus changes whether a user may play
func (s *Service) AdminSetStatus(ctx context.Context, adminID, userID uint, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", svcerr.ErrValidation, status)
	}
	user, err := s.store.UpdateUserStatus(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"status":   status,
	}).Info("User status changed")
	return user, nil
}

func (s *Service) invalidate(ctx context.Context, userID uint) {
	key := utils.UserTransactionsKey(userID)
	if err := utils.BumpCacheVersion(ctx, s.rdb, utils.VersionKey(key)); err != nil {
		logrus.WithError(err).Warn("failed to bump user cache version")
	}
	if err := utils.DeleteCache(ctx, s.rdb, key); err != nil {
		logrus.WithError(err).Warn("failed to invalidate user cache")
	}
}

package memory

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal" // Fixed-point money
)

// Store keeps everything in process memory. One mutex serializes every read and write,
// which gives the same per-user and per-round ordering the SQL backend gets from row locks.
type Store struct {
	mu     sync.Mutex
	st     *state
	limits domain.BetLimits
}

type state struct {
	users     map[uint]*domain.User
	rounds    map[uint]*domain.Round
	bets      map[uint]*domain.Bet
	txs       []domain.Transaction // ID is index+1
	nextUser  uint
	nextRound uint
	nextBet   uint
}

// New creates an empty store enforcing the given stake limits
func New(limits domain.BetLimits) *Store {
	return &Store{
		st: &state{
			users:  make(map[uint]*domain.User),
			rounds: make(map[uint]*domain.Round),
			bets:   make(map[uint]*domain.Bet),
		},
		limits: limits,
	}
}

var _ storage.Store = (*Store)(nil)

// Atomic holds the store lock for the whole unit and replays the undo journal if fn fails
func (s *Store) Atomic(ctx context.Context, fn func(r storage.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var journal []func()
	r := &repo{st: s.st, limits: s.limits, journal: &journal}
	if err := fn(r); err != nil {
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
		return err
	}
	return nil
}

// locked runs a single operation under the store lock
func (s *Store) locked() (*repo, func()) {
	s.mu.Lock()
	return &repo{st: s.st, limits: s.limits}, s.mu.Unlock
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateUser(ctx, user)
}

func (s *Store) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetUserByUsername(ctx, username)
}

func (s *Store) UpdateUserStatus(ctx context.Context, id uint, status domain.UserStatus) (*domain.User, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.UpdateUserStatus(ctx, id, status)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListUsers(ctx)
}

func (s *Store) GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetBalance(ctx, userID)
}

func (s *Store) AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal, txType domain.TransactionType, description string) (decimal.Decimal, uint, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.AdjustBalance(ctx, userID, delta, txType, description)
}

func (s *Store) SetBalance(ctx context.Context, userID uint, balance decimal.Decimal, description string) (*domain.User, uint, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.SetBalance(ctx, userID, balance, description)
}

func (s *Store) TransactionsForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.TransactionsForUser(ctx, userID)
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListTransactions(ctx, filter)
}

func (s *Store) CreateRound(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateRound(ctx, roundNumber)
}

func (s *Store) GetRound(ctx context.Context, id uint) (*domain.Round, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetRound(ctx, id)
}

func (s *Store) GetRoundByNumber(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetRoundByNumber(ctx, roundNumber)
}

func (s *Store) SettleRound(ctx context.Context, id uint, outcome domain.Outcome) (*domain.Round, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.SettleRound(ctx, id, outcome)
}

func (s *Store) LatestRounds(ctx context.Context, limit int) ([]domain.Round, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.LatestRounds(ctx, limit)
}

func (s *Store) CreateBet(ctx context.Context, bet *domain.Bet) (*domain.Bet, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateBet(ctx, bet)
}

func (s *Store) BetsForRound(ctx context.Context, roundID uint, status domain.BetStatus) ([]domain.Bet, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.BetsForRound(ctx, roundID, status)
}

func (s *Store) BetsForUser(ctx context.Context, userID uint) ([]domain.Bet, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.BetsForUser(ctx, userID)
}

func (s *Store) UpdateBetStatus(ctx context.Context, id uint, status domain.BetStatus, payout decimal.Decimal) (*domain.Bet, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.UpdateBetStatus(ctx, id, status, payout)
}

func (s *Store) PendingRoundIDs(ctx context.Context) ([]uint, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.PendingRoundIDs(ctx)
}

// repo works on the state with the lock already held.
// journal is nil outside Atomic, where single operations cannot fail half way.
type repo struct {
	st      *state
	limits  domain.BetLimits
	journal *[]func()
}

func (r *repo) onRollback(f func()) {
	if r.journal != nil {
		*r.journal = append(*r.journal, f)
	}
}

func (r *repo) user(id uint) (*domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, svcerr.ErrNotFound)
	}
	return u, nil
}

func (r *repo) round(id uint) (*domain.Round, error) {
	rd, ok := r.st.rounds[id]
	if !ok {
		return nil, fmt.Errorf("round id %d: %w", id, svcerr.ErrNotFound)
	}
	return rd, nil
}

func (r *repo) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.st.users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("username %q: %w", user.Username, svcerr.ErrConflict)
		}
	}
	if user.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: negative opening balance", svcerr.ErrValidation)
	}
	r.st.nextUser++
	u := *user
	u.ID = r.st.nextUser
	if u.Status == "" {
		u.Status = domain.UserActive
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = time.Now()
	}
	r.st.users[u.ID] = &u
	r.onRollback(func() { delete(r.st.users, u.ID) })
	out := u
	return &out, nil
}

func (r *repo) GetUser(_ context.Context, id uint) (*domain.User, error) {
	u, err := r.user(id)
	if err != nil {
		return nil, err
	}
	out := *u
	return &out, nil
}

func (r *repo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.st.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("username %q: %w", username, svcerr.ErrNotFound)
}

func (r *repo) UpdateUserStatus(_ context.Context, id uint, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", svcerr.ErrValidation, status)
	}
	u, err := r.user(id)
	if err != nil {
		return nil, err
	}
	prev := u.Status
	u.Status = status
	r.onRollback(func() { u.Status = prev })
	out := *u
	return &out, nil
}

func (r *repo) ListUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *repo) GetBalance(_ context.Context, userID uint) (decimal.Decimal, error) {
	u, err := r.user(userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

func (r *repo) appendTx(userID uint, txType domain.TransactionType, amount, balance decimal.Decimal, description string) uint {
	id := uint(len(r.st.txs) + 1)
	r.st.txs = append(r.st.txs, domain.Transaction{
		ID:          id,
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Balance:     balance,
		Description: description,
		CreatedAt:   time.Now(),
	})
	r.onRollback(func() { r.st.txs = r.st.txs[:id-1] })
	return id
}

func (r *repo) AdjustBalance(_ context.Context, userID uint, delta decimal.Decimal, txType domain.TransactionType, description string) (decimal.Decimal, uint, error) {
	u, err := r.user(userID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, 0, fmt.Errorf("user %d balance %s, delta %s: %w", userID, u.Balance, delta, svcerr.ErrInsufficientFunds)
	}
	prev := u.Balance
	u.Balance = next
	r.onRollback(func() { u.Balance = prev })
	return next, r.appendTx(userID, txType, delta, next, description), nil
}

func (r *repo) SetBalance(_ context.Context, userID uint, balance decimal.Decimal, description string) (*domain.User, uint, error) {
	if balance.IsNegative() {
		return nil, 0, fmt.Errorf("%w: balance must not be negative", svcerr.ErrValidation)
	}
	u, err := r.user(userID)
	if err != nil {
		return nil, 0, err
	}
	prev := u.Balance
	u.Balance = balance
	r.onRollback(func() { u.Balance = prev })
	txID := r.appendTx(userID, domain.TxAdmin, balance.Sub(prev), balance, description)
	out := *u
	return &out, txID, nil
}

func (r *repo) TransactionsForUser(_ context.Context, userID uint) ([]domain.Transaction, error) {
	if _, err := r.user(userID); err != nil {
		return nil, err
	}
	var txs []domain.Transaction
	for _, t := range r.st.txs {
		if t.UserID == userID {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (r *repo) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	var matched []domain.Transaction
	for i := len(r.st.txs) - 1; i >= 0; i-- {
		t := r.st.txs[i]
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		matched = append(matched, t)
	}
	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.Transaction{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *repo) CreateRound(_ context.Context, roundNumber int64) (*domain.Round, error) {
	if roundNumber <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", svcerr.ErrValidation)
	}
	for _, rd := range r.st.rounds {
		if rd.RoundNumber == roundNumber {
			return nil, fmt.Errorf("round #%d: %w", roundNumber, svcerr.ErrConflict)
		}
	}
	r.st.nextRound++
	rd := &domain.Round{
		ID:          r.st.nextRound,
		RoundNumber: roundNumber,
		Status:      domain.RoundOpen,
		CreatedAt:   time.Now(),
	}
	r.st.rounds[rd.ID] = rd
	r.onRollback(func() { delete(r.st.rounds, rd.ID) })
	out := *rd
	return &out, nil
}

func (r *repo) GetRound(_ context.Context, id uint) (*domain.Round, error) {
	rd, err := r.round(id)
	if err != nil {
		return nil, err
	}
	out := *rd
	return &out, nil
}

func (r *repo) GetRoundByNumber(_ context.Context, roundNumber int64) (*domain.Round, error) {
	for _, rd := range r.st.rounds {
		if rd.RoundNumber == roundNumber {
			out := *rd
			return &out, nil
		}
	}
	return nil, fmt.Errorf("round #%d: %w", roundNumber, svcerr.ErrNotFound)
}

func (r *repo) SettleRound(_ context.Context, id uint, outcome domain.Outcome) (*domain.Round, error) {
	rd, err := r.round(id)
	if err != nil {
		return nil, err
	}
	if !rd.IsOpen() {
		return nil, fmt.Errorf("round #%d: %w", rd.RoundNumber, svcerr.ErrAlreadySettled)
	}
	prev := *rd
	rd.Settle(outcome, time.Now())
	r.onRollback(func() { *rd = prev })
	out := *rd
	return &out, nil
}

func (r *repo) LatestRounds(_ context.Context, limit int) ([]domain.Round, error) {
	rounds := make([]domain.Round, 0, len(r.st.rounds))
	for _, rd := range r.st.rounds {
		rounds = append(rounds, *rd)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber > rounds[j].RoundNumber })
	if limit < 0 {
		limit = 0
	}
	if limit < len(rounds) {
		rounds = rounds[:limit]
	}
	return rounds, nil
}

func (r *repo) CreateBet(_ context.Context, bet *domain.Bet) (*domain.Bet, error) {
	priced, err := domain.NewBet(bet.UserID, bet.RoundID, bet.BetType, bet.BetValue, bet.Amount, r.limits)
	if err != nil {
		return nil, err
	}
	if _, err := r.user(bet.UserID); err != nil {
		return nil, err
	}
	if _, err := r.round(bet.RoundID); err != nil {
		return nil, err
	}
	r.st.nextBet++
	priced.ID = r.st.nextBet
	priced.CreatedAt = time.Now()
	r.st.bets[priced.ID] = priced
	r.onRollback(func() { delete(r.st.bets, priced.ID) })
	out := *priced
	return &out, nil
}

func (r *repo) BetsForRound(_ context.Context, roundID uint, status domain.BetStatus) ([]domain.Bet, error) {
	var bets []domain.Bet
	for _, b := range r.st.bets {
		if b.RoundID != roundID || (status != "" && b.Status != status) {
			continue
		}
		bets = append(bets, *b)
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID < bets[j].ID })
	return bets, nil
}

func (r *repo) BetsForUser(_ context.Context, userID uint) ([]domain.Bet, error) {
	var bets []domain.Bet
	for _, b := range r.st.bets {
		if b.UserID == userID {
			bets = append(bets, *b)
		}
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID > bets[j].ID })
	return bets, nil
}

func (r *repo) UpdateBetStatus(_ context.Context, id uint, status domain.BetStatus, payout decimal.Decimal) (*domain.Bet, error) {
	if err := domain.CheckTransition(status, payout); err != nil {
		return nil, err
	}
	b, ok := r.st.bets[id]
	if !ok {
		return nil, fmt.Errorf("bet %d: %w", id, svcerr.ErrNotFound)
	}
	if b.Status != domain.BetPending {
		return nil, fmt.Errorf("bet %d is %s: %w", id, b.Status, svcerr.ErrInvalidTransition)
	}
	prev := *b
	now := time.Now()
	b.Status = status
	b.Payout = decimal.NewNullDecimal(payout)
	b.SettledAt = &now
	r.onRollback(func() { *b = prev })
	out := *b
	return &out, nil
}

func (r *repo) PendingRoundIDs(_ context.Context) ([]uint, error) {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, b := range r.st.bets {
		if b.Status != domain.BetPending {
			continue
		}
		if _, ok := seen[b.RoundID]; !ok {
			seen[b.RoundID] = struct{}{}
			ids = append(ids, b.RoundID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

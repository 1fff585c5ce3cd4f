package game

import (
	"betmaster/internal/domain"
	"betmaster/internal/events"
	"betmaster/internal/storage"
	"betmaster/internal/storage/memory"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) Publish(_ context.Context, evts ...events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evts = append(r.evts, evts...)
}

func (r *recorder) Close() {}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.evts {
		if e.Type == t {
			n++
		}
	}
	return n
}

// flakyStore fails one chosen Atomic call, the way a dropped connection would
type flakyStore struct {
	*memory.Store
	mu     sync.Mutex
	calls  int
	failOn int
}

var errConnReset = errors.New("connection reset by peer")

func (f *flakyStore) Atomic(ctx context.Context, fn func(r storage.Repos) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failOn
	f.mu.Unlock()
	if fail {
		return errConnReset
	}
	return f.Store.Atomic(ctx, fn)
}

// failAfter makes the n-th Atomic call from now fail
func (f *flakyStore) failAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = f.calls + n
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recorder) {
	t.Helper()
	store := memory.New(domain.DefaultBetLimits())
	rec := &recorder{}
	return NewService(store, DefaultOptions(), rec, nil), store, rec
}

func addUser(t *testing.T, store storage.Store, name string, balance int64) *domain.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), &domain.User{
		Username: name,
		Email:    name + "@example.com",
		Balance:  decimal.NewFromInt(balance),
		Status:   domain.UserActive,
	})
	require.NoError(t, err)
	return u
}

func openRound(t *testing.T, svc *Service, n int64) *domain.Round {
	t.Helper()
	rd, err := svc.OpenRound(context.Background(), n)
	require.NoError(t, err)
	return rd
}

func balanceOf(t *testing.T, store storage.Store, userID uint) decimal.Decimal {
	t.Helper()
	bal, err := store.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return bal
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// assertConserved checks balance == opening + sum of the user's ledger entries
func assertConserved(t *testing.T, store storage.Store, userID uint, opening decimal.Decimal) {
	t.Helper()
	txs, err := store.TransactionsForUser(context.Background(), userID)
	require.NoError(t, err)
	sum := opening
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
		require.True(t, sum.Equal(tx.Balance), "snapshot of tx %d is %s, replay gives %s", tx.ID, tx.Balance, sum)
	}
	require.True(t, sum.Equal(balanceOf(t, store, userID)), "replayed %s", sum)
}

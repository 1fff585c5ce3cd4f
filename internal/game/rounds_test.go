package game

import (
	"betmaster/internal/domain"
	"betmaster/internal/storage/memory"
	"betmaster/internal/svcerr"
	"betmaster/internal/utils"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureOpenRound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, created, err := svc.EnsureOpenRound(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 28365, first.RoundNumber)

	again, created, err := svc.EnsureOpenRound(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, err = svc.SettleRound(ctx, first.RoundNumber, 6)
	require.NoError(t, err)

	next, created, err := svc.EnsureOpenRound(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 28366, next.RoundNumber)
	assert.True(t, next.IsOpen())
}

func TestOpenRoundConflict(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	openRound(t, svc, 9)

	_, err := svc.OpenRound(ctx, 9)
	assert.ErrorIs(t, err, svcerr.ErrConflict)
	_, err = svc.RoundByNumber(ctx, 0)
	assert.ErrorIs(t, err, svcerr.ErrValidation)
}

func TestLatestRounds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	for n := int64(1); n <= 7; n++ {
		openRound(t, svc, n)
	}

	rounds, err := svc.LatestRounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rounds, 5)
	assert.EqualValues(t, 7, rounds[0].RoundNumber)
	assert.EqualValues(t, 3, rounds[4].RoundNumber)

	rounds, err = svc.LatestRounds(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.EqualValues(t, 6, rounds[1].RoundNumber)
}

func TestCachedReadsAreInvalidated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.New(domain.DefaultBetLimits())
	svc := NewService(store, DefaultOptions(), nil, rdb)
	u := addUser(t, store, "erin", 1000)
	rd := openRound(t, svc, 1)

	rounds, err := svc.LatestRounds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.True(t, mr.Exists(utils.LatestRoundsKey(5)))

	bets, err := svc.BetsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, bets)
	assert.True(t, mr.Exists(utils.UserBetsKey(u.ID)))

	_, _, err = svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetNumber, "1", dec("10"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.UserBetsKey(u.ID)))

	bets, err = svc.BetsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, bets, 1)

	_, err = svc.SettleRound(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.LatestRoundsKey(5)))
	assert.False(t, mr.Exists(utils.UserBetsKey(u.ID)))

	rounds, err = svc.LatestRounds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, domain.RoundSettled, rounds[0].Status)

	bets, err = svc.BetsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, domain.BetWon, bets[0].Status)
}

// staleBets runs a write between reading a user's bets and returning them
type staleBets struct {
	*memory.Store
	during func()
}

func (s *staleBets) BetsForUser(ctx context.Context, userID uint) ([]domain.Bet, error) {
	bets, err := s.Store.BetsForUser(ctx, userID)
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return bets, err
}

func TestBetsCacheSkipsReadOverlappingPlacement(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &staleBets{Store: memory.New(domain.DefaultBetLimits())}
	svc := NewService(store, DefaultOptions(), nil, rdb)
	u := addUser(t, store, "kate", 1000)
	rd := openRound(t, svc, 1)

	store.during = func() {
		_, _, err := svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetSize, "big", dec("10"))
		require.NoError(t, err)
	}
	bets, err := svc.BetsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, bets)
	assert.False(t, mr.Exists(utils.UserBetsKey(u.ID)))

	bets, err = svc.BetsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, bets, 1)
}

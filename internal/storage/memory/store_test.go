package memory

import (
	"betmaster/internal/domain"
	"betmaster/internal/storage"
	"betmaster/internal/svcerr"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, s *Store, name string, balance int64) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &domain.User{
		Username: name,
		Email:    name + "@example.com",
		Balance:  decimal.NewFromInt(balance),
	})
	require.NoError(t, err)
	return u
}

func TestAtomicRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "alice", 100)
	rd, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Atomic(ctx, func(r storage.Repos) error {
		bet, err := r.CreateBet(ctx, &domain.Bet{UserID: u.ID, RoundID: rd.ID, BetType: domain.BetNumber, BetValue: "3", Amount: decimal.NewFromInt(50)})
		require.NoError(t, err)
		_, _, err = r.AdjustBalance(ctx, u.ID, bet.Amount.Neg(), domain.TxBet, "stake")
		require.NoError(t, err)
		_, err = r.SettleRound(ctx, rd.ID, mustOutcome(t, 3))
		require.NoError(t, err)
		_, err = r.UpdateUserStatus(ctx, u.ID, domain.UserBanned)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)))

	txs, err := s.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	bets, err := s.BetsForRound(ctx, rd.ID, "")
	require.NoError(t, err)
	assert.Empty(t, bets)

	got, err := s.GetRound(ctx, rd.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	assert.Nil(t, got.Result)

	user, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserActive, user.Status)
}

func mustOutcome(t *testing.T, n int) domain.Outcome {
	t.Helper()
	o, err := domain.NewOutcome(n)
	require.NoError(t, err)
	return o
}

func TestAdjustBalance(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "bob", 100)

	bal, txID, err := s.AdjustBalance(ctx, u.ID, decimal.NewFromInt(-40), domain.TxBet, "stake")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(60)))
	assert.NotZero(t, txID)

	_, _, err = s.AdjustBalance(ctx, u.ID, decimal.NewFromInt(-61), domain.TxBet, "too much")
	assert.True(t, svcerr.IsInsufficientFunds(err))

	_, _, err = s.AdjustBalance(ctx, 999, decimal.NewFromInt(1), domain.TxWin, "ghost")
	assert.True(t, svcerr.IsNotFound(err))

	txs, err := s.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(-40)))
	assert.True(t, txs[0].Balance.Equal(decimal.NewFromInt(60)))
}

func TestSetBalanceRecordsDifference(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "carol", 1000)

	user, _, err := s.SetBalance(ctx, u.ID, decimal.NewFromInt(250), "Balance adjusted by admin")
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(250)))

	_, _, err = s.SetBalance(ctx, u.ID, decimal.NewFromInt(-1), "nope")
	assert.True(t, svcerr.IsValidation(err))

	txs, err := s.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxAdmin, txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(-750)))
	assert.True(t, txs[0].Balance.Equal(decimal.NewFromInt(250)))
}

func TestUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	newUser(t, s, "dave", 0)

	_, err := s.CreateUser(ctx, &domain.User{Username: "dave"})
	assert.ErrorIs(t, err, svcerr.ErrConflict)

	_, err = s.CreateRound(ctx, 28365)
	require.NoError(t, err)
	_, err = s.CreateRound(ctx, 28365)
	assert.ErrorIs(t, err, svcerr.ErrConflict)
}

func TestSettleRoundOnce(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	rd, err := s.CreateRound(ctx, 7)
	require.NoError(t, err)

	settled, err := s.SettleRound(ctx, rd.ID, mustOutcome(t, 5))
	require.NoError(t, err)
	assert.Equal(t, domain.RoundSettled, settled.Status)
	assert.Equal(t, domain.Violet, settled.ResultColor)
	require.NotNil(t, settled.EndedAt)

	_, err = s.SettleRound(ctx, rd.ID, mustOutcome(t, 1))
	assert.True(t, svcerr.IsAlreadySettled(err))

	got, err := s.GetRoundByNumber(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.Result)
}

func TestBetTransitionOnce(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "erin", 100)
	rd, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	bet, err := s.CreateBet(ctx, &domain.Bet{UserID: u.ID, RoundID: rd.ID, BetType: domain.BetColor, BetValue: "red", Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.Equal(t, domain.BetPending, bet.Status)
	assert.True(t, bet.PotentialWin.Equal(decimal.NewFromInt(40)))

	ids, err := s.PendingRoundIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{rd.ID}, ids)

	_, err = s.UpdateBetStatus(ctx, bet.ID, domain.BetLost, decimal.NewFromInt(5))
	assert.True(t, svcerr.IsValidation(err))

	won, err := s.UpdateBetStatus(ctx, bet.ID, domain.BetWon, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, domain.BetWon, won.Status)
	assert.True(t, won.Payout.Valid)

	_, err = s.UpdateBetStatus(ctx, bet.ID, domain.BetLost, decimal.Zero)
	assert.ErrorIs(t, err, svcerr.ErrInvalidTransition)

	ids, err = s.PendingRoundIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateBetValidates(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "frank", 100)
	rd, err := s.CreateRound(ctx, 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		bet  domain.Bet
		want error
	}{
		{"below minimum", domain.Bet{UserID: u.ID, RoundID: rd.ID, BetType: domain.BetNumber, BetValue: "1", Amount: decimal.NewFromInt(5)}, svcerr.ErrValidation},
		{"bad selection", domain.Bet{UserID: u.ID, RoundID: rd.ID, BetType: domain.BetSize, BetValue: "huge", Amount: decimal.NewFromInt(10)}, svcerr.ErrValidation},
		{"unknown round", domain.Bet{UserID: u.ID, RoundID: 42, BetType: domain.BetSize, BetValue: "big", Amount: decimal.NewFromInt(10)}, svcerr.ErrNotFound},
		{"unknown user", domain.Bet{UserID: 42, RoundID: rd.ID, BetType: domain.BetSize, BetValue: "big", Amount: decimal.NewFromInt(10)}, svcerr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bet := tt.bet
			_, err := s.CreateBet(ctx, &bet)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListTransactionsFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	a := newUser(t, s, "gina", 100)
	b := newUser(t, s, "hank", 100)

	for i := 0; i < 3; i++ {
		_, _, err := s.AdjustBalance(ctx, a.ID, decimal.NewFromInt(-10), domain.TxBet, "stake")
		require.NoError(t, err)
	}
	_, _, err := s.AdjustBalance(ctx, b.ID, decimal.NewFromInt(15), domain.TxWin, "win")
	require.NoError(t, err)

	all, total, err := s.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, b.ID, all[0].UserID)

	txType := domain.TxBet
	page, total, err := s.ListTransactions(ctx, domain.TransactionFilter{UserID: &a.ID, Type: &txType, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)
}

func TestLatestRounds(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	for _, n := range []int64{5, 9, 7, 1} {
		_, err := s.CreateRound(ctx, n)
		require.NoError(t, err)
	}

	rounds, err := s.LatestRounds(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.Equal(t, []int64{9, 7, 5}, []int64{rounds[0].RoundNumber, rounds[1].RoundNumber, rounds[2].RoundNumber})
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultBetLimits())
	u := newUser(t, s, "ivy", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomic(ctx, func(r storage.Repos) error {
				_, _, err := r.AdjustBalance(ctx, u.ID, decimal.NewFromInt(-30), domain.TxBet, "stake")
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	bal, err := s.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}

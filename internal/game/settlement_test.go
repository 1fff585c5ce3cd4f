package game

import (
	"betmaster/internal/domain"
	"betmaster/internal/events"
	"betmaster/internal/storage/memory"
	"betmaster/internal/svcerr"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEndRedWins(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	u := addUser(t, store, "alice", 1000)
	rd := openRound(t, svc, 1)

	bet, balance, err := svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetColor, "red", dec("100"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("900")))

	st, err := svc.SettleRound(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundSettled, st.Round.Status)
	assert.Equal(t, domain.Red, st.Round.ResultColor)
	assert.Equal(t, domain.Small, st.Round.ResultSize)
	require.Len(t, st.Outcomes, 1)
	assert.Equal(t, bet.ID, st.Outcomes[0].BetID)
	assert.Equal(t, domain.BetWon, st.Outcomes[0].Status)
	assert.True(t, st.Outcomes[0].Payout.Equal(dec("200")))

	assert.True(t, balanceOf(t, store, u.ID).Equal(dec("1100")))
	txs, err := store.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxWin, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(dec("200")))
	assert.Equal(t, "Won bet on round #1 - color: red", txs[1].Description)
	assertConserved(t, store, u.ID, dec("1000"))
}

func TestSettlementPayouts(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t)
	rd := openRound(t, svc, 28365)

	tests := []struct {
		name     string
		betType  domain.BetType
		betValue string
		amount   string
		status   domain.BetStatus
		payout   string
	}{
		{"number hit", domain.BetNumber, "5", "100", domain.BetWon, "1000"},
		{"violet hit", domain.BetColor, "violet", "50", domain.BetWon, "150"},
		{"size miss", domain.BetSize, "small", "20", domain.BetLost, "0"},
		{"number miss", domain.BetNumber, "3", "10", domain.BetLost, "0"},
	}
	bets := make(map[uint]int)
	for i, tt := range tests {
		u := addUser(t, store, tt.name, 1000)
		bet, _, err := svc.PlaceBet(ctx, u.ID, rd.ID, tt.betType, tt.betValue, dec(tt.amount))
		require.NoError(t, err)
		bets[bet.ID] = i
	}

	st, err := svc.SettleRound(ctx, 28365, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Violet, st.Round.ResultColor)
	assert.Equal(t, domain.Big, st.Round.ResultSize)
	assert.Equal(t, 2, st.Won)
	assert.Equal(t, 2, st.Lost)
	assert.True(t, st.TotalPayout.Equal(dec("1150")))

	for _, o := range st.Outcomes {
		tt := tests[bets[o.BetID]]
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, o.Status)
			assert.True(t, o.Payout.Equal(dec(tt.payout)), "payout %s", o.Payout)
			assertConserved(t, store, o.UserID, dec("1000"))
		})
	}

	stored, err := store.BetsForRound(ctx, rd.ID, "")
	require.NoError(t, err)
	for _, b := range stored {
		assert.True(t, b.Status.Terminal())
		assert.True(t, b.Payout.Valid)
		assert.NotNil(t, b.SettledAt)
	}
	assert.Equal(t, 1, rec.count(events.RoundSettled))
	assert.Equal(t, 4, rec.count(events.BetSettled))
}

func TestSettleRoundTwice(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	u := addUser(t, store, "bob", 1000)
	rd := openRound(t, svc, 7)
	_, _, err := svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetNumber, "7", dec("10"))
	require.NoError(t, err)

	_, err = svc.SettleRound(ctx, 7, 7)
	require.NoError(t, err)
	before, err := store.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)

	_, err = svc.SettleRound(ctx, 7, 7)
	assert.ErrorIs(t, err, svcerr.ErrAlreadySettled)
	_, err = svc.SettleRound(ctx, 7, 2)
	assert.ErrorIs(t, err, svcerr.ErrAlreadySettled)

	after, err := store.TransactionsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, balanceOf(t, store, u.ID).Equal(dec("1090")))

	got, err := svc.RoundByNumber(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, *got.Result)
}

func TestSettleUnregisteredRound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	st, err := svc.SettleRound(ctx, 42, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), st.Round.RoundNumber)
	assert.Equal(t, domain.RoundSettled, st.Round.Status)
	assert.Equal(t, domain.Green, st.Round.ResultColor)
	assert.Empty(t, st.Outcomes)
	assert.True(t, st.TotalPayout.IsZero())
}

func TestSettleRoundValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tests := []struct {
		name        string
		roundNumber int64
		result      int
	}{
		{"result above 9", 1, 10},
		{"negative result", 1, -1},
		{"zero round number", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SettleRound(ctx, tt.roundNumber, tt.result)
			assert.ErrorIs(t, err, svcerr.ErrValidation)
		})
	}
}

func TestConcurrentSettlementPaysOnce(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	u := addUser(t, store, "carol", 1000)
	rd := openRound(t, svc, 3)
	_, _, err := svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetSize, "big", dec("100"))
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.SettleRound(ctx, 3, 8)
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, svcerr.ErrAlreadySettled)
	}
	assert.Equal(t, 1, ok)
	assert.True(t, balanceOf(t, store, u.ID).Equal(dec("1100")))
	assertConserved(t, store, u.ID, dec("1000"))
}

func TestConcurrentSettlementOfUnregisteredRound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SettleRound(ctx, 500, 1)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, svcerr.ErrAlreadySettled)
	}
	assert.Equal(t, 1, ok)
}

func TestResumeAfterInterruptedSweep(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(domain.DefaultBetLimits())}
	svc := NewService(store, DefaultOptions(), nil, nil)
	rd := openRound(t, svc, 10)

	users := make([]*domain.User, 3)
	for i := range users {
		users[i] = addUser(t, store, "u"+string(rune('a'+i)), 100)
		_, _, err := svc.PlaceBet(ctx, users[i].ID, rd.ID, domain.BetColor, "green", dec("10"))
		require.NoError(t, err)
	}

	// Round switch succeeds, first bet settles, the second unit dies
	store.failAfter(3)
	st, err := svc.SettleRound(ctx, 10, 2)
	require.ErrorIs(t, err, errConnReset)
	require.NotNil(t, st)
	assert.Len(t, st.Outcomes, 1)

	pending, err := store.BetsForRound(ctx, rd.ID, domain.BetPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// The round itself is closed for good
	_, err = svc.SettleRound(ctx, 10, 2)
	assert.ErrorIs(t, err, svcerr.ErrAlreadySettled)

	st, err = svc.ResumeRound(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, st.Outcomes, 2)

	st, err = svc.ResumeRound(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, st.Outcomes)

	for _, u := range users {
		assert.True(t, balanceOf(t, store, u.ID).Equal(dec("110")))
		assertConserved(t, store, u.ID, dec("100"))
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(domain.DefaultBetLimits())}
	svc := NewService(store, DefaultOptions(), nil, nil)
	settled := openRound(t, svc, 1)
	open := openRound(t, svc, 2)
	u := addUser(t, store, "dave", 1000)

	for _, rd := range []*domain.Round{settled, settled, open} {
		_, _, err := svc.PlaceBet(ctx, u.ID, rd.ID, domain.BetNumber, "4", dec("10"))
		require.NoError(t, err)
	}

	store.failAfter(2) // First bet of round 1 fails straight away
	_, err := svc.SettleRound(ctx, 1, 4)
	require.ErrorIs(t, err, errConnReset)

	n, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The open round keeps its pending bet
	pending, err := store.BetsForRound(ctx, open.ID, domain.BetPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.True(t, balanceOf(t, store, u.ID).Equal(dec("1170")))
	assertConserved(t, store, u.ID, dec("1000"))
}

func TestResumeOpenRound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	openRound(t, svc, 5)

	_, err := svc.ResumeRound(ctx, 5)
	assert.ErrorIs(t, err, svcerr.ErrConflict)
	_, err = svc.ResumeRound(ctx, 6)
	assert.ErrorIs(t, err, svcerr.ErrNotFound)
}

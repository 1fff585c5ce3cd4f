package game

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/events"  // Event publishing
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
)

// BetOutcome is the verdict on one bet
type BetOutcome struct {
	BetID         uint             `json:"bet_id"`
	UserID        uint             `json:"user_id"`
	BetType       domain.BetType   `json:"bet_type"`
	BetValue      string           `json:"bet_value"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        domain.BetStatus `json:"status"`
	Payout        decimal.Decimal  `json:"payout"`
	TransactionID uint             `json:"transaction_id,omitempty"` // Win credit, zero for losses
}

// Settlement summarizes one sweep over a round's pending bets
type Settlement struct {
	Round       *domain.Round   `json:"round"`
	Outcomes    []BetOutcome    `json:"outcomes"`
	Won         int             `json:"won"`
	Lost        int             `json:"lost"`
	TotalPayout decimal.Decimal `json:"total_payout"`
}

func newSettlement(round *domain.Round) *Settlement {
	return &Settlement{Round: round, Outcomes: []BetOutcome{}, TotalPayout: decimal.Zero}
}

func (st *Settlement) add(o BetOutcome) {
	st.Outcomes = append(st.Outcomes, o)
	if o.Status == domain.BetWon {
		st.Won++
		st.TotalPayout = st.TotalPayout.Add(o.Payout)
	} else {
		st.Lost++
	}
}

// SettleRound fixes the outcome of roundNumber and pays every pending bet on it.
// A round nobody opened is created already settled. The Open to Settled switch happens once;
// any later call fails with svcerr.ErrAlreadySettled and moves no money.
func (s *Service) SettleRound(ctx context.Context, roundNumber int64, result int) (*Settlement, error) {
	if roundNumber <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", svcerr.ErrValidation)
	}
	outcome, err := domain.NewOutcome(result)
	if err != nil {
		return nil, err
	}

	var round *domain.Round
	for attempt := 0; attempt < 2; attempt++ {
		round, err = s.closeRound(ctx, roundNumber, outcome)
		if !errors.Is(err, svcerr.ErrConflict) { // Conflict means a concurrent caller created the round
			break
		}
	}
	if err != nil {
		entry := logrus.WithFields(logrus.Fields{
			"round_number": roundNumber,
			"result":       result,
			"error":        err.Error(),
		})
		if svcerr.IsBusiness(err) {
			entry.Warn("Settlement rejected")
		} else {
			entry.Error("Settlement failed")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"round_number": round.RoundNumber,
		"result":       outcome.Number,
		"color":        outcome.Color,
		"size":         outcome.Size,
	}).Info("Round settled")
	s.invalidateRounds(ctx)

	evt := events.New(events.RoundSettled, round.RoundNumber)
	evt.Result = round.Result
	s.pub.Publish(ctx, evt)

	return s.sweep(ctx, round, outcome)
}

// closeRound resolves or creates the round and switches it to Settled in one unit
func (s *Service) closeRound(ctx context.Context, roundNumber int64, outcome domain.Outcome) (*domain.Round, error) {
	var round *domain.Round
	err := s.store.Atomic(ctx, func(r storage.Repos) error {
		existing, err := r.GetRoundByNumber(ctx, roundNumber)
		if errors.Is(err, svcerr.ErrNotFound) {
			existing, err = r.CreateRound(ctx, roundNumber)
		}
		if err != nil {
			return err
		}
		round, err = r.SettleRound(ctx, existing.ID, outcome)
		return err
	})
	return round, err
}

// ResumeRound pays the bets of a settled round that are still pending, as after a crash mid sweep.
// Running it on a fully swept round is a no-op.
func (s *Service) ResumeRound(ctx context.Context, roundNumber int64) (*Settlement, error) {
	round, err := s.store.GetRoundByNumber(ctx, roundNumber)
	if err != nil {
		return nil, err
	}
	outcome, ok := round.Outcome()
	if round.IsOpen() || !ok {
		return nil, fmt.Errorf("round #%d is not settled: %w", roundNumber, svcerr.ErrConflict)
	}
	return s.sweep(ctx, round, outcome)
}

// Reconcile resumes every settled round that still holds pending bets and returns how many bets it settled
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.store.PendingRoundIDs(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		round, err := s.store.GetRound(ctx, id)
		if err != nil {
			return settled, err
		}
		outcome, ok := round.Outcome()
		if round.IsOpen() || !ok {
			continue // Still taking bets
		}
		st, err := s.sweep(ctx, round, outcome)
		if st != nil {
			settled += len(st.Outcomes)
		}
		if err != nil {
			return settled, err
		}
	}
	if settled > 0 {
		logrus.WithField("bets", settled).Warn("Reconciled bets left pending by an interrupted settlement")
	}
	return settled, nil
}

// sweep settles the round's pending bets one unit each.
// It stops at the first infrastructure error; what is left stays pending for ResumeRound.
func (s *Service) sweep(ctx context.Context, round *domain.Round, outcome domain.Outcome) (*Settlement, error) {
	st := newSettlement(round)
	bets, err := s.store.BetsForRound(ctx, round.ID, domain.BetPending)
	if err != nil {
		return st, err
	}

	var (
		evts     []events.Event
		users    []uint
		sweepErr error
	)
	for i := range bets {
		o, err := s.settleBet(ctx, round, &bets[i], outcome)
		if errors.Is(err, svcerr.ErrInvalidTransition) {
			continue // Settled by a concurrent sweep
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"round_number": round.RoundNumber,
				"bet_id":       bets[i].ID,
				"error":        err.Error(),
			}).Error("Bet settlement failed")
			sweepErr = fmt.Errorf("settle bet %d: %w", bets[i].ID, err)
			break
		}
		st.add(o)
		users = append(users, o.UserID)

		evt := events.New(events.BetSettled, round.RoundNumber)
		evt.UserID = o.UserID
		evt.BetID = o.BetID
		evt.Status = string(o.Status)
		evt.Amount = &bets[i].Amount
		payout := o.Payout
		evt.Payout = &payout
		evts = append(evts, evt)
	}

	s.invalidateUser(ctx, users...)
	s.pub.Publish(ctx, evts...)
	if sweepErr != nil {
		return st, sweepErr
	}

	logrus.WithFields(logrus.Fields{
		"round_number": round.RoundNumber,
		"won":          st.Won,
		"lost":         st.Lost,
		"total_payout": st.TotalPayout.String(),
	}).Info("Round swept")
	return st, nil
}

// settleBet judges one bet; the status switch and the win credit commit together
func (s *Service) settleBet(ctx context.Context, round *domain.Round, bet *domain.Bet, outcome domain.Outcome) (BetOutcome, error) {
	payout, won := domain.Payout(bet, outcome)
	status := domain.BetLost
	if won {
		status = domain.BetWon
	}
	o := BetOutcome{
		BetID:    bet.ID,
		UserID:   bet.UserID,
		BetType:  bet.BetType,
		BetValue: bet.BetValue,
		Amount:   bet.Amount,
		Status:   status,
		Payout:   payout,
	}
	var balance decimal.Decimal
	err := s.store.Atomic(ctx, func(r storage.Repos) error {
		if _, err := r.UpdateBetStatus(ctx, bet.ID, status, payout); err != nil {
			return err
		}
		if !won {
			return nil
		}
		desc := fmt.Sprintf("Won bet on round #%d - %s", round.RoundNumber, bet.Describe())
		var err error
		balance, o.TransactionID, err = r.AdjustBalance(ctx, bet.UserID, payout, domain.TxWin, desc)
		return err
	})
	if err == nil && won {
		logrus.WithFields(logrus.Fields{
			"user_id":      bet.UserID,
			"bet_id":       bet.ID,
			"round_number": round.RoundNumber,
			"payout":       payout.String(),
			"balance":      balance.String(),
		}).Info("Win credited")
	}
	return o, err
}

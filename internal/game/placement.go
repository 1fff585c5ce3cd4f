package game

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/events"  // Event publishing
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"context"
	"fmt"

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
)

// PlaceBet stakes amount on a selection in an open round.
// The bet insert and the debit commit together; potential win is always priced here.
func (s *Service) PlaceBet(ctx context.Context, userID, roundID uint, betType domain.BetType, betValue string, amount decimal.Decimal) (*domain.Bet, decimal.Decimal, error) {
	draft, err := domain.NewBet(userID, roundID, betType, betValue, amount, s.opts.Limits)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var (
		bet     *domain.Bet
		round   *domain.Round
		balance decimal.Decimal
	)
	err = s.store.Atomic(ctx, func(r storage.Repos) error {
		user, err := r.GetUser(ctx, userID) // Locks the user until commit
		if err != nil {
			return err
		}
		if user.Status != domain.UserActive {
			return fmt.Errorf("user %d is %s: %w", userID, user.Status, svcerr.ErrForbidden)
		}
		round, err = r.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if !round.IsOpen() {
			return fmt.Errorf("round #%d: %w", round.RoundNumber, svcerr.ErrRoundNotOpen)
		}
		bet, err = r.CreateBet(ctx, draft)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("Bet on round #%d - %s", round.RoundNumber, bet.Describe())
		balance, _, err = r.AdjustBalance(ctx, userID, bet.Amount.Neg(), domain.TxBet, desc)
		return err
	})
	if err != nil {
		entry := logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"round_id":  roundID,
			"bet_type":  betType,
			"bet_value": betValue,
			"amount":    amount.String(),
			"error":     err.Error(),
		})
		if svcerr.IsBusiness(err) {
			entry.Warn("Bet rejected")
		} else {
			entry.Error("Bet placement failed")
		}
		return nil, decimal.Zero, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":       userID,
		"bet_id":        bet.ID,
		"round_number":  round.RoundNumber,
		"bet_type":      bet.BetType,
		"bet_value":     bet.BetValue,
		"amount":        bet.Amount.String(),
		"potential_win": bet.PotentialWin.String(),
		"balance":       balance.String(),
	}).Info("Bet placed")

	s.invalidateUser(ctx, userID)
	evt := events.New(events.BetPlaced, round.RoundNumber)
	evt.UserID = userID
	evt.BetID = bet.ID
	evt.Status = string(bet.Status)
	evt.Amount = &bet.Amount
	s.pub.Publish(ctx, evt)

	return bet, balance, nil
}

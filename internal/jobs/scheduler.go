package jobs

import (
	"betmaster/internal/domain" // Domain models
	"context"
	"time"

	"github.com/sirupsen/logrus" // Structured logging
)

// RoundKeeper is what the scheduler needs from the game service
type RoundKeeper interface {
	EnsureOpenRound(ctx context.Context) (*domain.Round, bool, error)
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler keeps an open round available and finishes interrupted settlements on a fixed interval
type Scheduler struct {
	rounds   RoundKeeper
	interval time.Duration
}

// NewScheduler builds a scheduler. interval <= 0 falls back to one minute.
func NewScheduler(rounds RoundKeeper, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{rounds: rounds, interval: interval}
}

// Run ticks until ctx is cancelled. The first tick happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	logrus.WithField("interval", s.interval.String()).Info("Round scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			logrus.Info("Round scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one pass. Failures are logged and retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	if n, err := s.rounds.Reconcile(ctx); err != nil {
		logrus.WithError(err).Error("Reconcile failed")
	} else if n > 0 {
		logrus.WithField("bets", n).Info("Reconciled pending bets")
	}

	round, created, err := s.rounds.EnsureOpenRound(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to keep a round open")
		return
	}
	if created {
		logrus.WithField("round_number", round.RoundNumber).Info("Scheduler opened round")
	}
}

package game

import (
	"betmaster/internal/domain"  // Domain models
	"betmaster/internal/events"  // Event publishing
	"betmaster/internal/storage" // Storage contract
	"betmaster/internal/svcerr"  // Error taxonomy
	"betmaster/internal/utils"   // Cache helpers
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

const maxLatestLimit = 100

// Options are the tunable house settings
type Options struct {
	Limits      domain.BetLimits
	FirstRound  int64         // Number opened when no round exists yet
	LatestLimit int           // Default size of LatestRounds
	CacheTTL    time.Duration // Lifetime of cached reads
}

// DefaultOptions mirrors the production defaults
func DefaultOptions() Options {
	return Options{
		Limits:      domain.DefaultBetLimits(),
		FirstRound:  28365,
		LatestLimit: 5,
		CacheTTL:    time.Minute,
	}
}

// Service runs placement, settlement and round lifecycle on top of a Store
type Service struct {
	store storage.Store
	pub   events.Publisher
	rdb   *redis.Client // nil disables caching
	opts  Options
}

// NewService wires the game. pub may be nil, which drops events.
func NewService(store storage.Store, opts Options, pub events.Publisher, rdb *redis.Client) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = DefaultOptions().LatestLimit
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}
	return &Service{store: store, pub: pub, rdb: rdb, opts: opts}
}

// OpenRound registers a new open round
func (s *Service) OpenRound(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	round, err := s.store.CreateRound(ctx, roundNumber)
	if err != nil {
		return nil, err
	}
	s.invalidateRounds(ctx)
	logrus.WithFields(logrus.Fields{
		"round_id":     round.ID,
		"round_number": round.RoundNumber,
	}).Info("Round opened")
	return round, nil
}

// EnsureOpenRound returns the open round, opening the next one when the latest is settled.
// created reports whether this call opened it.
func (s *Service) EnsureOpenRound(ctx context.Context) (round *domain.Round, created bool, err error) {
	latest, err := s.store.LatestRounds(ctx, 1)
	if err != nil {
		return nil, false, err
	}
	next := s.opts.FirstRound
	if len(latest) > 0 {
		if latest[0].IsOpen() {
			return &latest[0], false, nil
		}
		next = latest[0].RoundNumber + 1
	}
	round, err = s.OpenRound(ctx, next)
	if errors.Is(err, svcerr.ErrConflict) { // Another instance opened it first
		round, err = s.store.GetRoundByNumber(ctx, next)
		return round, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return round, true, nil
}

// RoundByNumber looks a round up by its public number
func (s *Service) RoundByNumber(ctx context.Context, roundNumber int64) (*domain.Round, error) {
	if roundNumber <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", svcerr.ErrValidation)
	}
	return s.store.GetRoundByNumber(ctx, roundNumber)
}

// LatestRounds returns recent rounds, highest number first. limit <= 0 uses the default.
func (s *Service) LatestRounds(ctx context.Context, limit int) ([]domain.Round, error) {
	if limit <= 0 {
		limit = s.opts.LatestLimit
	}
	if limit > maxLatestLimit {
		limit = maxLatestLimit
	}
	return utils.ReadThrough(ctx, s.rdb, utils.LatestRoundsKey(limit), utils.LatestRoundsVersionKey(), s.opts.CacheTTL,
		func(ctx context.Context) ([]domain.Round, error) {
			return s.store.LatestRounds(ctx, limit)
		})
}

// BetsForUser returns the user's bets, most recent first
func (s *Service) BetsForUser(ctx context.Context, userID uint) ([]domain.Bet, error) {
	key := utils.UserBetsKey(userID)
	return utils.ReadThrough(ctx, s.rdb, key, utils.VersionKey(key), s.opts.CacheTTL,
		func(ctx context.Context) ([]domain.Bet, error) {
			bets, err := s.store.BetsForUser(ctx, userID)
			if bets == nil && err == nil {
				bets = []domain.Bet{}
			}
			return bets, err
		})
}

func (s *Service) invalidateRounds(ctx context.Context) {
	if err := utils.BumpCacheVersion(ctx, s.rdb, utils.LatestRoundsVersionKey()); err != nil {
		logrus.WithError(err).Warn("failed to bump rounds cache version")
	}
	if err := utils.DeleteCachePattern(ctx, s.rdb, utils.LatestRoundsPattern()); err != nil {
		logrus.WithError(err).Warn("failed to invalidate rounds cache")
	}
}

func (s *Service) invalidateUser(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, 2*len(userIDs))
	versions := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, utils.UserBetsKey(id), utils.UserTransactionsKey(id))
	}
	for _, k := range keys {
		versions = append(versions, utils.VersionKey(k))
	}
	if err := utils.BumpCacheVersion(ctx, s.rdb, versions...); err != nil {
		logrus.WithError(err).Warn("failed to bump user cache version")
	}
	if err := utils.DeleteCache(ctx, s.rdb, keys...); err != nil {
		logrus.WithError(err).Warn("failed to invalidate user cache")
	}
}

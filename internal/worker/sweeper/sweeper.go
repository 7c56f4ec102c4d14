// Package sweeper expires overdue cards on a periodic schedule.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

// Sweeper periodically transitions ACTIVE cards whose expiry date has
// passed to EXPIRED. Each card is updated independently so one failing
// write cannot abort the sweep; re-running is a no-op for cards that
// already left ACTIVE.
type Sweeper struct {
	cards    repository.CardRepository
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// New constructs a Sweeper with the given interval.
func New(cards repository.CardRepository, log *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{cards: cards, log: log, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until the context
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce expires every overdue ACTIVE card and returns how many cards
// were transitioned. Per-card write failures are logged and skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	ids, err := s.cards.ListExpiredIDs(ctx, today)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := s.cards.SetStatusIfCurrent(ctx, id, model.CardActive, model.CardExpired); err != nil {
			// A card blocked, deleted, or already expired since the scan
			// is simply no longer ours to expire.
			s.log.Warn("skipping card during expiry sweep",
				zap.String("card_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}
	if expired > 0 {
		s.log.Info("expiry sweep complete", zap.Int("expired", expired), zap.Int("scanned", len(ids)))
	}
	return expired, nil
}

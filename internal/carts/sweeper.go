package carts

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically deletes expired cart positions so their quota is
// released even when no request ever touches them again.
type Sweeper struct {
	repo   *Repository
	cron   *cron.Cron
	logger *zap.Logger
}

// NewSweeper creates a sweeper running on the given cron schedule.
func NewSweeper(repo *Repository, schedule string, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{repo: repo, cron: cron.New(), logger: logger}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("cart sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired cart positions removed", zap.Int64("count", n))
	}
}

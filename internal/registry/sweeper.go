package registry

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper keeps the registry self-healing: endpoints that have not been seen
// for staleAfter are invalidated nightly, and superseded rows older than
// retainInvalid are pruned.
type Sweeper struct {
	registry      *Registry
	cronManager   *cron.Cron
	logger        *zap.SugaredLogger
	staleAfter    time.Duration
	retainInvalid time.Duration
}

func NewSweeper(registry *Registry, logger *zap.SugaredLogger, staleAfter, retainInvalid time.Duration) *Sweeper {
	return &Sweeper{
		registry:      registry,
		cronManager:   cron.New(cron.WithLocation(time.UTC)),
		logger:        logger,
		staleAfter:    staleAfter,
		retainInvalid: retainInvalid,
	}
}

// Start schedules the nightly sweep and starts the cron runner.
func (s *Sweeper) Start() error {
	if _, err := s.cronManager.AddFunc("30 3 * * *", s.sweep); err != nil {
		return err
	}
	s.cronManager.Start()
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cronManager.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := s.registry.InvalidateStale(ctx, s.staleAfter)
	if err != nil {
		s.logger.Errorw("stale endpoint sweep failed", "error", err)
		return
	}

	pruned, err := s.registry.PruneInvalid(ctx, s.retainInvalid)
	if err != nil {
		s.logger.Errorw("invalid endpoint prune failed", "error", err)
		return
	}

	s.logger.Infow("endpoint sweep completed", "invalidated", stale, "pruned", pruned)
}

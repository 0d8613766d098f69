package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// estimator advances the playback position between player updates. Every
// tick it extrapolates locally, and every sync interval it asks the player
// for the real position instead.
type estimator struct {
	tick   time.Duration
	sync   time.Duration
	query  func(ctx context.Context) (domain.PlaybackState, error)
	apply  func(domain.PositionUpdate)
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newEstimator(tick, sync time.Duration, query func(context.Context) (domain.PlaybackState, error), apply func(domain.PositionUpdate), logger *zap.Logger) *estimator {
	return &estimator{
		tick:   tick,
		sync:   sync,
		query:  query,
		apply:  apply,
		now:    time.Now,
		logger: logger,
	}
}

// Start launches the loop unless it is already running.
func (e *estimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx)
}

// Stop cancels the loop. It does not wait for an in-flight update; a late
// tick against a paused state is a no-op in the reducer.
func (e *estimator) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether the loop is active.
func (e *estimator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

func (e *estimator) run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	syncEvery := int(e.sync / e.tick)
	if syncEvery < 1 {
		syncEvery = 1
	}

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n%syncEvery == 0 {
			e.resync(ctx)
			continue
		}
		e.apply(domain.PositionUpdate{Source: domain.SourceTick, At: e.now()})
	}
}

func (e *estimator) resync(ctx context.Context) {
	issued := e.now()
	qctx, cancel := context.WithTimeout(ctx, e.sync)
	defer cancel()

	state, err := e.query(qctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Debug("position sync failed", zap.Error(err))
			e.apply(domain.PositionUpdate{Source: domain.SourceTick, At: e.now()})
		}
		return
	}
	e.apply(domain.PositionUpdate{Source: domain.SourceSync, State: state, At: issued})
}

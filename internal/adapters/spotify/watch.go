package spotify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// watch polls the playback state and emits a StateChangedEvent whenever
// it differs from the last observation.
func (p *Player) watch(ctx context.Context) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	p.observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.observe(ctx)
		}
	}
}

func (p *Player) observe(ctx context.Context) {
	state, err := p.CurrentState(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoActivePlayback) {
			return
		}
		p.observeError(err)
		return
	}

	now := time.Now()
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return
	}
	changed := p.last == nil || differs(p.last.state, p.last.at, state, now)
	p.last = &observation{state: state, at: now}
	p.lastErr = ""
	p.mu.Unlock()

	if changed {
		p.listener(domain.StateChangedEvent{State: state})
	}
}

// observeError reports a polling failure once per error kind so that a dead
// token does not flood the listener.
func (p *Player) observeError(err error) {
	kind := classify(err)

	p.mu.Lock()
	repeated := p.lastErr == kind
	p.lastErr = kind
	p.mu.Unlock()

	if repeated {
		p.logger.Debug("poll still failing", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	p.logger.Warn("poll failed", zap.String("kind", string(kind)), zap.Error(err))
	p.listener(domain.ErrorEvent{Kind: kind, Message: err.Error()})
}

func differs(prev domain.PlaybackState, prevAt time.Time, next domain.PlaybackState, nextAt time.Time) bool {
	if prev.TrackID() != next.TrackID() ||
		prev.Playing != next.Playing ||
		prev.Shuffle != next.Shuffle ||
		prev.Volume != next.Volume ||
		prev.DeviceID != next.DeviceID {
		return true
	}

	expected := prev.PositionMs
	if prev.Playing {
		expected += int(nextAt.Sub(prevAt) / time.Millisecond)
	}
	drift := time.Duration(next.PositionMs-expected) * time.Millisecond
	if drift < 0 {
		drift = -drift
	}
	return drift > driftTolerance
}

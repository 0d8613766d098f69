package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// CommandResult is the outcome of a guarded command.
type CommandResult string

const (
	CommandOK      CommandResult = "ok"
	CommandIgnored CommandResult = "ignored"
	CommandFailed  CommandResult = "failed"
)

// CommandFunc is a single player operation run under the busy gate.
type CommandFunc func(ctx context.Context, player ports.Player) error

// RunGuardedCommand serializes user commands. While one is in flight, new
// ones are dropped and reported as CommandIgnored. The player is probed
// first and reconnected when the probe fails.
func (m *SessionManager) RunGuardedCommand(ctx context.Context, name string, action CommandFunc) (CommandResult, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		m.logger.Debug("command ignored, another is in flight", zap.String("command", name))
		return CommandIgnored, nil
	}
	if !m.tokens.Valid() {
		m.mu.Unlock()
		return CommandFailed, domain.ErrNotAuthenticated
	}
	m.busy = true
	m.busyGen++
	gen := m.busyGen
	m.busyTimer = time.AfterFunc(m.cfg.CommandTimeout, func() { m.releaseBusy(gen) })
	m.mu.Unlock()
	defer m.releaseBusy(gen)

	if !m.CheckHealth(ctx) {
		if ok, err := m.Reconnect(ctx); !ok {
			m.logger.Warn("command aborted, player unavailable", zap.String("command", name), zap.Error(err))
			return CommandFailed, fmt.Errorf("%s: %w", name, errors.Join(domain.ErrPlayerUnavailable, err))
		}
	}

	m.mu.Lock()
	player := m.player
	if m.busyGen == gen && m.busy {
		m.dispatched = true
	}
	m.mu.Unlock()
	if player == nil {
		return CommandFailed, fmt.Errorf("%s: %w", name, domain.ErrPlayerUnavailable)
	}

	// a state change may release the gate from here on
	if err := action(ctx, player); err != nil {
		m.logger.Warn("command failed", zap.String("command", name), zap.Error(err))
		return CommandFailed, fmt.Errorf("%s: %w", name, err)
	}

	m.logger.Debug("command sent", zap.String("command", name))
	return CommandOK, nil
}

func (m *SessionManager) releaseBusy(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyGen == gen {
		m.releaseBusyLocked()
	}
}

func (m *SessionManager) releaseBusyLocked() {
	m.busy = false
	m.dispatched = false
	if m.busyTimer != nil {
		m.busyTimer.Stop()
		m.busyTimer = nil
	}
}

// TogglePlay flips between playing and paused.
func (m *SessionManager) TogglePlay(ctx context.Context) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "toggle", func(ctx context.Context, p ports.Player) error {
		return p.TogglePlay(ctx)
	})
}

// Next skips to the next track.
func (m *SessionManager) Next(ctx context.Context) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "next", func(ctx context.Context, p ports.Player) error {
		return p.Next(ctx)
	})
}

// Previous goes back one track.
func (m *SessionManager) Previous(ctx context.Context) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "previous", func(ctx context.Context, p ports.Player) error {
		return p.Previous(ctx)
	})
}

// Seek moves the position. The estimate follows once the player accepts
// the seek, without waiting for the next state event.
func (m *SessionManager) Seek(ctx context.Context, positionMs int) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "seek", func(ctx context.Context, p ports.Player) error {
		if err := p.Seek(ctx, positionMs); err != nil {
			return err
		}
		m.applyUpdate(domain.PositionUpdate{Source: domain.SourceSeek, PositionMs: positionMs, At: m.now()})
		return nil
	})
}

// SetVolume sets the level in 0-100. While muted the level is stored and
// applied on unmute.
func (m *SessionManager) SetVolume(ctx context.Context, level int) (CommandResult, error) {
	level = max(0, min(100, level))
	return m.RunGuardedCommand(ctx, "volume", func(ctx context.Context, p ports.Player) error {
		m.mu.Lock()
		muted := m.playback.Muted
		m.mu.Unlock()

		if !muted {
			if err := p.SetVolume(ctx, float64(level)/100); err != nil {
				return err
			}
		}
		m.mutatePlayback(func(s *domain.PlaybackState) { s.Volume = level })
		return nil
	})
}

// ToggleMute mutes or restores the stored level.
func (m *SessionManager) ToggleMute(ctx context.Context) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "mute", func(ctx context.Context, p ports.Player) error {
		m.mu.Lock()
		muted := !m.playback.Muted
		volume := m.playback.Volume
		m.mu.Unlock()

		target := 0.0
		if !muted {
			target = float64(volume) / 100
		}
		if err := p.SetVolume(ctx, target); err != nil {
			return err
		}
		m.mutatePlayback(func(s *domain.PlaybackState) { s.Muted = muted })
		return nil
	})
}

// ToggleShuffle flips shuffle mode.
func (m *SessionManager) ToggleShuffle(ctx context.Context) (CommandResult, error) {
	return m.RunGuardedCommand(ctx, "shuffle", func(ctx context.Context, p ports.Player) error {
		m.mu.Lock()
		on := !m.playback.Shuffle
		m.mu.Unlock()

		if err := p.SetShuffle(ctx, on); err != nil {
			return err
		}
		m.mutatePlayback(func(s *domain.PlaybackState) { s.Shuffle = on })
		return nil
	})
}

func (m *SessionManager) mutatePlayback(fn func(*domain.PlaybackState)) {
	m.mu.Lock()
	fn(&m.playback)
	snapshot := m.playback
	m.mu.Unlock()
	m.publish(snapshot)
}

// applyUpdate feeds the reducer from the estimator and from seeks.
func (m *SessionManager) applyUpdate(u domain.PositionUpdate) {
	m.mu.Lock()
	if m.state == domain.SessionLoggedOut {
		m.mu.Unlock()
		return
	}
	before := m.playback
	m.playback = m.playback.Apply(u)
	snapshot := m.playback
	m.mu.Unlock()

	if u.Source == domain.SourceSync {
		m.driveEstimator(snapshot.Playing)
	}
	if snapshot.PositionMs == before.PositionMs && u.Source == domain.SourceTick {
		return
	}
	m.publish(snapshot)
}

func (m *SessionManager) queryState(ctx context.Context) (domain.PlaybackState, error) {
	player := m.currentPlayer()
	if player == nil {
		return domain.PlaybackState{}, domain.ErrPlayerUnavailable
	}
	return player.CurrentState(ctx)
}

// driveEstimator runs the estimator only while playing.
func (m *SessionManager) driveEstimator(playing bool) {
	if playing {
		m.estimator.Start()
		return
	}
	m.estimator.Stop()
}

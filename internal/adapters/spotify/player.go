package spotify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// driftTolerance is how far the reported position may stray from the
// extrapolated one before it counts as a change (a seek from elsewhere).
const driftTolerance = 2 * time.Second

// Player is one handle to a Connect device. Player events are synthesized by
// polling the playback state while connected.
type Player struct {
	api        *spotify.Client
	listener   ports.EventListener
	deviceName string
	poll       time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	deviceID  spotify.ID
	connected bool
	cancel    context.CancelFunc
	last      *observation
	lastErr   domain.ErrorKind
}

type observation struct {
	state domain.PlaybackState
	at    time.Time
}

// compile-time interface assertion
var _ ports.Player = (*Player)(nil)

// Connect selects a device, moves playback onto it without starting it and
// begins watching the playback state.
func (p *Player) Connect(ctx context.Context) error {
	devices, err := p.api.PlayerDevices(ctx)
	if err != nil {
		p.emitError(err)
		return wrap("list devices", err)
	}

	device, ok := pickDevice(devices, p.deviceName)
	if !ok {
		p.listener(domain.ErrorEvent{Kind: domain.ErrorInitialization, Message: "no playback device available"})
		return fmt.Errorf("spotify adapter: no device %q: %w", p.deviceName, domain.ErrPlayerUnavailable)
	}

	if !device.Active {
		if err := p.api.TransferPlayback(ctx, device.ID, false); err != nil {
			p.emitError(err)
			return wrap("transfer playback", err)
		}
		p.logger.Info("transferred playback", zap.String("device", device.Name))
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.deviceID = device.ID
	p.connected = true
	p.cancel = cancel
	p.last = nil
	p.lastErr = ""
	p.mu.Unlock()

	p.listener(domain.ReadyEvent{DeviceID: string(device.ID)})
	go p.watch(pollCtx)
	return nil
}

// Disconnect stops watching the device. Playback itself is left alone.
func (p *Player) Disconnect() {
	p.mu.Lock()
	wasConnected := p.connected
	deviceID := p.deviceID
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.connected = false
	p.mu.Unlock()

	if wasConnected {
		p.listener(domain.NotReadyEvent{DeviceID: string(deviceID)})
	}
}

// CurrentState queries the live playback state.
func (p *Player) CurrentState(ctx context.Context) (domain.PlaybackState, error) {
	st, err := p.api.PlayerState(ctx)
	if err != nil {
		return domain.PlaybackState{}, wrap("player state", err)
	}
	return mapStateToDomain(st)
}

// TogglePlay pauses when playing and resumes otherwise.
func (p *Player) TogglePlay(ctx context.Context) error {
	state, err := p.CurrentState(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoActivePlayback) {
		return err
	}
	if state.Playing {
		return p.command("pause", p.api.PauseOpt(ctx, p.options()))
	}
	return p.Resume(ctx)
}

// Resume starts playback on the selected device.
func (p *Player) Resume(ctx context.Context) error {
	return p.command("play", p.api.PlayOpt(ctx, p.options()))
}

func (p *Player) Next(ctx context.Context) error {
	return p.command("next", p.api.NextOpt(ctx, p.options()))
}

func (p *Player) Previous(ctx context.Context) error {
	return p.command("previous", p.api.PreviousOpt(ctx, p.options()))
}

func (p *Player) Seek(ctx context.Context, positionMs int) error {
	return p.command("seek", p.api.SeekOpt(ctx, max(0, positionMs), p.options()))
}

// SetVolume takes a level in [0, 1].
func (p *Player) SetVolume(ctx context.Context, level float64) error {
	percent := int(math.Round(math.Max(0, math.Min(1, level)) * 100))
	return p.command("volume", p.api.VolumeOpt(ctx, percent, p.options()))
}

func (p *Player) SetShuffle(ctx context.Context, on bool) error {
	return p.command("shuffle", p.api.ShuffleOpt(ctx, on, p.options()))
}

func (p *Player) options() *spotify.PlayOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deviceID == "" {
		return nil
	}
	id := p.deviceID
	return &spotify.PlayOptions{DeviceID: &id}
}

// command reports credential and account failures to the listener; other
// failures only go back to the caller.
func (p *Player) command(op string, err error) error {
	if err == nil {
		return nil
	}
	if kind := classify(err); kind == domain.ErrorAuthentication || kind == domain.ErrorAccount {
		p.emitError(err)
	}
	return wrap(op, err)
}

func (p *Player) emitError(err error) {
	p.listener(domain.ErrorEvent{Kind: classify(err), Message: err.Error()})
}

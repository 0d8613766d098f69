// Package services holds the playback session manager and the lyrics synchronizer.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

const refreshCallTimeout = 15 * time.Second

// SessionConfig tunes the session manager. Zero fields take the defaults.
type SessionConfig struct {
	GuardWindow        time.Duration
	HealthTimeout      time.Duration
	ReconnectCeiling   int
	ReconnectBackoff   time.Duration
	CommandTimeout     time.Duration
	TickInterval       time.Duration
	SyncInterval       time.Duration
	ResumeAfterRefresh bool
}

// DefaultSessionConfig returns the standard timings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		GuardWindow:        300 * time.Second,
		HealthTimeout:      3 * time.Second,
		ReconnectCeiling:   3,
		ReconnectBackoff:   time.Second,
		CommandTimeout:     1500 * time.Millisecond,
		TickInterval:       100 * time.Millisecond,
		SyncInterval:       3 * time.Second,
		ResumeAfterRefresh: true,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.GuardWindow <= 0 {
		c.GuardWindow = d.GuardWindow
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = d.HealthTimeout
	}
	if c.ReconnectCeiling <= 0 {
		c.ReconnectCeiling = d.ReconnectCeiling
	}
	if c.ReconnectBackoff < 0 {
		c.ReconnectBackoff = d.ReconnectBackoff
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	return c
}

// SessionSnapshot is a read-only view of the session for callers.
type SessionSnapshot struct {
	ID                string               `json:"id"`
	State             domain.SessionState  `json:"state"`
	Authenticated     bool                 `json:"authenticated"`
	Healthy           bool                 `json:"healthy"`
	Busy              bool                 `json:"busy"`
	DeviceID          string               `json:"device_id,omitempty"`
	ExpiresAt         time.Time            `json:"expires_at,omitempty"`
	RefreshAt         time.Time            `json:"refresh_at,omitempty"`
	ReconnectAttempts int                  `json:"reconnect_attempts"`
	Playback          domain.PlaybackState `json:"-"`
}

// SessionManager owns the single authenticated connection to the player.
// All player callbacks and timers funnel through mu; subscribers are called
// outside of it.
type SessionManager struct {
	cfg       SessionConfig
	store     ports.TokenStore
	refresher ports.TokenRefresher
	players   ports.PlayerFactory
	logger    *zap.Logger
	now       func() time.Time
	estimator *estimator

	// storeMu orders token writes against logout's wipe.
	storeMu sync.Mutex

	mu           sync.Mutex
	id           string
	state        domain.SessionState
	tokens       domain.TokenBundle
	deviceID     string
	healthy      bool
	busy         bool
	dispatched   bool
	busyGen      uint64
	busyTimer    *time.Timer
	retries      int
	player       ports.Player
	playerGen    uint64
	refreshTimer *time.Timer
	refreshing   bool
	playback     domain.PlaybackState
	subscribers  []func(domain.PlaybackState)
}

// NewSessionManager constructs a SessionManager in the unauthenticated state.
func NewSessionManager(store ports.TokenStore, refresher ports.TokenRefresher, players ports.PlayerFactory, cfg SessionConfig, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		cfg:       cfg.withDefaults(),
		store:     store,
		refresher: refresher,
		players:   players,
		logger:    logger.Named("session"),
		now:       time.Now,
		id:        uuid.NewString(),
		state:     domain.SessionUnauthenticated,
	}
	m.estimator = newEstimator(m.cfg.TickInterval, m.cfg.SyncInterval, m.queryState, m.applyUpdate, m.logger)
	m.estimator.now = func() time.Time { return m.now() }
	return m
}

// AccessToken returns the token that is current right now. The player
// calls it on every request, so a refresh is picked up without rebuilding it.
func (m *SessionManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken
}

// Subscribe registers fn for every playback update.
func (m *SessionManager) Subscribe(fn func(domain.PlaybackState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Snapshot returns the current session view.
func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := SessionSnapshot{
		ID:                m.id,
		State:             m.state,
		Authenticated:     m.tokens.Valid(),
		Healthy:           m.healthy,
		Busy:              m.busy,
		DeviceID:          m.deviceID,
		ExpiresAt:         m.tokens.ExpiresAt,
		ReconnectAttempts: m.retries,
		Playback:          m.playback,
	}
	if m.tokens.CanRefresh() {
		snap.RefreshAt = m.tokens.ExpiresAt.Add(-m.cfg.GuardWindow)
		if now := m.now(); snap.RefreshAt.Before(now) {
			snap.RefreshAt = now
		}
	}
	return snap
}

// AcquireSession starts a session from the redirect bundle, or from the
// store when redirect is nil or empty. It returns false when neither yields
// an access token.
func (m *SessionManager) AcquireSession(ctx context.Context, redirect *domain.TokenBundle) (bool, error) {
	var bundle domain.TokenBundle
	fromRedirect := redirect != nil && redirect.Valid()

	if fromRedirect {
		bundle = *redirect
	} else {
		loaded, err := m.store.LoadTokens(ctx)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, fmt.Errorf("session: load tokens: %w", err)
		}
		bundle = loaded
	}

	if !bundle.Valid() {
		m.logger.Debug("no token available, staying unauthenticated")
		return false, nil
	}

	if fromRedirect {
		if err := m.store.SaveTokens(ctx, bundle); err != nil {
			return false, fmt.Errorf("session: persist tokens: %w", err)
		}
	}

	m.mu.Lock()
	m.id = uuid.NewString()
	m.tokens = bundle
	m.state = domain.SessionAuthenticating
	m.scheduleRefreshLocked()
	id := m.id
	m.mu.Unlock()

	m.logger.Info("session acquired",
		zap.String("session_id", id),
		zap.Bool("from_redirect", fromRedirect),
		zap.Time("expires_at", bundle.ExpiresAt))
	return true, nil
}

// scheduleRefreshLocked arms the one-shot refresh timer. Callers hold mu.
func (m *SessionManager) scheduleRefreshLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if !m.tokens.CanRefresh() {
		return
	}

	delay := domain.RefreshDelay(m.tokens.ExpiresAt, m.now(), m.cfg.GuardWindow)
	m.logger.Debug("refresh scheduled", zap.Duration("in", delay))
	m.refreshTimer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshCallTimeout)
		defer cancel()
		if err := m.RefreshNow(ctx); err != nil {
			m.logger.Warn("scheduled refresh failed", zap.Error(err))
		}
	})
}

// RefreshNow performs a single refresh attempt. A failure ends the session;
// it is not retried.
func (m *SessionManager) RefreshNow(ctx context.Context) error {
	m.mu.Lock()
	if m.refreshing {
		m.mu.Unlock()
		return nil
	}
	refreshToken := m.tokens.RefreshToken
	if refreshToken == "" {
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	m.refreshing = true
	id := m.id
	wasPlaying := m.playback.Playing
	m.mu.Unlock()

	bundle, err := m.refresher.Refresh(ctx, refreshToken)
	if err == nil && !bundle.Valid() {
		err = domain.ErrInvalidToken
	}
	if err != nil {
		m.mu.Lock()
		m.refreshing = false
		current := m.id == id && m.state != domain.SessionLoggedOut
		m.mu.Unlock()
		if !current {
			m.logger.Debug("refresh failed for a session that already ended", zap.Error(err))
			return fmt.Errorf("session: refresh: %w", err)
		}
		m.logger.Error("token refresh failed, ending session", zap.Error(err))
		if logoutErr := m.Logout(ctx); logoutErr != nil {
			m.logger.Warn("logout after failed refresh", zap.Error(logoutErr))
		}
		return fmt.Errorf("session: refresh: %w", err)
	}

	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}

	m.storeMu.Lock()
	m.mu.Lock()
	m.refreshing = false
	if m.id != id || m.state == domain.SessionLoggedOut {
		m.mu.Unlock()
		m.storeMu.Unlock()
		m.logger.Debug("dropping refreshed tokens for a session that already ended", zap.String("session_id", id))
		return nil
	}
	m.tokens = bundle
	m.scheduleRefreshLocked()
	player := m.player
	m.mu.Unlock()
	if err := m.store.SaveTokens(ctx, bundle); err != nil {
		m.logger.Warn("failed to persist refreshed tokens", zap.Error(err))
	}
	m.storeMu.Unlock()

	m.logger.Info("token refreshed", zap.Time("expires_at", bundle.ExpiresAt))

	if m.cfg.ResumeAfterRefresh && wasPlaying && player != nil {
		if err := player.Resume(ctx); err != nil {
			m.logger.Warn("resume after token refresh failed", zap.Error(err))
		}
	}
	return nil
}

// BootstrapPlayer builds and connects a fresh player handle. It resets the
// reconnect budget.
func (m *SessionManager) BootstrapPlayer(ctx context.Context) error {
	m.mu.Lock()
	if !m.tokens.Valid() {
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	old := m.player
	m.player = nil
	m.playerGen++
	gen := m.playerGen
	m.retries = 0
	m.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}

	player, err := m.players.NewPlayer(m.AccessToken, func(ev domain.PlayerEvent) {
		m.handleEvent(gen, ev)
	})
	if err != nil {
		m.markDegraded()
		return fmt.Errorf("session: load player: %w", err)
	}

	m.mu.Lock()
	if gen != m.playerGen {
		m.mu.Unlock()
		player.Disconnect()
		return fmt.Errorf("session: bootstrap superseded: %w", domain.ErrPlayerUnavailable)
	}
	m.player = player
	m.mu.Unlock()

	if err := player.Connect(ctx); err != nil {
		m.markDegraded()
		return fmt.Errorf("session: connect player: %w", err)
	}
	return nil
}

func (m *SessionManager) handleEvent(gen uint64, ev domain.PlayerEvent) {
	m.mu.Lock()
	if gen != m.playerGen || m.state == domain.SessionLoggedOut {
		m.mu.Unlock()
		return
	}

	switch e := ev.(type) {
	case domain.ReadyEvent:
		m.deviceID = e.DeviceID
		m.playback.DeviceID = e.DeviceID
		m.healthy = true
		m.state = domain.SessionReady
		m.mu.Unlock()
		m.logger.Info("player ready", zap.String("device_id", e.DeviceID))

	case domain.NotReadyEvent:
		m.healthy = false
		m.state = domain.SessionDegraded
		m.mu.Unlock()
		m.logger.Warn("device went offline", zap.String("device_id", e.DeviceID))

	case domain.StateChangedEvent:
		m.playback = m.playback.Apply(domain.PositionUpdate{Source: domain.SourceEvent, State: e.State, At: m.now()})
		m.healthy = true
		m.state = domain.SessionReady
		if m.dispatched {
			m.releaseBusyLocked()
		}
		snapshot := m.playback
		m.mu.Unlock()
		m.driveEstimator(snapshot.Playing)
		m.publish(snapshot)

	case domain.ErrorEvent:
		m.healthy = false
		m.state = domain.SessionDegraded
		m.mu.Unlock()
		m.logger.Error("player error", zap.String("kind", string(e.Kind)), zap.String("message", e.Message))
		if e.Kind == domain.ErrorAuthentication {
			go m.refreshOutOfBand()
		}

	default:
		m.mu.Unlock()
	}
}

func (m *SessionManager) refreshOutOfBand() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshCallTimeout)
	defer cancel()
	if err := m.RefreshNow(ctx); err != nil {
		m.logger.Warn("out-of-band refresh failed", zap.Error(err))
	}
}

// CheckHealth probes the player with a bounded timeout. Only an answer
// within the timeout marks the session healthy.
func (m *SessionManager) CheckHealth(ctx context.Context) bool {
	player := m.currentPlayer()
	if player == nil {
		m.markDegraded()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.HealthTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := player.CurrentState(ctx)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	// an idle device still answered the probe
	if err != nil && !errors.Is(err, domain.ErrNoActivePlayback) {
		m.logger.Warn("health probe failed", zap.Error(err))
		m.markDegraded()
		return false
	}

	m.mu.Lock()
	m.healthy = true
	m.mu.Unlock()
	return true
}

// Reconnect disconnects and reconnects the player. After ReconnectCeiling
// consecutive failures it does nothing until the next BootstrapPlayer.
func (m *SessionManager) Reconnect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if !m.tokens.Valid() {
		m.mu.Unlock()
		return false, domain.ErrNotAuthenticated
	}
	if m.retries >= m.cfg.ReconnectCeiling {
		m.mu.Unlock()
		return false, fmt.Errorf("session: reconnect budget exhausted: %w", domain.ErrPlayerUnavailable)
	}
	player := m.player
	m.mu.Unlock()

	if player == nil {
		return false, m.failReconnect(domain.ErrPlayerUnavailable)
	}

	player.Disconnect()
	if err := sleepWithContext(ctx, m.cfg.ReconnectBackoff); err != nil {
		return false, err
	}
	if err := player.Connect(ctx); err != nil {
		return false, m.failReconnect(err)
	}

	m.mu.Lock()
	if m.state == domain.SessionLoggedOut || m.player != player {
		m.mu.Unlock()
		m.logger.Debug("reconnect finished after the player was replaced")
		return false, fmt.Errorf("session: reconnect superseded: %w", domain.ErrPlayerUnavailable)
	}
	m.retries = 0
	m.healthy = true
	m.state = domain.SessionReady
	m.mu.Unlock()
	m.logger.Info("player reconnected")
	return true, nil
}

func (m *SessionManager) failReconnect(cause error) error {
	m.mu.Lock()
	m.retries++
	attempt := m.retries
	m.healthy = false
	m.state = domain.SessionDegraded
	m.mu.Unlock()
	m.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(cause))
	return fmt.Errorf("session: reconnect attempt %d: %w", attempt, cause)
}

// Logout ends the session: timers stop, the player disconnects and every
// persisted key is removed.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	player := m.player
	m.player = nil
	m.playerGen++
	m.tokens = domain.TokenBundle{}
	m.stopTimersLocked()
	m.releaseBusyLocked()
	m.healthy = false
	m.deviceID = ""
	m.retries = 0
	m.playback = domain.PlaybackState{}
	m.state = domain.SessionLoggedOut
	m.mu.Unlock()

	m.estimator.Stop()
	if player != nil {
		player.Disconnect()
	}
	m.publish(domain.PlaybackState{})

	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if err := m.store.ClearTokens(ctx); err != nil {
		return fmt.Errorf("session: clear tokens: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

// Close stops timers and the estimator. The player stays connected so
// playback continues after the process detaches from it.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.stopTimersLocked()
	m.mu.Unlock()
	m.estimator.Stop()
}

func (m *SessionManager) stopTimersLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if m.busyTimer != nil {
		m.busyTimer.Stop()
		m.busyTimer = nil
	}
}

func (m *SessionManager) currentPlayer() ports.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.player
}

func (m *SessionManager) markDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = false
	if m.state != domain.SessionLoggedOut && m.state != domain.SessionUnauthenticated {
		m.state = domain.SessionDegraded
	}
}

func (m *SessionManager) publish(state domain.PlaybackState) {
	m.mu.Lock()
	subs := make([]func(domain.PlaybackState), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("session: canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

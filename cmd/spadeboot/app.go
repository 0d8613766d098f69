package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/adapters/auth"
	"github.com/ewilliams-labs/spadeboot/internal/adapters/lyrics"
	"github.com/ewilliams-labs/spadeboot/internal/adapters/spotify"
	"github.com/ewilliams-labs/spadeboot/internal/adapters/sqlite"
	"github.com/ewilliams-labs/spadeboot/internal/config"
	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
	"github.com/ewilliams-labs/spadeboot/internal/logging"
	"github.com/ewilliams-labs/spadeboot/internal/worker"
)

// app is the wired object graph shared by serve and watch.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        *sqlite.Adapter
	session      *services.SessionManager
	lyrics       *services.LyricsSynchronizer
	orchestrator *services.Orchestrator
	pool         *worker.Pool
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp wires storage, adapters and services. scroll receives scroll
// commands from the synchronizer and may be nil.
func newApp(cfg *config.Config, logger *zap.Logger, scroll func(services.ScrollCommand)) (*app, error) {
	if !cfg.CanRefresh() {
		return nil, errors.New("no token refresh configured: set spotify.client_id and spotify.client_secret, or auth.refresh_url")
	}
	refresher, err := auth.NewRefresher(authConfig(cfg), nil)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewAdapter(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	players := spotify.NewFactory(spotify.Config{
		BaseURL:      cfg.Spotify.APIBaseURL,
		DeviceName:   cfg.Spotify.DeviceName,
		PollInterval: cfg.Spotify.PollInterval,
	}, logger)

	session := services.NewSessionManager(store, refresher, players, sessionConfig(cfg), logger)

	var scroller *services.ScrollController
	if scroll != nil {
		scroller = services.NewScrollController(cfg.Lyrics.ScrollInterval, scroll)
	}
	view := services.NewLyricsSynchronizer(domain.SyncParams{
		IntroBuffer: cfg.Lyrics.IntroBuffer,
		OutroBuffer: cfg.Lyrics.OutroBuffer,
	}, scroller, logger)

	provider := lyrics.NewClient(nil, lyrics.Config{
		BaseURL:      cfg.Lyrics.BaseURL,
		Timeout:      cfg.Lyrics.Timeout,
		MaxRetries:   cfg.Lyrics.MaxRetries,
		RetryBackoff: cfg.Lyrics.RetryBackoff,
	}, logger)

	orch := services.NewOrchestrator(view, provider, store, logger)
	pool := worker.NewPool(orch.HandleJob, cfg.Lyrics.QueueSize, logger)
	orch.UseQueue(pool)
	orch.Attach(session)

	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		session:      session,
		lyrics:       view,
		orchestrator: orch,
		pool:         pool,
	}, nil
}

func (a *app) start() {
	a.pool.Start(a.cfg.Lyrics.Workers)
}

// close stops timers and workers. The player is left connected so playback
// outlives the process view of it.
func (a *app) close() {
	a.session.Close()
	a.pool.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func authConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		AuthURL:      cfg.Spotify.AuthURL,
		TokenURL:     cfg.Spotify.TokenURL,
		RefreshURL:   cfg.Auth.RefreshURL,
	}
}

func sessionConfig(cfg *config.Config) services.SessionConfig {
	return services.SessionConfig{
		GuardWindow:        cfg.Auth.GuardWindow,
		HealthTimeout:      cfg.Player.HealthTimeout,
		ReconnectCeiling:   cfg.Player.ReconnectCeiling,
		ReconnectBackoff:   cfg.Player.ReconnectBackoff,
		CommandTimeout:     cfg.Player.CommandTimeout,
		TickInterval:       cfg.Player.TickInterval,
		SyncInterval:       cfg.Player.SyncInterval,
		ResumeAfterRefresh: cfg.Player.ResumeAfterRefresh,
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// Orchestrator connects playback updates to the lyrics synchronizer and
// loads lyrics whenever the track changes.
type Orchestrator struct {
	view   *LyricsSynchronizer
	lyrics ports.LyricsProvider
	cache  ports.LyricsCache
	logger *zap.Logger

	mu      sync.Mutex
	queue   ports.LyricsJobQueue
	trackID string
	last    domain.PlaybackState
}

// NewOrchestrator constructs an Orchestrator. cache may be nil.
func NewOrchestrator(view *LyricsSynchronizer, lyrics ports.LyricsProvider, cache ports.LyricsCache, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		view:   view,
		lyrics: lyrics,
		cache:  cache,
		logger: logger.Named("orchestrator"),
	}
}

// UseQueue routes lyrics jobs through q. Without a queue jobs run inline.
func (o *Orchestrator) UseQueue(q ports.LyricsJobQueue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = q
}

// Attach subscribes the orchestrator to a session's playback updates.
func (o *Orchestrator) Attach(session *SessionManager) {
	session.Subscribe(o.OnPlayback)
}

// OnPlayback handles one playback update.
func (o *Orchestrator) OnPlayback(state domain.PlaybackState) {
	id := state.TrackID()

	o.mu.Lock()
	changed := id != o.trackID
	o.trackID = id
	o.last = state
	queue := o.queue
	o.mu.Unlock()

	if changed {
		o.trackChanged(state, queue)
	}
	o.view.Update(state)
}

func (o *Orchestrator) trackChanged(state domain.PlaybackState, queue ports.LyricsJobQueue) {
	if state.Track == nil {
		o.view.Clear()
		return
	}

	o.view.SetLoading(state.Track.ID)
	job := ports.LyricsJob{
		ID:      uuid.NewString(),
		TrackID: state.Track.ID,
		Artist:  state.Track.PrimaryArtist(),
		Title:   state.Track.Title,
	}
	o.logger.Debug("track changed, loading lyrics",
		zap.String("track_id", job.TrackID),
		zap.String("artist", job.Artist),
		zap.String("title", job.Title))

	if queue == nil {
		o.HandleJob(context.Background(), job)
		return
	}
	if !queue.Submit(job) {
		o.view.SetLyrics(job.TrackID, "")
	}
}

// HandleJob resolves lyrics for a job from the cache or the provider. Any
// failure leaves the track in the no-lyrics state.
func (o *Orchestrator) HandleJob(ctx context.Context, job ports.LyricsJob) {
	if text, ok := o.cached(ctx, job.TrackID); ok {
		o.install(job.TrackID, text)
		return
	}

	text, err := o.lyrics.FetchLyrics(ctx, job.Artist, job.Title)
	if err != nil {
		if errors.Is(err, ports.ErrNoLyrics) {
			o.logger.Info("no lyrics for track", zap.String("track_id", job.TrackID))
		} else {
			o.logger.Warn("lyrics fetch failed", zap.String("track_id", job.TrackID), zap.Error(err))
		}
		o.install(job.TrackID, "")
		return
	}

	if o.cache != nil && strings.TrimSpace(text) != "" {
		if err := o.cache.PutLyrics(ctx, job.TrackID, text); err != nil {
			o.logger.Warn("failed to cache lyrics", zap.String("track_id", job.TrackID), zap.Error(err))
		}
	}
	o.install(job.TrackID, text)
}

func (o *Orchestrator) cached(ctx context.Context, trackID string) (string, bool) {
	if o.cache == nil {
		return "", false
	}
	text, err := o.cache.GetLyrics(ctx, trackID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("lyrics cache read failed", zap.String("track_id", trackID), zap.Error(err))
		}
		return "", false
	}
	return text, true
}

// install hands the text to the synchronizer and replays the latest state
// so a paused track still gets a cursor.
func (o *Orchestrator) install(trackID, text string) {
	if !o.view.SetLyrics(trackID, text) {
		return
	}
	o.mu.Lock()
	last := o.last
	o.mu.Unlock()
	o.view.Update(last)
}

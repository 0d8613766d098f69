package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// TestOrchestrator_TrackChange verifies how lyrics are resolved on a new track.
func TestOrchestrator_TrackChange(t *testing.T) {
	tests := []struct {
		name       string
		cached     map[string]string
		text       string
		fetchErr   error
		wantStatus LyricsStatus
		wantFetch  int
		wantPuts   int
	}{
		{
			name:       "cache hit skips the provider",
			cached:     map[string]string{"t1": sampleLyrics},
			wantStatus: LyricsReady,
			wantFetch:  0,
			wantPuts:   0,
		},
		{
			name:       "cache miss fetches and caches",
			text:       sampleLyrics,
			wantStatus: LyricsReady,
			wantFetch:  1,
			wantPuts:   1,
		},
		{
			name:       "no lyrics is not an error and is not cached",
			fetchErr:   ports.ErrNoLyrics,
			wantStatus: LyricsNone,
			wantFetch:  1,
			wantPuts:   0,
		},
		{
			name:       "provider failure shows no lyrics",
			fetchErr:   errors.New("upstream down"),
			wantStatus: LyricsNone,
			wantFetch:  1,
			wantPuts:   0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cache := &mockCache{entries: tc.cached}
			lyrics := &mockLyrics{text: tc.text, err: tc.fetchErr}
			view := NewLyricsSynchronizer(domain.DefaultSyncParams, nil, zap.NewNop())
			o := NewOrchestrator(view, lyrics, cache, zap.NewNop())

			o.OnPlayback(stateAt("t1", 50000, 200000))

			assert.Equal(t, tc.wantStatus, view.View().Status)
			assert.Equal(t, tc.wantFetch, lyrics.calls)
			assert.Equal(t, tc.wantPuts, cache.puts)
			if tc.wantStatus == LyricsReady {
				assert.True(t, view.Cursor().Valid(), "cursor is computed as soon as lyrics arrive")
			}
		})
	}
}

func TestOrchestrator_FetchesOncePerTrack(t *testing.T) {
	lyrics := &mockLyrics{text: sampleLyrics}
	view := NewLyricsSynchronizer(domain.DefaultSyncParams, nil, zap.NewNop())
	o := NewOrchestrator(view, lyrics, nil, zap.NewNop())

	o.OnPlayback(stateAt("t1", 1000, 200000))
	o.OnPlayback(stateAt("t1", 2000, 200000))
	o.OnPlayback(stateAt("t1", 3000, 200000))
	assert.Equal(t, 1, lyrics.calls)

	o.OnPlayback(stateAt("t2", 0, 180000))
	assert.Equal(t, 2, lyrics.calls)
	assert.Equal(t, "t2", view.View().TrackID)

	o.OnPlayback(domain.PlaybackState{})
	assert.Equal(t, LyricsIdle, view.View().Status)
}

func TestOrchestrator_QueuedJobs(t *testing.T) {
	view := NewLyricsSynchronizer(domain.DefaultSyncParams, nil, zap.NewNop())
	lyrics := &mockLyrics{text: sampleLyrics}
	o := NewOrchestrator(view, lyrics, nil, zap.NewNop())

	queue := &mockQueue{accept: true}
	o.UseQueue(queue)

	state := stateAt("t1", 1000, 200000)
	state.Track.Title = "Song"
	state.Track.Artists = []string{"Lead", "Feature"}
	o.OnPlayback(state)

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, "t1", job.TrackID)
	assert.Equal(t, "Lead", job.Artist)
	assert.Equal(t, "Song", job.Title)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, LyricsLoading, view.View().Status)
	assert.Equal(t, 0, lyrics.calls)

	o.HandleJob(context.Background(), job)
	assert.Equal(t, LyricsReady, view.View().Status)
}

func TestOrchestrator_DroppedJobShowsNoLyrics(t *testing.T) {
	view := NewLyricsSynchronizer(domain.DefaultSyncParams, nil, zap.NewNop())
	o := NewOrchestrator(view, &mockLyrics{}, nil, zap.NewNop())
	o.UseQueue(&mockQueue{accept: false})

	o.OnPlayback(stateAt("t1", 1000, 200000))
	assert.Equal(t, LyricsNone, view.View().Status)
}

func TestOrchestrator_FollowsSession(t *testing.T) {
	m, _, _, player := readySession(t, testSessionConfig())
	view := NewLyricsSynchronizer(domain.DefaultSyncParams, nil, zap.NewNop())
	o := NewOrchestrator(view, &mockLyrics{text: sampleLyrics}, nil, zap.NewNop())
	o.Attach(m)

	paused := playingState()
	paused.Playing = false
	paused.PositionMs = 100000
	player.emit(domain.StateChangedEvent{State: paused})

	assert.Equal(t, LyricsReady, view.View().Status)
	assert.True(t, view.Cursor().Valid())
}

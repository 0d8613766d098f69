package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

func TestPool_ProcessesSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 3)

	pool := NewPool(func(ctx context.Context, job ports.LyricsJob) {
		mu.Lock()
		seen = append(seen, job.TrackID)
		mu.Unlock()
		done <- struct{}{}
	}, 8, zaptest.NewLogger(t))
	pool.Start(2)
	defer pool.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, pool.Submit(ports.LyricsJob{ID: "job-" + id, TrackID: id}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestPool_SubmitDropsWhenFull(t *testing.T) {
	pool := NewPool(func(ctx context.Context, job ports.LyricsJob) {}, 1, zaptest.NewLogger(t))
	// no workers started, so the queue never drains

	assert.True(t, pool.Submit(ports.LyricsJob{TrackID: "first"}))
	assert.False(t, pool.Submit(ports.LyricsJob{TrackID: "second"}))
}

func TestPool_StopCancelsContextAndRejectsSubmits(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})

	pool := NewPool(func(ctx context.Context, job ports.LyricsJob) {
		close(started)
		<-ctx.Done()
		close(canceled)
	}, 1, zaptest.NewLogger(t))
	pool.Start(1)

	require.True(t, pool.Submit(ports.LyricsJob{TrackID: "slow"}))
	<-started

	pool.Stop()
	select {
	case <-canceled:
	default:
		t.Fatal("handler context was not canceled by Stop")
	}
	assert.False(t, pool.Submit(ports.LyricsJob{TrackID: "late"}))
	pool.Stop()
}

func TestPool_RecoversFromPanickingHandler(t *testing.T) {
	done := make(chan string, 2)
	pool := NewPool(func(ctx context.Context, job ports.LyricsJob) {
		if job.TrackID == "boom" {
			panic("handler failure")
		}
		done <- job.TrackID
	}, 4, zaptest.NewLogger(t))
	pool.Start(1)
	defer pool.Stop()

	pool.Submit(ports.LyricsJob{TrackID: "boom"})
	pool.Submit(ports.LyricsJob{TrackID: "ok"})

	select {
	case id := <-done:
		assert.Equal(t, "ok", id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

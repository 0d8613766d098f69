package services

import (
	"math"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// LyricsStatus is what the lyrics view can currently show.
type LyricsStatus string

const (
	LyricsIdle    LyricsStatus = "idle"
	LyricsLoading LyricsStatus = "loading"
	LyricsNone    LyricsStatus = "no_lyrics"
	LyricsReady   LyricsStatus = "ready"
)

// LyricsViewLine is one rendered line.
type LyricsViewLine struct {
	Text       string          `json:"text"`
	Kind       domain.LineKind `json:"kind"`
	Emphasis   domain.Emphasis `json:"emphasis,omitempty"`
	GroupStart bool            `json:"group_start,omitempty"`
	GroupEnd   bool            `json:"group_end,omitempty"`
}

// LyricsView is a snapshot of the synchronizer for a presentation layer.
type LyricsView struct {
	TrackID    string           `json:"track_id,omitempty"`
	Status     LyricsStatus     `json:"status"`
	Index      int              `json:"index"`
	Progress   float64          `json:"progress"`
	PositionMs int              `json:"position_ms"`
	DurationMs int              `json:"duration_ms"`
	Lines      []LyricsViewLine `json:"lines"`
}

// LyricsSynchronizer tracks the current line of the loaded lyrics as
// playback progresses.
type LyricsSynchronizer struct {
	params domain.SyncParams
	scroll *ScrollController
	logger *zap.Logger

	mu         sync.Mutex
	trackID    string
	status     LyricsStatus
	doc        domain.LyricsDocument
	cursor     domain.Cursor
	positionMs int
	durationMs int
}

// NewLyricsSynchronizer constructs an idle synchronizer. scroll may be nil.
func NewLyricsSynchronizer(params domain.SyncParams, scroll *ScrollController, logger *zap.Logger) *LyricsSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LyricsSynchronizer{
		params: params,
		scroll: scroll,
		logger: logger.Named("lyrics_sync"),
		status: LyricsIdle,
		cursor: domain.NoCursor(),
	}
}

// Clear returns to the idle state, used when nothing is playing.
func (s *LyricsSynchronizer) Clear() {
	s.mu.Lock()
	s.trackID = ""
	s.status = LyricsIdle
	s.doc = domain.LyricsDocument{}
	s.cursor = domain.NoCursor()
	s.mu.Unlock()

	if s.scroll != nil {
		s.scroll.Reset()
	}
}

// SetLoading switches to trackID and discards the previous document.
func (s *LyricsSynchronizer) SetLoading(trackID string) {
	s.mu.Lock()
	s.trackID = trackID
	s.status = LyricsLoading
	s.doc = domain.LyricsDocument{}
	s.cursor = domain.NoCursor()
	s.mu.Unlock()

	if s.scroll != nil {
		s.scroll.Reset()
	}
}

// SetLyrics installs the text for trackID. It returns false when the
// synchronizer has moved on to another track or was cleared meanwhile.
func (s *LyricsSynchronizer) SetLyrics(trackID, text string) bool {
	doc := domain.Parse(text)

	s.mu.Lock()
	if s.trackID == "" || s.trackID != trackID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale lyrics", zap.String("track_id", trackID))
		return false
	}
	s.trackID = trackID
	s.doc = doc
	s.cursor = domain.NoCursor()
	s.status = LyricsReady
	if doc.Empty() {
		s.status = LyricsNone
	}
	s.mu.Unlock()

	if s.scroll != nil {
		s.scroll.Reset()
	}
	return true
}

// Update recomputes the cursor from a playback state. A scroll is requested
// whenever the current line changes.
func (s *LyricsSynchronizer) Update(state domain.PlaybackState) {
	s.mu.Lock()
	s.positionMs = state.PositionMs
	s.durationMs = state.DurationMs
	if s.status != LyricsReady || state.TrackID() != s.trackID {
		s.mu.Unlock()
		return
	}

	cursor, ok := domain.ComputeCursor(state.PositionMs, state.DurationMs, s.doc, s.params)
	if !ok {
		cursor = domain.NoCursor()
	}
	changed := cursor.Index != s.cursor.Index
	s.cursor = cursor
	s.mu.Unlock()

	if changed && cursor.Valid() && s.scroll != nil {
		s.scroll.ScrollTo(cursor.Index)
	}
}

// Cursor returns the current read head.
func (s *LyricsSynchronizer) Cursor() domain.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// View returns a rendering snapshot.
func (s *LyricsSynchronizer) View() LyricsView {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.cursor
	return LyricsView{
		TrackID:    s.trackID,
		Status:     s.status,
		Index:      cursor.Index,
		Progress:   cursor.Progress,
		PositionMs: s.positionMs,
		DurationMs: s.durationMs,
		Lines: lo.Map(s.doc.Lines, func(line domain.Line, i int) LyricsViewLine {
			return LyricsViewLine{
				Text:       line.Text,
				Kind:       line.Kind,
				Emphasis:   cursor.Emphasis(i),
				GroupStart: line.GroupStart,
				GroupEnd:   line.GroupEnd,
			}
		}),
	}
}

const (
	baseScrollDuration = 500 * time.Millisecond
	scrollDistanceSpan = 5.0
	minScrollFactor    = 0.2
)

// ScrollCommand asks the view to center Index over Duration.
type ScrollCommand struct {
	Index    int
	Duration time.Duration
}

// ScrollDuration scales the animation by how far the view jumps. Small
// forward steps are slow, long jumps are capped at the base duration.
func ScrollDuration(distance int) time.Duration {
	if distance < 0 {
		distance = -distance
	}
	factor := lo.Clamp(float64(distance)/scrollDistanceSpan, minScrollFactor, 1)
	return time.Duration(math.Round(float64(baseScrollDuration) * factor))
}

// ScrollController rate-limits scroll commands. Requests that arrive inside
// the interval collapse into one trailing command for the latest index.
type ScrollController struct {
	interval time.Duration
	emit     func(ScrollCommand)
	now      func() time.Time

	mu        sync.Mutex
	last      time.Time
	lastIndex int
	pending   int
	timer     *time.Timer
}

// NewScrollController builds a controller that calls emit for each command.
func NewScrollController(interval time.Duration, emit func(ScrollCommand)) *ScrollController {
	return &ScrollController{
		interval:  interval,
		emit:      emit,
		now:       time.Now,
		lastIndex: domain.NoLine,
		pending:   domain.NoLine,
	}
}

// ScrollTo requests that index be centered.
func (c *ScrollController) ScrollTo(index int) {
	if index < 0 {
		return
	}

	c.mu.Lock()
	now := c.now()
	since := now.Sub(c.last)
	if c.timer == nil && (c.last.IsZero() || since >= c.interval) {
		cmd := c.commandLocked(index)
		c.last = now
		c.mu.Unlock()
		c.emit(cmd)
		return
	}

	c.pending = index
	if c.timer == nil {
		c.timer = time.AfterFunc(c.interval-since, c.flush)
	}
	c.mu.Unlock()
}

// Reset forgets the previous index and drops a pending command.
func (c *ScrollController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastIndex = domain.NoLine
	c.pending = domain.NoLine
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *ScrollController) flush() {
	c.mu.Lock()
	c.timer = nil
	if c.pending == domain.NoLine {
		c.mu.Unlock()
		return
	}
	cmd := c.commandLocked(c.pending)
	c.pending = domain.NoLine
	c.last = c.now()
	c.mu.Unlock()
	c.emit(cmd)
}

func (c *ScrollController) commandLocked(index int) ScrollCommand {
	distance := index
	if c.lastIndex != domain.NoLine {
		distance = index - c.lastIndex
	}
	c.lastIndex = index
	return ScrollCommand{Index: index, Duration: ScrollDuration(distance)}
}

package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

func readyView(n int, current int) services.LyricsView {
	cursor := domain.Cursor{Index: current}
	lines := make([]services.LyricsViewLine, n)
	for i := range lines {
		lines[i] = services.LyricsViewLine{
			Text:     fmt.Sprintf("line %02d", i),
			Kind:     domain.LineContent,
			Emphasis: cursor.Emphasis(i),
		}
	}
	return services.LyricsView{
		TrackID:    "t1",
		Status:     services.LyricsReady,
		Index:      current,
		PositionMs: 65000,
		DurationMs: 180000,
		Lines:      lines,
	}
}

func TestRenderWindow_Statuses(t *testing.T) {
	tests := []struct {
		status services.LyricsStatus
		want   string
	}{
		{status: services.LyricsIdle, want: "waiting for playback"},
		{status: services.LyricsLoading, want: "loading lyrics"},
		{status: services.LyricsNone, want: "no lyrics found"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			out := renderWindow(services.LyricsView{Status: tt.status}, "", domain.NoLine, 3)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "nothing playing")
		})
	}
}

func TestRenderWindow_CentersOnCurrentLine(t *testing.T) {
	out := renderWindow(readyView(20, 10), "Artist - Song", 10, 2)

	assert.Contains(t, out, "Artist - Song")
	assert.Contains(t, out, "1:05 / 3:00")
	for i := 8; i <= 12; i++ {
		assert.Contains(t, out, fmt.Sprintf("line %02d", i))
	}
	assert.NotContains(t, out, "line 07")
	assert.NotContains(t, out, "line 13")
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "line 10") {
			assert.True(t, strings.HasPrefix(l, currentMarker), l)
		}
	}
}

func TestRenderWindow_ClampsAtEdges(t *testing.T) {
	out := renderWindow(readyView(4, 0), "", domain.NoLine, 3)

	assert.Contains(t, out, "t1")
	for i := 0; i < 4; i++ {
		assert.Contains(t, out, fmt.Sprintf("line %02d", i))
	}
}

func TestRenderWindow_SectionDivider(t *testing.T) {
	view := readyView(3, 1)
	view.Lines[2].Text = "[Chorus]"
	view.Lines[2].Kind = domain.LineMetadata
	view.Lines[2].GroupStart = true

	out := renderWindow(view, "", 1, 3)
	assert.Contains(t, out, "·")
	assert.Contains(t, out, "[Chorus]")
}

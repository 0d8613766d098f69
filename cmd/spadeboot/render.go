package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	statusStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	markerStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6C6C6C"))
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))

	emphasisStyles = map[domain.Emphasis]lipgloss.Style{
		domain.EmphasisCurrent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")),
		domain.EmphasisNear:    lipgloss.NewStyle().Foreground(lipgloss.Color("#D0D0D0")),
		domain.EmphasisFaded:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")),
		domain.EmphasisContext: lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")),
		domain.EmphasisNone:    lipgloss.NewStyle().Foreground(lipgloss.Color("#505050")),
	}
)

const currentMarker = "▶ "

// renderWindow draws radius lines on each side of center. A negative center
// falls back to the top of the document.
func renderWindow(view services.LyricsView, title string, center int, radius int) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s / %s",
		lo.CoalesceOrEmpty(title, view.TrackID, "nothing playing"),
		domain.FormatDuration(view.PositionMs),
		domain.FormatDuration(view.DurationMs))
	b.WriteString(headerStyle.Render(header))
	b.WriteByte('\n')

	switch view.Status {
	case services.LyricsIdle:
		b.WriteString(statusStyle.Render("waiting for playback"))
		return b.String()
	case services.LyricsLoading:
		b.WriteString(statusStyle.Render("loading lyrics..."))
		return b.String()
	case services.LyricsNone:
		b.WriteString(statusStyle.Render("no lyrics found for this track"))
		return b.String()
	}

	if center < 0 {
		center = 0
	}
	start := max(0, center-radius)
	end := min(len(view.Lines), center+radius+1)
	for i := start; i < end; i++ {
		line := view.Lines[i]
		if line.GroupStart && i != start {
			b.WriteString(dividerStyle.Render("·"))
			b.WriteByte('\n')
		}
		prefix := "  "
		if line.Emphasis == domain.EmphasisCurrent {
			prefix = currentMarker
		}
		style := emphasisStyles[line.Emphasis]
		if line.Kind == domain.LineMetadata {
			style = markerStyle
		}
		b.WriteString(prefix + style.Render(line.Text))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}


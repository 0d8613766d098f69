package domain

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

// LineKind separates sung lines from structural markers.
type LineKind string

const (
	LineContent  LineKind = "content"
	LineMetadata LineKind = "metadata"
)

const (
	metadataWeight   = 0.3
	minContentWeight = 0.5
	maxContentWeight = 2.0
	runesPerWeight   = 25.0
	maxShoutedRunes  = 24
)

var (
	bracketedLine = regexp.MustCompile(`^\[.*\]$`)
	labelLine     = regexp.MustCompile(`^[A-Z\s]+:$`)
	cueLine       = regexp.MustCompile(`(?i)^\(\s*(repeat|x\s*\d+|\d+\s*x|instrumental|spoken|chorus|hook|intro|outro|bridge|verse)[^)]*\)$`)
	sectionStart  = regexp.MustCompile(`(?i)^\[(Verse|Chorus|Bridge|Pre-Chorus|Outro)`)
)

// Line is one non-blank line of a LyricsDocument.
type Line struct {
	Text       string
	Kind       LineKind
	Weight     float64
	GroupStart bool
	GroupEnd   bool
}

// LyricsDocument is the parsed, weighted form of a lyrics text. It is never
// mutated after Parse returns.
type LyricsDocument struct {
	Lines       []Line
	TotalWeight float64
}

// Empty reports whether there is nothing to synchronize.
func (d LyricsDocument) Empty() bool {
	return len(d.Lines) == 0
}

// Len returns the number of lines.
func (d LyricsDocument) Len() int {
	return len(d.Lines)
}

// Parse splits text into lines, drops blank ones, classifies and weights them.
func Parse(text string) LyricsDocument {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	texts := lo.FilterMap(strings.Split(normalized, "\n"), func(raw string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(raw)
		return trimmed, trimmed != ""
	})

	lines := make([]Line, len(texts))
	for i, t := range texts {
		kind := Classify(t)
		lines[i] = Line{
			Text:       t,
			Kind:       kind,
			Weight:     lineWeight(t, kind),
			GroupStart: sectionStart.MatchString(t),
		}
	}
	for i := 0; i+1 < len(lines); i++ {
		lines[i].GroupEnd = lines[i+1].GroupStart
	}

	return LyricsDocument{
		Lines:       lines,
		TotalWeight: lo.SumBy(lines, func(l Line) float64 { return l.Weight }),
	}
}

// Classify reports whether a trimmed line is a structural marker such as
// "[Chorus]", "VERSE:", "(repeat)" or a short all-caps cue.
func Classify(text string) LineKind {
	switch {
	case bracketedLine.MatchString(text), labelLine.MatchString(text), cueLine.MatchString(text):
		return LineMetadata
	case isShouted(text):
		return LineMetadata
	default:
		return LineContent
	}
}

func isShouted(text string) bool {
	if utf8.RuneCountInString(text) > maxShoutedRunes || len(strings.Fields(text)) > 3 {
		return false
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

func lineWeight(text string, kind LineKind) float64 {
	if kind == LineMetadata {
		return metadataWeight
	}
	return lo.Clamp(float64(utf8.RuneCountInString(text))/runesPerWeight, minContentWeight, maxContentWeight)
}

// NoLine is the cursor index when no line is current.
const NoLine = -1

// Cursor is the read head into a LyricsDocument.
type Cursor struct {
	Index    int
	Progress float64
}

// NoCursor returns the "none" cursor.
func NoCursor() Cursor {
	return Cursor{Index: NoLine}
}

// Valid reports whether the cursor points at a line.
func (c Cursor) Valid() bool {
	return c.Index >= 0
}

// SyncParams are the intro/outro buffers as fractions of the track duration.
type SyncParams struct {
	IntroBuffer float64
	OutroBuffer float64
}

// DefaultSyncParams skips the first 4% and trims the last 2% of a track.
var DefaultSyncParams = SyncParams{IntroBuffer: 0.04, OutroBuffer: 0.02}

// ComputeCursor maps elapsed playback time onto the document's cumulative
// weight. It returns false when the duration is unknown or the document is
// empty; no weight math is done in that case.
func ComputeCursor(elapsedMs int, durationMs int, doc LyricsDocument, p SyncParams) (Cursor, bool) {
	if durationMs <= 0 || doc.Empty() || doc.TotalWeight <= 0 {
		return NoCursor(), false
	}

	duration := float64(durationMs)
	intro := duration * lo.Clamp(p.IntroBuffer, 0, 0.5)
	outro := duration * lo.Clamp(p.OutroBuffer, 0, 0.5)
	effective := math.Max(1, duration-intro-outro)

	position := lo.Clamp((float64(elapsedMs)-intro)/effective, 0, 1)
	target := position * doc.TotalWeight

	last := len(doc.Lines) - 1
	cumulative := 0.0
	for i, line := range doc.Lines {
		if i == last || cumulative+line.Weight > target {
			progress := 1.0
			if line.Weight > 0 {
				progress = lo.Clamp((target-cumulative)/line.Weight, 0, 1)
			}
			return Cursor{Index: i, Progress: progress}, true
		}
		cumulative += line.Weight
	}
	return Cursor{Index: last, Progress: 1}, true
}

// Emphasis is the highlight tier of a line relative to the cursor.
type Emphasis string

const (
	EmphasisCurrent Emphasis = "current"
	EmphasisNear    Emphasis = "near"
	EmphasisFaded   Emphasis = "faded"
	EmphasisContext Emphasis = "context"
	EmphasisNone    Emphasis = ""
)

// ContextRadius is how many lines around the current one get emphasis.
const ContextRadius = 3

// Emphasis returns the highlight tier of line i.
func (c Cursor) Emphasis(i int) Emphasis {
	if !c.Valid() {
		return EmphasisNone
	}
	distance := i - c.Index
	if distance < 0 {
		distance = -distance
	}
	switch {
	case distance == 0:
		return EmphasisCurrent
	case distance == 1:
		return EmphasisNear
	case distance == 2:
		return EmphasisFaded
	case distance <= ContextRadius:
		return EmphasisContext
	default:
		return EmphasisNone
	}
}

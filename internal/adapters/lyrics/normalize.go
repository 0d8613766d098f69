package lyrics

import (
	"regexp"
	"strings"
)

var (
	embedMarker = regexp.MustCompile(`(?i)\d+embed\s*$`)
	headerTerms = []string{"contributors", "translations"}
)

// normalizeQuery trims the decorations streaming catalogs add to names:
// anything from the first "[" or "(" on, and a " - " suffix on titles
// ("Song - Remastered 2011").
func normalizeQuery(artist string, title string) (string, string) {
	artist = stripDecorations(artist)
	title = stripDecorations(title)
	if head, _, found := strings.Cut(title, " - "); found {
		title = strings.TrimSpace(head)
	}
	return artist, title
}

func stripDecorations(input string) string {
	input, _, _ = strings.Cut(input, "[")
	input, _, _ = strings.Cut(input, "(")
	return strings.TrimSpace(input)
}

// cleanLyrics drops the page chrome scraped lyrics come with: contributor
// headers and the trailing embed counter.
func cleanLyrics(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if embedMarker.MatchString(trimmed) {
			if rest := strings.TrimSpace(embedMarker.ReplaceAllString(trimmed, "")); rest != "" {
				kept = append(kept, rest)
			}
			break
		}
		if isHeader(lower) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isHeader(lower string) bool {
	if strings.HasSuffix(lower, " lyrics") {
		return true
	}
	for _, term := range headerTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

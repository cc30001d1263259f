// SPDX-License-Identifier: MIT

package player

import "strings"

// Track is the artist/title pair derived from stream metadata.
type Track struct {
	Artist string
	Title  string
}

// Display renders the track for the UI line.
func (t Track) Display() string {
	if t.Artist != "" && t.Title != "" {
		return t.Artist + " - " + t.Title
	}
	if t.Title != "" {
		return t.Title
	}
	return t.Artist
}

// deriveTrack resolves the current track from a metadata lookup, checking
// the ICY stream title first, then a plain TITLE tag, then separate
// artist/title atoms. Combined titles are split on " - " so enrichment
// lookups get both atoms when possible.
func deriveTrack(meta func(string) string) Track {
	if v := stripQuotes(meta("StreamTitle")); v != "" {
		return splitCombined(v)
	}
	if v := stripQuotes(meta("TITLE")); v != "" {
		return splitCombined(v)
	}

	artist := strings.TrimSpace(meta("artist"))
	title := strings.TrimSpace(meta("title"))
	if artist == "" && title != "" {
		return splitCombined(title)
	}
	return Track{Artist: artist, Title: title}
}

// stripQuotes removes one layer of matching surrounding quotes, single or
// double. Some servers wrap the whole StreamTitle value.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '\'' || first == '"') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

// splitCombined breaks an "Artist - Title" string into its atoms. Only
// the first separator splits, titles may themselves contain dashes. A
// string without a separator becomes a bare title.
func splitCombined(s string) Track {
	artist, title, ok := strings.Cut(s, " - ")
	if !ok {
		return Track{Title: strings.TrimSpace(s)}
	}
	return Track{
		Artist: strings.TrimSpace(artist),
		Title:  strings.TrimSpace(title),
	}
}

// SPDX-License-Identifier: MIT

/*
Package enrich looks up album, year and genre for the currently playing
track against a MusicBrainz-style API.

The worker is fully decoupled from playback: it consumes track-change
events from the player state, keeps an in-memory result cache, and spaces
outbound requests at least one second apart. Nothing here is on or near
the real-time path.
*/
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"webradio/internal/log"
	"webradio/internal/player"
)

const (
	minRequestInterval = time.Second
	requestTimeout     = 5 * time.Second
	userAgent          = "webradio/1.0 (webradio@localhost)"
)

// TrackInfo is the enrichment result for one track.
type TrackInfo struct {
	Album     string
	Year      string
	Genre     string
	Available bool
}

// Result pairs a lookup with the track that triggered it.
type Result struct {
	Artist string
	Title  string
	Info   TrackInfo
}

// Fetcher is the enrichment worker. Create with NewFetcher, drive with
// Run, consume via Results.
type Fetcher struct {
	endpoint string
	client   *http.Client

	mu    sync.Mutex
	cache map[string]TrackInfo

	lastRequest time.Time

	results chan Result
}

func NewFetcher(endpoint string) *Fetcher {
	return &Fetcher{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: requestTimeout},
		cache:    make(map[string]TrackInfo),
		results:  make(chan Result, 8),
	}
}

// Results delivers completed lookups. Slow consumers lose results rather
// than stalling the worker.
func (f *Fetcher) Results() <-chan Result { return f.results }

// Cached returns the cached info for a track, if a lookup has completed.
func (f *Fetcher) Cached(artist, title string) (TrackInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.cache[cacheKey(artist, title)]
	return info, ok
}

// Run consumes track changes until ctx is cancelled. Call on its own
// goroutine.
func (f *Fetcher) Run(ctx context.Context, tracks <-chan player.TrackChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case tc := <-tracks:
			if tc.Artist == "" && tc.Title == "" {
				continue
			}
			f.handle(ctx, tc)
		}
	}
}

func (f *Fetcher) handle(ctx context.Context, tc player.TrackChange) {
	key := cacheKey(tc.Artist, tc.Title)

	f.mu.Lock()
	info, ok := f.cache[key]
	f.mu.Unlock()

	if !ok {
		if !f.waitForSlot(ctx) {
			return
		}
		var err error
		info, err = f.query(ctx, tc.Artist, tc.Title)
		if err != nil {
			log.Warnf("enrich: lookup %q/%q: %v", tc.Artist, tc.Title, err)
			return
		}
		f.mu.Lock()
		f.cache[key] = info
		f.mu.Unlock()
	}

	select {
	case f.results <- Result{Artist: tc.Artist, Title: tc.Title, Info: info}:
	default:
	}
}

// waitForSlot enforces the minimum spacing between API requests.
func (f *Fetcher) waitForSlot(ctx context.Context) bool {
	wait := minRequestInterval - time.Since(f.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
	f.lastRequest = time.Now()
	return true
}

func (f *Fetcher) query(ctx context.Context, artist, title string) (TrackInfo, error) {
	var query string
	switch {
	case artist != "" && title != "":
		query = fmt.Sprintf("recording:%q AND artist:%q", title, artist)
	case title != "":
		query = fmt.Sprintf("recording:%q", title)
	default:
		query = fmt.Sprintf("artist:%q", artist)
	}

	reqURL := fmt.Sprintf("%s/recording/?query=%s&fmt=json&limit=1",
		f.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return TrackInfo{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return TrackInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TrackInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return TrackInfo{}, err
	}
	return parseResponse(body), nil
}

type mbResponse struct {
	Recordings []mbRecording `json:"recordings"`
}

type mbRecording struct {
	Releases     []mbRelease `json:"releases"`
	Tags         []mbTag     `json:"tags"`
	ArtistCredit []struct {
		Artist struct {
			Tags []mbTag `json:"tags"`
		} `json:"artist"`
	} `json:"artist-credit"`
}

type mbRelease struct {
	Title        string `json:"title"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	ReleaseGroup struct {
		PrimaryType    string   `json:"primary-type"`
		SecondaryTypes []string `json:"secondary-types"`
	} `json:"release-group"`
}

type mbTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// parseResponse extracts album, year and genre from the first recording,
// picking the release that most looks like the original studio album.
func parseResponse(body []byte) TrackInfo {
	var info TrackInfo

	var mb mbResponse
	if err := json.Unmarshal(body, &mb); err != nil || len(mb.Recordings) == 0 {
		return info
	}
	rec := mb.Recordings[0]
	info.Available = true

	bestScore := -1000
	var bestRelease *mbRelease
	var bestYear string
	for i := range rec.Releases {
		rel := &rec.Releases[i]
		score := scoreRelease(rel)
		if score < 0 {
			// Compilations, bootlegs and the like.
			continue
		}

		year := releaseYear(rel.Date)
		if year != "" {
			// Earlier releases score higher, original albums beat
			// reissues.
			if y, err := strconv.Atoi(year); err == nil && y < 2100 {
				score += (2100 - y) / 10
			}
		}

		if score > bestScore {
			bestScore = score
			bestRelease = rel
			bestYear = year
		}
	}
	if bestRelease != nil {
		info.Album = bestRelease.Title
		info.Year = bestYear
	}

	info.Genre = topTag(rec.Tags)
	if info.Genre == "" && len(rec.ArtistCredit) > 0 {
		info.Genre = topTag(rec.ArtistCredit[0].Artist.Tags)
	}
	return info
}

func scoreRelease(rel *mbRelease) int {
	score := 0

	switch rel.Status {
	case "Official":
		score += 10
	case "Bootleg":
		score -= 20
	default:
		score += 5
	}

	switch rel.ReleaseGroup.PrimaryType {
	case "Album":
		score += 10
	case "EP":
		score += 5
	case "Single":
		score += 3
	}

	for _, secondary := range rel.ReleaseGroup.SecondaryTypes {
		switch secondary {
		case "Compilation":
			score -= 100
		case "Live":
			score -= 50
		case "Remix":
			score -= 40
		case "DJ-mix", "Mixtape/Street":
			score -= 30
		case "Spokenword", "Interview", "Audiobook", "Audio drama":
			score -= 25
		case "Soundtrack":
			score -= 20
		}
	}
	return score
}

func releaseYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func topTag(tags []mbTag) string {
	best := ""
	maxCount := -1
	for _, tag := range tags {
		if tag.Count > maxCount {
			maxCount = tag.Count
			best = tag.Name
		}
	}
	return best
}

func cacheKey(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + " - " +
		strings.ToLower(strings.TrimSpace(title))
}

// SPDX-License-Identifier: MIT

package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"webradio/internal/player"
)

func mbBody(t *testing.T, rec mbRecording) []byte {
	t.Helper()
	body, err := json.Marshal(mbResponse{Recordings: []mbRecording{rec}})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func officialAlbum(title, date string) mbRelease {
	rel := mbRelease{Title: title, Date: date, Status: "Official"}
	rel.ReleaseGroup.PrimaryType = "Album"
	return rel
}

func TestQuerySendsFormattedRequest(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotUA = r.Header.Get("User-Agent")
		w.Write(mbBody(t, mbRecording{Releases: []mbRelease{officialAlbum("Discovery", "2001-03-07")}}))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	info, err := f.query(context.Background(), "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	want := `recording:"One More Time" AND artist:"Daft Punk"`
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, userAgent)
	}
	if !info.Available || info.Album != "Discovery" || info.Year != "2001" {
		t.Errorf("info = %+v", info)
	}
}

func TestQueryTitleOnly(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		w.Write(mbBody(t, mbRecording{}))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	if _, err := f.query(context.Background(), "", "Untitled"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if want := `recording:"Untitled"`; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}

func TestRunCachesRepeatedTracks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(mbBody(t, mbRecording{Releases: []mbRelease{officialAlbum("Abbey Road", "1969-09-26")}}))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracks := make(chan player.TrackChange, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx, tracks)
	}()

	tc := player.TrackChange{Artist: "The Beatles", Title: "Come Together"}
	tracks <- tc
	tracks <- tc

	for i := 0; i < 2; i++ {
		select {
		case res := <-f.Results():
			if res.Info.Album != "Abbey Road" || res.Info.Year != "1969" {
				t.Errorf("result %d = %+v", i, res.Info)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for result %d", i)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (second lookup should come from cache)", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestRunIgnoresEmptyTracks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	tracks := make(chan player.TrackChange, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx, tracks)
	}()

	tracks <- player.TrackChange{}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := hits.Load(); got != 0 {
		t.Errorf("server hits = %d, want 0", got)
	}
}

func TestParseResponsePrefersStudioAlbum(t *testing.T) {
	comp := officialAlbum("Greatest Hits", "2010-01-01")
	comp.ReleaseGroup.SecondaryTypes = []string{"Compilation"}
	live := officialAlbum("Live at Wembley", "1992-05-26")
	live.ReleaseGroup.SecondaryTypes = []string{"Live"}
	rec := mbRecording{
		Releases: []mbRelease{comp, live, officialAlbum("A Night at the Opera", "1975-11-21")},
		Tags:     []mbTag{{Name: "pop", Count: 2}, {Name: "rock", Count: 7}},
	}
	body, err := json.Marshal(mbResponse{Recordings: []mbRecording{rec}})
	if err != nil {
		t.Fatal(err)
	}

	info := parseResponse(body)
	if info.Album != "A Night at the Opera" {
		t.Errorf("Album = %q, want studio album", info.Album)
	}
	if info.Year != "1975" {
		t.Errorf("Year = %q, want 1975", info.Year)
	}
	if info.Genre != "rock" {
		t.Errorf("Genre = %q, want rock", info.Genre)
	}
}

func TestParseResponsePrefersEarlierRelease(t *testing.T) {
	rec := mbRecording{
		Releases: []mbRelease{
			officialAlbum("Reissue", "2015-06-01"),
			officialAlbum("Original", "1983-02-14"),
		},
	}
	body, err := json.Marshal(mbResponse{Recordings: []mbRecording{rec}})
	if err != nil {
		t.Fatal(err)
	}

	info := parseResponse(body)
	if info.Album != "Original" {
		t.Errorf("Album = %q, want Original", info.Album)
	}
}

func TestParseResponseGenreFallsBackToArtistTags(t *testing.T) {
	rec := mbRecording{Releases: []mbRelease{officialAlbum("LP", "2000")}}
	rec.ArtistCredit = make([]struct {
		Artist struct {
			Tags []mbTag `json:"tags"`
		} `json:"artist"`
	}, 1)
	rec.ArtistCredit[0].Artist.Tags = []mbTag{{Name: "jazz", Count: 3}}
	body, err := json.Marshal(mbResponse{Recordings: []mbRecording{rec}})
	if err != nil {
		t.Fatal(err)
	}

	if got := parseResponse(body).Genre; got != "jazz" {
		t.Errorf("Genre = %q, want jazz", got)
	}
}

func TestParseResponseNoRecordings(t *testing.T) {
	info := parseResponse([]byte(`{"recordings":[]}`))
	if info.Available {
		t.Error("Available = true for empty response")
	}
}

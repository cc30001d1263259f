// SPDX-License-Identifier: MIT

package player

import (
	"sync"
	"sync/atomic"
)

// TrackChange is emitted when the derived track title changes. Artist may
// be empty when the stream only provides a combined title that could not
// be split.
type TrackChange struct {
	Artist string
	Title  string
}

// State is the shared session state between the decode goroutine and the
// UI poller. Each field is independently synchronized; readers tolerate
// staleness of one poll cycle. String fields use take-if-changed
// semantics so the poller only redraws what actually moved.
type State struct {
	playing      atomic.Bool
	playingDirty atomic.Bool

	// Pre-buffer fill percentage, -1 outside the pre-buffer phase.
	bufferPercent atomic.Int32

	kbps atomic.Int32

	mu              sync.Mutex
	title           string
	titleDirty      bool
	streamInfo      string
	streamInfoDirty bool
	genre           string
	genreDirty      bool

	trackChanges chan TrackChange
}

func NewState() *State {
	s := &State{
		// Buffered so the decode goroutine never blocks on a slow or
		// absent consumer; overflow drops the oldest pending change.
		trackChanges: make(chan TrackChange, 8),
	}
	s.bufferPercent.Store(-1)
	return s
}

func (s *State) SetPlaying(v bool) {
	if s.playing.Swap(v) != v {
		s.playingDirty.Store(true)
	}
}

func (s *State) Playing() bool { return s.playing.Load() }

// TakePlayingChange reports the current playing state and whether it
// changed since the last take.
func (s *State) TakePlayingChange() (bool, bool) {
	return s.playing.Load(), s.playingDirty.Swap(false)
}

func (s *State) SetBufferPercent(p int) { s.bufferPercent.Store(int32(p)) }

// BufferPercent returns the pre-buffer fill percentage, or -1 when no
// pre-buffering is in progress.
func (s *State) BufferPercent() int { return int(s.bufferPercent.Load()) }

func (s *State) SetKbps(v int) { s.kbps.Store(int32(v)) }
func (s *State) Kbps() int     { return int(s.kbps.Load()) }

// SetTrack records the derived title for display and queues a TrackChange
// for the enrichment worker. Callers emit only on actual change.
func (s *State) SetTrack(t Track) {
	s.mu.Lock()
	s.title = t.Display()
	s.titleDirty = true
	s.mu.Unlock()

	select {
	case s.trackChanges <- TrackChange{Artist: t.Artist, Title: t.Title}:
	default:
		// Drop the oldest pending change to make room for the newest.
		select {
		case <-s.trackChanges:
		default:
		}
		select {
		case s.trackChanges <- TrackChange{Artist: t.Artist, Title: t.Title}:
		default:
		}
	}
}

func (s *State) TakeTitle() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, dirty := s.title, s.titleDirty
	s.titleDirty = false
	return v, dirty
}

func (s *State) SetStreamInfo(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamInfo == v {
		return
	}
	s.streamInfo = v
	s.streamInfoDirty = true
}

func (s *State) TakeStreamInfo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, dirty := s.streamInfo, s.streamInfoDirty
	s.streamInfoDirty = false
	return v, dirty
}

func (s *State) SetGenre(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v == "" || s.genre == v {
		return
	}
	s.genre = v
	s.genreDirty = true
}

func (s *State) TakeGenre() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, dirty := s.genre, s.genreDirty
	s.genreDirty = false
	return v, dirty
}

// TrackChanges is the event stream consumed by the enrichment worker.
func (s *State) TrackChanges() <-chan TrackChange { return s.trackChanges }

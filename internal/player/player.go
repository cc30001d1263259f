// SPDX-License-Identifier: MIT

/*
Package player drives one active stream session end-to-end: open,
pre-buffer, steady-state decode into the ring buffer, teardown. It owns
the producer side of the ring; the Sink in this package owns the consumer
side on the real-time thread.
*/
package player

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"webradio/internal/log"
	"webradio/internal/ring"
)

const (
	// PrebufferBytes is the startup fill target, about 0.37 s of stereo
	// s16 audio at 44100 Hz. Absorbs connection jitter before playback.
	PrebufferBytes = 65536

	// retryInterval bounds the backpressure sleep when the ring is full
	// and the shutdown latency of the decode goroutine.
	retryInterval = time.Millisecond

	// metadataInterval re-inspects inline metadata every Nth packet.
	metadataInterval = 5

	packetSize = 4096
)

// Session is an open, decodable stream. decode.Session satisfies this;
// tests substitute fakes.
type Session interface {
	// ReadPCM fills dst with stereo s16le bytes, returning the count.
	ReadPCM(dst []byte) (int, error)
	// Metadata resolves an inline tag, "" when absent.
	Metadata(key string) string
	// BytesReceived counts compressed bytes off the wire.
	BytesReceived() uint64
	// FormatLabel describes the stream, e.g. "MP3 128kbps".
	FormatLabel() string
	Close() error
}

// OpenFunc establishes a session for a stream URL.
type OpenFunc func(ctx context.Context, url string) (Session, error)

// Player runs at most one decode goroutine at a time. Starting a new
// stream fully joins and tears down the previous one first.
type Player struct {
	ring  *ring.Buffer
	state *State
	open  OpenFunc

	stop atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

func New(rb *ring.Buffer, state *State, open OpenFunc) *Player {
	return &Player{ring: rb, state: state, open: open}
}

// Play stops any current session and starts streaming url on a new
// decode goroutine. It returns once the goroutine is launched; progress
// and outcome surface through State.
func (p *Player) Play(ctx context.Context, url string) {
	p.Stop()

	p.stop.Store(false)
	p.ring.RequestDrain() // the sink drops stale audio on its next read
	p.state.SetBufferPercent(0)

	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		if !p.stream(ctx, url) {
			log.Warnf("playback of %s ended with failure", url)
		}
	}()
}

// Stop requests termination and joins the decode goroutine. Bounded by
// the retry interval plus one blocking read.
func (p *Player) Stop() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return
	}

	p.stop.Store(true)
	<-done

	p.mu.Lock()
	if p.done == done {
		p.done = nil
	}
	p.mu.Unlock()
}

// stream runs the full pipeline for one session. The boolean outcome is
// the only thing that crosses back: true for a clean end (stop request or
// end of stream), false for open or decode failure.
func (p *Player) stream(ctx context.Context, url string) bool {
	sess, err := p.open(ctx, url)
	if err != nil {
		log.Errorf("open %s: %v", url, err)
		p.state.SetBufferPercent(-1)
		return false
	}
	defer sess.Close()
	defer p.ring.RequestDrain()

	p.state.SetStreamInfo(sess.FormatLabel())
	p.state.SetGenre(sess.Metadata("genre"))

	buf := make([]byte, packetSize)

	if !p.prebuffer(sess, buf) {
		return false
	}
	if p.stop.Load() {
		return true
	}

	p.state.SetPlaying(true)
	defer p.state.SetPlaying(false)

	return p.steady(sess, buf)
}

// prebuffer fills the ring to the startup target, reporting percent
// filled. Returns false on decode error or stop request.
func (p *Player) prebuffer(sess Session, buf []byte) bool {
	for p.ring.ReadAvailable() < PrebufferBytes && !p.stop.Load() {
		n, err := sess.ReadPCM(buf)
		if err != nil {
			log.Errorf("pre-buffer: %v", err)
			p.state.SetBufferPercent(-1)
			return false
		}
		if n == 0 {
			time.Sleep(retryInterval)
			continue
		}
		if !p.writeAll(buf[:n]) {
			break
		}

		pct := int(p.ring.ReadAvailable() * 100 / PrebufferBytes)
		if pct > 100 {
			pct = 100
		}
		p.state.SetBufferPercent(pct)
	}
	p.state.SetBufferPercent(-1)
	return true
}

// steady is the main decode loop: read, write with backpressure, derive
// metadata every few packets, refresh the bitrate once per second.
func (p *Player) steady(sess Session, buf []byte) bool {
	var lastTrack Track
	packets := 0
	lastCalc := time.Now()
	lastBytes := sess.BytesReceived()

	for !p.stop.Load() {
		n, err := sess.ReadPCM(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Infof("stream ended")
				return true
			}
			log.Errorf("decode: %v", err)
			return false
		}
		if n == 0 {
			time.Sleep(retryInterval)
			continue
		}
		if !p.writeAll(buf[:n]) {
			break
		}

		packets++
		if packets%metadataInterval == 0 {
			if t := deriveTrack(sess.Metadata); t != lastTrack && t.Display() != "" {
				lastTrack = t
				p.state.SetTrack(t)
			}
			p.state.SetGenre(sess.Metadata("genre"))
		}

		if now := time.Now(); now.Sub(lastCalc) >= time.Second {
			elapsedMs := uint64(now.Sub(lastCalc).Milliseconds())
			delta := sess.BytesReceived() - lastBytes
			// Rounded to the nearest kbps.
			p.state.SetKbps(int((delta*1000 + elapsedMs*512) / (elapsedMs * 1024)))
			lastBytes = sess.BytesReceived()
			lastCalc = now
		}
	}
	return true
}

// writeAll pushes b into the ring, retrying partial writes after a short
// sleep. The stop flag is checked between retries so shutdown is never
// delayed by more than one interval. Returns false when stopped.
func (p *Player) writeAll(b []byte) bool {
	for len(b) > 0 {
		n := p.ring.Write(b)
		b = b[n:]
		if len(b) == 0 {
			break
		}
		if p.stop.Load() {
			return false
		}
		time.Sleep(retryInterval)
	}
	return true
}

// SPDX-License-Identifier: MIT

package player

import (
	"math"
	"sync/atomic"

	"webradio/internal/ring"
	"webradio/internal/spectrum"
)

// Volume is a shared scalar in [0,1], written by the control goroutine
// and read once per audio callback.
type Volume struct {
	bits atomic.Uint64
}

func NewVolume(v float64) *Volume {
	vol := &Volume{}
	vol.Set(v)
	return vol
}

func (v *Volume) Set(f float64) {
	f = math.Max(0, math.Min(1, f))
	v.bits.Store(math.Float64bits(f))
}

func (v *Volume) Get() float64 {
	return math.Float64frombits(v.bits.Load())
}

// Sink feeds the hardware callback from the ring buffer. Fill runs on the
// real-time thread: no blocking, no allocation, no logging. Underruns
// degrade to silence by zero-filling the shortfall.
type Sink struct {
	ring     *ring.Buffer
	analyzer *spectrum.Analyzer
	volume   *Volume
	scratch  []byte
}

// NewSink preallocates for the engine's buffer size; maxFrames is the
// largest per-callback frame count the engine will request.
func NewSink(rb *ring.Buffer, an *spectrum.Analyzer, vol *Volume, maxFrames int) *Sink {
	return &Sink{
		ring:     rb,
		analyzer: an,
		volume:   vol,
		scratch:  make([]byte, maxFrames*2*2), // stereo s16
	}
}

// Fill supplies len(out) interleaved stereo s16 samples within the
// caller's deadline.
func (s *Sink) Fill(out []int16) {
	need := len(out) * 2
	if need > len(s.scratch) {
		need = len(s.scratch)
	}
	n := s.ring.Read(s.scratch[:need])

	samples := n / 2
	for i := 0; i < samples; i++ {
		out[i] = int16(uint16(s.scratch[2*i]) | uint16(s.scratch[2*i+1])<<8)
	}
	for i := samples; i < len(out); i++ {
		out[i] = 0
	}

	// Volume is read once per callback; a change lands on the next
	// buffer, never mid-buffer. The multiply is skipped near unity.
	if vol := s.volume.Get(); vol < 0.99 {
		for i := 0; i < samples; i++ {
			out[i] = int16(float64(out[i]) * vol)
		}
	}

	s.analyzer.Push(out)
}

// SPDX-License-Identifier: MIT

package player

import (
	"encoding/binary"
	"testing"

	"webradio/internal/ring"
	"webradio/internal/spectrum"
)

func newTestSink(t *testing.T, vol float64, maxFrames int) (*Sink, *ring.Buffer, *spectrum.Analyzer) {
	t.Helper()
	rb, err := ring.New(4096)
	if err != nil {
		t.Fatalf("ring.New: %v", err)
	}
	an, err := spectrum.NewUnthrottled(spectrum.DefaultWindowSize, spectrum.DefaultSampleRate)
	if err != nil {
		t.Fatalf("spectrum.NewUnthrottled: %v", err)
	}
	return NewSink(rb, an, NewVolume(vol), maxFrames), rb, an
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestSinkFillDecodesLittleEndian(t *testing.T) {
	sink, rb, _ := newTestSink(t, 1.0, 64)

	want := []int16{100, -100, 32767, -32768}
	rb.Write(pcmBytes(want))

	out := make([]int16, 4)
	sink.Fill(out)

	for i, v := range want {
		if out[i] != v {
			t.Errorf("out[%d] = %d, want %d", i, out[i], v)
		}
	}
}

func TestSinkFillZeroFillsUnderrun(t *testing.T) {
	sink, rb, _ := newTestSink(t, 1.0, 64)

	rb.Write(pcmBytes([]int16{7, 7}))

	out := make([]int16, 8)
	for i := range out {
		out[i] = -1 // poison, must be overwritten
	}
	sink.Fill(out)

	if out[0] != 7 || out[1] != 7 {
		t.Errorf("out[0:2] = %v, want [7 7]", out[:2])
	}
	for i := 2; i < len(out); i++ {
		if out[i] != 0 {
			t.Errorf("out[%d] = %d, underrun must be silence", i, out[i])
		}
	}
}

func TestSinkFillAppliesVolume(t *testing.T) {
	sink, rb, _ := newTestSink(t, 0.5, 64)

	rb.Write(pcmBytes([]int16{1000, -1000}))

	out := make([]int16, 2)
	sink.Fill(out)

	if out[0] != 500 || out[1] != -500 {
		t.Errorf("out = %v, want [500 -500]", out)
	}
}

func TestSinkFillSkipsVolumeNearUnity(t *testing.T) {
	// 0.995 rounds samples if applied; the multiply must be skipped.
	sink, rb, _ := newTestSink(t, 0.995, 64)

	rb.Write(pcmBytes([]int16{10001}))

	out := make([]int16, 1)
	sink.Fill(out)

	if out[0] != 10001 {
		t.Errorf("out[0] = %d, want 10001 unscaled", out[0])
	}
}

func TestSinkFillForwardsToAnalyzer(t *testing.T) {
	sink, rb, an := newTestSink(t, 1.0, 64)

	rb.Write(pcmBytes(make([]int16, 64)))

	out := make([]int16, 64)
	sink.Fill(out)

	if got := an.Buffered(); got != 32 {
		t.Errorf("analyzer Buffered() = %d, want 32 mono samples", got)
	}
}

func TestSinkFillZeroAllocs(t *testing.T) {
	sink, rb, _ := newTestSink(t, 0.5, 256)
	data := pcmBytes(make([]int16, 256))
	out := make([]int16, 256)

	allocs := testing.AllocsPerRun(100, func() {
		rb.Write(data)
		sink.Fill(out)
	})
	if allocs != 0 {
		t.Errorf("Fill allocated %f times per call, want 0", allocs)
	}
}

func TestVolumeClamps(t *testing.T) {
	v := NewVolume(0.8)
	if got := v.Get(); got != 0.8 {
		t.Errorf("Get() = %f, want 0.8", got)
	}
	v.Set(1.5)
	if got := v.Get(); got != 1.0 {
		t.Errorf("Get() after Set(1.5) = %f, want 1.0", got)
	}
	v.Set(-0.1)
	if got := v.Get(); got != 0.0 {
		t.Errorf("Get() after Set(-0.1) = %f, want 0.0", got)
	}
}

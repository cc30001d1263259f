// SPDX-License-Identifier: MIT
package spectrum

import (
	"math"
	"testing"
	"time"
)

// sineStereo generates frames of an interleaved stereo sine tone, both
// channels carrying the same signal at the given amplitude.
func sineStereo(freq, rate float64, frames int, amp float64) []int16 {
	out := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(amp * 32767.0 * math.Sin(2*math.Pi*freq*float64(i)/rate))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

// barContaining returns the index of the bar whose frequency range holds f.
func barContaining(f float64) int {
	for i := 0; i < NumBars; i++ {
		if f >= barEdges[i] && f < barEdges[i+1] {
			return i
		}
	}
	return -1
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"non power of two window", Config{WindowSize: 1000}},
		{"negative sample rate", Config{SampleRate: -44100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatalf("New(%+v) succeeded, want error", tt.cfg)
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	a, err := New(Config{})
	if err != nil {
		t.Fatalf("New zero config: %v", err)
	}
	if a.WindowSize() != DefaultWindowSize {
		t.Errorf("WindowSize() = %d, want %d", a.WindowSize(), DefaultWindowSize)
	}
	if a.tickInterval != DefaultTickInterval {
		t.Errorf("tickInterval = %v, want %v", a.tickInterval, DefaultTickInterval)
	}
}

func TestBarRangeProperties(t *testing.T) {
	a, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	maxBin := a.WindowSize() / 2
	for bar, r := range a.barRanges {
		start, end := r[0], r[1]
		if start < 1 {
			t.Errorf("bar %d starts at bin %d, DC must be skipped", bar, start)
		}
		if end <= start {
			t.Errorf("bar %d has empty bin range [%d,%d)", bar, start, end)
		}
		if end-start > maxBinsPerBar {
			t.Errorf("bar %d spans %d bins, cap is %d", bar, end-start, maxBinsPerBar)
		}
		if end > maxBin {
			t.Errorf("bar %d ends at bin %d, past Nyquist bin %d", bar, end, maxBin)
		}
		if bar > 0 && start < a.barRanges[bar-1][0] {
			t.Errorf("bar %d starts before bar %d", bar, bar-1)
		}
	}
}

func TestSineTonePeaksInContainingBar(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	// Exactly 20 cycles per window, so the tone sits on a bin center and
	// Hann leakage stays within the adjacent bins of the same bar.
	freq := 20.0 * DefaultSampleRate / DefaultWindowSize
	want := barContaining(freq)
	if want < 0 {
		t.Fatalf("no bar contains %f Hz", freq)
	}

	a.Push(sineStereo(freq, DefaultSampleRate, DefaultWindowSize, 0.5))
	a.Process()

	var bars [NumBars]float64
	if !a.Snapshot(bars[:]) {
		t.Fatal("Snapshot reported no update after a full-window tick")
	}

	best := 0
	for i, v := range bars {
		if v > bars[best] {
			best = i
		}
	}
	if best != want {
		t.Errorf("highest bar = %d (%.4f), want bar %d (%.4f) containing %.1f Hz",
			best, bars[best], want, bars[want], freq)
	}
	if bars[want] <= 0 {
		t.Errorf("containing bar magnitude = %f, want > 0", bars[want])
	}
}

func TestAutoGainConvergence(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	freq := 20.0 * DefaultSampleRate / DefaultWindowSize
	bar := barContaining(freq)
	tone := sineStereo(freq, DefaultSampleRate, DefaultWindowSize, 0.25)

	// A constant-amplitude tone pins the bar's tracked peak to its raw
	// magnitude, so the normalized value is 1.0 every tick and the
	// smoothed bar converges there through the attack filter.
	for i := 0; i < 30; i++ {
		a.Push(tone)
		a.Process()
	}

	var bars [NumBars]float64
	a.Snapshot(bars[:])
	if bars[bar] < 0.95 {
		t.Errorf("bar %d = %f after 30 ticks of a steady tone, want >= 0.95", bar, bars[bar])
	}
	if bars[bar] > 1.0 {
		t.Errorf("bar %d = %f, must stay clamped to 1.0", bar, bars[bar])
	}
}

func TestAttackFasterThanDecay(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	freq := 20.0 * DefaultSampleRate / DefaultWindowSize
	bar := barContaining(freq)
	tone := sineStereo(freq, DefaultSampleRate, DefaultWindowSize, 0.5)
	silence := make([]int16, DefaultWindowSize*2)

	var bars [NumBars]float64

	riseTicks := 0
	for bars[bar] < 0.9 {
		a.Push(tone)
		a.Process()
		a.Snapshot(bars[:])
		riseTicks++
		if riseTicks > 100 {
			t.Fatal("bar never rose to 0.9")
		}
	}

	top := bars[bar]
	fallTicks := 0
	for bars[bar] > top-0.9 {
		a.Push(silence)
		a.Process()
		a.Snapshot(bars[:])
		fallTicks++
		if fallTicks > 1000 {
			t.Fatal("bar never fell")
		}
	}

	if riseTicks >= fallTicks {
		t.Errorf("rise took %d ticks, fall took %d, attack must be faster than decay", riseTicks, fallTicks)
	}
}

func TestInsufficientSamplesSkipsTick(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	// Half a window of silence: not enough for an analysis tick.
	a.Push(make([]int16, DefaultWindowSize))
	a.Process()

	var bars [NumBars]float64
	if a.Snapshot(bars[:]) {
		t.Error("Snapshot reported an update after a starved tick")
	}
	for i, v := range bars {
		if v != 0 {
			t.Errorf("bar %d = %f after starved tick, want 0", i, v)
		}
	}
	if got := a.Buffered(); got != DefaultWindowSize/2 {
		t.Errorf("Buffered() = %d, starved tick must not consume samples, want %d", got, DefaultWindowSize/2)
	}
}

func TestTickThrottling(t *testing.T) {
	a, err := New(Config{TickInterval: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.Push(make([]int16, DefaultWindowSize*2))
	a.Process()

	if got := a.Buffered(); got != DefaultWindowSize {
		t.Errorf("Buffered() = %d, throttled tick must not drain, want %d", got, DefaultWindowSize)
	}
	var bars [NumBars]float64
	if a.Snapshot(bars[:]) {
		t.Error("Snapshot reported an update from a throttled tick")
	}
}

func TestSnapshotClearsUpdatedFlag(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	a.Push(sineStereo(440, DefaultSampleRate, DefaultWindowSize, 0.5))
	a.Process()

	var bars [NumBars]float64
	if !a.Snapshot(bars[:]) {
		t.Fatal("first Snapshot after a tick: updated = false, want true")
	}
	if a.Snapshot(bars[:]) {
		t.Error("second Snapshot without a tick: updated = true, want false")
	}
}

func TestBarsDoesNotConsumeUpdatedFlag(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}

	a.Push(sineStereo(440, DefaultSampleRate, DefaultWindowSize, 0.5))
	a.Process()

	// A secondary consumer reading between the tick and the poller's
	// Snapshot must not cost the poller its update.
	var side [NumBars]float64
	a.Bars(side[:])

	var bars [NumBars]float64
	if !a.Snapshot(bars[:]) {
		t.Fatal("Snapshot after Bars: updated = false, want true")
	}
	if side != bars {
		t.Error("Bars and Snapshot returned different magnitudes for the same tick")
	}
}

func TestPushZeroAllocs(t *testing.T) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewUnthrottled: %v", err)
	}
	samples := sineStereo(440, DefaultSampleRate, 512, 0.5)

	allocs := testing.AllocsPerRun(100, func() {
		a.Push(samples)
	})
	if allocs != 0 {
		t.Errorf("Push allocated %f times per call, want 0", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	a, err := NewUnthrottled(DefaultWindowSize, DefaultSampleRate)
	if err != nil {
		b.Fatalf("NewUnthrottled: %v", err)
	}
	tone := sineStereo(440, DefaultSampleRate, DefaultWindowSize, 0.5)

	for b.Loop() {
		a.Push(tone)
		a.Process()
	}
}

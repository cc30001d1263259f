// SPDX-License-Identifier: MIT
/*
Package spectrum derives a 16-band bar visualization from the post-volume
playback samples.

The audio callback pushes interleaved stereo s16 samples; a lower-frequency
poller drives the analysis tick, which applies a Hann window, a forward
real FFT, logarithmic bar mapping with per-bar auto-gain, and asymmetric
attack/decay smoothing with gravity. The resulting snapshot is read by the
UI poller via copy-and-clear-flag.

Thread safety:
  - Push holds a short lock around a plain append, nothing else
  - Process runs the transform on private working buffers
  - Snapshot copies under a lock and clears the updated flag atomically
*/
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"webradio/pkg/bitint"
)

// NumBars is the number of visualization bars.
const NumBars = 16

const (
	// DefaultWindowSize is the FFT window in mono samples.
	DefaultWindowSize = 2048
	// DefaultSampleRate matches the fixed playback output format.
	DefaultSampleRate = 44100
	// DefaultTickInterval targets ~30 analysis ticks per second.
	DefaultTickInterval = 33 * time.Millisecond

	// accumulatorFactor sizes the sample ring in multiples of the window.
	accumulatorFactor = 4
	// maxBinsPerBar caps wide high-frequency bars for consistent visual weight.
	maxBinsPerBar = 60

	autogainDecay = 0.995 // Per-tick decay of the tracked peak
	minPeak       = 0.001 // Floor preventing division by zero
	attackFactor  = 0.60  // Lower = faster rise
	decayFactor   = 0.85  // Higher = slower fall
	gammaExponent = 0.7   // Sub-linear curve boosting quiet detail
	gravityBase   = 0.01
	gravitySlope  = 0.04 // Taller bars fall faster
)

// barEdges are the fixed frequency boundaries in Hz: 17 edges defining the
// 16 bars, spaced roughly logarithmically.
var barEdges = [NumBars + 1]float64{
	30, 60, 90, 120, 160, 200, 250, 315,
	400, 500, 630, 800, 1000, 1600, 2500, 4000, 10000,
}

// Config holds analyzer construction parameters. The zero value selects
// the defaults. A negative TickInterval disables tick throttling, which
// tests use to drive the analyzer deterministically.
type Config struct {
	WindowSize   int
	SampleRate   float64
	TickInterval time.Duration
}

// Analyzer accumulates mono samples and periodically reduces them to 16
// smoothed bar magnitudes in [0,1].
type Analyzer struct {
	windowSize   int
	sampleRate   float64
	tickInterval time.Duration
	lastTick     time.Time

	acc *accumulator
	fft *fourier.FFT

	// Private working buffers, touched only by Process.
	winCoeffs []float64
	input     []float64
	coeffs    []complex128
	magnitude []float64

	barRanges [NumBars][2]int // [lowBin, highBin) per bar
	peaks     [NumBars]float64
	smoothed  [NumBars]float64

	snapMu   sync.Mutex
	snapshot [NumBars]float64
	updated  atomic.Bool
}

// New creates an Analyzer. The window size must be a power of two.
func New(cfg Config) (*Analyzer, error) {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	if !bitint.IsPowerOfTwo(cfg.WindowSize) {
		return nil, fmt.Errorf("spectrum: window size must be a power of 2, got %d", cfg.WindowSize)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("spectrum: sample rate must be positive, got %f", cfg.SampleRate)
	}

	winCoeffs := make([]float64, cfg.WindowSize)
	for i := range winCoeffs {
		winCoeffs[i] = 1.0
	}
	window.Hann(winCoeffs)

	binCount := cfg.WindowSize/2 + 1

	a := &Analyzer{
		windowSize:   cfg.WindowSize,
		sampleRate:   cfg.SampleRate,
		tickInterval: cfg.TickInterval,
		lastTick:     time.Now(),
		acc:          newAccumulator(cfg.WindowSize * accumulatorFactor),
		fft:          fourier.NewFFT(cfg.WindowSize),
		winCoeffs:    winCoeffs,
		input:        make([]float64, cfg.WindowSize),
		coeffs:       make([]complex128, binCount),
		magnitude:    make([]float64, binCount),
	}
	a.initBarRanges()

	for i := range a.peaks {
		a.peaks[i] = minPeak
	}

	return a, nil
}

// NewUnthrottled creates an Analyzer whose Process never skips on elapsed
// time, only on sample starvation. Used by tests to step ticks explicitly.
func NewUnthrottled(windowSize int, sampleRate float64) (*Analyzer, error) {
	return New(Config{WindowSize: windowSize, SampleRate: sampleRate, TickInterval: -1})
}

// initBarRanges converts the fixed frequency edges to FFT bin ranges:
// bin = floor(freq / (sampleRate / windowSize)), DC skipped, every bar
// guaranteed non-empty, width capped at maxBinsPerBar.
func (a *Analyzer) initBarRanges() {
	maxBin := a.windowSize / 2
	binSize := a.sampleRate / float64(a.windowSize)

	for bar := 0; bar < NumBars; bar++ {
		start := int(barEdges[bar] / binSize)
		end := int(barEdges[bar+1] / binSize)

		if start < 1 {
			start = 1 // Skip DC
		}
		if end <= start {
			end = start + 1
		}
		if end-start > maxBinsPerBar {
			end = start + maxBinsPerBar
		}
		if end > maxBin {
			end = maxBin
		}

		a.barRanges[bar] = [2]int{start, end}
	}
}

// WindowSize returns the FFT window size in mono samples.
func (a *Analyzer) WindowSize() int { return a.windowSize }

// Push ingests interleaved stereo s16 samples from the audio callback.
// Each stereo pair is averaged to one mono float. Real-time safe: a short
// lock around a plain append, no allocation, no I/O.
func (a *Analyzer) Push(samples []int16) {
	a.acc.pushStereo(samples)
}

// Buffered returns the number of mono samples awaiting analysis.
func (a *Analyzer) Buffered() int {
	return a.acc.available()
}

// Process runs one analysis tick if the tick interval has elapsed and a
// full window of samples is buffered; otherwise it returns without doing
// anything. Starvation is not an error. Call from the poller goroutine
// only.
func (a *Analyzer) Process() {
	now := time.Now()
	if a.tickInterval > 0 && now.Sub(a.lastTick) < a.tickInterval {
		return
	}
	if !a.acc.drain(a.input) {
		return
	}
	a.lastTick = now

	// Hann window to reduce spectral leakage.
	for i := range a.input {
		a.input[i] *= a.winCoeffs[i]
	}

	// Forward real FFT; magnitudes scaled by 1/windowSize to match a
	// normalized DFT of the windowed signal.
	a.fft.Coefficients(a.coeffs, a.input)
	scale := 1.0 / float64(a.windowSize)
	for i, c := range a.coeffs {
		a.magnitude[i] = cmplx.Abs(c) * scale
	}

	a.updateBars()

	a.snapMu.Lock()
	a.snapshot = a.smoothed
	a.snapMu.Unlock()
	a.updated.Store(true)
}

// updateBars reduces the magnitude spectrum to the 16 smoothed bars.
func (a *Analyzer) updateBars() {
	for bar := 0; bar < NumBars; bar++ {
		start, end := a.barRanges[bar][0], a.barRanges[bar][1]
		if start >= end {
			continue
		}

		sum := 0.0
		for bin := start; bin < end; bin++ {
			sum += a.magnitude[bin]
		}
		avg := sum / float64(end-start)

		// Square-root compression of the dynamic range.
		raw := math.Sqrt(avg) * 2.0

		// Auto-gain: decay the tracked peak, raise it to the new raw
		// magnitude if larger, and keep it above the floor.
		a.peaks[bar] *= autogainDecay
		if raw > a.peaks[bar] {
			a.peaks[bar] = raw
		}
		if a.peaks[bar] < minPeak {
			a.peaks[bar] = minPeak
		}

		normalized := raw / a.peaks[bar]
		normalized = math.Pow(normalized, gammaExponent)
		normalized = math.Max(0, math.Min(1, normalized))

		// Attack/decay smoothing with gravity: rising moves a fixed
		// fraction of the gap, falling subtracts at least a gravity term
		// that grows with the bar's current height.
		current := a.smoothed[bar]
		diff := normalized - current
		if diff > 0 {
			a.smoothed[bar] = current + diff*(1.0-attackFactor)
		} else {
			gravity := gravityBase + current*gravitySlope
			fall := math.Max(math.Abs(diff)*(1.0-decayFactor), gravity)
			a.smoothed[bar] = math.Max(0, current-fall)
		}
	}
}

// Snapshot copies the current 16 smoothed magnitudes into dst and clears
// the updated flag, reporting whether it was set. A false return lets the
// poller skip redundant redraws. dst must hold at least NumBars values.
func (a *Analyzer) Snapshot(dst []float64) bool {
	a.snapMu.Lock()
	copy(dst, a.snapshot[:])
	a.snapMu.Unlock()
	return a.updated.Swap(false)
}

// Bars copies the current 16 smoothed magnitudes into dst without
// touching the updated flag. For secondary consumers that publish at
// their own cadence; the flag stays reserved for the Snapshot poller.
func (a *Analyzer) Bars(dst []float64) {
	a.snapMu.Lock()
	copy(dst, a.snapshot[:])
	a.snapMu.Unlock()
}

// SPDX-License-Identifier: MIT

package spectrum

import "sync"

// accumulator is a bounded ring of mono float samples sitting between the
// audio callback and the analysis tick. Overflow silently overwrites the
// oldest samples: the visualization favors recency over completeness, and
// the real-time writer must never be made to wait.
//
// The mutex is held only around the append and drain loops, never around
// the transform itself.
type accumulator struct {
	mu      sync.Mutex
	samples []float64
	readPos int
	count   int
}

func newAccumulator(size int) *accumulator {
	return &accumulator{samples: make([]float64, size)}
}

// pushStereo mono-mixes interleaved stereo s16 frames into the ring,
// mapping each pair to (left+right)/2 scaled into [-1,1]. Allocation-free.
func (a *accumulator) pushStereo(samples []int16) {
	frames := len(samples) / 2

	a.mu.Lock()
	size := len(a.samples)
	writePos := (a.readPos + a.count) % size
	for i := 0; i < frames; i++ {
		left := float64(samples[2*i]) / 32768.0
		right := float64(samples[2*i+1]) / 32768.0
		a.samples[writePos] = (left + right) * 0.5

		writePos = (writePos + 1) % size
		if a.count == size {
			a.readPos = (a.readPos + 1) % size // Overwrite oldest
		} else {
			a.count++
		}
	}
	a.mu.Unlock()
}

// available returns the number of buffered mono samples.
func (a *accumulator) available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// drain copies exactly len(dst) of the oldest samples into dst and
// consumes them. Returns false, consuming nothing, when fewer samples are
// buffered.
func (a *accumulator) drain(dst []float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count < len(dst) {
		return false
	}

	size := len(a.samples)
	pos := a.readPos
	for i := range dst {
		dst[i] = a.samples[pos]
		pos = (pos + 1) % size
	}
	a.readPos = pos
	a.count -= len(dst)
	return true
}

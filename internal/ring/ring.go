/*
Package ring implements the lock-free single-producer/single-consumer byte
queue that decouples the decode goroutine from the audio callback.

The buffer uses two monotonically increasing uint64 counters: head is
advanced only by the producer, tail only by the consumer. Unsigned
wraparound keeps head-tail well defined, a power-of-two capacity lets
positions be derived with a bitmask, and one slot is permanently reserved
so a full buffer is distinguishable from an empty one without a flag.

Go's sync/atomic loads and stores are sequentially consistent, which
subsumes the acquire/release pairing the algorithm needs: the consumer
never observes head before the bytes published under it, and the producer
never observes tail before the space freed under it.

Thread assignment is strict:
  - Write, WriteAvailable: producer goroutine only
  - Read, ReadAvailable, ConsumerClear: consumer (audio callback) only
  - ProducerClear: producer, and only while the consumer is idle
  - RequestDrain: any goroutine; the clear itself runs inside the
    consumer's next Read

No operation blocks or allocates.
*/
package ring

import (
	"fmt"
	"sync/atomic"

	"webradio/pkg/bitint"
)

// DefaultCapacity holds about 1.5 seconds of 44.1 kHz stereo s16 audio.
const DefaultCapacity = 262144

// Buffer is a fixed-capacity SPSC byte ring. The zero value is not usable;
// use New.
type Buffer struct {
	// Counters on separate cache lines to prevent false sharing between
	// the producer and consumer threads.
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte

	buf  []byte
	mask uint64

	drain atomic.Bool
}

// New creates a Buffer whose capacity is capacity rounded up to the next
// power of two. The storage is zero-filled, so an underrun before the
// first write plays silence rather than garbage.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", capacity)
	}
	if !bitint.IsPowerOfTwo(capacity) {
		capacity = bitint.NextPowerOfTwo(capacity)
	}
	return &Buffer{
		buf:  make([]byte, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Cap returns the buffer capacity in bytes. Usable space is Cap()-1
// because of the reserved slot.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Write copies up to min(len(p), WriteAvailable()) bytes into the buffer,
// in two segments when the write wraps past the end of storage. It returns
// the number of bytes written, which may be 0 or partial; the caller
// decides whether to retry the remainder. Producer side only.
func (b *Buffer) Write(p []byte) int {
	head := b.head.Load()
	tail := b.tail.Load()

	free := uint64(len(b.buf)) - (head - tail) - 1
	if free == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > free {
		n = free
	}

	pos := head & b.mask
	first := uint64(len(b.buf)) - pos
	if first >= n {
		copy(b.buf[pos:pos+n], p[:n])
	} else {
		copy(b.buf[pos:], p[:first])
		copy(b.buf[:n-first], p[first:n])
	}

	// Publish after the copies so the consumer never reads unwritten bytes.
	b.head.Store(head + n)
	return int(n)
}

// Read copies up to min(len(p), ReadAvailable()) bytes out of the buffer.
// Returns the number of bytes read, possibly 0 or partial. Consumer side
// only. A pending drain request is honored first, so the read after a
// session boundary returns 0 and the caller plays silence.
func (b *Buffer) Read(p []byte) int {
	if b.drain.Swap(false) {
		b.ConsumerClear()
		return 0
	}

	tail := b.tail.Load()
	head := b.head.Load()

	avail := head - tail
	if avail == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > avail {
		n = avail
	}

	pos := tail & b.mask
	first := uint64(len(b.buf)) - pos
	if first >= n {
		copy(p[:n], b.buf[pos:pos+n])
	} else {
		copy(p[:first], b.buf[pos:])
		copy(p[first:n], b.buf[:n-first])
	}

	// Publish after the copies so the producer never overwrites unread bytes.
	b.tail.Store(tail + n)
	return int(n)
}

// ReadAvailable returns the number of bytes buffered for reading.
func (b *Buffer) ReadAvailable() int {
	head := b.head.Load()
	tail := b.tail.Load()
	return int(head - tail)
}

// WriteAvailable returns the number of bytes of free space. One slot is
// reserved, so WriteAvailable()+ReadAvailable() == Cap()-1 always holds.
func (b *Buffer) WriteAvailable() int {
	head := b.head.Load()
	tail := b.tail.Load()
	return len(b.buf) - int(head-tail) - 1
}

// ConsumerClear snaps tail to head, instantly discarding any unread stale
// audio. Call from the consumer side (or while the consumer is provably
// idle) when a new logical stream begins.
func (b *Buffer) ConsumerClear() {
	b.tail.Store(b.head.Load())
}

// ProducerClear snaps head to tail. Only safe while the consumer is
// provably idle: a concurrent Read could publish a tail past the stored
// head and corrupt the occupancy count. With a live consumer use
// RequestDrain instead.
func (b *Buffer) ProducerClear() {
	b.head.Store(b.tail.Load())
}

// RequestDrain asks the consumer to discard everything buffered at its
// next Read. Safe from any goroutine; each counter is still only ever
// stored by its owning side.
func (b *Buffer) RequestDrain() {
	b.drain.Store(true)
}

// SPDX-License-Identifier: MIT

package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"webradio/internal/log"
	"webradio/internal/spectrum"
)

// BarProvider exposes the current bar magnitudes without consuming the
// analyzer's updated flag, which belongs to the status poller.
// spectrum.Analyzer satisfies this.
type BarProvider interface {
	Bars(dst []float64)
}

// Publisher periodically packs the current spectrum bars into a binary
// frame and sends it to the UDP target. Runs its own goroutine between
// Start and Stop.
//
// Packet layout (big endian):
//
//	uint32  sequence number
//	int64   timestamp, nanoseconds since epoch
//	uint16  magnitude count
//	N float32 magnitudes
type Publisher struct {
	sender   *Sender
	provider BarProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequenceNum uint32

	// Preallocated buffers for the packing path.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher wires a publisher to a sender and a bar provider.
// A non-positive interval falls back to ~30 Hz.
func NewPublisher(interval time.Duration, sender *Sender, provider BarProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("udp publisher: bar provider cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		log.Warnf("udp publisher: invalid interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magBuffer:    make([]float64, spectrum.NumBars),
		f32Buffer:    make([]float32, spectrum.NumBars),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. A no-op when already running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publishFrame()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. Idempotent.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) publishFrame() {
	// Unchanged bars still publish; consumers want a steady frame rate
	// even when nothing moves.
	p.provider.Bars(p.magBuffer)

	p.sequenceNum++
	frame, err := packFrame(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), p.magBuffer, p.f32Buffer)
	if err != nil {
		log.Errorf("udp publisher: pack frame: %v", err)
		return
	}
	if err := p.sender.Send(frame); err != nil {
		log.Debugf("udp publisher: %v", err)
	}
}

// packFrame serializes one frame into buf and returns its bytes. f32
// scratch must match mags in length.
func packFrame(buf *bytes.Buffer, seq uint32, timestamp int64, mags []float64, f32 []float32) ([]byte, error) {
	for i, v := range mags {
		f32[i] = float32(v)
	}

	buf.Reset()
	if err := binary.Write(buf, binary.BigEndian, seq); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, timestamp); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(f32))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, f32); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close implements Transport-style shutdown for the engine's closables.
func (p *Publisher) Close() error {
	return p.Stop()
}

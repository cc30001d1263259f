// SPDX-License-Identifier: MIT

/*
Package audio owns the PortAudio output stream that pulls PCM from the
playback sink on the hardware clock.

Thread safety:
- The callback runs on a dedicated real-time thread and never blocks
- All buffers are preallocated; the hot path does not allocate
- Recording state is flipped with an atomic flag so the callback never
  takes a lock
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"webradio/internal/config"
	"webradio/internal/log"
)

// Sink supplies interleaved stereo s16 samples to the hardware callback.
// Fill must complete in bounded time with no blocking calls.
type Sink interface {
	Fill(out []int16)
}

// Engine drives one PortAudio output stream.
type Engine struct {
	cfg  *config.AudioConfig
	sink Sink

	outputDevice  *portaudio.DeviceInfo
	outputLatency time.Duration
	stream        *portaudio.Stream

	// Recording state and buffers.
	isRecording atomic.Bool
	wavEncoder  *wav.Encoder
	outputFile  *os.File
	sampleBuf   *goaudio.IntBuffer
}

// NewEngine resolves the output device and prepares the engine. The
// stream is not opened until Start.
func NewEngine(cfg *config.AudioConfig, sink Sink) (*Engine, error) {
	device, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		sink:         sink,
		outputDevice: device,
	}
	if cfg.LowLatency {
		e.outputLatency = device.DefaultLowOutputLatency
	} else {
		e.outputLatency = device.DefaultHighOutputLatency
	}
	return e, nil
}

// Start opens and starts the output stream. The callback begins pulling
// from the sink immediately; an empty ring plays silence.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.cfg.OutputChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processOutputStream)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return fmt.Errorf("start output stream: %w", err)
	}
	return nil
}

// Stop stops and closes the output stream.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	return nil
}

// processOutputStream is the hardware callback.
// Performance critical:
// - Runs on a dedicated OS thread (LockOSThread)
// - Uses preallocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processOutputStream(out []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.sink.Fill(out)

	// The recording tap captures exactly what the listener hears,
	// post volume.
	if e.isRecording.Load() && e.wavEncoder != nil {
		e.sampleBuf.Data = e.sampleBuf.Data[:len(out)]
		for i, sample := range out {
			e.sampleBuf.Data[i] = int(sample)
		}
		if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
			log.Errorf("wav write: %v", err)
		}
	}
}

// Close stops any recording and the stream.
func (e *Engine) Close() error {
	if e.isRecording.Load() {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	return e.Stop()
}

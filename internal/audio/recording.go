// SPDX-License-Identifier: MIT

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordingBitDepth = 16

// StartRecording begins writing the post-volume output to a timestamped
// WAV file in dir. The encoder is set up here so the callback only ever
// writes; it never opens files.
func (e *Engine) StartRecording(dir string) (string, error) {
	if e.isRecording.Load() {
		return "", fmt.Errorf("already recording")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, time.Now().Format("webradio-20060102-150405.wav"))

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.cfg.SampleRate),
		recordingBitDepth, e.cfg.OutputChannels, 1)

	e.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: e.cfg.OutputChannels,
			SampleRate:  int(e.cfg.SampleRate),
		},
		Data: make([]int, e.cfg.FramesPerBuffer*e.cfg.OutputChannels),
	}

	e.isRecording.Store(true)
	return path, nil
}

// StopRecording flips the atomic flag first so the callback stops
// writing, then finalizes the WAV header and closes the file.
func (e *Engine) StopRecording() error {
	if !e.isRecording.Load() {
		return nil
	}

	e.isRecording.Store(false)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}
	return nil
}

// SPDX-License-Identifier: MIT

// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"webradio/internal/log"
	"webradio/pkg/bitint"
)

// MinDeviceID selects the system default audio device.
const MinDeviceID = -1

// Config is the main application configuration, loaded from YAML.
type Config struct {
	Debug        bool             `yaml:"debug"`         // Verbose logging and debug features.
	LogLevel     string           `yaml:"log_level"`     // "debug", "info", "warn" or "error".
	StationsFile string           `yaml:"stations_file"` // Path to the station list YAML.
	Audio        AudioConfig      `yaml:"audio"`
	Buffer       BufferConfig     `yaml:"buffer"`
	Spectrum     SpectrumConfig   `yaml:"spectrum"`
	Recording    RecordingConfig  `yaml:"recording"`
	Transport    TransportConfig  `yaml:"transport"`
	Enrichment   EnrichmentConfig `yaml:"enrichment"`
}

// AudioConfig holds playback output settings.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Output rate in Hz; streams are resampled to this.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per hardware callback.
	OutputChannels  int     `yaml:"output_channels"`   // 2 for stereo.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	Volume          float64 `yaml:"volume"`            // Initial volume in [0,1].
}

// BufferConfig sizes the PCM ring between the decode goroutine and the
// hardware callback.
type BufferConfig struct {
	RingBytes int `yaml:"ring_bytes"` // Rounded up to a power of two.
}

// SpectrumConfig holds analyzer settings.
type SpectrumConfig struct {
	WindowSize   int           `yaml:"window_size"`   // FFT window in mono samples, power of two.
	TickInterval time.Duration `yaml:"tick_interval"` // Analysis cadence.
}

// RecordingConfig holds settings for recording the post-volume output.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// TransportConfig holds settings for publishing spectrum and now-playing
// data to external consumers.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`         // Serve spectrum frames over WebSocket.
	WSPort           string        `yaml:"ws_port"`            // Listen port for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send spectrum frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// EnrichmentConfig holds settings for the external track-metadata lookup
// worker.
type EnrichmentConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // Lookup API base URL.
}

// Load reads configuration from the YAML file at path. An empty path
// searches default locations; a missing file falls back to built-in
// defaults. Environment overrides apply after the file, then the result
// is validated.
func Load(path string) (*Config, error) {
	cfg := Config{
		Debug:        false,
		LogLevel:     "info",
		StationsFile: "stations.yaml",
		Audio: AudioConfig{
			OutputDevice:    MinDeviceID,
			SampleRate:      44100,
			FramesPerBuffer: 1024,
			OutputChannels:  2,
			LowLatency:      false,
			Volume:          1.0,
		},
		Buffer: BufferConfig{
			RingBytes: 262144,
		},
		Spectrum: SpectrumConfig{
			WindowSize:   2048,
			TickInterval: 33 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			WSEnabled:        false,
			WSPort:           "8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond,
		},
		Enrichment: EnrichmentConfig{
			Enabled:  false,
			Endpoint: "https://musicbrainz.org/ws/2",
		},
	}

	if path == "" {
		candidates := []string{"webradio.yaml", "config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %f", c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}
	if c.Audio.OutputChannels != 2 {
		return fmt.Errorf("audio.output_channels must be 2, got %d", c.Audio.OutputChannels)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("audio.volume must be in [0,1], got %f", c.Audio.Volume)
	}
	if c.Buffer.RingBytes <= 0 {
		return fmt.Errorf("buffer.ring_bytes must be positive, got %d", c.Buffer.RingBytes)
	}
	if !bitint.IsPowerOfTwo(c.Spectrum.WindowSize) {
		return fmt.Errorf("spectrum.window_size must be a power of two, got %d", c.Spectrum.WindowSize)
	}
	if c.Spectrum.TickInterval <= 0 {
		return fmt.Errorf("spectrum.tick_interval must be positive, got %s", c.Spectrum.TickInterval)
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Enrichment.Enabled && c.Enrichment.Endpoint == "" {
		return fmt.Errorf("enrichment.endpoint must be set when enrichment is enabled")
	}
	return nil
}

func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_STATIONS_FILE"); ok {
		cfg.StationsFile = val
	}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WSEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_PORT"); ok {
		cfg.Transport.WSPort = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}

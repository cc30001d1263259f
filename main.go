// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webradio/cmd"
	"webradio/internal/audio"
	"webradio/internal/config"
	"webradio/internal/decode"
	"webradio/internal/enrich"
	"webradio/internal/log"
	"webradio/internal/player"
	"webradio/internal/ring"
	"webradio/internal/spectrum"
	"webradio/internal/station"
	"webradio/internal/transport"
	"webradio/internal/transport/udp"
	"webradio/pkg/build"
)

// spectrumFrame is the JSON payload broadcast to WebSocket clients.
type spectrumFrame struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Bars      []float64 `json:"bars"`
}

// nowPlayingFrame announces a track change to WebSocket clients.
type nowPlayingFrame struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Genre string `json:"genre,omitempty"`
	Kbps  int    `json:"kbps,omitempty"`
}

// main is the entry point for the webradio player.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Initialize PortAudio
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the audio engine and its output callback
//   - Start the decode pipeline for the selected stream
//   - Start recording and transports if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop playback, recording and transports
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	options, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg := options.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	// Handle one-off commands that don't require the audio engine
	switch options.Command {
	case "list":
		if err := audio.ListDevices(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	case "stations":
		stations, err := station.Load(cfg.StationsFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		for _, st := range stations {
			fmt.Printf("  %-30s %s\n", st.Name, st.URL)
		}
		return
	}

	streamURL, stationName, err := resolveStream(options, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	rb, err := ring.New(cfg.Buffer.RingBytes)
	if err != nil {
		log.Fatalf("%v", err)
	}
	analyzer, err := spectrum.New(spectrum.Config{
		WindowSize:   cfg.Spectrum.WindowSize,
		SampleRate:   cfg.Audio.SampleRate,
		TickInterval: cfg.Spectrum.TickInterval,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	state := player.NewState()
	volume := player.NewVolume(cfg.Audio.Volume)
	sink := player.NewSink(rb, analyzer, volume, cfg.Audio.FramesPerBuffer)

	engine, err := audio.NewEngine(&cfg.Audio, sink)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// First callback fires here; the sink serves silence until the
	// decode pipeline fills the ring.
	if err := engine.Start(); err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Recording.Enabled {
		path, err := engine.StartRecording(cfg.Recording.OutputDir)
		if err != nil {
			log.Fatalf("failed to start recording: %v", err)
		}
		log.Infof("recording to %s", path)
	}

	var transports []transport.Transport
	if cfg.Transport.WSEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WSPort, cfg.Spectrum.TickInterval)
		transports = append(transports, ws)
	}

	var publisher *udp.Publisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			log.Fatalf("failed to create UDP sender: %v", err)
		}
		publisher, err = udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, analyzer)
		if err != nil {
			log.Fatalf("failed to create UDP publisher: %v", err)
		}
		publisher.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetcher *enrich.Fetcher
	if cfg.Enrichment.Enabled {
		fetcher = enrich.NewFetcher(cfg.Enrichment.Endpoint)
		go fetcher.Run(ctx, state.TrackChanges())
	}

	pl := player.New(rb, state, func(ctx context.Context, url string) (player.Session, error) {
		return decode.Open(ctx, url)
	})

	log.Infof("tuning to %s", stationName)
	pl.Play(ctx, streamURL)

	// Setup signal handling for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	runStatusLoop(done, cfg, state, analyzer, transports, fetcher)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	pl.Stop()
	cancel()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Errorf("error stopping UDP publisher: %v", err)
		}
	}
	for _, tr := range transports {
		if err := tr.Close(); err != nil {
			log.Errorf("error closing transport: %v", err)
		}
	}

	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			log.Errorf("error stopping recording: %v", err)
		}
	}
	if err := engine.Close(); err != nil {
		log.Errorf("error closing audio engine: %v", err)
	}
}

func broadcast(transports []transport.Transport, frame any) {
	for _, tr := range transports {
		if err := tr.Send(frame); err != nil {
			log.Debugf("transport send: %v", err)
		}
	}
}

// resolveStream picks the stream to play from the command line and the
// station list. A direct URL wins; otherwise the named station, or the
// first one in the list.
func resolveStream(options *cmd.Options, cfg *config.Config) (url, name string, err error) {
	if options.URL != "" {
		return options.URL, options.URL, nil
	}

	stations, err := station.Load(cfg.StationsFile)
	if err != nil {
		return "", "", err
	}
	if len(stations) == 0 {
		return "", "", fmt.Errorf("no stations in %s", cfg.StationsFile)
	}

	if options.Station != "" {
		st, ok := station.Find(stations, options.Station)
		if !ok {
			return "", "", fmt.Errorf("unknown station %q", options.Station)
		}
		return st.URL, st.Name, nil
	}
	return stations[0].URL, stations[0].Name, nil
}

// runStatusLoop drives the spectrum analyzer and reports player state
// until a termination signal arrives. All terminal output happens here,
// on one goroutine.
func runStatusLoop(done <-chan os.Signal, cfg *config.Config, state *player.State,
	analyzer *spectrum.Analyzer, transports []transport.Transport, fetcher *enrich.Fetcher) {

	interval := cfg.Spectrum.TickInterval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bars := make([]float64, spectrum.NumBars)
	lastPercent := -1
	lastGenre := ""

	var results <-chan enrich.Result
	if fetcher != nil {
		results = fetcher.Results()
	}

	for {
		select {
		case <-done:
			return

		case res := <-results:
			if res.Info.Available && res.Info.Album != "" {
				fmt.Printf("  album: %s (%s)  genre: %s\n",
					res.Info.Album, res.Info.Year, res.Info.Genre)
			}

		case <-ticker.C:
			if percent := state.BufferPercent(); percent != lastPercent {
				if percent >= 0 {
					fmt.Printf("\rbuffering %3d%%", percent)
				} else if lastPercent >= 0 {
					fmt.Print("\r              \r")
				}
				lastPercent = percent
			}
			if playing, changed := state.TakePlayingChange(); changed {
				if playing {
					log.Infof("playback started")
				} else {
					log.Infof("playback stopped")
				}
			}
			if genre, ok := state.TakeGenre(); ok {
				lastGenre = genre
				log.Infof("stream genre: %s", genre)
			}
			if title, ok := state.TakeTitle(); ok && title != "" {
				fmt.Printf("now playing: %s", title)
				if kbps := state.Kbps(); kbps > 0 {
					fmt.Printf("  [%d kbps]", kbps)
				}
				fmt.Println()
				broadcast(transports, nowPlayingFrame{
					Type:  "now_playing",
					Title: title,
					Genre: lastGenre,
					Kbps:  state.Kbps(),
				})
			}
			if info, ok := state.TakeStreamInfo(); ok {
				log.Infof("stream format: %s", info)
			}

			// Spectrum last, so the send rate limiter sheds a frame of
			// bars rather than a track-change event.
			analyzer.Process()
			if analyzer.Snapshot(bars) {
				broadcast(transports, spectrumFrame{
					Type:      "spectrum",
					Timestamp: time.Now().UnixMilli(),
					Bars:      bars,
				})
			}
		}
	}
}

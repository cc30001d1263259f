// SPDX-License-Identifier: MIT

package cmd

import (
	"os"

	"webradio/internal/config"
	"webradio/pkg/build"

	"github.com/spf13/cobra"
)

// Options is the parsed command line: the loaded configuration plus the
// requested command.
type Options struct {
	Config  *config.Config
	Command string // "play", "list" or "stations"
	Station string // Station name to tune to, or "" for the first one.
	URL     string // Direct stream URL, overrides Station.
}

func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Command: "play"}

	var (
		configPath string
		deviceID   int
		volume     float64
		record     bool
		outputDir  string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "play"
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio output devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	// Stations command
	stationsCmd := &cobra.Command{
		Use:   "stations",
		Short: "List configured stations",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "stations"
		},
	}
	rootCmd.AddCommand(stationsCmd)

	// Configuration source
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "",
		"Path to the configuration file")

	// Stream selection
	rootCmd.PersistentFlags().StringVarP(&options.Station, "station", "n", "",
		"Station name from the station list. Use 'stations' command to see them.")
	rootCmd.PersistentFlags().StringVarP(&options.URL, "url", "u", "",
		"Stream URL to play directly, bypassing the station list")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.MinDeviceID,
		"Specify output device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&volume, "volume", "m", 1.0,
		"Initial playback volume between 0.0 and 1.0")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&record, "record", "r", false,
		"Record the post-volume output to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "",
		"Directory for recorded WAV files")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// Command line flags override both file and environment settings.
	flags := rootCmd.PersistentFlags()
	if flags.Changed("device") {
		cfg.Audio.OutputDevice = deviceID
	}
	if flags.Changed("volume") {
		cfg.Audio.Volume = volume
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = record
	}
	if flags.Changed("output") {
		cfg.Recording.OutputDir = outputDir
	}
	if verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options.Config = cfg
	return options, nil
}

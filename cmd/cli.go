// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lightshow/internal/config"
	"lightshow/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandRun    = "run"
	CommandReplay = "replay"
	CommandList   = "list"
)

// Options carries the command line. Values left at their zero value do not
// override the configuration file.
type Options struct {
	Command    string
	ConfigPath string
	Verbose    bool
	LogLevel   string

	InputDevice int
	deviceSet   bool
	Record      bool
	Monitor     bool
	DryRun      bool
	NoGate      bool
	Calibrate   int

	File  string
	Paced bool
	Pick  bool
}

// ParseArgs builds the command tree and parses args (without the program
// name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{InputDevice: config.DefaultDeviceID}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
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
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "f", "",
		"Path to the YAML configuration (default "+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&options.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&options.Monitor, "monitor", "m", false,
		"Serve the monitor websocket")
	rootCmd.PersistentFlags().BoolVarP(&options.DryRun, "dry-run", "n", false,
		"Log frames instead of sending them to the fixtures")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the fixtures from live audio input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			options.deviceSet = cmd.Flags().Changed("device")
			return nil
		},
	}
	runCmd.Flags().IntVarP(&options.InputDevice, "device", "d", options.InputDevice,
		"Input device ID, -1 for the system default. Use 'list' to see available devices.")
	runCmd.Flags().BoolVarP(&options.Record, "record", "r", false,
		"Record the input stream to the recording directory")
	runCmd.Flags().BoolVar(&options.NoGate, "no-gate", false,
		"Disable the input noise gate")
	runCmd.Flags().IntVar(&options.Calibrate, "calibrate-gate", 0,
		"Calibrate the noise gate from this many chunks of ambient noise at startup")

	replayCmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Drive the fixtures from a WAV, FLAC or MP3 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandReplay
			options.File = args[0]
			return nil
		},
	}
	replayCmd.Flags().BoolVarP(&options.Paced, "realtime", "t", true,
		"Pace the replay at playback speed")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	listCmd.Flags().BoolVarP(&options.Pick, "pick", "p", false,
		"Choose an input device interactively and print its configuration")
	rootCmd.AddCommand(runCmd, replayCmd, listCmd)

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Apply overlays the command line onto cfg and revalidates it.
func (o *Options) Apply(cfg *config.Config) error {
	if o.Verbose {
		cfg.LogLevel = "debug"
	} else if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.deviceSet {
		cfg.Audio.InputDevice = o.InputDevice
	}
	if o.Calibrate > 0 {
		cfg.Audio.GateCalibration = o.Calibrate
	}
	if o.Record {
		cfg.Recording.Enabled = true
	}
	if o.Monitor {
		cfg.Monitor.Enabled = true
	}
	if o.DryRun {
		for i := range cfg.Devices {
			cfg.Devices[i].Transport = "log"
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after flags: %w", err)
	}
	return nil
}

// SPDX-License-Identifier: MIT
package cmd

import (
	"io"
	"os"
	"testing"

	"lightshow/internal/config"
	"lightshow/internal/log"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		check   func(t *testing.T, o *Options)
		wantErr bool
	}{
		{name: "bare root runs", args: nil, command: CommandRun},
		{name: "run with flags", args: []string{"run", "-d", "3", "--record", "--no-gate", "--calibrate-gate", "40"}, command: CommandRun,
			check: func(t *testing.T, o *Options) {
				if o.InputDevice != 3 || !o.deviceSet || !o.Record || !o.NoGate || o.Calibrate != 40 {
					t.Errorf("options %+v", o)
				}
			}},
		{name: "replay", args: []string{"replay", "set.flac", "--realtime=false"}, command: CommandReplay,
			check: func(t *testing.T, o *Options) {
				if o.File != "set.flac" || o.Paced {
					t.Errorf("options %+v", o)
				}
			}},
		{name: "persistent flags", args: []string{"--config", "x.yaml", "-v", "-m", "-n", "list"}, command: CommandList,
			check: func(t *testing.T, o *Options) {
				if o.ConfigPath != "x.yaml" || !o.Verbose || !o.Monitor || !o.DryRun {
					t.Errorf("options %+v", o)
				}
			}},
		{name: "list pick", args: []string{"list", "--pick"}, command: CommandList,
			check: func(t *testing.T, o *Options) {
				if !o.Pick {
					t.Errorf("options %+v", o)
				}
			}},
		{name: "replay needs a file", args: []string{"replay"}, wantErr: true},
		{name: "unknown flag", args: []string{"run", "--bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if o.Command != tt.command {
				t.Errorf("command %q, want %q", o.Command, tt.command)
			}
			if tt.check != nil {
				tt.check(t, o)
			}
		})
	}
}

func TestApply(t *testing.T) {
	cfg := config.Default()
	cfg.Devices = []config.DeviceConfig{config.DefaultDevice()}
	o := &Options{Verbose: true, Monitor: true, DryRun: true, Record: true, InputDevice: 2, deviceSet: true, Calibrate: 8}
	if err := o.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || !cfg.Monitor.Enabled || !cfg.Recording.Enabled || cfg.Audio.InputDevice != 2 || cfg.Audio.GateCalibration != 8 {
		t.Errorf("config not overlaid: %+v", cfg)
	}
	if cfg.Devices[0].Transport != "log" {
		t.Errorf("dry run left transport %q", cfg.Devices[0].Transport)
	}

	cfg = config.Default()
	cfg.Devices = []config.DeviceConfig{config.DefaultDevice()}
	o = &Options{InputDevice: -5, deviceSet: true}
	if err := o.Apply(&cfg); !config.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

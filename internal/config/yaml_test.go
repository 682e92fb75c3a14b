// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "lightshow.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Name != "moving-head" {
		t.Errorf("expected the default device, got %+v", cfg.Devices)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  sample_rate: 48000
  chunk_size: 512
detection:
  kick:
    sensitivity: 2.0
    cooldown: 300ms
  break:
    ratio: 3.0
controller:
  max_fps: 20
devices:
  - name: stage-left
    transport: udp
    address: 10.0.0.4:9090
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Audio.SampleRate != 48000 || cfg.Audio.ChunkSize != 512 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Detection.Kick.Sensitivity != 2.0 || cfg.Detection.Kick.Cooldown != 300*time.Millisecond {
		t.Errorf("kick = %+v", cfg.Detection.Kick)
	}
	// Unset fields in a partially specified block keep their defaults.
	if cfg.Detection.Kick.Window != 20*time.Second {
		t.Errorf("kick window = %v, want default 20s", cfg.Detection.Kick.Window)
	}
	if cfg.Detection.Break.Ratio != 3.0 || cfg.Detection.Break.Capacity != 30 {
		t.Errorf("break = %+v", cfg.Detection.Break)
	}
	if cfg.Controller.MaxFPS != 20 {
		t.Errorf("max_fps = %d", cfg.Controller.MaxFPS)
	}

	d := cfg.Devices[0]
	if d.Name != "stage-left" || d.Transport != "udp" || d.QueueSize != 8 || d.Top.Max != 180 {
		t.Errorf("device defaults not filled: %+v", d)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "audio.sample_rate"},
		{"gate threshold", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "audio.gate_threshold"},
		{"gate calibration", func(c *Config) { c.Audio.GateCalibration = -1 }, "audio.gate_calibration"},
		{"chunk not pow2", func(c *Config) { c.Audio.ChunkSize = 1000 }, "audio.chunk_size"},
		{"kick sensitivity", func(c *Config) { c.Detection.Kick.Sensitivity = 0 }, "detection.kick.sensitivity"},
		{"empty range", func(c *Config) { c.Detection.Kick.Range.Hi = 0 }, "detection.kick.range"},
		{"bad band", func(c *Config) { c.Detection.Kick.Range.Band = "chroma" }, "detection.kick.range.band"},
		{"direction", func(c *Config) { c.Detection.Kick.Direction = "sideways" }, "detection.kick.direction"},
		{"drop recent", func(c *Config) { c.Detection.Drop.Recent = 40 }, "detection.drop.recent"},
		{"max fps", func(c *Config) { c.Controller.MaxFPS = 0 }, "controller.max_fps"},
		{"one animation", func(c *Config) { c.Controller.Animations = []string{"circle"} }, "controller.animations"},
		{"ws url", func(c *Config) { c.Devices[0].URL = "http://x" }, "devices.moving-head.url"},
		{"servo", func(c *Config) { c.Devices[0].Top = ServoConfig{Min: 90, Max: 10} }, "devices.moving-head.top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.fillDevices()
			tt.mut(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			ce, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LIGHTSHOW_MAX_FPS", "15")
	t.Setenv("LIGHTSHOW_DEVICE_URL", "192.168.1.60:9090")

	cfg := Default()
	cfg.applyEnvOverrides()

	if cfg.Controller.MaxFPS != 15 {
		t.Errorf("max_fps = %d, want 15", cfg.Controller.MaxFPS)
	}
	if cfg.Devices[0].Transport != "udp" || cfg.Devices[0].Address != "192.168.1.60:9090" {
		t.Errorf("device = %+v", cfg.Devices[0])
	}
}

func TestIsConfigError(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Audio.Channels = 0
	err := fmt.Errorf("startup: %w", cfg.Validate())
	if !IsConfigError(err) {
		t.Errorf("IsConfigError(%v) = false", err)
	}
}

// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lightshow/pkg/bitint"
)

// DefaultPath is searched when LoadConfig is given an empty path.
const DefaultPath = "lightshow.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg.applyEnvOverrides()
			cfg.fillDevices()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()
	cfg.fillDevices()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// fillDevices gives every device the fixture defaults for fields the file
// left empty, and adds a single default device when none is declared.
func (c *Config) fillDevices() {
	if len(c.Devices) == 0 {
		c.Devices = []DeviceConfig{DefaultDevice()}
		return
	}
	def := DefaultDevice()
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			d.Name = fmt.Sprintf("device-%d", i)
		}
		if d.Transport == "" {
			d.Transport = def.Transport
		}
		if d.QueueSize == 0 {
			d.QueueSize = def.QueueSize
		}
		if d.RefreshInterval == 0 {
			d.RefreshInterval = def.RefreshInterval
		}
		if d.ReconnectMin == 0 {
			d.ReconnectMin = def.ReconnectMin
		}
		if d.ReconnectMax == 0 {
			d.ReconnectMax = def.ReconnectMax
		}
		if d.Base == (ServoConfig{}) {
			d.Base = def.Base
		}
		if d.Top == (ServoConfig{}) {
			d.Top = def.Top
		}
	}
}

// Validate checks every section and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return Errorf("audio.sample_rate", "%v outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.ChunkSize <= 0 || a.ChunkSize > MaxChunkSize {
		return Errorf("audio.chunk_size", "%d outside [1, %d]", a.ChunkSize, MaxChunkSize)
	}
	if !bitint.IsPowerOfTwo(a.ChunkSize) {
		return Errorf("audio.chunk_size", "%d is not a power of two, try %d", a.ChunkSize, bitint.NextPowerOfTwo(a.ChunkSize))
	}
	if a.Channels <= 0 {
		return Errorf("audio.channels", "%d must be positive", a.Channels)
	}
	if a.InputDevice < MinDeviceID {
		return Errorf("audio.input_device", "%d below %d", a.InputDevice, MinDeviceID)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return Errorf("audio.gate_threshold", "%v outside [0, 1]", a.GateThreshold)
	}
	if a.GateCalibration < 0 {
		return Errorf("audio.gate_calibration", "%d must not be negative", a.GateCalibration)
	}

	an := c.Analysis
	if an.Mels <= 0 {
		return Errorf("analysis.n_mels", "%d must be positive", an.Mels)
	}
	if an.Attack < 0 || an.Attack >= 1 || an.Decay < 0 || an.Decay >= 1 {
		return Errorf("analysis.attack", "attack and decay must be in [0, 1)")
	}
	if an.Sensitivity <= 0 {
		return Errorf("analysis.sensitivity", "%v must be positive", an.Sensitivity)
	}

	if err := c.Detection.Kick.Validate("detection.kick"); err != nil {
		return err
	}
	if err := c.Detection.Break.Validate(); err != nil {
		return err
	}
	if err := c.Detection.Drop.Validate(); err != nil {
		return err
	}
	if c.Detection.Silence.Enabled {
		if err := c.Detection.Silence.Range.Validate("detection.silence.range"); err != nil {
			return err
		}
	}
	if err := c.Controller.Validate(); err != nil {
		return err
	}

	names := make(map[string]bool, len(c.Devices))
	for i := range c.Devices {
		if err := c.Devices[i].Validate(); err != nil {
			return err
		}
		if names[c.Devices[i].Name] {
			return Errorf("devices.name", "duplicate device %q", c.Devices[i].Name)
		}
		names[c.Devices[i].Name] = true
	}

	if c.Monitor.Enabled && c.Monitor.Address == "" {
		return Errorf("monitor.address", "must be set when the monitor is enabled")
	}
	return nil
}

// Validate checks the range bounds. Bounds against the actual vector length
// are checked once the frame shape is known.
func (r RangeConfig) Validate(field string) error {
	switch r.Band {
	case "power", "mel":
	default:
		return Errorf(field+".band", "unknown band %q", r.Band)
	}
	if r.Lo < 0 || r.Hi <= r.Lo {
		return Errorf(field, "empty or negative range [%d, %d)", r.Lo, r.Hi)
	}
	return nil
}

func (s SpikeConfig) Validate(field string) error {
	if s.Sensitivity <= 0 {
		return Errorf(field+".sensitivity", "%v must be positive", s.Sensitivity)
	}
	if s.Window <= 0 {
		return Errorf(field+".window", "%v must be positive", s.Window)
	}
	if s.MinDuration < 0 || s.Cooldown < 0 {
		return Errorf(field, "durations must not be negative")
	}
	switch s.Direction {
	case "upper", "lower":
	default:
		return Errorf(field+".direction", "unknown direction %q", s.Direction)
	}
	return s.Range.Validate(field + ".range")
}

func (b BreakConfig) Validate() error {
	if b.Capacity < 2 {
		return Errorf("detection.break.capacity", "%d must be at least 2", b.Capacity)
	}
	if b.Margin < 0 || b.Margin >= b.Capacity-1 {
		return Errorf("detection.break.margin", "%d leaves fewer than 2 beats of %d", b.Margin, b.Capacity)
	}
	if b.Ratio <= 0 {
		return Errorf("detection.break.ratio", "%v must be positive", b.Ratio)
	}
	return nil
}

func (d DropConfig) Validate() error {
	if d.Recent < 2 || d.Recent > d.Capacity {
		return Errorf("detection.drop.recent", "%d must be in [2, capacity=%d]", d.Recent, d.Capacity)
	}
	if d.MinBeats < d.Recent || d.MinBeats > d.Capacity {
		return Errorf("detection.drop.min_beats", "%d must be in [recent=%d, capacity=%d]", d.MinBeats, d.Recent, d.Capacity)
	}
	if d.Ratio <= 0 {
		return Errorf("detection.drop.ratio", "%v must be positive", d.Ratio)
	}
	return nil
}

func (c ControllerConfig) Validate() error {
	if c.MaxFPS <= 0 {
		return Errorf("controller.max_fps", "%d must be positive", c.MaxFPS)
	}
	if c.BeatCooldown < 0 {
		return Errorf("controller.beat_cooldown", "%v must not be negative", c.BeatCooldown)
	}
	if c.RotateAfter <= 0 {
		return Errorf("controller.rotate_after", "%d must be positive", c.RotateAfter)
	}
	if c.BPMHistory < 2 {
		return Errorf("controller.bpm_history", "%d must be at least 2", c.BPMHistory)
	}
	if c.BreakNormalize <= 0 {
		return Errorf("controller.break_normalize", "%v must be positive", c.BreakNormalize)
	}
	if len(c.Animations) < 2 {
		return Errorf("controller.animations", "rotation needs at least two animations, got %d", len(c.Animations))
	}
	return nil
}

func (d DeviceConfig) Validate() error {
	field := "devices." + d.Name
	switch d.Transport {
	case "ws":
		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return Errorf(field+".url", "%q is not a ws:// or wss:// URL", d.URL)
		}
	case "udp":
		if !strings.Contains(d.Address, ":") {
			return Errorf(field+".address", "%q appears invalid (missing port?)", d.Address)
		}
		if d.RefreshInterval <= 0 {
			return Errorf(field+".refresh_interval", "must be positive for udp devices")
		}
	case "log":
	default:
		return Errorf(field+".transport", "unknown transport %q", d.Transport)
	}
	if d.QueueSize <= 0 {
		return Errorf(field+".queue_size", "%d must be positive", d.QueueSize)
	}
	if d.ReconnectMin <= 0 || d.ReconnectMax < d.ReconnectMin {
		return Errorf(field+".reconnect", "need 0 < reconnect_min <= reconnect_max")
	}
	for axis, s := range map[string]ServoConfig{"base": d.Base, "top": d.Top} {
		if s.Min < 0 || s.Max > 180 || s.Min >= s.Max {
			return Errorf(field+"."+axis, "servo range [%d, %d] invalid", s.Min, s.Max)
		}
	}
	return nil
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// applyEnvOverrides lets deployments tweak a few values without editing the
// file. Each override is reported on stdout because logging is not yet
// configured when this runs.
func (cfg *Config) applyEnvOverrides() {
	// LIGHTSHOW_DEBUG
	if val, ok := os.LookupEnv("LIGHTSHOW_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			fmt.Printf("configuration: Overriding debug from env: %v\n", bVal)
		}
	}
	// LIGHTSHOW_LOG_LEVEL
	if val, ok := os.LookupEnv("LIGHTSHOW_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		fmt.Printf("configuration: Overriding log_level from env: %s\n", val)
	}
	// LIGHTSHOW_INPUT_DEVICE
	if val, ok := os.LookupEnv("LIGHTSHOW_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
			fmt.Printf("configuration: Overriding audio.input_device from env: %d\n", iVal)
		}
	}
	// LIGHTSHOW_MAX_FPS
	if val, ok := os.LookupEnv("LIGHTSHOW_MAX_FPS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Controller.MaxFPS = iVal
			fmt.Printf("configuration: Overriding controller.max_fps from env: %d\n", iVal)
		}
	}
	// LIGHTSHOW_BEAT_COOLDOWN
	if val, ok := os.LookupEnv("LIGHTSHOW_BEAT_COOLDOWN"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Controller.BeatCooldown = dur
			fmt.Printf("configuration: Overriding controller.beat_cooldown from env: %s\n", dur)
		}
	}
	// LIGHTSHOW_DEVICE_URL replaces the first device's endpoint.
	if val, ok := os.LookupEnv("LIGHTSHOW_DEVICE_URL"); ok {
		if len(cfg.Devices) == 0 {
			cfg.Devices = []DeviceConfig{DefaultDevice()}
		}
		if strings.HasPrefix(val, "ws://") || strings.HasPrefix(val, "wss://") {
			cfg.Devices[0].Transport = "ws"
			cfg.Devices[0].URL = val
		} else {
			cfg.Devices[0].Transport = "udp"
			cfg.Devices[0].Address = val
		}
		fmt.Printf("configuration: Overriding devices[0] endpoint from env: %s\n", val)
	}
}

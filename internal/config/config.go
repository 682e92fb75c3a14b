// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"time"
)

// Default values for the lightshow configuration. Detector constants come
// from tuning against a single moving head; they are configurable because
// they are not universal.
const (
	DefaultSampleRate = 44100 // CD-quality audio
	DefaultChunkSize  = 1024  // ~23ms per frame at 44.1kHz
	DefaultChannels   = 1
	DefaultDeviceID   = MinDeviceID
	DefaultFFTWindow  = "Hann"
	DefaultMels       = 40

	DefaultGateThreshold = 0.001 // About -60 dBFS.

	DefaultMaxFPS      = 30
	DefaultRotateAfter = 14

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxChunkSize  = 8192   // Maximum frames per buffer (power of 2)
)

// ConfigError reports a configuration value that cannot be used. It is fatal
// at construction: values are never clamped into range.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Errorf builds a ConfigError for field.
func Errorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug      bool             `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel   string           `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio      AudioConfig      `yaml:"audio"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Detection  DetectionConfig  `yaml:"detection"`
	Controller ControllerConfig `yaml:"controller"`
	Devices    []DeviceConfig   `yaml:"devices"`
	Recording  RecordingConfig  `yaml:"recording"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice int     `yaml:"input_device"` // PortAudio device index (-1 for default).
	SampleRate  float64 `yaml:"sample_rate"`  // Sample rate in Hz.
	ChunkSize   int     `yaml:"chunk_size"`   // Samples per frame, also the FFT size.
	Channels    int     `yaml:"channels"`     // Captured channels, downmixed to mono.
	LowLatency  bool    `yaml:"low_latency"`  // Request low latency settings from PortAudio.

	GateThreshold   float64 `yaml:"gate_threshold"`   // Noise gate peak threshold, 0-1 of full scale.
	GateCalibration int     `yaml:"gate_calibration"` // Chunks of ambient noise to calibrate the gate from, 0 to skip.
}

// AnalysisConfig controls the spectrum and Mel transform.
type AnalysisConfig struct {
	FFTWindow   string  `yaml:"fft_window"`  // Window function name ("Hann", "Hamming", ...).
	Mels        int     `yaml:"n_mels"`      // Number of Mel bands.
	Attack      float64 `yaml:"attack"`      // Smoothing weight kept when energy rises (0-1).
	Decay       float64 `yaml:"decay"`       // Smoothing weight kept when energy falls (0-1).
	Sensitivity float64 `yaml:"sensitivity"` // Gain applied to Mel energies.
}

// RangeConfig selects a contiguous [Lo, Hi) slice of a frame vector.
type RangeConfig struct {
	Band string `yaml:"band"` // "power" or "mel"
	Lo   int    `yaml:"lo"`
	Hi   int    `yaml:"hi"`
}

// SpikeConfig parameterises an adaptive threshold detector. Durations are
// converted to frame counts from the live frame rate.
type SpikeConfig struct {
	Sensitivity float64       `yaml:"sensitivity"`
	Window      time.Duration `yaml:"window"`
	Range       RangeConfig   `yaml:"range"`
	Direction   string        `yaml:"direction"` // "upper" or "lower"
	MinDuration time.Duration `yaml:"min_duration"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// BreakConfig parameterises the beat drought detector.
type BreakConfig struct {
	Capacity int     `yaml:"capacity"` // Retained beat timestamps.
	Margin   int     `yaml:"margin"`   // Detection needs Capacity-Margin beats.
	Ratio    float64 `yaml:"ratio"`    // Silence longer than Ratio x mean interval is a break.
}

// DropConfig parameterises the beat density surge detector.
type DropConfig struct {
	Capacity int     `yaml:"capacity"`  // Long window, retained beat timestamps.
	Recent   int     `yaml:"recent"`    // Short window compared against the long one.
	MinBeats int     `yaml:"min_beats"` // Beats needed before any comparison.
	Ratio    float64 `yaml:"ratio"`     // Recent mean interval below Ratio x long mean is a drop.
}

// SilenceConfig parameterises the new-track boundary detector.
type SilenceConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold float64       `yaml:"threshold"` // Band mean below this is silent.
	Range     RangeConfig   `yaml:"range"`
	Hold      time.Duration `yaml:"hold"` // Silence must last this long.
}

// DetectionConfig groups every detector.
type DetectionConfig struct {
	Kick    SpikeConfig   `yaml:"kick"`
	Break   BreakConfig   `yaml:"break"`
	Drop    DropConfig    `yaml:"drop"`
	Silence SilenceConfig `yaml:"silence"`
}

// ControllerConfig controls animation sequencing for every device.
type ControllerConfig struct {
	MaxFPS         int           `yaml:"max_fps"`          // Dispatch rate limit.
	BeatCooldown   time.Duration `yaml:"beat_cooldown"`    // Minimum gap between honoured beats.
	RotateAfter    int           `yaml:"rotate_after"`     // Beats before a forced animation change.
	BPMHistory     int           `yaml:"bpm_history"`      // Beat timestamps kept for BPM.
	BreakAddedMax  time.Duration `yaml:"break_added_max"`  // Cap on the post-break cooldown.
	BreakNormalize time.Duration `yaml:"break_normalize"`  // Break length mapped to the full cap.
	FlickerBase    time.Duration `yaml:"flicker_base"`     // Flicker length after a break.
	SlowBPM        float64       `yaml:"slow_bpm"`         // Below this the fade-to-black transform is used.
	Animations     []string      `yaml:"animations"`       // Rotation set.
	Seed           uint64        `yaml:"seed,omitempty"`   // Random seed, 0 picks one.
}

// ServoConfig declares the usable range of one servo axis.
type ServoConfig struct {
	Min    int `yaml:"min"`
	Max    int `yaml:"max"`
	Offset int `yaml:"offset"`
}

// DeviceConfig describes one fixture and how to reach it.
type DeviceConfig struct {
	Name            string        `yaml:"name"`
	Transport       string        `yaml:"transport"` // "ws", "udp" or "log"
	URL             string        `yaml:"url"`       // WebSocket URL, e.g. ws://192.168.1.59:81/ws
	Address         string        `yaml:"address"`   // UDP host:port
	QueueSize       int           `yaml:"queue_size"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // UDP full-state refresh period.
	ReconnectMin    time.Duration `yaml:"reconnect_min"`
	ReconnectMax    time.Duration `yaml:"reconnect_max"`
	Base            ServoConfig   `yaml:"base"`
	Top             ServoConfig   `yaml:"top"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// MonitorConfig controls the observer websocket server.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice: DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			ChunkSize:   DefaultChunkSize,
			Channels:    DefaultChannels,

			GateThreshold: DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			FFTWindow:   DefaultFFTWindow,
			Mels:        DefaultMels,
			Attack:      0.9,
			Decay:       0.5,
			Sensitivity: 1.0,
		},
		Detection: DetectionConfig{
			Kick: SpikeConfig{
				Sensitivity: 1.75,
				Window:      20 * time.Second,
				Range:       RangeConfig{Band: "power", Lo: 0, Hi: 2},
				Direction:   "upper",
				MinDuration: 100 * time.Microsecond,
				Cooldown:    250 * time.Millisecond,
			},
			Break: BreakConfig{Capacity: 30, Margin: 5, Ratio: 2.5},
			Drop:  DropConfig{Capacity: 30, Recent: 10, MinBeats: 10, Ratio: 0.85},
			Silence: SilenceConfig{
				Enabled:   true,
				Threshold: 2e5,
				Range:     RangeConfig{Band: "power", Lo: 0, Hi: DefaultChunkSize/2 + 1},
				Hold:      1500 * time.Millisecond,
			},
		},
		Controller: ControllerConfig{
			MaxFPS:         DefaultMaxFPS,
			BeatCooldown:   100 * time.Millisecond,
			RotateAfter:    DefaultRotateAfter,
			BPMHistory:     30,
			BreakAddedMax:  3 * time.Second,
			BreakNormalize: 15 * time.Second,
			FlickerBase:    2 * time.Second,
			SlowBPM:        100,
			Animations:     []string{"triangle", "square", "circle", "lemniscate", "bounce"},
		},
		Recording: RecordingConfig{OutputDir: "./recordings"},
		Monitor:   MonitorConfig{Address: ":8080"},
	}
}

// DefaultDevice returns a device entry with the fixture defaults filled in.
func DefaultDevice() DeviceConfig {
	return DeviceConfig{
		Name:            "moving-head",
		Transport:       "ws",
		URL:             "ws://192.168.1.59:81/ws",
		QueueSize:       8,
		RefreshInterval: 500 * time.Millisecond,
		ReconnectMin:    250 * time.Millisecond,
		ReconnectMax:    10 * time.Second,
		Base:            ServoConfig{Min: 0, Max: 180},
		Top:             ServoConfig{Min: 0, Max: 180},
	}
}

// FrameRate returns frames per second for the configured stream.
func (a AudioConfig) FrameRate() float64 {
	if a.ChunkSize <= 0 {
		return 0
	}
	return a.SampleRate / float64(a.ChunkSize)
}

// SPDX-License-Identifier: MIT
//
// Package detect turns per-frame energies into musical events: kicks, breaks,
// drops and silence. Every detector is driven synchronously by a single audio
// stream, so none of them lock. Durations are configured in wall-clock units
// and converted to frame counts from the live FrameRate.
package detect

import (
	"time"

	"lightshow/internal/config"
	"lightshow/internal/log"
)

var logger = log.Named("detect")

// FrameRate describes the stream feeding the detectors.
type FrameRate struct {
	SampleRate float64
	ChunkSize  int
}

// NewFrameRate returns a validated FrameRate.
func NewFrameRate(sampleRate float64, chunkSize int) (FrameRate, error) {
	r := FrameRate{SampleRate: sampleRate, ChunkSize: chunkSize}
	return r, r.Validate()
}

// Validate reports a *config.ConfigError for non-positive rates.
func (r FrameRate) Validate() error {
	if r.SampleRate <= 0 {
		return config.Errorf("frame rate", "sample rate %v must be positive", r.SampleRate)
	}
	if r.ChunkSize <= 0 {
		return config.Errorf("frame rate", "chunk size %d must be positive", r.ChunkSize)
	}
	return nil
}

// FPS returns frames per second.
func (r FrameRate) FPS() float64 {
	return r.SampleRate / float64(r.ChunkSize)
}

// Period returns the duration covered by one frame.
func (r FrameRate) Period() time.Duration {
	return time.Duration(float64(r.ChunkSize) / r.SampleRate * float64(time.Second))
}

// Frames converts d to a whole number of frames, truncating.
func (r FrameRate) Frames(d time.Duration) int {
	return int(d.Seconds() * r.FPS())
}

// RateAware is implemented by every component holding frame counts derived
// from the frame rate. SetFrameRate must be applied before the next frame.
type RateAware interface {
	SetFrameRate(FrameRate) error
}

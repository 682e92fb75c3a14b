// SPDX-License-Identifier: MIT
package detect

import (
	"lightshow/internal/analysis"
	"lightshow/internal/config"
)

// SilenceDetector tracks how long the band energy has stayed below an
// absolute threshold. It marks track boundaries.
type SilenceDetector struct {
	cfg       config.SilenceConfig
	band      analysis.FreqRange
	threshold float64

	holdFrames int
	silent     int // consecutive silent frames
}

// NewSilenceDetector validates cfg against the frame shape. Ranges reaching
// past the spectrum are trimmed to it, since "everything" is the usual intent.
func NewSilenceDetector(cfg config.SilenceConfig, shape analysis.FrameShape, rate FrameRate) (*SilenceDetector, error) {
	band, err := analysis.RangeFromConfig("detection.silence.range", cfg.Range)
	if err != nil {
		return nil, err
	}
	if n := shape.PowerBins; band.Band == analysis.BandPower && band.Hi > n && band.Lo < n {
		band.Hi = n
	}
	if err := band.Validate(shape); err != nil {
		return nil, err
	}
	if cfg.Threshold <= 0 {
		return nil, config.Errorf("detection.silence.threshold", "%v must be positive", cfg.Threshold)
	}
	s := &SilenceDetector{cfg: cfg, band: band, threshold: cfg.Threshold}
	if err := s.SetFrameRate(rate); err != nil {
		return nil, err
	}
	return s, nil
}

// Observe reports whether frame is silent and updates the run length.
func (s *SilenceDetector) Observe(frame analysis.AudioFrame) bool {
	v, err := frame.BandMean(s.band)
	if err != nil {
		violation("frame does not match the validated shape: %v", err)
		return false
	}
	if v < s.threshold {
		s.silent++
		return true
	}
	s.silent = 0
	return false
}

// Held reports whether silence has lasted at least the hold duration.
func (s *SilenceDetector) Held() bool {
	return s.silent > 0 && s.silent >= s.holdFrames
}

// Run returns the number of consecutive silent frames.
func (s *SilenceDetector) Run() int { return s.silent }

// SetFrameRate recomputes the hold length and restarts the run.
func (s *SilenceDetector) SetFrameRate(rate FrameRate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	s.holdFrames = max(1, rate.Frames(s.cfg.Hold))
	s.silent = 0
	return nil
}

// Reset restarts the run.
func (s *SilenceDetector) Reset() { s.silent = 0 }

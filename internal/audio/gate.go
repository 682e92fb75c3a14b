// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"slices"

	"lightshow/internal/config"
)

const DefaultGateThreshold = config.DefaultGateThreshold

// Gate is a peak noise gate on raw 32-bit samples. A closed gate turns the
// chunk into digital silence before analysis, which is what lets the silence
// detector see gaps between tracks on a noisy input.
type Gate struct {
	enabled   bool
	threshold int32 // Absolute amplitude threshold (0-2147483647)

	// Peaks of the ambient chunks seen while calibrating.
	peaks []int32
}

// NewGate returns an enabled gate at threshold (0-1 of full scale).
func NewGate(threshold float64) Gate {
	g := Gate{enabled: true}
	g.SetThreshold(threshold)
	return g
}

func (g *Gate) Enable() { g.enabled = true }
func (g *Gate) Disable() { g.enabled = false }
func (g *Gate) Enabled() bool { return g.enabled }

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = min(max(threshold, 0), 1)
	g.threshold = int32(threshold * float64(math.MaxInt32))
}

// Threshold returns the threshold as a fraction of full scale.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold) / float64(math.MaxInt32)
}

// Open reports whether the chunk's peak is above the threshold. A disabled
// gate is always open.
func (g *Gate) Open(buffer []int32) bool {
	if !g.enabled {
		return true
	}
	return peak(buffer) > g.threshold
}

// peak finds the maximum absolute sample without branching.
func peak(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}

// Calibrate measures the next n chunks of ambient noise and then sets the
// threshold to twice their lower-quartile peak. The gate keeps its current
// threshold until then.
func (g *Gate) Calibrate(n int) {
	if n <= 0 {
		g.peaks = nil
		return
	}
	g.peaks = make([]int32, 0, n)
}

// Calibrating reports whether a calibration is still collecting chunks.
func (g *Gate) Calibrating() bool { return g.peaks != nil }

// observe records one chunk for calibration and reports whether it finished
// the calibration.
func (g *Gate) observe(buffer []int32) bool {
	if g.peaks == nil {
		return false
	}
	g.peaks = append(g.peaks, peak(buffer))
	if len(g.peaks) < cap(g.peaks) {
		return false
	}
	slices.Sort(g.peaks)
	q := int64(g.peaks[len(g.peaks)/4]) * 2
	g.threshold = int32(min(q, math.MaxInt32))
	g.peaks = nil
	return true
}

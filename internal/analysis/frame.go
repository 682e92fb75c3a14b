// SPDX-License-Identifier: MIT
package analysis

import (
	"lightshow/internal/config"

	"gonum.org/v1/gonum/floats"
)

// Band selects which frame vector a FreqRange indexes.
type Band uint8

const (
	BandPower Band = iota // FFT power spectrum, one value per bin.
	BandMel               // Smoothed Mel energies, one value per band.
)

func (b Band) String() string {
	switch b {
	case BandPower:
		return "power"
	case BandMel:
		return "mel"
	default:
		return "unknown"
	}
}

// FreqRange is an inclusive-exclusive [Lo, Hi) index range on one frame vector.
type FreqRange struct {
	Band Band
	Lo   int
	Hi   int
}

// FrameShape is the length of each vector in the frames a processor emits.
type FrameShape struct {
	PowerBins int
	MelBands  int
}

func (s FrameShape) length(b Band) int {
	if b == BandMel {
		return s.MelBands
	}
	return s.PowerBins
}

// RangeFromConfig converts a configured range. Bounds are checked by Validate.
func RangeFromConfig(field string, rc config.RangeConfig) (FreqRange, error) {
	if err := rc.Validate(field); err != nil {
		return FreqRange{}, err
	}
	r := FreqRange{Band: BandPower, Lo: rc.Lo, Hi: rc.Hi}
	if rc.Band == "mel" {
		r.Band = BandMel
	}
	return r, nil
}

// Validate reports a *config.ConfigError when the range is empty or does
// not fit inside the vector it selects.
func (r FreqRange) Validate(shape FrameShape) error {
	if r.Lo < 0 || r.Hi <= r.Lo {
		return config.Errorf("frequency range", "empty or negative %s range [%d, %d)", r.Band, r.Lo, r.Hi)
	}
	if n := shape.length(r.Band); r.Hi > n {
		return config.Errorf("frequency range", "%s range [%d, %d) exceeds vector length %d", r.Band, r.Lo, r.Hi, n)
	}
	return nil
}

// AudioFrame is the per-callback analysis result. Its slices alias the
// processor's buffers and are only valid until the next Process call, so
// consumers must not retain them.
type AudioFrame struct {
	PowerSpectrum []float64
	MelEnergies   []float64
}

// Shape returns the vector lengths of the frame.
func (f AudioFrame) Shape() FrameShape {
	return FrameShape{PowerBins: len(f.PowerSpectrum), MelBands: len(f.MelEnergies)}
}

// BandMean averages the selected vector over r.
func (f AudioFrame) BandMean(r FreqRange) (float64, error) {
	if err := r.Validate(f.Shape()); err != nil {
		return 0, err
	}
	v := f.PowerSpectrum
	if r.Band == BandMel {
		v = f.MelEnergies
	}
	return floats.Sum(v[r.Lo:r.Hi]) / float64(r.Hi-r.Lo), nil
}

// SPDX-License-Identifier: MIT
package detect

import (
	"fmt"

	"lightshow/internal/analysis"
	"lightshow/internal/config"
)

// Direction selects which side of the adaptive limit counts as a spike.
type Direction uint8

const (
	Upper Direction = iota // energy above sensitivity x mean
	Lower                  // energy below sensitivity x mean
)

func parseDirection(s string) (Direction, error) {
	switch s {
	case "upper", "":
		return Upper, nil
	case "lower":
		return Lower, nil
	}
	return Upper, config.Errorf("direction", "unknown direction %q", s)
}

// violation reports a broken internal invariant. Debug builds panic, release
// builds log and let the caller clamp.
func violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if debugInvariants {
		panic("detect: invariant violated: " + msg)
	}
	logger.Warnf("invariant violated: %s", msg)
}

// SpikeDetector is an adaptive threshold detector over a rolling window of
// band energies, with minimum run length and cooldown measured in frames.
type SpikeDetector struct {
	cfg         config.SpikeConfig
	sensitivity float64
	band        analysis.FreqRange
	direction   Direction

	window         *EnergyWindow
	minFrames      int
	cooldownFrames int

	detecting bool
	run       int
	cooldown  int
}

// NewSpikeDetector validates cfg against the frame shape and rate.
func NewSpikeDetector(cfg config.SpikeConfig, shape analysis.FrameShape, rate FrameRate) (*SpikeDetector, error) {
	if err := cfg.Validate("spike"); err != nil {
		return nil, err
	}
	band, err := analysis.RangeFromConfig("spike.range", cfg.Range)
	if err != nil {
		return nil, err
	}
	if err := band.Validate(shape); err != nil {
		return nil, err
	}
	dir, err := parseDirection(cfg.Direction)
	if err != nil {
		return nil, err
	}
	d := &SpikeDetector{
		cfg:         cfg,
		sensitivity: cfg.Sensitivity,
		band:        band,
		direction:   dir,
		window:      NewEnergyWindow(1),
	}
	if err := d.SetFrameRate(rate); err != nil {
		return nil, err
	}
	return d, nil
}

// SetFrameRate recomputes every frame count and discards history and
// cooldown, which would otherwise describe the old rate. A window shorter
// than one frame is rejected and changes nothing.
func (d *SpikeDetector) SetFrameRate(rate FrameRate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	frames := rate.Frames(d.cfg.Window)
	if frames < 1 {
		return config.Errorf("spike.window", "%v is shorter than one frame at %.1f fps", d.cfg.Window, rate.FPS())
	}
	d.window.Rebuild(frames)
	d.minFrames = rate.Frames(d.cfg.MinDuration)
	d.cooldownFrames = max(1, rate.Frames(d.cfg.Cooldown))
	d.cooldown = 0
	d.detecting = false
	d.run = 0
	return nil
}

// Observe feeds one frame and reports whether it fired. With record false
// the frame's energy is compared but not added to the window.
func (d *SpikeDetector) Observe(frame analysis.AudioFrame, record bool) bool {
	current, ok := d.energy(frame)
	if !ok {
		return false
	}
	if record {
		d.window.Push(current)
	}
	if d.window.Len() == 0 {
		return false
	}
	limit := d.sensitivity * d.window.Mean()
	raw := current > limit
	if d.direction == Lower {
		raw = current < limit
	}

	if d.tickCooldown() {
		return false
	}

	switch {
	case !raw:
		d.detecting = false
		d.run = 0
		return false
	case !d.detecting:
		if d.minFrames == 0 {
			return d.fire()
		}
		d.detecting = true
		return false
	default:
		d.run++
		if d.run >= d.minFrames {
			return d.fire()
		}
		return false
	}
}

// Limit returns the current adaptive threshold.
func (d *SpikeDetector) Limit() float64 {
	return d.sensitivity * d.window.Mean()
}

// Cooldown returns the frames left before the detector may fire again.
func (d *SpikeDetector) Cooldown() int { return d.cooldown }

// Window exposes the energy history for inspection.
func (d *SpikeDetector) Window() *EnergyWindow { return d.window }

// Reset clears history, run state and cooldown.
func (d *SpikeDetector) Reset() {
	d.window.Reset()
	d.detecting = false
	d.run = 0
	d.cooldown = 0
}

func (d *SpikeDetector) fire() bool {
	d.detecting = false
	d.run = 0
	d.cooldown = d.cooldownFrames
	return true
}

// tickCooldown consumes one cooldown frame and reports whether the detector
// is still cooling down.
func (d *SpikeDetector) tickCooldown() bool {
	if d.cooldown < 0 {
		violation("negative cooldown %d", d.cooldown)
		d.cooldown = 0
	}
	if d.cooldown > 0 {
		d.cooldown--
		return true
	}
	return false
}

func (d *SpikeDetector) energy(frame analysis.AudioFrame) (float64, bool) {
	v, err := frame.BandMean(d.band)
	if err != nil {
		violation("frame does not match the validated shape: %v", err)
		return 0, false
	}
	return v, true
}

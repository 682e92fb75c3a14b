// SPDX-License-Identifier: MIT
package detect

import (
	"lightshow/internal/analysis"
	"lightshow/internal/config"
)

const (
	// kickLag is how many frames back the rising difference is measured.
	kickLag = 3
	// kickWarmup is the window length required before any decision.
	kickWarmup = 7
)

// KickDetector fires on the rising edge of a lagged positive energy
// difference. Sustained energy after a hit does not retrigger.
type KickDetector struct {
	*SpikeDetector
	wasAbove bool
}

// NewKickDetector builds a kick detector. cfg usually comes from
// config.Default().Detection.Kick.
func NewKickDetector(cfg config.SpikeConfig, shape analysis.FrameShape, rate FrameRate) (*KickDetector, error) {
	if err := checkKickWindow(cfg, rate); err != nil {
		return nil, err
	}
	sd, err := NewSpikeDetector(cfg, shape, rate)
	if err != nil {
		return nil, err
	}
	return &KickDetector{SpikeDetector: sd}, nil
}

// Observe feeds one frame and reports a kick. With record false the window is
// left untouched, which keeps the lookback frozen during a break.
func (k *KickDetector) Observe(frame analysis.AudioFrame, record bool) bool {
	current, ok := k.energy(frame)
	if !ok {
		return false
	}
	if record {
		k.window.Push(current)
	}

	var diff float64
	if k.window.Len() > kickLag+1 {
		diff = max(0, current-k.window.Newest(kickLag))
	}

	if k.tickCooldown() {
		return false
	}

	if k.window.Len() < kickWarmup {
		k.wasAbove = false
		return false
	}

	above := diff > k.sensitivity*k.window.Mean()
	if above && !k.wasAbove {
		k.wasAbove = true
		k.cooldown = k.cooldownFrames
		return true
	}
	k.wasAbove = above
	return false
}

// ResetState clears the edge latch and cooldown but keeps the energy history.
// Used when a beat ends a break.
func (k *KickDetector) ResetState() {
	k.wasAbove = false
	k.cooldown = 0
}

// Reset clears history as well as the latch.
func (k *KickDetector) Reset() {
	k.SpikeDetector.Reset()
	k.wasAbove = false
}

// SetFrameRate rebuilds the window and clears the latch. A rate that leaves
// the window shorter than the warm-up is rejected and changes nothing.
func (k *KickDetector) SetFrameRate(rate FrameRate) error {
	if err := checkKickWindow(k.cfg, rate); err != nil {
		return err
	}
	k.wasAbove = false
	return k.SpikeDetector.SetFrameRate(rate)
}

// checkKickWindow rejects windows too short to ever leave the warm-up.
func checkKickWindow(cfg config.SpikeConfig, rate FrameRate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	if n := rate.Frames(cfg.Window); n < kickWarmup {
		return config.Errorf("detection.kick.window", "%v is %d frames at %.1f fps, need at least %d",
			cfg.Window, n, rate.FPS(), kickWarmup)
	}
	return nil
}

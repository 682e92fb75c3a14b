// SPDX-License-Identifier: MIT
package detect

import (
	"time"

	"lightshow/internal/config"
)

// breakRecovery is how many old beats ClearOldBeats drops, and twice it is
// the history length below which nothing is dropped.
const breakRecovery = 5

// BreakDetector reports a drought: no beat for much longer than the
// established cadence.
type BreakDetector struct {
	history *BeatHistory
	margin  int
	ratio   float64
}

// NewBreakDetector validates cfg and returns an empty detector.
func NewBreakDetector(cfg config.BreakConfig) (*BreakDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BreakDetector{
		history: NewBeatHistory(cfg.Capacity),
		margin:  cfg.Margin,
		ratio:   cfg.Ratio,
	}, nil
}

// RecordBeat appends a beat timestamp.
func (b *BreakDetector) RecordBeat(t time.Time) { b.history.Record(t) }

// Detect reports whether now is a break. It needs Capacity-Margin beats.
func (b *BreakDetector) Detect(now time.Time) bool {
	if b.history.Len() < b.history.Cap()-b.margin {
		return false
	}
	last, _ := b.history.Last()
	mean := b.history.MeanInterval(0)
	return float64(now.Sub(last)) > b.ratio*float64(mean)
}

// ClearOldBeats drops the oldest beats so the cadence re-adapts after a
// break. Short histories are left alone.
func (b *BreakDetector) ClearOldBeats() {
	if b.history.Len() > 2*breakRecovery {
		b.history.DropOldest(breakRecovery)
	}
}

// ShiftAll moves every stored beat by offset, hiding the break's own length
// from later interval statistics.
func (b *BreakDetector) ShiftAll(offset time.Duration) { b.history.Shift(offset) }

// LastBeat returns the newest beat.
func (b *BreakDetector) LastBeat() (time.Time, bool) { return b.history.Last() }

// History exposes the beat timestamps.
func (b *BreakDetector) History() *BeatHistory { return b.history }

// Reset discards every beat.
func (b *BreakDetector) Reset() { b.history.Reset() }

// DropDetector reports a surge: the recent beat cadence is markedly faster
// than the long-term one.
type DropDetector struct {
	history  *BeatHistory
	recent   int
	minBeats int
	ratio    float64
}

// NewDropDetector validates cfg and returns an empty detector.
func NewDropDetector(cfg config.DropConfig) (*DropDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DropDetector{
		history:  NewBeatHistory(cfg.Capacity),
		recent:   cfg.Recent,
		minBeats: cfg.MinBeats,
		ratio:    cfg.Ratio,
	}, nil
}

// RecordBeat appends a beat timestamp.
func (d *DropDetector) RecordBeat(t time.Time) { d.history.Record(t) }

// Detect reports whether the recent mean interval is below ratio times the
// whole-history mean interval.
func (d *DropDetector) Detect() bool {
	if d.history.Len() < d.minBeats {
		return false
	}
	all := d.history.MeanInterval(0)
	recent := d.history.MeanInterval(d.recent)
	return float64(recent) < d.ratio*float64(all)
}

// History exposes the beat timestamps.
func (d *DropDetector) History() *BeatHistory { return d.history }

// Reset discards every beat.
func (d *DropDetector) Reset() { d.history.Reset() }

// SPDX-License-Identifier: MIT
package detect

import (
	"testing"
	"time"

	"lightshow/internal/analysis"
	"lightshow/internal/config"
)

var epoch = time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)

// recordEvery records n beats spaced by interval after start and returns the
// last timestamp.
func recordEvery(record func(time.Time), start time.Time, n int, interval time.Duration) time.Time {
	t := start
	for i := range n {
		if i > 0 {
			t = t.Add(interval)
		}
		record(t)
	}
	return t
}

func newBreak(t *testing.T) *BreakDetector {
	t.Helper()
	b, err := NewBreakDetector(config.Default().Detection.Break)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newDrop(t *testing.T) *DropDetector {
	t.Helper()
	d, err := NewDropDetector(config.Default().Detection.Drop)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestBreakDetectorNeedsHistory(t *testing.T) {
	b := newBreak(t)
	const T = 500 * time.Millisecond
	last := recordEvery(b.RecordBeat, epoch, 24, T)
	if b.Detect(last.Add(time.Hour)) {
		t.Error("fired with fewer than capacity-margin beats")
	}
	b.RecordBeat(last.Add(T))
	if !b.Detect(last.Add(time.Hour)) {
		t.Error("expected a break with 25 beats and a long silence")
	}
}

func TestBreakDetectorDrought(t *testing.T) {
	b := newBreak(t)
	const T = 500 * time.Millisecond
	last := recordEvery(b.RecordBeat, epoch, 30, T)

	// Sweep time forward with no beats: exactly one false->true transition,
	// strictly after 2.5T.
	transitions, prev := 0, false
	for dt := time.Duration(0); dt <= 4*T; dt += T / 20 {
		got := b.Detect(last.Add(dt))
		if got && !prev {
			transitions++
			if dt <= 5*T/2 {
				t.Errorf("fired at %v, not beyond 2.5T", dt)
			}
		}
		prev = got
	}
	if transitions != 1 {
		t.Errorf("transitions = %d, want 1", transitions)
	}
}

func TestBreakDetectorResumingBeats(t *testing.T) {
	b := newBreak(t)
	const T = 500 * time.Millisecond
	last := recordEvery(b.RecordBeat, epoch, 30, T)

	// Beats that keep arriving within 2.5T never trigger.
	for _, gap := range []time.Duration{T, 2 * T, 5 * T / 2, T / 2, 5 * T / 2} {
		for dt := time.Duration(0); dt <= gap; dt += T / 10 {
			if b.Detect(last.Add(dt)) {
				t.Fatalf("fired %v after a beat with gap %v", dt, gap)
			}
		}
		last = last.Add(gap)
		b.RecordBeat(last)
	}
}

func TestBreakDetectorRecovery(t *testing.T) {
	b := newBreak(t)
	const T = 500 * time.Millisecond

	recordEvery(b.RecordBeat, epoch, 10, T)
	b.ClearOldBeats()
	if b.History().Len() != 10 {
		t.Errorf("short history trimmed to %d", b.History().Len())
	}

	last := recordEvery(b.RecordBeat, epoch.Add(10*T), 2, T)
	b.ClearOldBeats()
	if b.History().Len() != 7 {
		t.Errorf("len after ClearOldBeats = %d, want 7", b.History().Len())
	}

	// A 10 s break is hidden from the interval statistics.
	now := last.Add(10 * time.Second)
	b.ShiftAll(now.Sub(last))
	if got, _ := b.LastBeat(); !got.Equal(now) {
		t.Errorf("LastBeat = %v, want %v", got, now)
	}
	if got := b.History().MeanInterval(0); got != T {
		t.Errorf("MeanInterval = %v, want %v", got, T)
	}
}

func TestDropDetectorSurge(t *testing.T) {
	const T = 400 * time.Millisecond
	tests := []struct {
		name   string
		recent time.Duration
		want   bool
	}{
		{"double time", T / 2, true},
		{"slightly faster", T * 95 / 100, false},
		{"steady", T, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDrop(t)
			last := recordEvery(d.RecordBeat, epoch, 20, T)
			for range 10 {
				last = last.Add(tt.recent)
				d.RecordBeat(last)
			}
			if got := d.Detect(); got != tt.want {
				t.Errorf("Detect() = %v, want %v (recent %v, all %v)", got, tt.want,
					d.History().MeanInterval(10), d.History().MeanInterval(0))
			}
		})
	}
}

func TestDropDetectorMinimumBeats(t *testing.T) {
	d := newDrop(t)
	recordEvery(d.RecordBeat, epoch, 5, time.Second)
	recordEvery(d.RecordBeat, epoch.Add(5*time.Second), 4, time.Millisecond)
	if d.Detect() {
		t.Error("fired below the minimum beat count")
	}
}

func TestSilenceDetector(t *testing.T) {
	cfg := config.Default().Detection.Silence
	s, err := NewSilenceDetector(cfg, testShape, testRate)
	if err != nil {
		t.Fatal(err)
	}
	silent := analysis.AudioFrame{PowerSpectrum: make([]float64, 4), MelEnergies: make([]float64, 2)}
	loud := analysis.AudioFrame{PowerSpectrum: []float64{1e7, 1e7, 1e7, 1e7}, MelEnergies: make([]float64, 2)}

	hold := testRate.Frames(cfg.Hold)
	for i := range hold - 1 {
		if !s.Observe(silent) || s.Held() {
			t.Fatalf("frame %d: held too early", i)
		}
	}
	if !s.Observe(silent) || !s.Held() {
		t.Fatal("silence not held after the hold duration")
	}
	if s.Observe(loud) || s.Held() || s.Run() != 0 {
		t.Error("loud frame did not end the silent run")
	}

	cfg.Threshold = 0
	if _, err := NewSilenceDetector(cfg, testShape, testRate); !config.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

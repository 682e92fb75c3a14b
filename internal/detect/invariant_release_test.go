// SPDX-License-Identifier: MIT
//go:build !lightshow_debug

package detect

import (
	"testing"
	"time"
)

func TestBeatHistoryOrderClamped(t *testing.T) {
	h := NewBeatHistory(4)
	h.Record(epoch.Add(time.Second))
	h.Record(epoch)
	if last, _ := h.Last(); !last.Equal(epoch.Add(time.Second)) {
		t.Errorf("out of order beat stored as %v", last)
	}
}

func TestNegativeCooldownClamped(t *testing.T) {
	d := newSpike(t, spikeConfig())
	d.cooldown = -3
	d.Observe(energyFrame(1), true)
	if d.Cooldown() != 0 {
		t.Errorf("cooldown = %d, want 0", d.Cooldown())
	}
}

func TestEnergyWindowZeroCapacityClamped(t *testing.T) {
	w := NewEnergyWindow(0)
	w.Push(7)
	w.Push(9)
	if w.Cap() != 1 || w.Newest(0) != 9 || w.Mean() != 9 {
		t.Errorf("cap %d newest %v mean %v", w.Cap(), w.Newest(0), w.Mean())
	}
}

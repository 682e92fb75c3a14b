// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		g := NewGate(tt.in)
		if got := g.Threshold(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SetThreshold(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGateOpen(t *testing.T) {
	g := NewGate(0.5)
	half := int32(math.MaxInt32 / 2)
	tests := []struct {
		name string
		buf  []int32
		want bool
	}{
		{"empty", nil, false},
		{"silence", []int32{0, 0, 0}, false},
		{"at threshold", []int32{half}, false},
		{"positive peak", []int32{0, half + 10, 0}, true},
		{"negative peak", []int32{-half - 10, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Open(tt.buf); got != tt.want {
				t.Errorf("Open = %v, want %v", got, tt.want)
			}
		})
	}

	g.Disable()
	if !g.Open(nil) || g.Enabled() {
		t.Error("disabled gate should always be open")
	}
	g.Enable()
	if g.Open(nil) {
		t.Error("re-enabled gate open on silence")
	}
}

func TestPeak(t *testing.T) {
	if got := peak([]int32{3, -7, 5}); got != 7 {
		t.Errorf("peak = %d, want 7", got)
	}
}

func TestGateHotPath(t *testing.T) {
	g := NewGate(DefaultGateThreshold)
	allocs := testing.AllocsPerRun(100, func() {
		_ = g.Open(testBuffer)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in noise gate hot path, got %.1f", allocs)
	}
}

func BenchmarkGate(b *testing.B) {
	g := NewGate(DefaultGateThreshold)
	for b.Loop() {
		_ = g.Open(testBuffer)
	}
}

func TestGateCalibrate(t *testing.T) {
	g := NewGate(0.5)
	g.Calibrate(0)
	if g.Calibrating() || g.observe([]int32{1}) {
		t.Fatal("Calibrate(0) should leave the gate alone")
	}

	g.Calibrate(2)
	if g.observe([]int32{100, -300}) {
		t.Fatal("finished after one of two chunks")
	}
	if !g.observe([]int32{200}) {
		t.Fatal("did not finish after two chunks")
	}
	if g.Calibrating() {
		t.Error("still calibrating")
	}
	// Sorted peaks are [200 300]; the lower quartile is 200.
	if !g.Open([]int32{401}) || g.Open([]int32{400}) {
		t.Errorf("threshold = %v of full scale, want 400 samples", g.Threshold())
	}
}

// SPDX-License-Identifier: MIT
package detect

import "gonum.org/v1/gonum/floats"

// EnergyWindow is a fixed-capacity ring of the most recent energies. Pushing
// into a full window evicts the oldest value.
type EnergyWindow struct {
	buf  []float64
	head int // next write position
	n    int
}

// NewEnergyWindow returns an empty window holding up to capacity values.
// Callers validate capacity; below one is an invariant violation.
func NewEnergyWindow(capacity int) *EnergyWindow {
	return &EnergyWindow{buf: make([]float64, windowCapacity(capacity))}
}

func windowCapacity(capacity int) int {
	if capacity < 1 {
		violation("energy window capacity %d below 1", capacity)
		return 1
	}
	return capacity
}

// Push appends v, evicting the oldest value when full.
func (w *EnergyWindow) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Len returns the number of stored values.
func (w *EnergyWindow) Len() int { return w.n }

// Cap returns the capacity.
func (w *EnergyWindow) Cap() int { return len(w.buf) }

// Mean returns the average of the stored values, or 0 when empty.
func (w *EnergyWindow) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	// Until the ring wraps the values occupy buf[:n]; afterwards all of buf.
	return floats.Sum(w.buf[:w.n]) / float64(w.n)
}

// Newest returns the k-th most recent value; Newest(0) is the last pushed.
// k must be less than Len.
func (w *EnergyWindow) Newest(k int) float64 {
	i := w.head - 1 - k
	if i < 0 {
		i += len(w.buf)
	}
	return w.buf[i]
}

// Reset discards every value.
func (w *EnergyWindow) Reset() {
	w.head, w.n = 0, 0
}

// Rebuild replaces the storage with an empty window of the new capacity.
func (w *EnergyWindow) Rebuild(capacity int) {
	w.buf = make([]float64, windowCapacity(capacity))
	w.Reset()
}

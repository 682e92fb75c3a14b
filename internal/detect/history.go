// SPDX-License-Identifier: MIT
package detect

import "time"

// BeatHistory is a bounded, non-decreasing list of beat timestamps.
type BeatHistory struct {
	beats []time.Time
	cap   int
}

// NewBeatHistory returns an empty history keeping at most capacity beats.
func NewBeatHistory(capacity int) *BeatHistory {
	capacity = max(1, capacity)
	return &BeatHistory{beats: make([]time.Time, 0, capacity), cap: capacity}
}

// Record appends t, evicting the oldest entry when full. A timestamp earlier
// than the last one is clamped to it.
func (h *BeatHistory) Record(t time.Time) {
	if n := len(h.beats); n > 0 && t.Before(h.beats[n-1]) {
		violation("beat %v recorded before %v", t, h.beats[n-1])
		t = h.beats[n-1]
	}
	if len(h.beats) == h.cap {
		copy(h.beats, h.beats[1:])
		h.beats = h.beats[:len(h.beats)-1]
	}
	h.beats = append(h.beats, t)
}

// Len returns the number of stored beats.
func (h *BeatHistory) Len() int { return len(h.beats) }

// Cap returns the capacity.
func (h *BeatHistory) Cap() int { return h.cap }

// Last returns the newest beat, or false when empty.
func (h *BeatHistory) Last() (time.Time, bool) {
	if len(h.beats) == 0 {
		return time.Time{}, false
	}
	return h.beats[len(h.beats)-1], true
}

// Beats returns the stored beats, oldest first. The slice is owned by the
// history.
func (h *BeatHistory) Beats() []time.Time { return h.beats }

// MeanInterval returns the average gap between consecutive beats of the
// newest n entries (all when n <= 0 or n > Len). It is 0 below two beats.
func (h *BeatHistory) MeanInterval(n int) time.Duration {
	b := h.beats
	if n > 0 && n < len(b) {
		b = b[len(b)-n:]
	}
	if len(b) < 2 {
		return 0
	}
	// Consecutive gaps telescope to last - first.
	return b[len(b)-1].Sub(b[0]) / time.Duration(len(b)-1)
}

// DropOldest removes the n oldest beats.
func (h *BeatHistory) DropOldest(n int) {
	n = min(n, len(h.beats))
	copy(h.beats, h.beats[n:])
	h.beats = h.beats[:len(h.beats)-n]
}

// Shift adds offset to every stored timestamp.
func (h *BeatHistory) Shift(offset time.Duration) {
	for i := range h.beats {
		h.beats[i] = h.beats[i].Add(offset)
	}
}

// Reset discards every beat.
func (h *BeatHistory) Reset() {
	h.beats = h.beats[:0]
}

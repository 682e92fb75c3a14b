// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators shared by tests and benchmarks.
package utils

import "math"

// ComplexWave returns size normalised samples of a 440Hz fundamental plus
// two harmonics.
func ComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = (math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2) * 0.9
	}
	return buffer
}

// SineWave returns size normalised samples of a pure tone.
func SineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// ToInt32 scales normalised samples to the full int32 range, the format
// PortAudio delivers.
func ToInt32(samples []float64) []int32 {
	out := make([]int32, len(samples))
	for i, s := range samples {
		out[i] = int32(s * math.MaxInt32)
	}
	return out
}

// SpikeTrain returns n energies at base with spike at every index i > 0
// where i%every == 0.
func SpikeTrain(n int, base, spike float64, every int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
		if i > 0 && every > 0 && i%every == 0 {
			out[i] = spike
		}
	}
	return out
}

// FindPeakBin returns the index of the largest value in magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"lightshow/internal/config"
	"lightshow/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestProcessor(t testing.TB) *SpectrumProcessor {
	t.Helper()
	p, err := NewSpectrumProcessor(config.Default().Analysis, testFFTSize, testSampleRate)
	if err != nil {
		t.Fatalf("NewSpectrumProcessor: %v", err)
	}
	return p
}

func TestNewSpectrumProcessorErrors(t *testing.T) {
	tests := []struct {
		name string
		size int
		rate float64
		win  string
	}{
		{"not power of two", 1000, testSampleRate, "Hann"},
		{"zero rate", testFFTSize, 0, "Hann"},
		{"unknown window", testFFTSize, testSampleRate, "Triangle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Analysis
			cfg.FFTWindow = tt.win
			_, err := NewSpectrumProcessor(cfg, tt.size, tt.rate)
			if !config.IsConfigError(err) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestSpectrumPeak(t *testing.T) {
	p := newTestProcessor(t)
	const freq = 1000.0
	frame := p.Process(utils.SineWave(testFFTSize, testSampleRate, freq))

	if got := frame.Shape(); got.PowerBins != testFFTSize/2+1 || got.MelBands != config.DefaultMels {
		t.Fatalf("shape = %+v", got)
	}

	peak := utils.FindPeakBin(frame.PowerSpectrum, 0, len(frame.PowerSpectrum)-1)
	if got := p.FrequencyForBin(peak); math.Abs(got-freq) > testSampleRate/testFFTSize {
		t.Errorf("peak at %.1f Hz, want ~%.1f Hz", got, freq)
	}
}

func TestSpectrumSilence(t *testing.T) {
	p := newTestProcessor(t)
	frame := p.Process(make([]float64, testFFTSize))
	mean, err := frame.BandMean(FreqRange{Band: BandPower, Lo: 0, Hi: testFFTSize/2 + 1})
	if err != nil {
		t.Fatal(err)
	}
	if mean != 0 {
		t.Errorf("silent chunk mean power = %v, want 0", mean)
	}
}

func TestMelSmoothing(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.Attack, cfg.Decay = 0.5, 0.5
	p, err := NewSpectrumProcessor(cfg, testFFTSize, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	loud := utils.SineWave(testFFTSize, testSampleRate, 200)
	p.Process(loud)
	smoothed := append([]float64(nil), p.Process(loud).MelEnergies...)
	raw := p.RawMel()

	// Two identical loud frames with attack 0.5 reach 3/4 of the raw energy.
	for i := range smoothed {
		if raw[i] == 0 {
			continue
		}
		if want := 0.75 * raw[i]; math.Abs(smoothed[i]-want) > 1e-6*raw[i] {
			t.Fatalf("band %d smoothed = %v, want %v", i, smoothed[i], want)
		}
	}

	p.Reset()
	for i, v := range p.Process(make([]float64, testFFTSize)).MelEnergies {
		if v != 0 {
			t.Fatalf("band %d = %v after reset and silence", i, v)
		}
	}
}

func TestMelFilterbankCoversSpectrum(t *testing.T) {
	filters := melFilterbank(testSampleRate, testFFTSize, 40)
	if len(filters) != 40 {
		t.Fatalf("got %d filters", len(filters))
	}
	prev := 0
	for i, f := range filters {
		if len(f.weights) == 0 {
			continue
		}
		if f.lo < prev {
			t.Errorf("filter %d starts at bin %d, before filter %d", i, f.lo, i-1)
		}
		if f.lo+len(f.weights) > testFFTSize/2+1 {
			t.Errorf("filter %d overruns the spectrum", i)
		}
		prev = f.lo
	}
}

func TestSetMels(t *testing.T) {
	p := newTestProcessor(t)
	if err := p.SetMels(0); !config.IsConfigError(err) {
		t.Errorf("SetMels(0) = %v, want ConfigError", err)
	}
	if err := p.SetMels(64); err != nil {
		t.Fatal(err)
	}
	if got := p.Shape().MelBands; got != 64 {
		t.Errorf("MelBands = %d, want 64", got)
	}
}

func TestBandMeanRange(t *testing.T) {
	f := AudioFrame{PowerSpectrum: []float64{1, 2, 3, 4}, MelEnergies: []float64{10, 20}}

	tests := []struct {
		name    string
		r       FreqRange
		want    float64
		wantErr bool
	}{
		{"power low pair", FreqRange{BandPower, 0, 2}, 1.5, false},
		{"power all", FreqRange{BandPower, 0, 4}, 2.5, false},
		{"mel", FreqRange{BandMel, 1, 2}, 20, false},
		{"empty", FreqRange{BandPower, 2, 2}, 0, true},
		{"exceeds", FreqRange{BandMel, 0, 3}, 0, true},
		{"negative", FreqRange{BandPower, -1, 2}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.BandMean(tt.r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !config.IsConfigError(err) {
				t.Errorf("expected ConfigError, got %T", err)
			}
			if got != tt.want {
				t.Errorf("BandMean = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpectrumHotPath(t *testing.T) {
	p := newTestProcessor(t)
	in := utils.ComplexWave(testFFTSize, testSampleRate)
	r := FreqRange{Band: BandPower, Lo: 0, Hi: 2}

	p.Process(in)
	allocs := testing.AllocsPerRun(100, func() {
		f := p.Process(in)
		_, _ = f.BandMean(r)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process hot path, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	p := newTestProcessor(b)
	in := utils.ComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		p.Process(in)
	}
}

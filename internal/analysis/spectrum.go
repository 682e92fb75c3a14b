// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	"lightshow/internal/config"
	"lightshow/internal/log"
	"lightshow/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

var logger = log.Named("analysis")

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

// pcmScale maps normalised samples back onto the 16-bit PCM range so that
// absolute thresholds (silence) keep their meaning across sources.
const pcmScale = 32768.0

// melFilter is one triangular Mel filter stored as its non-zero span.
type melFilter struct {
	lo      int
	weights []float64
}

// SpectrumProcessor turns a mono chunk into an AudioFrame: window, real FFT,
// power spectrum, Mel filterbank, sensitivity gain and attack/decay smoothing.
// It is not safe for concurrent use; one audio stream owns one processor.
type SpectrumProcessor struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64

	attack      float64
	decay       float64
	sensitivity float64

	window   []float64
	input    []float64
	coeffs   []complex128
	power    []float64
	mel      []float64
	smoothed []float64
	filters  []melFilter
}

// NewSpectrumProcessor builds a processor for fftSize-sample chunks.
func NewSpectrumProcessor(cfg config.AnalysisConfig, fftSize int, sampleRate float64) (*SpectrumProcessor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, config.Errorf("audio.chunk_size", "fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, config.Errorf("audio.sample_rate", "sample rate must be positive, got %f", sampleRate)
	}
	windowType, err := ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return nil, config.Errorf("analysis.fft_window", "%v", err)
	}
	if cfg.Mels <= 0 {
		return nil, config.Errorf("analysis.n_mels", "%d must be positive", cfg.Mels)
	}

	bins := fftSize/2 + 1
	p := &SpectrumProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		attack:        cfg.Attack,
		decay:         cfg.Decay,
		sensitivity:   cfg.Sensitivity,
		window:        make([]float64, fftSize),
		input:         make([]float64, fftSize),
		coeffs:        make([]complex128, bins),
		power:         make([]float64, bins),
	}
	applyWindow(p.window, windowType)
	p.setMels(cfg.Mels)

	logger.Infof("Initializing SpectrumProcessor (Size: %d, SampleRate: %.1f Hz, Window: %s, Mels: %d)",
		fftSize, sampleRate, cfg.FFTWindow, cfg.Mels)
	return p, nil
}

// Process analyses one chunk of normalised mono samples. Short chunks are
// zero padded. The returned frame aliases the processor's buffers.
func (p *SpectrumProcessor) Process(samples []float64) AudioFrame {
	n := min(len(samples), p.fftSize)
	for i := range n {
		p.input[i] = samples[i] * pcmScale * p.window[i]
	}
	clear(p.input[n:])

	p.fftCalculator.Coefficients(p.coeffs, p.input)
	for i, c := range p.coeffs {
		re, im := real(c), imag(c)
		p.power[i] = re*re + im*im
	}

	for i, f := range p.filters {
		e := floats.Dot(f.weights, p.power[f.lo:f.lo+len(f.weights)]) * p.sensitivity
		prev := p.smoothed[i]
		if e > prev {
			p.smoothed[i] = p.attack*prev + (1-p.attack)*e
		} else {
			p.smoothed[i] = p.decay*prev + (1-p.decay)*e
		}
		p.mel[i] = e
	}

	return AudioFrame{PowerSpectrum: p.power, MelEnergies: p.smoothed}
}

// Shape returns the vector lengths of every frame this processor emits.
func (p *SpectrumProcessor) Shape() FrameShape {
	return FrameShape{PowerBins: len(p.power), MelBands: len(p.filters)}
}

// RawMel returns the unsmoothed Mel energies of the last frame.
func (p *SpectrumProcessor) RawMel() []float64 { return p.mel }

// SetMels rebuilds the filterbank with n bands and clears smoothing state.
func (p *SpectrumProcessor) SetMels(n int) error {
	if n <= 0 {
		return config.Errorf("analysis.n_mels", "%d must be positive", n)
	}
	p.setMels(n)
	return nil
}

// Reset clears the smoothing state, used on a new track.
func (p *SpectrumProcessor) Reset() {
	clear(p.smoothed)
}

func (p *SpectrumProcessor) setMels(n int) {
	p.filters = melFilterbank(p.sampleRate, p.fftSize, n)
	p.mel = make([]float64, n)
	p.smoothed = make([]float64, n)
}

// FrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (p *SpectrumProcessor) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.power) {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

// FFTSize returns the configured FFT size (number of points).
func (p *SpectrumProcessor) FFTSize() int { return p.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (p *SpectrumProcessor) SampleRate() float64 { return p.sampleRate }

// Slaney Mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP      = 200.0 / 3
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSP
	}
	return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLog {
		return mel * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
}

// melFilterbank builds n area-normalised triangular filters spanning 0 Hz to
// Nyquist over the fftSize/2+1 power bins.
func melFilterbank(sampleRate float64, fftSize, n int) []melFilter {
	bins := fftSize/2 + 1
	edges := make([]float64, n+2)
	floats.Span(edges, hzToMel(0), hzToMel(sampleRate/2))
	for i, m := range edges {
		edges[i] = melToHz(m)
	}

	binHz := sampleRate / float64(fftSize)
	filters := make([]melFilter, n)
	for i := range filters {
		left, center, right := edges[i], edges[i+1], edges[i+2]
		norm := 2 / (right - left)

		w := make([]float64, bins)
		lo, hi := bins, 0
		for k := range bins {
			f := float64(k) * binHz
			up := (f - left) / (center - left)
			down := (right - f) / (right - center)
			v := math.Max(0, math.Min(up, down))
			if v > 0 {
				w[k] = v * norm
				lo = min(lo, k)
				hi = max(hi, k+1)
			}
		}
		if hi <= lo {
			// Narrow low filters can fall between bins.
			filters[i] = melFilter{}
			continue
		}
		filters[i] = melFilter{lo: lo, weights: w[lo:hi]}
	}
	return filters
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// Window funcs multiply in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		logger.Warnf("Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}

// SPDX-License-Identifier: MIT
/*
Package audio captures and decodes sound and hands it to the analysis chain:
- Live capture using PortAudio, downmixed to mono
- Peak noise gate with branchless implementation
- WAV recording of the raw input with atomic state management
- WAV, FLAC and MP3 file sources for replay

Thread Safety:
- The capture callback runs on PortAudio's thread and owns the buffers
- Recording state is switched atomically
- Buffers are pre-allocated to avoid GC in the hot path
*/
package audio

import (
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"lightshow/internal/analysis"
	"lightshow/internal/config"
	"lightshow/internal/log"
)

var logger = log.Named("audio")

// FrameSink consumes one analysed frame per chunk. The frame is only valid
// during the call.
type FrameSink interface {
	Process(analysis.AudioFrame)
}

type Engine struct {
	cfg config.AudioConfig

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Analysis chain.
	spectrum *analysis.SpectrumProcessor
	sink     FrameSink
	mono     []float64
	chunks   atomic.Uint64

	gate Gate

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine opens the configured input device. PortAudio must be initialised.
func NewEngine(cfg config.AudioConfig, spectrum *analysis.SpectrumProcessor, sink FrameSink) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg, spectrum, sink)
	e.inputDevice = inputDevice
	if cfg.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	return e, nil
}

func newEngine(cfg config.AudioConfig, spectrum *analysis.SpectrumProcessor, sink FrameSink) *Engine {
	return &Engine{
		cfg:         cfg,
		inputBuffer: make([]int32, cfg.ChunkSize*cfg.Channels),
		spectrum:    spectrum,
		sink:        sink,
		mono:        make([]float64, cfg.ChunkSize),
		gate:        newConfiguredGate(cfg),
	}
}

func newConfiguredGate(cfg config.AudioConfig) Gate {
	g := NewGate(cfg.GateThreshold)
	g.Calibrate(cfg.GateCalibration)
	return g
}

// Gate exposes the input noise gate. Configure it before starting the stream.
func (e *Engine) Gate() *Gate { return &e.gate }

// Chunks counts processed input buffers.
func (e *Engine) Chunks() uint64 { return e.chunks.Load() }

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.ChunkSize,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}
	logger.Infof("capturing from %s (%d ch, %.0f Hz, %d frames/buffer, latency %v)",
		e.inputDevice.Name, e.cfg.Channels, e.cfg.SampleRate, e.cfg.ChunkSize, e.inputLatency)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - Detection and dispatch happen synchronously in this call
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	// Write to WAV file if recording
	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		for i, sample := range e.inputBuffer {
			e.sampleBuf.Data[i] = int(sample)
		}
		e.sampleBuf.Data = e.sampleBuf.Data[:len(e.inputBuffer)]
		if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
			logger.Errorf("error writing to WAV file: %v", err)
		}
	}
}

// processBuffer downmixes one interleaved buffer to normalised mono, gates it
// and runs the analysis chain. It does not allocate.
func (e *Engine) processBuffer(buffer []int32) {
	ch := max(e.cfg.Channels, 1)
	frames := min(len(buffer)/ch, len(e.mono))
	if e.gate.observe(buffer) {
		logger.Infof("gate calibrated to %.6f of full scale", e.gate.Threshold())
	}
	if e.gate.Open(buffer) {
		scale := 1 / (float64(ch) * math.MaxInt32)
		for i := range frames {
			var sum int64
			for c := range ch {
				sum += int64(buffer[i*ch+c])
			}
			e.mono[i] = float64(sum) * scale
		}
		clear(e.mono[frames:])
	} else {
		clear(e.mono)
	}

	e.chunks.Add(1)
	if e.spectrum == nil || e.sink == nil {
		return
	}
	e.sink.Process(e.spectrum.Process(e.mono))
}

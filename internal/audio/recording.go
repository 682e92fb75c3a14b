// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingName returns a timestamped WAV file name inside dir.
func RecordingName(dir string, t time.Time) string {
	return filepath.Join(dir, "lightshow-"+t.Format("20060102-150405")+".wav")
}

// StartRecording writes the raw 32-bit input to a WAV file until
// StopRecording. The capture callback writes to it, so recording only
// produces data while the input stream runs.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.cfg.SampleRate), 32, e.cfg.Channels, 1)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.cfg.Channels,
			SampleRate:  int(e.cfg.SampleRate),
		},
		Data:           make([]int, e.cfg.ChunkSize*e.cfg.Channels),
		SourceBitDepth: 32,
	}

	atomic.StoreInt32(&e.isRecording, 1)
	logger.Infof("recording to %s", filename)
	return nil
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}
	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}
	return nil
}

// Recording reports whether input is being written to disk.
func (e *Engine) Recording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}

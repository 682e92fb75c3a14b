// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Source yields normalised mono samples in [-1, 1] from a decoded file.
type Source interface {
	// Read fills dst and returns the number of samples written. It returns
	// io.EOF once the stream is exhausted and nothing was read.
	Read(dst []float64) (int, error)
	SampleRate() float64
	Channels() int
	Close() error
}

// OpenFile picks a decoder from the file extension.
func OpenFile(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return OpenWAV(path)
	case ".flac":
		return OpenFLAC(path)
	case ".mp3":
		return OpenMP3(path)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
}

// WAVSource decodes PCM WAV files of any bit depth.
type WAVSource struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	scale   float64
	chans   int
	rate    float64
}

func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file %s", path)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}
	chans := max(int(d.NumChans), 1)
	return &WAVSource{
		file:    f,
		decoder: d,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: chans, SampleRate: int(d.SampleRate)},
		},
		scale: float64(audio.IntMaxSignedValue(int(d.BitDepth))),
		chans: chans,
		rate:  float64(d.SampleRate),
	}, nil
}

func (s *WAVSource) Read(dst []float64) (int, error) {
	want := len(dst) * s.chans
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]
	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	frames := n / s.chans
	for i := range frames {
		var sum int
		for ch := range s.chans {
			sum += s.buf.Data[i*s.chans+ch]
		}
		dst[i] = float64(sum) / float64(s.chans) / s.scale
	}
	return frames, nil
}

func (s *WAVSource) SampleRate() float64 { return s.rate }
func (s *WAVSource) Channels() int { return s.chans }
func (s *WAVSource) Close() error { return s.file.Close() }

// FLACSource decodes FLAC frames, carrying leftover samples between reads.
type FLACSource struct {
	stream  *flac.Stream
	pending []float64
	rate    float64
	chans   int
}

func OpenFLAC(path string) (*FLACSource, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	return &FLACSource{
		stream: stream,
		rate:   float64(stream.Info.SampleRate),
		chans:  int(stream.Info.NChannels),
	}, nil
}

func (s *FLACSource) Read(dst []float64) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			frame, err := s.stream.ParseNext()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return n, fmt.Errorf("failed to parse FLAC frame: %w", err)
			}
			scale := float64(int64(1) << (frame.BitsPerSample - 1))
			count := len(frame.Subframes[0].Samples)
			if cap(s.pending) < count {
				s.pending = make([]float64, count)
			}
			s.pending = s.pending[:count]
			for i := range count {
				var sum int64
				for _, sub := range frame.Subframes {
					sum += int64(sub.Samples[i])
				}
				s.pending[i] = float64(sum) / float64(len(frame.Subframes)) / scale
			}
		}
		c := copy(dst[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *FLACSource) SampleRate() float64 { return s.rate }
func (s *FLACSource) Channels() int { return s.chans }
func (s *FLACSource) Close() error { return s.stream.Close() }

// MP3Source decodes MP3 files. go-mp3 always produces 16-bit little-endian
// stereo.
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
}

const mp3FrameBytes = 4

func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}
	return &MP3Source{file: f, decoder: d}, nil
}

func (s *MP3Source) Read(dst []float64) (int, error) {
	want := len(dst) * mp3FrameBytes
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	s.buf = s.buf[:want]
	n, err := io.ReadFull(s.decoder, s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to read MP3 data: %w", err)
	}
	frames := n / mp3FrameBytes
	if frames == 0 {
		return 0, io.EOF
	}
	for i := range frames {
		b := s.buf[i*mp3FrameBytes:]
		left := int16(uint16(b[0]) | uint16(b[1])<<8)
		right := int16(uint16(b[2]) | uint16(b[3])<<8)
		dst[i] = (float64(left) + float64(right)) / 2 / 32768
	}
	return frames, nil
}

func (s *MP3Source) SampleRate() float64 { return float64(s.decoder.SampleRate()) }
func (s *MP3Source) Channels() int { return 2 }
func (s *MP3Source) Close() error { return s.file.Close() }

// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes a 16-bit mono file of n samples of a constant value.
func writeWAV(t *testing.T, n int, value int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testSampleRate},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = value
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenFileUnsupported(t *testing.T) {
	if _, err := OpenFile("track.ogg"); err == nil {
		t.Error("expected an error for .ogg")
	}
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestOpenWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAV(path); err == nil {
		t.Error("expected an error for an invalid WAV file")
	}
}

func TestWAVSourceNormalises(t *testing.T) {
	src, err := OpenFile(writeWAV(t, 100, 16384))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	buf := make([]float64, 64)
	n, err := src.Read(buf)
	if err != nil || n != 64 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if want := 16384.0 / 32767; math.Abs(buf[0]-want) > 1e-9 {
		t.Errorf("sample = %v, want %v", buf[0], want)
	}
	if n, err := readFull(src, buf); n != 36 || err != nil {
		t.Errorf("tail read = %d, %v, want 36 <nil>", n, err)
	}
	if _, err := readFull(src, buf); !errors.Is(err, io.EOF) {
		t.Errorf("read past the end: %v", err)
	}
}

func TestReplay(t *testing.T) {
	src, err := OpenFile(writeWAV(t, 2500, 8000))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	sink := &frameCounter{}
	e := newTestEngine(t, sink)
	n, err := Replay(context.Background(), src, testFrameSize, e.spectrum, sink, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || sink.frames != 3 {
		t.Errorf("replayed %d chunks, sink saw %d, want 3", n, sink.frames)
	}
}

func TestReplayCancelled(t *testing.T) {
	src, err := OpenFile(writeWAV(t, 10*testFrameSize, 8000))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &frameCounter{}
	n, err := Replay(ctx, src, testFrameSize, newTestEngine(t, sink).spectrum, sink, true)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("Replay = %d, %v, want 0 context.Canceled", n, err)
	}
}

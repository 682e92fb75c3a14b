// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"time"

	"lightshow/internal/analysis"
)

// Replay decodes src chunk by chunk through spectrum into sink, the same
// path live capture takes. When paced, chunks are released at the rate the
// audio would play; otherwise the file is processed as fast as possible.
// It returns the number of chunks processed.
func Replay(ctx context.Context, src Source, chunk int, spectrum *analysis.SpectrumProcessor, sink FrameSink, paced bool) (int, error) {
	buf := make([]float64, chunk)

	var tick <-chan time.Time
	if paced {
		period := time.Duration(float64(chunk) / src.SampleRate() * float64(time.Second))
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		read, err := readFull(src, buf)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		clear(buf[read:])

		if tick != nil {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-tick:
			}
		}
		sink.Process(spectrum.Process(buf))
		n++
	}
}

// readFull reads until buf is full or the source ends. It returns io.EOF only
// when nothing was read.
func readFull(src Source, buf []float64) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := src.Read(buf[n:])
		n += m
		if errors.Is(err, io.EOF) {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrNoProgress
		}
	}
	return n, nil
}

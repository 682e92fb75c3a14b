// SPDX-License-Identifier: MIT
//
// Package pipeline runs the detectors over each analysed frame and turns
// their verdicts into packets for the controllers.
package pipeline

import (
	"math"
	"sync"
	"time"

	"lightshow/internal/analysis"
	"lightshow/internal/config"
	"lightshow/internal/detect"
	"lightshow/internal/log"
	"lightshow/internal/packet"
)

var logger = log.Named("pipeline")

// Stats counts emitted events.
type Stats struct {
	Frames   uint64 `json:"frames"`
	Beats    uint64 `json:"beats"`
	Breaks   uint64 `json:"breaks"`
	Drops    uint64 `json:"drops"`
	NewMusic uint64 `json:"new_music"`
}

// Pipeline owns every detector for one audio stream. Process is called once
// per frame on the audio goroutine; the other methods may be called from any
// goroutine and take effect before the next frame.
type Pipeline struct {
	mu sync.Mutex

	kick    *detect.KickDetector
	brk     *detect.BreakDetector
	drop    *detect.DropDetector
	silence *detect.SilenceDetector // nil when disabled

	handlers []packet.Handler

	rate      detect.FrameRate
	epoch     time.Time // clock origin of the current frame rate
	sinceRate int64     // frames since epoch

	breaking bool
	dropping bool
	waiting  bool // NewMusic(On) sent, Off pending
	paused   bool
	pausedAt time.Time

	stats Stats
}

// New builds the detectors for frames of the given shape arriving at rate.
// start anchors the stream clock.
func New(cfg config.DetectionConfig, shape analysis.FrameShape, rate detect.FrameRate, start time.Time, handlers ...packet.Handler) (*Pipeline, error) {
	kick, err := detect.NewKickDetector(cfg.Kick, shape, rate)
	if err != nil {
		return nil, err
	}
	brk, err := detect.NewBreakDetector(cfg.Break)
	if err != nil {
		return nil, err
	}
	drop, err := detect.NewDropDetector(cfg.Drop)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		kick:     kick,
		brk:      brk,
		drop:     drop,
		handlers: handlers,
		rate:     rate,
		epoch:    start,
	}
	if cfg.Silence.Enabled {
		if p.silence, err = detect.NewSilenceDetector(cfg.Silence, shape, rate); err != nil {
			return nil, err
		}
	}
	logger.Infof("%.2f frames/s, kick window %d frames, silence detection %v",
		rate.FPS(), kick.Window().Cap(), cfg.Silence.Enabled)
	return p, nil
}

// now is the stream time of the next frame.
func (p *Pipeline) now() time.Time {
	samples := float64(p.sinceRate) * float64(p.rate.ChunkSize)
	return p.epoch.Add(time.Duration(math.Round(samples / p.rate.SampleRate * float64(time.Second))))
}

func (p *Pipeline) emit(kind packet.Kind, status packet.Status, t time.Time) {
	pkt := packet.New(kind, status, t)
	for _, h := range p.handlers {
		h.Handle(pkt)
	}
}

// Process runs one frame through the detectors. Packets of one frame are
// emitted in the order Tick, NewMusic, Break, Beat, Drop.
func (p *Pipeline) Process(frame analysis.AudioFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sinceRate++
	p.stats.Frames++
	p.emit(packet.Tick, packet.On, now)
	if p.paused {
		return
	}

	if p.silence != nil {
		if p.silence.Observe(frame) {
			if p.silence.Held() && !p.waiting {
				p.resetDetectors()
				p.waiting = true
				p.stats.NewMusic++
				logger.Debugf("silence held, waiting for the next track")
				p.emit(packet.NewMusic, packet.On, now)
			}
			return
		}
		if p.waiting {
			p.waiting = false
			p.emit(packet.NewMusic, packet.Off, now)
		}
	}

	if p.kick.Observe(frame, !p.breaking) {
		if p.breaking {
			p.endBreak(now)
			p.emit(packet.Break, packet.Off, now)
		}
		p.brk.RecordBeat(now)
		p.drop.RecordBeat(now)
		p.stats.Beats++
		p.emit(packet.Beat, packet.On, now)
	}

	if !p.breaking && p.brk.Detect(now) {
		p.breaking = true
		p.stats.Breaks++
		p.emit(packet.Break, packet.On, now)
	}

	if d := p.drop.Detect(); d != p.dropping {
		p.dropping = d
		if d {
			p.stats.Drops++
			p.emit(packet.Drop, packet.On, now)
		} else {
			p.emit(packet.Drop, packet.Off, now)
		}
	}
}

// endBreak forgets part of the pre-break history and slides the rest forward
// so the gap looks like one ordinary interval.
func (p *Pipeline) endBreak(now time.Time) {
	p.breaking = false
	p.brk.ClearOldBeats()
	if last, ok := p.brk.LastBeat(); ok {
		gap := now.Sub(last) - p.brk.History().MeanInterval(0)
		if gap > 0 {
			p.brk.ShiftAll(gap)
		}
	}
	p.kick.ResetState()
}

func (p *Pipeline) resetDetectors() {
	p.kick.Reset()
	p.brk.Reset()
	p.drop.Reset()
	p.breaking = false
	p.dropping = false
}

// NewTrack marks a track boundary: every history and latch is cleared between
// NewMusic(On) and NewMusic(Off).
func (p *Pipeline) NewTrack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.emit(packet.NewMusic, packet.On, now)
	p.resetDetectors()
	if p.silence != nil {
		p.silence.Reset()
	}
	p.waiting = false
	p.stats.NewMusic++
	p.emit(packet.NewMusic, packet.Off, now)
}

// Pause suspends detection, as when playback stops, and reports it as a break.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.pausedAt = p.now()
	if !p.breaking {
		p.breaking = true
		p.emit(packet.Break, packet.On, p.pausedAt)
	}
}

// Resume restarts detection with the oldest beats dropped and the rest moved
// past the pause.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	now := p.now()
	gap := now.Sub(p.pausedAt)
	p.brk.ClearOldBeats()
	p.brk.ShiftAll(gap)
	p.drop.History().Shift(gap)
	p.kick.ResetState()
	p.breaking = false
	p.emit(packet.Break, packet.Off, now)
}

// SetFrameRate rebuilds every frame-count derived value. The stream clock
// continues from the current time.
func (p *Pipeline) SetFrameRate(rate detect.FrameRate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.rateAware() {
		if err := d.SetFrameRate(rate); err != nil {
			return err
		}
	}
	p.epoch = p.now()
	p.sinceRate = 0
	p.rate = rate
	logger.Infof("frame rate now %.2f frames/s", rate.FPS())
	return nil
}

// rateAware lists the detectors holding frame counts. The kick detector comes
// first: it is the only one that can reject a valid rate.
func (p *Pipeline) rateAware() []detect.RateAware {
	if p.silence == nil {
		return []detect.RateAware{p.kick}
	}
	return []detect.RateAware{p.kick, p.silence}
}

// Now returns the stream time of the next frame.
func (p *Pipeline) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now()
}

// Rate returns the live frame rate.
func (p *Pipeline) Rate() detect.FrameRate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Stats returns the event counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Kick exposes the kick detector for monitoring.
func (p *Pipeline) Kick() *detect.KickDetector { return p.kick }

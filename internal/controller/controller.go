// SPDX-License-Identifier: MIT
//
// Package controller turns detector packets into animation frames for one
// moving head.
package controller

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"lightshow/internal/animation"
	"lightshow/internal/command"
	"lightshow/internal/config"
	"lightshow/internal/detect"
	"lightshow/internal/log"
	"lightshow/internal/packet"
)

var logger = log.Named("controller")

// State is the controller's mode.
type State uint8

const (
	// Normal follows beats with the selected animation.
	Normal State = iota
	// WaitingMusic runs the filler until the next track starts.
	WaitingMusic
	// Breaking runs the filler through a pause in the beat.
	Breaking
)

func (s State) String() string {
	switch s {
	case WaitingMusic:
		return "waiting_music"
	case Breaking:
		return "breaking"
	default:
		return "normal"
	}
}

// Dispatcher accepts frames for delivery. It must not block.
type Dispatcher interface {
	Dispatch(command.Frame) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(command.Frame) bool

func (f DispatcherFunc) Dispatch(fr command.Frame) bool { return f(fr) }

// Snapshot is a consistent view of the controller for monitoring.
type Snapshot struct {
	State            string  `json:"state"`
	BPM              float64 `json:"bpm"`
	Animation        string  `json:"animation"`
	ColorMode        string  `json:"color_mode"`
	AvgFPS           float64 `json:"avg_fps"`
	BeatsSinceChange int     `json:"beats_since_change"`
	Dispatched       uint64  `json:"dispatched"`
	Dropped          uint64  `json:"dropped"`
}

// Controller is the animation state machine. Handle must be called from a
// single goroutine; Snapshot may be called from any.
type Controller struct {
	cfg config.ControllerConfig
	out Dispatcher
	rng *rand.Rand

	anims   []animation.Generator
	modes   []animation.ColorSource
	filler  animation.Generator
	current int
	mode    int

	state         State
	breakingSince time.Time

	beatsSinceChange int
	nextBeat         time.Time // beats before this are ignored
	beats            *detect.BeatHistory
	bpm              float64

	lastStep    time.Time
	framePeriod time.Duration
	nextFrame   time.Time
	carry       command.Color // colour of the last dropped frame
	sent        *detect.BeatHistory

	dispatched, dropped uint64

	mu   sync.Mutex
	snap Snapshot
}

// New builds a controller sending frames to out.
func New(cfg config.ControllerConfig, out Dispatcher) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("controller: dispatcher cannot be nil")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	c := &Controller{
		cfg:         cfg,
		out:         out,
		rng:         rng,
		modes:       []animation.ColorSource{animation.NewPalette("rainbow", animation.Rainbow...), animation.NewRandomHue(rng)},
		filler:      animation.NewBreakCircle(rng),
		beats:       detect.NewBeatHistory(cfg.BPMHistory),
		framePeriod: time.Second / time.Duration(cfg.MaxFPS),
		sent:        detect.NewBeatHistory(2 * cfg.MaxFPS),
	}
	for _, name := range cfg.Animations {
		g, err := animation.New(name, rng)
		if err != nil {
			return nil, config.Errorf("controller.animations", "%v", err)
		}
		c.anims = append(c.anims, g)
	}
	c.current = rng.IntN(len(c.anims))
	c.mode = rng.IntN(len(c.modes))
	c.applyMode()
	c.publish()
	logger.Infof("starting with %s/%s, %d animations, max %d fps",
		c.Animation().Name(), c.modes[c.mode].Name(), len(c.anims), cfg.MaxFPS)
	return c, nil
}

// Handle applies one packet. Packets of the same frame must arrive in the
// order NewMusic, Break, Beat.
func (c *Controller) Handle(p packet.Packet) {
	now := p.Time
	if c.beatsSinceChange > c.cfg.RotateAfter {
		c.dispatch(now, c.rotate(), false)
	}

	switch p.Kind {
	case packet.NewMusic:
		c.handleNewMusic(p)
	case packet.Break:
		c.handleBreak(p)
	}

	dt := c.step(now)
	if c.state != Normal {
		c.dispatch(now, c.filler.Tick(dt), false)
		c.publish()
		return
	}

	anim := c.Animation()
	if anim.Tickable() && !now.Before(c.nextBeat) {
		c.dispatch(now, anim.Tick(dt), false)
	}
	if p.Kind == packet.Beat && p.Status == packet.On {
		c.handleBeat(now)
	}
	c.publish()
}

// step returns the time since the previous packet, capped so a stall does
// not fling the animation.
func (c *Controller) step(now time.Time) time.Duration {
	var dt time.Duration
	if !c.lastStep.IsZero() {
		dt = min(max(now.Sub(c.lastStep), 0), maxStep)
	}
	if now.After(c.lastStep) {
		c.lastStep = now
	}
	return dt
}

const maxStep = 250 * time.Millisecond

func (c *Controller) handleNewMusic(p packet.Packet) {
	if p.Status == packet.On {
		logger.Debugf("new music, waiting for the track")
		c.state = WaitingMusic
		c.nextBeat = time.Time{}
		c.beats.Reset()
		c.bpm = 0
		return
	}
	if c.state == WaitingMusic {
		c.state = Normal
	}
}

func (c *Controller) handleBreak(p packet.Packet) {
	now := p.Time
	if p.Status == packet.On {
		if c.state == Normal {
			c.state = Breaking
			c.breakingSince = now
		}
		return
	}
	if c.state != Breaking {
		return
	}
	c.state = Normal

	pause := now.Sub(c.breakingSince)
	t := min(pause.Seconds()/c.cfg.BreakNormalize.Seconds(), 1)
	added := time.Duration(animation.QuartOut(t) * float64(c.cfg.BreakAddedMax))
	c.beats.Shift(pause)

	f := c.rotate()
	f.Color = command.Flicker{Color: command.White, Duration: c.cfg.FlickerBase + added}
	c.dispatch(now, f, true)
	c.nextBeat = now.Add(added)
	logger.Debugf("break over after %v, holding beats for %v", pause.Round(time.Millisecond), added.Round(time.Millisecond))
}

func (c *Controller) handleBeat(now time.Time) {
	c.beats.Record(now)
	if now.Before(c.nextBeat) {
		return
	}
	c.beatsSinceChange++
	c.nextBeat = now.Add(c.cfg.BeatCooldown)
	if mean := c.beats.MeanInterval(0); mean > 0 {
		c.bpm = 60 / mean.Seconds()
	}
	anim := c.Animation()
	anim.SetTransform(c.transform())
	c.dispatch(now, anim.Beat(), false)
}

// transform accents beats with a fade from white, or lets slow tracks fade
// each colour out over one beat.
func (c *Controller) transform() animation.Transform {
	if c.bpm > 0 && c.bpm < c.cfg.SlowBPM && c.beats.Len() > 1 {
		return animation.Transform{
			Kind:     animation.FadeToBlack,
			Duration: time.Duration(60 / c.bpm * float64(time.Second)),
		}
	}
	return animation.Transform{Kind: animation.FadeFromWhite, Duration: animation.DefaultAccent}
}

// rotate switches to a different animation and colour mode and returns the
// new animation's first frame.
func (c *Controller) rotate() command.Frame {
	c.current = pickOther(c.rng, len(c.anims), c.current)
	c.mode = pickOther(c.rng, len(c.modes), c.mode)
	c.beatsSinceChange = 0
	c.applyMode()
	logger.Debugf("rotating to %s/%s", c.Animation().Name(), c.modes[c.mode].Name())
	return c.Animation().Beat()
}

// pickOther returns a uniform index in [0, n) other than cur.
func pickOther(rng *rand.Rand, n, cur int) int {
	if n < 2 {
		return 0
	}
	i := rng.IntN(n - 1)
	if i >= cur {
		i++
	}
	return i
}

func (c *Controller) applyMode() {
	anim := c.Animation()
	anim.SetColors(c.modes[c.mode])
	anim.SetTransform(c.transform())
}

// dispatch forwards f unless the previous frame was sent less than one frame
// period ago. A dropped frame's colour rides on the next frame sent. force
// bypasses the limit.
func (c *Controller) dispatch(now time.Time, f command.Frame, force bool) {
	if !force && now.Before(c.nextFrame) {
		c.dropped++
		if f.Color != nil {
			c.carry = f.Color
		}
		return
	}
	if f.Color == nil && c.carry != nil {
		f.Color = c.carry
	}
	c.carry = nil
	c.nextFrame = now.Add(c.framePeriod)
	c.sent.Record(now)
	c.dispatched++
	if !c.out.Dispatch(f) {
		logger.Debugf("frame dropped by transport")
	}
}

// Animation returns the selected animation.
func (c *Controller) Animation() animation.Generator { return c.anims[c.current] }

// ColorMode returns the selected colour source.
func (c *Controller) ColorMode() animation.ColorSource { return c.modes[c.mode] }

// State returns the current mode.
func (c *Controller) State() State { return c.state }

// BPM returns the tempo estimate, 0 until two beats have been seen.
func (c *Controller) BPM() float64 { return c.bpm }

// BeatsSinceChange counts accepted beats on the current animation.
func (c *Controller) BeatsSinceChange() int { return c.beatsSinceChange }

// NextBeat is the earliest time a beat is honoured.
func (c *Controller) NextBeat() time.Time { return c.nextBeat }

// AvgFPS is the dispatch rate over the last two seconds of frames.
func (c *Controller) AvgFPS() float64 {
	if mean := c.sent.MeanInterval(0); mean > 0 {
		return 1 / mean.Seconds()
	}
	return 0
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.snap = Snapshot{
		State:            c.state.String(),
		BPM:              c.bpm,
		Animation:        c.Animation().Name(),
		ColorMode:        c.modes[c.mode].Name(),
		AvgFPS:           c.AvgFPS(),
		BeatsSinceChange: c.beatsSinceChange,
		Dispatched:       c.dispatched,
		Dropped:          c.dropped,
	}
	c.mu.Unlock()
}

// Snapshot returns the state as of the last handled packet.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Reset returns to WaitingMusic and forgets tempo, cooldowns and the dispatch
// clock, as at the start of a session.
func (c *Controller) Reset() {
	c.state = WaitingMusic
	c.nextBeat = time.Time{}
	c.nextFrame = time.Time{}
	c.lastStep = time.Time{}
	c.carry = nil
	c.beats.Reset()
	c.sent.Reset()
	c.bpm = 0
	c.beatsSinceChange = 0
	c.publish()
}

var _ packet.Handler = (*Controller)(nil)

// SPDX-License-Identifier: MIT
package animation

import (
	"math"
	"math/rand/v2"
	"time"

	"lightshow/internal/command"
)

const (
	curveReverseP   = 1.0 / 12
	colorHold       = 200 * time.Millisecond
	lemniscateYSpan = math.Sqrt2 / 4
)

// Shape maps an angle to a point with both coordinates in [-1, 1].
type Shape func(angle float64) (x, y float64)

func circleShape(a float64) (float64, float64) { return math.Cos(a), math.Sin(a) }

// lemniscateShape is the lemniscate of Bernoulli with y normalised to [-1, 1].
func lemniscateShape(a float64) (float64, float64) {
	s, c := math.Sincos(a)
	d := 1 + s*s
	return c / d, s * c / d / lemniscateYSpan
}

func lissajousShape(a float64) (float64, float64) {
	return math.Cos(3 * a), math.Sin(2 * a)
}

// Curve follows a closed parametric shape at a steady speed. Each beat adds a
// short boost that fades out over boostTime.
type Curve struct {
	colorizer
	kind  Kind
	name  string
	shape Shape
	rng   *rand.Rand

	base, top  Range
	baseOffset float64

	speed      float64 // turns per second
	boostSpeed float64 // turns per second at the start of a boost
	boostTime  time.Duration
	reverseP   float64

	progress float64 // turns, [0, 1)
	boost    float64 // boost progress, 1 when idle
	reversed bool

	colorOnTick bool
	sinceBeat   time.Duration
	sweep       *HueSweep
}

func newCurve(kind Kind, name string, shape Shape, rng *rand.Rand) *Curve {
	return &Curve{
		colorizer:  newColorizer(),
		kind:       kind,
		name:       name,
		shape:      shape,
		rng:        rng,
		base:       Range{0, 120},
		top:        Range{0, 70},
		baseOffset: 45,
		speed:      0.01,
		boostSpeed: 1.5,
		boostTime:  300 * time.Millisecond,
		reverseP:   curveReverseP,
		boost:      1,
		sinceBeat:  colorHold,
	}
}

// NewCircle returns a circle that drifts slowly and jumps forward on beats.
func NewCircle(rng *rand.Rand) *Curve {
	return newCurve(KindCircle, "circle", circleShape, rng)
}

// NewLemniscate returns a figure-eight that never reverses.
func NewLemniscate(rng *rand.Rand) *Curve {
	c := newCurve(KindLemniscate, "lemniscate", lemniscateShape, rng)
	c.top = Range{10, 50}
	c.boostSpeed = 0.02
	c.boostTime = 20 * time.Second
	c.reverseP = 0
	return c
}

// NewLissajous returns a 3:2 Lissajous figure.
func NewLissajous(rng *rand.Rand) *Curve {
	c := newCurve(KindLissajous, "lissajous", lissajousShape, rng)
	c.top = Range{10, 60}
	c.speed = 0.02
	c.boostSpeed = 0.75
	return c
}

// NewBreakCircle returns the filler shown while the music pauses: a steady
// circle whose colour sweeps the hue wheel.
func NewBreakCircle(rng *rand.Rand) *Curve {
	c := newCurve(KindBreakCircle, "break", circleShape, rng)
	c.speed = 0.35
	c.colorOnTick = true
	c.sweep = NewHueSweep(1.0 / 3)
	c.colors = c.sweep
	return c
}

func (c *Curve) Kind() Kind { return c.kind }
func (c *Curve) Name() string { return c.name }
func (*Curve) Tickable() bool { return true }
func (*Curve) generator() {}
func (c *Curve) Progress() float64 { return c.progress }
func (c *Curve) Reversed() bool { return c.reversed }

// Reverse flips the direction of travel. The lemniscate ignores it.
func (c *Curve) Reverse() {
	if c.kind == KindLemniscate {
		return
	}
	c.reversed = !c.reversed
}

// Beat starts a boost, may reverse and picks the next colour.
func (c *Curve) Beat() command.Frame {
	c.boost = 0
	c.sinceBeat = 0
	if c.reverseP > 0 && c.rng.Float64() < c.reverseP {
		c.Reverse()
	}
	return c.frame(c.nextColor())
}

func (c *Curve) Tick(dt time.Duration) command.Frame {
	sec := dt.Seconds()
	if c.boost < 1 {
		c.boost = math.Min(c.boost+sec/c.boostTime.Seconds(), 1)
		c.progress += Falloff(c.boost) * c.boostSpeed * sec
	}
	c.progress = math.Mod(c.progress+c.speed*sec, 1)

	var col command.Color
	if c.colorOnTick {
		c.sinceBeat += dt
		if c.sweep != nil {
			c.sweep.Advance(dt)
		}
		if c.sinceBeat >= colorHold {
			col = c.colors.Next()
		}
	}
	return c.frame(col)
}

func (c *Curve) frame(col command.Color) command.Frame {
	a := c.progress * 2 * math.Pi
	if c.reversed {
		a = -a
	}
	x, y := c.shape(a)
	return command.NewFrame(
		c.base.Lerp((x+1)/2)+c.baseOffset,
		c.top.Lerp((y+1)/2),
		col,
	)
}

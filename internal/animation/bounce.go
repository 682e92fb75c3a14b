// SPDX-License-Identifier: MIT
package animation

import (
	"math"
	"math/rand/v2"
	"time"

	"lightshow/internal/command"
)

// Bounce swings the base between its limits along a parabolic arc. Each beat
// launches it towards the far limit with a velocity that decays
// exponentially, reaching it after roughly Crossing. It turns around at the
// limits and, now and then, on a beat.
type Bounce struct {
	colorizer
	rng *rand.Rand

	base, top Range

	Decay    float64       // velocity decay rate k, 1/s
	Drift    float64       // constant speed between beats, travel per second
	Crossing time.Duration // target time to reach the far limit after a beat
	ReverseP float64       // chance of turning around on a beat

	x   float64 // position along the travel, [0, 1]
	dir float64 // +1 or -1
	v   float64 // boost velocity, travel per second
}

func NewBounce(rng *rand.Rand) *Bounce {
	return &Bounce{
		colorizer: newColorizer(),
		rng:       rng,
		base:      Range{0, 120},
		top:       Range{0, 50},
		Decay:     2.5,
		Drift:     0.3,
		Crossing:  600 * time.Millisecond,
		ReverseP:  1.0 / 8,
		dir:       1,
	}
}

func (*Bounce) Kind() Kind { return KindBounce }
func (*Bounce) Name() string { return "bounce" }
func (*Bounce) Tickable() bool { return true }
func (*Bounce) generator() {}
func (b *Bounce) Reverse() { b.dir = -b.dir }
func (b *Bounce) Position() float64 { return b.x }
func (b *Bounce) Velocity() float64 { return b.v }
func (b *Bounce) Direction() float64 { return b.dir }

// arc lifts the top servo towards the middle of the travel.
func arc(x float64) float64 { return 0.5 + 3*(0.45*x-0.45*x*x) }

// LaunchVelocity solves for the initial boost velocity that, decaying at rate
// k on top of a constant drift, covers distance d in time t:
//
//	d = drift*t + v0*(1-exp(-k*t))/k
func LaunchVelocity(d, drift, k float64, t time.Duration) float64 {
	sec := t.Seconds()
	if sec <= 0 {
		return 0
	}
	rest := d - drift*sec
	if rest <= 0 {
		return 0
	}
	if k <= 0 {
		return rest / sec
	}
	return rest * k / (1 - math.Exp(-k*sec))
}

// Beat launches towards the far limit and picks the next colour.
func (b *Bounce) Beat() command.Frame {
	if b.rng.Float64() < b.ReverseP {
		b.Reverse()
	}
	if b.remaining() < 0.05 {
		b.Reverse()
	}
	b.v = LaunchVelocity(b.remaining(), b.Drift, b.Decay, b.Crossing)
	return b.frame(b.nextColor())
}

// Tick integrates the decaying velocity exactly over dt.
func (b *Bounce) Tick(dt time.Duration) command.Frame {
	sec := dt.Seconds()
	dist := b.Drift * sec
	if b.Decay > 0 {
		decay := math.Exp(-b.Decay * sec)
		dist += b.v * (1 - decay) / b.Decay
		b.v *= decay
	} else {
		dist += b.v * sec
	}
	b.x += b.dir * dist
	switch {
	case b.x >= 1:
		b.x, b.dir = 1, -1
	case b.x <= 0:
		b.x, b.dir = 0, 1
	}
	return b.frame(nil)
}

// remaining is the distance to the limit in the current direction.
func (b *Bounce) remaining() float64 {
	if b.dir > 0 {
		return 1 - b.x
	}
	return b.x
}

func (b *Bounce) frame(col command.Color) command.Frame {
	return command.NewFrame(b.base.Lerp(b.x), b.top.Lerp(arc(b.x)), col)
}

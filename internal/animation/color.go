// SPDX-License-Identifier: MIT
package animation

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"lightshow/internal/command"
)

var (
	// Primaries is the colour set generators start with.
	Primaries = []command.RGB{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}, {R: 0, G: 0, B: 255}}

	// Rainbow is cycled on kicks, violet to red.
	Rainbow = []command.RGB{
		{R: 148, G: 0, B: 211},
		{R: 75, G: 0, B: 130},
		{R: 0, G: 0, B: 255},
		{R: 0, G: 255, B: 0},
		{R: 255, G: 255, B: 0},
		{R: 255, G: 127, B: 0},
		{R: 255, G: 0, B: 0},
	}
)

// ColorSource yields the raw colour for the next step.
type ColorSource interface {
	Next() command.RGB
	Name() string
}

// Palette cycles a fixed colour list.
type Palette struct {
	name     string
	colors   []command.RGB
	i        int
	reversed bool
}

// NewPalette copies colors. An empty list yields white.
func NewPalette(name string, colors ...command.RGB) *Palette {
	if len(colors) == 0 {
		colors = []command.RGB{command.White}
	}
	return &Palette{name: name, colors: append([]command.RGB(nil), colors...)}
}

func (p *Palette) Name() string { return p.name }

// Next returns the colour at the cursor and moves it one step.
func (p *Palette) Next() command.RGB {
	c := p.colors[p.i]
	n := len(p.colors)
	if p.reversed {
		p.i = (p.i - 1 + n) % n
	} else {
		p.i = (p.i + 1) % n
	}
	return c
}

// Index is the position of the next colour.
func (p *Palette) Index() int { return p.i }

// Reverse flips the cycling direction.
func (p *Palette) Reverse() { p.reversed = !p.reversed }

// RandomHue picks fully saturated colours with a uniformly random hue.
type RandomHue struct {
	rng *rand.Rand
}

func NewRandomHue(rng *rand.Rand) *RandomHue { return &RandomHue{rng: rng} }

func (*RandomHue) Name() string { return "random" }

func (r *RandomHue) Next() command.RGB {
	return hsv(r.rng.Float64() * 360)
}

// HueSweep walks the colour wheel at a fixed rate.
type HueSweep struct {
	hue  float64 // turns, [0, 1)
	rate float64 // turns per second
}

func NewHueSweep(rate float64) *HueSweep { return &HueSweep{rate: rate} }

func (*HueSweep) Name() string { return "sweep" }

// Advance moves the hue forward by dt.
func (h *HueSweep) Advance(dt time.Duration) {
	h.hue = math.Mod(h.hue+h.rate*dt.Seconds(), 1)
}

func (h *HueSweep) Next() command.RGB { return hsv(h.hue * 360) }

func hsv(deg float64) command.RGB {
	r, g, b := colorful.Hsv(deg, 1, 1).Clamped().RGB255()
	return command.RGB{R: r, G: g, B: b}
}

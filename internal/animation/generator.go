// SPDX-License-Identifier: MIT
//
// Package animation turns beats and elapsed time into servo positions and LED
// colours for a moving head.
//
// Generators are a closed set behind Generator. They own their motion state
// and are driven from a single goroutine.
package animation

import (
	"fmt"
	"math/rand/v2"
	"time"

	"lightshow/internal/command"
)

// Kind identifies a generator variant.
type Kind uint8

const (
	KindPolygon Kind = iota
	KindCircle
	KindLemniscate
	KindLissajous
	KindBounce
	KindBreakCircle
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "polygon"
	case KindCircle:
		return "circle"
	case KindLemniscate:
		return "lemniscate"
	case KindLissajous:
		return "lissajous"
	case KindBounce:
		return "bounce"
	case KindBreakCircle:
		return "break_circle"
	default:
		return "unknown"
	}
}

// Generator produces animation frames.
type Generator interface {
	Kind() Kind
	Name() string

	// Beat advances one discrete step and picks the next colour.
	Beat() command.Frame
	// Tick advances continuous motion by dt. The frame carries a colour
	// only when the generator changes colour on ticks.
	Tick(dt time.Duration) command.Frame
	// Tickable reports whether Tick moves anything.
	Tickable() bool
	Reverse()

	SetColors(ColorSource)
	SetTransform(Transform)

	generator()
}

// Names lists the registered animations in a stable order.
var Names = []string{"triangle", "square", "circle", "lemniscate", "lissajous", "bounce"}

// New builds a registered animation. rng drives random reversals.
func New(name string, rng *rand.Rand) (Generator, error) {
	switch name {
	case "triangle":
		return NewPolygon(name, 3, Range{0, 60}, Range{45, 135}, rng), nil
	case "square":
		return NewPolygon(name, 4, Range{0, 60}, Range{45, 135}, rng), nil
	case "circle":
		return NewCircle(rng), nil
	case "lemniscate":
		return NewLemniscate(rng), nil
	case "lissajous":
		return NewLissajous(rng), nil
	case "bounce":
		return NewBounce(rng), nil
	default:
		return nil, fmt.Errorf("unknown animation %q", name)
	}
}

// Range is an angle interval in degrees.
type Range struct {
	Lo, Hi float64
}

// Lerp maps t in [0, 1] onto the range.
func (r Range) Lerp(t float64) float64 { return r.Lo + (r.Hi-r.Lo)*t }

// colorizer holds the colour source and transform shared by all generators.
type colorizer struct {
	colors    ColorSource
	transform Transform
}

func newColorizer() colorizer {
	return colorizer{colors: NewPalette("primaries", Primaries...)}
}

func (c *colorizer) SetColors(s ColorSource) { c.colors = s }

func (c *colorizer) SetTransform(t Transform) { c.transform = t }

// Colors returns the current colour source.
func (c *colorizer) Colors() ColorSource { return c.colors }

func (c *colorizer) nextColor() command.Color {
	return c.transform.Apply(c.colors.Next())
}

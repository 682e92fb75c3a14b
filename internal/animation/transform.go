// SPDX-License-Identifier: MIT
package animation

import (
	"math"
	"time"

	"lightshow/internal/command"
)

// QuartOut is 1-(1-t)^4: fast start, gentle landing.
func QuartOut(t float64) float64 { return 1 - math.Pow(1-t, 4) }

// Falloff is 1-t, used for the beat boost.
func Falloff(t float64) float64 { return 1 - t }

// TransformKind selects how a raw colour is presented.
type TransformKind uint8

const (
	Solid TransformKind = iota
	FadeFromWhite
	FadeToBlack
)

func (k TransformKind) String() string {
	switch k {
	case FadeFromWhite:
		return "fade_from_white"
	case FadeToBlack:
		return "fade_to_black"
	default:
		return "solid"
	}
}

// DefaultAccent is the fade-from-white length used to accent beats.
const DefaultAccent = 200 * time.Millisecond

// Transform wraps a raw colour in a timed effect.
type Transform struct {
	Kind     TransformKind
	Duration time.Duration
}

// Apply returns the command for c.
func (t Transform) Apply(c command.RGB) command.Color {
	switch t.Kind {
	case FadeFromWhite:
		return command.Fade{From: command.White, To: c, Duration: t.Duration}
	case FadeToBlack:
		return command.Fade{From: c, To: command.Black, Duration: t.Duration}
	default:
		return c
	}
}

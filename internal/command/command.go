// SPDX-License-Identifier: MIT
//
// Package command holds the values sent to a moving-head fixture: LED colours,
// timed colour effects and servo positions.
package command

import (
	"fmt"
	"math"
	"time"

	"lightshow/internal/config"
)

// Command is one of RGB, Flicker, Fade or Servo.
type Command interface {
	isCommand()
}

// Color is one of RGB, Flicker or Fade.
type Color interface {
	Command
	// Final is the colour the fixture shows once the effect has finished.
	Final() RGB
	isColor()
}

// RGB is a solid LED colour.
type RGB struct {
	R, G, B uint8
}

var (
	White = RGB{255, 255, 255}
	Black = RGB{}
)

func (c RGB) Final() RGB { return c }
func (RGB) isColor() {}
func (RGB) isCommand() {}

func (c RGB) String() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Flicker strobes Color for Duration.
type Flicker struct {
	Color    RGB
	Duration time.Duration
}

func (f Flicker) Final() RGB { return f.Color }
func (Flicker) isColor() {}
func (Flicker) isCommand() {}

// Fade blends From into To over Duration.
type Fade struct {
	From, To RGB
	Duration time.Duration
}

func (f Fade) Final() RGB { return f.To }
func (Fade) isColor() {}
func (Fade) isCommand() {}

// Axis names a servo.
type Axis uint8

const (
	Base Axis = iota
	Top
)

func (a Axis) String() string {
	if a == Top {
		return "top"
	}
	return "base"
}

// Servo positions one axis in degrees.
type Servo struct {
	Axis  Axis
	Angle float64
}

// Degrees rounds the angle to what the firmware accepts.
func (s Servo) Degrees() int { return int(math.Round(s.Angle)) }

func (Servo) isCommand() {}

// Frame is one animation step: both servo positions and, optionally, a new
// colour. A nil Color leaves the LED as it is.
type Frame struct {
	Base  Servo
	Top   Servo
	Color Color
}

// NewFrame builds a frame from raw angles.
func NewFrame(base, top float64, c Color) Frame {
	return Frame{
		Base:  Servo{Axis: Base, Angle: base},
		Top:   Servo{Axis: Top, Angle: top},
		Color: c,
	}
}

// Clamp applies the device offsets and limits both axes to their ranges.
func (f Frame) Clamp(base, top config.ServoConfig) Frame {
	f.Base.Angle = clampAngle(f.Base.Angle, base)
	f.Top.Angle = clampAngle(f.Top.Angle, top)
	return f
}

func clampAngle(a float64, s config.ServoConfig) float64 {
	a += float64(s.Offset)
	return math.Min(math.Max(a, float64(s.Min)), float64(s.Max))
}

// Commands expands the frame into the individual commands the fixture
// understands, servos first.
func (f Frame) Commands() []Command {
	cmds := []Command{f.Base, f.Top}
	if f.Color != nil {
		cmds = append(cmds, f.Color)
	}
	return cmds
}

func (f Frame) String() string {
	if f.Color == nil {
		return fmt.Sprintf("base=%d top=%d", f.Base.Degrees(), f.Top.Degrees())
	}
	return fmt.Sprintf("base=%d top=%d color=%v", f.Base.Degrees(), f.Top.Degrees(), f.Color)
}

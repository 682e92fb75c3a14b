// SPDX-License-Identifier: MIT
//
// Package packet defines the events the detection pipeline hands to device
// controllers.
package packet

import (
	"fmt"
	"time"
)

// Kind identifies what happened.
type Kind uint8

const (
	Beat Kind = iota
	Break
	Drop
	NewMusic
	Tick
)

func (k Kind) String() string {
	switch k {
	case Beat:
		return "beat"
	case Break:
		return "break"
	case Drop:
		return "drop"
	case NewMusic:
		return "new_music"
	case Tick:
		return "tick"
	default:
		return "unknown"
	}
}

// Status is the edge of the event: On when it starts, Off when it ends.
type Status uint8

const (
	On Status = iota
	Off
)

func (s Status) String() string {
	if s == Off {
		return "off"
	}
	return "on"
}

// Packet is one (kind, status) event stamped with the stream clock.
type Packet struct {
	Kind   Kind
	Status Status
	Time   time.Time
}

func (p Packet) String() string {
	return fmt.Sprintf("%s(%s)@%s", p.Kind, p.Status, p.Time.Format("15:04:05.000"))
}

// New returns a packet stamped at t.
func New(kind Kind, status Status, t time.Time) Packet {
	return Packet{Kind: kind, Status: status, Time: t}
}

// Handler consumes packets in emission order. It is called on the audio
// thread and must not block.
type Handler interface {
	Handle(Packet)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Packet)

func (f HandlerFunc) Handle(p Packet) { f(p) }

// SPDX-License-Identifier: MIT
package animation

import (
	"math"
	"math/rand/v2"
	"time"

	"lightshow/internal/command"
)

const (
	// polygonRotation is added to the vertex phase after every full cycle.
	polygonRotation = 15 * math.Pi / 180
	// polygonReverseP is the chance of reversing after a full cycle.
	polygonReverseP = 0.5
)

// Polygon steps through N evenly spaced points, one per beat. After each full
// cycle the shape rotates slightly and may change direction.
type Polygon struct {
	colorizer
	name      string
	n         int
	top, base Range
	rng       *rand.Rand

	phase    float64
	i        int // next vertex
	visited  int // vertices emitted this cycle
	reversed bool
}

func NewPolygon(name string, n int, top, base Range, rng *rand.Rand) *Polygon {
	return &Polygon{
		colorizer: newColorizer(),
		name:      name,
		n:         max(1, n),
		top:       top,
		base:      base,
		rng:       rng,
	}
}

func (*Polygon) Kind() Kind { return KindPolygon }
func (p *Polygon) Name() string { return p.name }
func (*Polygon) Tickable() bool { return false }
func (*Polygon) generator() {}
func (p *Polygon) Reversed() bool { return p.reversed }

// Vertex returns the base and top angle of vertex i.
func (p *Polygon) Vertex(i int) (base, top float64) {
	a := 2*math.Pi*float64(i)/float64(p.n) + p.phase
	top = p.top.Lerp((math.Cos(a) + 1) / 2)
	base = p.base.Lerp((math.Sin(a) + 1) / 2)
	return base, top
}

func (p *Polygon) Beat() command.Frame {
	base, top := p.Vertex(p.i)
	f := command.NewFrame(base, top, p.nextColor())

	p.step()
	p.visited++
	if p.visited == p.n {
		p.visited = 0
		p.phase = math.Mod(p.phase+polygonRotation, 2*math.Pi)
		if p.rng.Float64() < polygonReverseP {
			p.Reverse()
		}
	}
	return f
}

// Tick holds the current vertex.
func (p *Polygon) Tick(time.Duration) command.Frame {
	base, top := p.Vertex(p.last())
	return command.NewFrame(base, top, nil)
}

// Reverse walks the vertices the other way, starting from the neighbour of
// the vertex shown last.
func (p *Polygon) Reverse() {
	cur := p.last()
	p.reversed = !p.reversed
	p.i = cur
	p.step()
}

func (p *Polygon) step() {
	if p.reversed {
		p.i = (p.i - 1 + p.n) % p.n
	} else {
		p.i = (p.i + 1) % p.n
	}
}

// last is the vertex emitted most recently.
func (p *Polygon) last() int {
	if p.reversed {
		return (p.i + 1) % p.n
	}
	return (p.i - 1 + p.n) % p.n
}

// Package tube builds the grid of hollow vertical tubes threaded through
// the plate holes.
package tube

import (
	"fmt"

	"github.com/chazu/coilblock/pkg/grid"
	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/scene"
)

// Tube is one hollow tube of the grid.
type Tube struct {
	Coord  grid.Coord
	Solid  kernel.Solid
	Anchor kernel.Vec3 // axis point at z_start
	Handle scene.Handle
}

// Top returns the axis point at the upper end of the tube.
func (t Tube) Top(length float64) kernel.Vec3 {
	return t.Anchor.Add(kernel.V3(0, 0, length))
}

// Grid is the dense, column-major tube array. It is built once and never
// rewritten.
type Grid struct {
	layout grid.Layout
	tubes  []Tube
}

// Layout returns the layout the grid was built on.
func (g *Grid) Layout() grid.Layout {
	return g.layout
}

// At returns the tube at c.
func (g *Grid) At(c grid.Coord) (Tube, bool) {
	if g == nil || !g.layout.Contains(c) {
		return Tube{}, false
	}
	return g.tubes[g.layout.Index(c)], true
}

// Len returns the number of tubes.
func (g *Grid) Len() int {
	return len(g.tubes)
}

// All returns the tubes in column-major order.
func (g *Grid) All() []Tube {
	out := make([]Tube, len(g.tubes))
	copy(out, g.tubes)
	return out
}

// Builder builds the tube grid.
type Builder struct {
	Kernel  kernel.Kernel
	Derived params.Derived
}

// Hollow returns a tube of the given radii whose axis starts at base and
// runs length along axis.
func Hollow(k kernel.Kernel, base, axis kernel.Vec3, outerR, innerR, length float64) (kernel.Solid, error) {
	if innerR <= 0 || innerR >= outerR {
		return nil, fmt.Errorf("tube: radii %.4f/%.4f leave no wall or no bore: %w", outerR, innerR, kernel.ErrConstruction)
	}
	outer, err := k.Cylinder(base, axis, outerR, length)
	if err != nil {
		return nil, err
	}
	inner, err := k.Cylinder(base, axis, innerR, length)
	if err != nil {
		return nil, err
	}
	return k.Cut(outer, inner)
}

// Build creates one validated tube per cell, adds each to sc and returns
// the grid.
func (b *Builder) Build(sc *scene.Scene) (*Grid, error) {
	d := b.Derived
	if d.InnerR <= 0 {
		return nil, kernel.Fail("tube grid", nil,
			fmt.Errorf("inner radius %.4f must be positive: %w", d.InnerR, kernel.ErrConstruction))
	}

	g := &Grid{layout: d.Layout, tubes: make([]Tube, 0, d.Layout.Len())}
	for _, c := range d.Layout.Coords() {
		x, y := d.Layout.Anchor(c)
		anchor := kernel.V3(x, y, d.ZStart)
		s, err := Hollow(b.Kernel, anchor, kernel.V3(0, 0, 1), d.OuterR, d.InnerR, d.TubeLength)
		if err != nil {
			return nil, kernel.Fail("tube", c, err)
		}
		h, err := sc.Add(fmt.Sprintf("tube %d,%d", c.Col, c.Row), s)
		if err != nil {
			return nil, kernel.Fail("tube", c, err)
		}
		g.tubes = append(g.tubes, Tube{Coord: c, Solid: s, Anchor: anchor, Handle: h})
	}
	return g, nil
}

// Package bend routes the U-bend pipes that join pairs of tubes.
//
// There are three routing kinds. Same-row bends join two tubes of one row
// at the top or the bottom end of the block: a semicircle is swept in the
// horizontal plane and then turned upright about the row direction.
// Column bends join adjacent rows of one column under the block along a
// three-point arc and need no turn.
package bend

import (
	"fmt"
	"math"

	"github.com/chazu/coilblock/pkg/grid"
	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
)

// Kind selects the routing strategy.
type Kind int

const (
	TopRow Kind = iota
	BottomRow
	Column
)

func (k Kind) String() string {
	switch k {
	case TopRow:
		return "top"
	case BottomRow:
		return "bottom"
	case Column:
		return "column"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Spec is one bend to build.
type Spec struct {
	A, B grid.Coord
	Kind Kind
}

func (s Spec) String() string {
	return fmt.Sprintf("%s-%s", s.A, s.B)
}

// Specs turns a connection table into specs of one kind, in table order.
func Specs(kind Kind, table [][]int) []Spec {
	pairs := params.Pairs(table)
	out := make([]Spec, len(pairs))
	for i, p := range pairs {
		out[i] = Spec{A: p.A, B: p.B, Kind: kind}
	}
	return out
}

// AllSpecs returns the three passes in build order: top, bottom, column.
func AllSpecs(b params.Bends) [][]Spec {
	return [][]Spec{
		Specs(TopRow, b.Top),
		Specs(BottomRow, b.Bottom),
		Specs(Column, b.Column),
	}
}

// Geometry is the spine of a bend and the turn applied after sweeping.
type Geometry struct {
	Spine   kernel.Arc
	Origin  kernel.Vec3 // turn axis point
	Axis    kernel.Vec3 // turn axis direction
	Degrees float64     // 0 for no turn
}

// Ends returns where the finished bend starts and ends.
func (g Geometry) Ends() (start, end kernel.Vec3) {
	start, end = g.Spine.StartPoint(), g.Spine.EndPoint()
	if g.Degrees != 0 {
		start = start.RotateAbout(g.Origin, g.Axis, g.Degrees)
		end = end.RotateAbout(g.Origin, g.Axis, g.Degrees)
	}
	return start, end
}

// TangentAt returns the unit tangent of the finished bend at angle t
// along the spine.
func (g Geometry) TangentAt(t float64) kernel.Vec3 {
	tan := g.Spine.TangentAt(t)
	if g.Degrees != 0 {
		tan = tan.RotateAbout(kernel.Vec3{}, g.Axis, g.Degrees)
	}
	return tan
}

// SameRow lays out a bend between two tube ends a and b at the same
// height. The spine is a semicircle centred between them that starts at
// a and turns counter-clockwise about +Z. The turn of +90° (up) or -90°
// (down) about the a-b line stands it upright.
func SameRow(a, b kernel.Vec3, up bool) (Geometry, error) {
	mid := a.Mid(b)
	r := a.Dist(b) / 2
	spine, err := kernel.NewArc(mid, kernel.V3(0, 0, 1), a.Sub(mid), r, 0, math.Pi)
	if err != nil {
		return Geometry{}, err
	}
	deg := 90.0
	if !up {
		deg = -90
	}
	return Geometry{Spine: spine, Origin: mid, Axis: a.Sub(b).Unit(), Degrees: deg}, nil
}

// ColumnArc lays out a bend between two tube ends a and b along the arc
// through a, the point half their distance below their midpoint, and b.
func ColumnArc(a, b kernel.Vec3) (Geometry, error) {
	apex := a.Mid(b).Sub(kernel.V3(0, 0, a.Dist(b)/2))
	spine, err := kernel.ArcThroughPoints(a, apex, b)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Spine: spine}, nil
}

// Pipe sweeps the outer and inner profile circles along the spine and
// returns the hollow result, turned by the geometry's rotation.
func Pipe(k kernel.Kernel, g Geometry, outerR, innerR float64) (kernel.Solid, error) {
	spine, err := kernel.NewWire(g.Spine)
	if err != nil {
		return nil, err
	}
	start, normal := g.Spine.StartPoint(), g.Spine.TangentAt(0)

	sweep := func(r float64) (kernel.Solid, error) {
		c, err := kernel.NewCircle(start, normal, r)
		if err != nil {
			return nil, err
		}
		profile, err := kernel.NewWire(c)
		if err != nil {
			return nil, err
		}
		return k.Sweep(profile, spine)
	}

	outer, err := sweep(outerR)
	if err != nil {
		return nil, fmt.Errorf("outer sweep: %w", err)
	}
	inner, err := sweep(innerR)
	if err != nil {
		return nil, fmt.Errorf("inner sweep: %w", err)
	}
	pipe, err := k.Cut(outer, inner)
	if err != nil {
		return nil, fmt.Errorf("hollow: %w", err)
	}
	if g.Degrees != 0 {
		pipe = k.Rotate(pipe, g.Origin, g.Axis, g.Degrees)
	}
	return pipe, nil
}

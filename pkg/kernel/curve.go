package kernel

import (
	"fmt"
	"math"
)

// curveTol is the geometric tolerance used when classifying curves.
const curveTol = 1e-9

// Edge is a single curve that can be assembled into a Wire.
type Edge interface {
	// Closed reports whether the edge ends where it starts.
	Closed() bool
}

// Circle is a full circle edge. Normal is the unit normal of its plane.
type Circle struct {
	Center Vec3
	Normal Vec3
	Radius float64
}

// NewCircle builds a circle edge. The radius must be positive and the
// normal non-zero.
func NewCircle(center, normal Vec3, radius float64) (Circle, error) {
	if radius <= 0 {
		return Circle{}, fmt.Errorf("circle: radius %.4f must be positive: %w", radius, ErrConstruction)
	}
	if normal.Length() < curveTol {
		return Circle{}, fmt.Errorf("circle: zero normal: %w", ErrConstruction)
	}
	return Circle{Center: center, Normal: normal.Unit(), Radius: radius}, nil
}

// Closed is always true for a circle.
func (Circle) Closed() bool { return true }

// Arc is a circular arc. It starts at Center + Radius*Start and turns
// counter-clockwise about Normal by Sweep radians.
type Arc struct {
	Center Vec3
	Normal Vec3 // unit
	Start  Vec3 // unit, perpendicular to Normal
	Radius float64
	Sweep  float64 // radians, (0, 2π]
}

// NewArc builds an arc from a centre, plane normal, start direction,
// radius and the angular interval [from, to] (radians, measured from
// the start direction).
func NewArc(center, normal, xdir Vec3, radius, from, to float64) (Arc, error) {
	if radius <= 0 {
		return Arc{}, fmt.Errorf("arc: radius %.4f must be positive: %w", radius, ErrConstruction)
	}
	n := normal.Unit()
	if n.Length() < curveTol {
		return Arc{}, fmt.Errorf("arc: zero normal: %w", ErrConstruction)
	}
	// Project xdir into the arc plane.
	u := xdir.Sub(n.Scale(xdir.Dot(n))).Unit()
	if u.Length() < curveTol {
		return Arc{}, fmt.Errorf("arc: start direction parallel to normal: %w", ErrConstruction)
	}
	sweep := to - from
	if sweep <= 0 || sweep > 2*math.Pi+curveTol {
		return Arc{}, fmt.Errorf("arc: sweep %.4f out of range: %w", sweep, ErrConstruction)
	}
	a := Arc{Center: center, Normal: n, Start: u, Radius: radius, Sweep: sweep}
	if from != 0 {
		a.Start = a.direction(from)
	}
	return a, nil
}

// ArcThroughPoints interpolates the circular arc that starts at p1,
// passes through p2 and ends at p3.
func ArcThroughPoints(p1, p2, p3 Vec3) (Arc, error) {
	a := p1.Sub(p3)
	b := p2.Sub(p3)
	axb := a.Cross(b)
	d := axb.Dot(axb)
	if d < curveTol {
		return Arc{}, fmt.Errorf("arc: points are collinear: %w", ErrConstruction)
	}
	// Circumcentre of the triangle p1 p2 p3.
	num := b.Scale(a.Dot(a)).Sub(a.Scale(b.Dot(b))).Cross(axb)
	c := p3.Add(num.Scale(1 / (2 * d)))

	n := p2.Sub(p1).Cross(p3.Sub(p1)).Unit()
	r := p1.Dist(c)
	u := p1.Sub(c).Unit()
	w := p3.Sub(c).Unit()
	sweep := math.Atan2(n.Dot(u.Cross(w)), u.Dot(w))
	if sweep <= 0 {
		sweep += 2 * math.Pi
	}
	return Arc{Center: c, Normal: n, Start: u, Radius: r, Sweep: sweep}, nil
}

// Closed reports whether the arc is a full turn.
func (a Arc) Closed() bool {
	return math.Abs(a.Sweep-2*math.Pi) < curveTol
}

// direction returns the unit radial direction at angle t from Start.
func (a Arc) direction(t float64) Vec3 {
	v := a.Normal.Cross(a.Start)
	return a.Start.Scale(math.Cos(t)).Add(v.Scale(math.Sin(t)))
}

// PointAt returns the point at angle t (radians from the start).
func (a Arc) PointAt(t float64) Vec3 {
	return a.Center.Add(a.direction(t).Scale(a.Radius))
}

// TangentAt returns the unit tangent at angle t, pointing along the sweep.
func (a Arc) TangentAt(t float64) Vec3 {
	return a.Normal.Cross(a.direction(t))
}

// StartPoint returns the first point of the arc.
func (a Arc) StartPoint() Vec3 { return a.PointAt(0) }

// EndPoint returns the last point of the arc.
func (a Arc) EndPoint() Vec3 { return a.PointAt(a.Sweep) }

// MidPoint returns the point halfway along the arc.
func (a Arc) MidPoint() Vec3 { return a.PointAt(a.Sweep / 2) }

// Wire is an ordered chain of edges.
type Wire struct {
	Edges []Edge
}

// NewWire assembles edges into a wire. At least one edge is required.
func NewWire(edges ...Edge) (Wire, error) {
	if len(edges) == 0 {
		return Wire{}, fmt.Errorf("wire: no edges: %w", ErrConstruction)
	}
	return Wire{Edges: edges}, nil
}

// Closed reports whether the wire is a single closed edge.
func (w Wire) Closed() bool {
	return len(w.Edges) == 1 && w.Edges[0].Closed()
}

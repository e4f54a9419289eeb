// Package header builds the two horizontal header manifolds that feed and
// drain the coil: pipe, end caps, drilled ports, vertical connectors and
// the inlet or outlet stub.
package header

import (
	"fmt"

	"github.com/chazu/coilblock/pkg/grid"
	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/scene"
	"github.com/chazu/coilblock/pkg/tube"
)

// Side selects the header below or above the block.
type Side int

const (
	Bottom Side = iota
	Top
)

func (s Side) String() string {
	if s == Top {
		return "top"
	}
	return "bottom"
}

// sign is -1 below the block and +1 above it.
func (s Side) sign() float64 {
	if s == Top {
		return 1
	}
	return -1
}

// State is how far a header has been built.
type State int

const (
	None State = iota
	Pipe
	Capped
	Drilled
	InletFused
)

func (s State) String() string {
	switch s {
	case Pipe:
		return "pipe"
	case Capped:
		return "capped"
	case Drilled:
		return "drilled"
	case InletFused:
		return "inlet-fused"
	}
	return "none"
}

// Header is one built manifold and the scene entries it owns.
type Header struct {
	Side       Side
	State      State
	Axis       kernel.Vec3 // start of the pipe axis, at x = 0
	Radius     float64
	Ports      []grid.Coord
	Body       scene.Handle // the pipe slot, replaced at every stage
	Caps       [2]scene.Handle
	Connectors []scene.Handle
}

// Builder builds headers against a tube grid.
type Builder struct {
	Kernel  kernel.Kernel
	Params  params.Parameters
	Derived params.Derived
	Tubes   *tube.Grid
}

func (b *Builder) side(s Side) params.HeaderSide {
	if s == Top {
		return b.Params.Header.Top
	}
	return b.Params.Header.Bottom
}

// coilEnd returns the z of the tube ends the header connects to.
func (b *Builder) coilEnd(s Side) float64 {
	if s == Top {
		return b.Derived.ZEnd
	}
	return b.Derived.ZStart
}

// AxisZ returns the height of the header axis.
func (b *Builder) AxisZ(s Side) float64 {
	return b.coilEnd(s) + s.sign()*b.Params.Header.Standoff
}

// Build runs every stage of one header and records each in sc. Any
// failure is fatal.
func (b *Builder) Build(sc *scene.Scene, s Side) (*Header, error) {
	k := b.Kernel
	d := b.Derived
	cfg := b.side(s)
	fail := func(stage string, at fmt.Stringer, err error) error {
		return kernel.Fail(fmt.Sprintf("%s header: %s", s, stage), at, err)
	}

	ports := params.Ports(cfg.Ports)
	anchors := make([]tube.Tube, 0, len(ports))
	var sumY float64
	for _, c := range ports {
		t, ok := b.Tubes.At(c)
		if !ok {
			return nil, fail("port", c, fmt.Errorf("no tube at port: %w", kernel.ErrConstruction))
		}
		anchors = append(anchors, t)
		sumY += t.Anchor.Y
	}
	if len(anchors) == 0 {
		return nil, fail("port", nil, fmt.Errorf("no ports: %w", kernel.ErrConstruction))
	}

	width := b.Params.Plate.Width
	wall := b.Params.Tube.Wall
	z := b.AxisZ(s)
	h := &Header{
		Side:   s,
		Axis:   kernel.V3(0, sumY/float64(len(anchors)), z),
		Radius: d.HeaderR,
		Ports:  ports,
	}
	along := kernel.V3(1, 0, 0)
	up := kernel.V3(0, 0, 1)
	name := func(stage string) string { return fmt.Sprintf("%s header (%s)", s, stage) }

	// Pipe
	pipe, err := tube.Hollow(k, h.Axis, along, d.HeaderR, d.HeaderR-wall, width)
	if err != nil {
		return nil, fail("pipe", nil, err)
	}
	if h.Body, err = sc.Add(name("pipe"), pipe); err != nil {
		return nil, fail("pipe", nil, err)
	}
	h.State = Pipe

	// Caps sit just outside both ends and are not fused.
	for i, x := range []float64{-wall, width} {
		endCap, err := k.Cylinder(kernel.V3(x, h.Axis.Y, z), along, d.HeaderR, wall)
		if err != nil {
			return nil, fail("cap", nil, err)
		}
		if h.Caps[i], err = sc.Add(fmt.Sprintf("%s header cap %d", s, i+1), endCap); err != nil {
			return nil, fail("cap", nil, err)
		}
	}
	h.State = Capped

	// Drill every port with one batched cut.
	margin := b.Params.Header.ConnectorMargin
	drillLen := 2*d.HeaderR + 2*margin
	drills := make([]kernel.Solid, 0, len(anchors))
	for _, t := range anchors {
		base := kernel.V3(t.Anchor.X, t.Anchor.Y, z-d.HeaderR-margin)
		drill, err := k.Cylinder(base, up, d.OuterR, drillLen)
		if err != nil {
			return nil, fail("drill", t.Coord, err)
		}
		drills = append(drills, drill)
	}
	tool, err := k.Compound(drills...)
	if err != nil {
		return nil, fail("drill", nil, err)
	}
	drilled, err := k.Cut(pipe, tool)
	if err != nil {
		return nil, fail("drill", nil, err)
	}
	if h.Body, err = sc.Replace(h.Body, name("drilled"), drilled); err != nil {
		return nil, fail("drill", nil, err)
	}
	h.State = Drilled

	// Connectors run from the header centreline into the coil end,
	// overlapping it by the margin.
	end := b.coilEnd(s)
	for _, t := range anchors {
		lo, hi := z, end+margin
		if s == Top {
			lo, hi = end-margin, z
		}
		c, err := tube.Hollow(k, kernel.V3(t.Anchor.X, t.Anchor.Y, lo), up, d.OuterR, d.InnerR, hi-lo)
		if err != nil {
			return nil, fail("connector", t.Coord, err)
		}
		ch, err := sc.Add(fmt.Sprintf("%s header connector %d,%d", s, t.Coord.Col, t.Coord.Row), c)
		if err != nil {
			return nil, fail("connector", t.Coord, err)
		}
		h.Connectors = append(h.Connectors, ch)
	}

	// Stub points away from the block and is fused into the drilled pipe.
	stubX := width/2 + cfg.StubOffset
	stubLen := d.HeaderR + cfg.StubLength
	stubBase := kernel.V3(stubX, h.Axis.Y, z)
	stub, err := tube.Hollow(k, stubBase, kernel.V3(0, 0, s.sign()), d.HeaderR, d.HeaderR-wall, stubLen)
	if err != nil {
		return nil, fail("stub", nil, err)
	}
	fused, err := k.Fuse(drilled, stub)
	if err != nil {
		return nil, fail("stub", nil, err)
	}
	if h.Body, err = sc.Replace(h.Body, name("inlet-fused"), fused); err != nil {
		return nil, fail("stub", nil, err)
	}
	h.State = InletFused
	return h, nil
}

// Package plate builds the corrugated, perforated plate and stacks copies
// of it into the plate block.
package plate

import (
	"fmt"
	"math"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/scene"
)

// holeClearance is how far a hole cylinder reaches past the corrugated
// faces on each side.
const holeClearance = 0.5

// Wave is the triangular corrugation height at x:
// (2·amp/π)·asin(sin(2π·cycles·x/width)).
func Wave(x, width, amp, cycles float64) float64 {
	return (2 * amp / math.Pi) * math.Asin(math.Sin(2*math.Pi*cycles*x/width))
}

// SurfaceGrid samples the wave at evenly spaced stations across the width
// and repeats the row at both depth edges.
func SurfaceGrid(p params.Parameters) [][]kernel.Vec3 {
	n := p.Plate.Stations
	rows := make([][]kernel.Vec3, 2)
	for r, y := range []float64{0, p.Plate.Depth} {
		row := make([]kernel.Vec3, n)
		for i := 0; i < n; i++ {
			x := p.Plate.Width * float64(i) / float64(n-1)
			row[i] = kernel.V3(x, y, Wave(x, p.Plate.Width, p.Corrugation.Amplitude, p.Corrugation.Cycles))
		}
		rows[r] = row
	}
	return rows
}

// Builder builds one holed plate.
type Builder struct {
	Kernel  kernel.Kernel
	Params  params.Parameters
	Derived params.Derived
}

// HoleHeight is the length of each hole cylinder: the plate thickness
// plus the full corrugation swing plus clearance on both sides.
func (b *Builder) HoleHeight() float64 {
	return b.Params.Plate.Thickness + 2*math.Abs(b.Params.Corrugation.Amplitude) + 2*holeClearance
}

// Build returns the slab with every hole cut. Any failure is fatal.
func (b *Builder) Build() (kernel.Solid, error) {
	k := b.Kernel

	surface, err := k.FitSurface(SurfaceGrid(b.Params))
	if err != nil {
		return nil, kernel.Fail("plate: surface", nil, err)
	}
	face, err := k.MakeFace(surface)
	if err != nil {
		return nil, kernel.Fail("plate: face", nil, err)
	}
	slab, err := k.Extrude(face, kernel.V3(0, 0, b.Params.Plate.Thickness))
	if err != nil {
		return nil, kernel.Fail("plate: extrude", nil, err)
	}
	if err := k.Check(slab); err != nil {
		return nil, kernel.Fail("plate: slab", nil, err)
	}

	layout := b.Derived.Layout
	base := -math.Abs(b.Params.Corrugation.Amplitude) - holeClearance
	holes := make([]kernel.Solid, 0, layout.Len())
	for _, c := range layout.Coords() {
		x, y := layout.Anchor(c)
		hole, err := k.Cylinder(kernel.V3(x, y, base), kernel.V3(0, 0, 1), b.Derived.OuterR, b.HoleHeight())
		if err != nil {
			return nil, kernel.Fail("plate: hole", c, err)
		}
		holes = append(holes, hole)
	}
	tool, err := k.Compound(holes...)
	if err != nil {
		return nil, kernel.Fail("plate: hole compound", nil, err)
	}
	holed, err := k.Cut(slab, tool)
	if err != nil {
		return nil, kernel.Fail("plate: cut", nil, err)
	}
	if err := k.Check(holed); err != nil {
		return nil, kernel.Fail("plate: holed", nil, err)
	}
	return holed, nil
}

// Stack adds count copies of plate to sc, the n-th raised by n·pitch.
func Stack(k kernel.Kernel, sc *scene.Scene, plate kernel.Solid, count int, pitch float64) ([]scene.Handle, error) {
	handles := make([]scene.Handle, 0, count)
	for n := 0; n < count; n++ {
		p := k.Translate(plate, kernel.V3(0, 0, float64(n)*pitch))
		h, err := sc.Add(fmt.Sprintf("plate %d", n+1), p)
		if err != nil {
			return nil, kernel.Fail(fmt.Sprintf("stack: plate %d", n+1), nil, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

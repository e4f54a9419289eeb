package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// gridTol is the tolerance used to recognise a ruled point grid.
const gridTol = 1e-9

// ruledSurface is a surface z = f(x) ruled along Y between y0 and y1.
// It is the only surface family the SDF backend can fit.
type ruledSurface struct {
	profile []v2.Vec // (x, z) stations, x increasing
	y0, y1  float64
}

func (s *ruledSurface) BoundingBox() (min, max [3]float64) {
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, p := range s.profile {
		minZ = math.Min(minZ, p.Y)
		maxZ = math.Max(maxZ, p.Y)
	}
	first, last := s.profile[0], s.profile[len(s.profile)-1]
	min = [3]float64{first.X, s.y0, minZ}
	max = [3]float64{last.X, s.y1, maxZ}
	return min, max
}

// ruledFace is the face bounded by the four edges of a ruledSurface.
type ruledFace struct {
	surface *ruledSurface
}

func (f *ruledFace) BoundingBox() (min, max [3]float64) {
	return f.surface.BoundingBox()
}

// FitSurface fits a surface through grid, given as rows of points. Every
// row must hold the same x/z profile at a constant y, with rows ordered
// by increasing y and stations by increasing x.
func (k *SdfxKernel) FitSurface(grid [][]kernel.Vec3) (kernel.Surface, error) {
	if len(grid) < 2 {
		return nil, fmt.Errorf("sdfx: fit surface: need at least 2 rows, got %d: %w", len(grid), kernel.ErrConstruction)
	}
	first := grid[0]
	if len(first) < 2 {
		return nil, fmt.Errorf("sdfx: fit surface: need at least 2 stations, got %d: %w", len(first), kernel.ErrConstruction)
	}

	profile := make([]v2.Vec, len(first))
	for i, p := range first {
		if i > 0 && p.X <= first[i-1].X {
			return nil, fmt.Errorf("sdfx: fit surface: station %d is not increasing in x: %w", i, kernel.ErrConstruction)
		}
		profile[i] = v2.Vec{X: p.X, Y: p.Z}
	}

	y0, y1 := first[0].Y, grid[len(grid)-1][0].Y
	if y1 <= y0 {
		return nil, fmt.Errorf("sdfx: fit surface: rows are not increasing in y: %w", kernel.ErrConstruction)
	}
	for r, row := range grid {
		if len(row) != len(first) {
			return nil, fmt.Errorf("sdfx: fit surface: row %d has %d stations, want %d: %w", r, len(row), len(first), kernel.ErrConstruction)
		}
		for i, p := range row {
			if math.Abs(p.Y-row[0].Y) > gridTol {
				return nil, fmt.Errorf("sdfx: fit surface: row %d is not at constant y: %w", r, kernel.ErrConstruction)
			}
			if math.Abs(p.X-first[i].X) > gridTol || math.Abs(p.Z-first[i].Z) > gridTol {
				return nil, fmt.Errorf("sdfx: fit surface: row %d is not ruled along y: %w", r, kernel.ErrConstruction)
			}
		}
	}
	return &ruledSurface{profile: profile, y0: y0, y1: y1}, nil
}

// MakeFace bounds a fitted surface by its edges.
func (k *SdfxKernel) MakeFace(s kernel.Surface) (kernel.Face, error) {
	rs, ok := s.(*ruledSurface)
	if !ok || rs == nil {
		return nil, fmt.Errorf("sdfx: make face: surface %T does not belong to this kernel: %w", s, kernel.ErrConstruction)
	}
	return &ruledFace{surface: rs}, nil
}

// Extrude sweeps a face along dir. Only +Z extrusion of ruled faces is
// supported.
func (k *SdfxKernel) Extrude(f kernel.Face, dir kernel.Vec3) (kernel.Solid, error) {
	rf, ok := f.(*ruledFace)
	if !ok || rf == nil {
		return nil, fmt.Errorf("sdfx: extrude: face %T does not belong to this kernel: %w", f, kernel.ErrConstruction)
	}
	if math.Abs(dir.X) > gridTol || math.Abs(dir.Y) > gridTol || dir.Z <= 0 {
		return nil, fmt.Errorf("sdfx: extrude: direction %v is not +Z: %w", dir, kernel.ErrConstruction)
	}
	h := dir.Z
	prof := rf.surface.profile

	// Bottom edge left to right, then the top edge back.
	poly := make([]v2.Vec, 0, 2*len(prof))
	poly = append(poly, prof...)
	for i := len(prof) - 1; i >= 0; i-- {
		poly = append(poly, v2.Vec{X: prof[i].X, Y: prof[i].Y + h})
	}
	section, err := sdf.Polygon2D(poly)
	if err != nil {
		return nil, fmt.Errorf("sdfx: extrude: %v: %w", err, kernel.ErrConstruction)
	}

	depth := rf.surface.y1 - rf.surface.y0
	slab := sdf.Extrude3D(section, depth)
	// The section lies in XZ: rotating about X takes 2D y to world z and
	// the extrusion axis to world -y.
	m := sdf.Translate3d(v3.Vec{Y: (rf.surface.y0 + rf.surface.y1) / 2}).Mul(sdf.RotateX(math.Pi / 2))
	return wrap(sdf.Transform3D(slab, m)), nil
}

// Sweep moves a circular profile along a circular arc spine. The profile
// must be centred on the spine start and lie normal to its tangent there.
func (k *SdfxKernel) Sweep(profile, spine kernel.Wire) (kernel.Solid, error) {
	if len(profile.Edges) != 1 || len(spine.Edges) != 1 {
		return nil, fmt.Errorf("sdfx: sweep: only single-edge wires are supported: %w", kernel.ErrConstruction)
	}
	circle, ok := profile.Edges[0].(kernel.Circle)
	if !ok {
		return nil, fmt.Errorf("sdfx: sweep: profile edge %T is not a circle: %w", profile.Edges[0], kernel.ErrConstruction)
	}
	arc, ok := spine.Edges[0].(kernel.Arc)
	if !ok {
		return nil, fmt.Errorf("sdfx: sweep: spine edge %T is not an arc: %w", spine.Edges[0], kernel.ErrConstruction)
	}

	tol := 1e-6 * math.Max(1, arc.Radius)
	if circle.Center.Dist(arc.StartPoint()) > tol {
		return nil, fmt.Errorf("sdfx: sweep: profile is not on the spine start: %w", kernel.ErrConstruction)
	}
	if circle.Normal.Unit().Cross(arc.TangentAt(0)).Length() > 1e-6 {
		return nil, fmt.Errorf("sdfx: sweep: profile is not normal to the spine: %w", kernel.ErrConstruction)
	}
	if circle.Radius >= arc.Radius {
		return nil, fmt.Errorf("sdfx: sweep: profile radius %.4f reaches the spine axis (%.4f): %w",
			circle.Radius, arc.Radius, kernel.ErrConstruction)
	}

	disk, err := sdf.Circle2D(circle.Radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sweep: %v: %w", err, kernel.ErrConstruction)
	}
	disk = sdf.Transform2D(disk, sdf.Translate2d(v2.Vec{X: arc.Radius}))
	torus, err := sdf.RevolveTheta3D(disk, arc.Sweep)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sweep: %v: %w", err, kernel.ErrConstruction)
	}

	m := sdf.Translate3d(toV3(arc.Center)).Mul(orient(arc.Start, arc.Normal))
	return wrap(sdf.Transform3D(torus, m)), nil
}

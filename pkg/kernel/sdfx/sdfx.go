// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/singleflight"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	// DefaultCellSize is the marching cubes cell edge in mm.
	DefaultCellSize = 0.5

	minMeshCells = 8
	maxMeshCells = 4096

	// overlapTol is how far apart two bounding boxes may be and still
	// count as touching for Fuse.
	overlapTol = 1e-6

	// weldFraction of the cell size is the distance within which mesh
	// corners are merged.
	weldFraction = 1e-3
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3

	// base is set when this solid is a pure translation of base by
	// shift, so that ToMesh can reuse the tessellation of base.
	base  *sdfxSolid
	shift v3.Vec
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// brokenSolid is what Translate and Rotate return for input they cannot
// transform. Check rejects it and every other operation reports err.
type brokenSolid struct {
	err error
}

func (b *brokenSolid) BoundingBox() (min, max [3]float64) {
	nan := math.NaN()
	return [3]float64{nan, nan, nan}, [3]float64{nan, nan, nan}
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithCellSize sets the marching cubes cell edge length in mm.
func WithCellSize(mm float64) Option {
	return func(k *SdfxKernel) {
		if mm > 0 {
			k.cellSize = mm
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cellSize float64

	mu     sync.Mutex
	meshes map[*sdfxSolid]*kernel.Mesh
	flight singleflight.Group

	tessellations atomic.Int64
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{
		cellSize: DefaultCellSize,
		meshes:   make(map[*sdfxSolid]*kernel.Mesh),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// unwrap extracts the sdfx solid from a kernel.Solid.
func unwrap(op string, s kernel.Solid) (*sdfxSolid, error) {
	if s == nil {
		return nil, fmt.Errorf("sdfx: %s: nil solid: %w", op, kernel.ErrConstruction)
	}
	if b, ok := s.(*brokenSolid); ok {
		return nil, fmt.Errorf("sdfx: %s: %w", op, b.err)
	}
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil || ss.s == nil {
		return nil, fmt.Errorf("sdfx: %s: solid %T does not belong to this kernel: %w", op, s, kernel.ErrConstruction)
	}
	return ss, nil
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) *sdfxSolid {
	return &sdfxSolid{s: s}
}

// Cylinder creates a cylinder whose base circle is centred on base and
// which extends height along axis.
func (k *SdfxKernel) Cylinder(base, axis kernel.Vec3, radius, height float64) (kernel.Solid, error) {
	if axis.Length() == 0 {
		return nil, fmt.Errorf("sdfx: cylinder: zero axis: %w", kernel.ErrConstruction)
	}
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("sdfx: cylinder: radius %.4f height %.4f: %w", radius, height, kernel.ErrConstruction)
	}
	c, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %v: %w", err, kernel.ErrConstruction)
	}
	center := base.Add(axis.Unit().Scale(height / 2))
	m := sdf.Translate3d(toV3(center)).Mul(orient(kernel.Vec3{}, axis))
	return wrap(sdf.Transform3D(c, m)), nil
}

// Cut returns the difference a - b.
func (k *SdfxKernel) Cut(a, b kernel.Solid) (kernel.Solid, error) {
	sa, err := unwrap("cut", a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap("cut", b)
	if err != nil {
		return nil, err
	}
	return wrap(sdf.Difference3D(sa.s, sb.s)), nil
}

// Fuse returns the union of two solids. Solids whose bounding boxes do
// not touch cannot form one body and are rejected.
func (k *SdfxKernel) Fuse(a, b kernel.Solid) (kernel.Solid, error) {
	sa, err := unwrap("fuse", a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap("fuse", b)
	if err != nil {
		return nil, err
	}
	if !touching(sa.s.BoundingBox(), sb.s.BoundingBox()) {
		return nil, fmt.Errorf("sdfx: fuse: solids do not touch: %w", kernel.ErrConstruction)
	}
	return wrap(sdf.Union3D(sa.s, sb.s)), nil
}

// Compound groups solids into one tool body.
func (k *SdfxKernel) Compound(solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, fmt.Errorf("sdfx: compound: no solids: %w", kernel.ErrConstruction)
	}
	parts := make([]sdf.SDF3, 0, len(solids))
	for _, s := range solids {
		ss, err := unwrap("compound", s)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ss.s)
	}
	if len(parts) == 1 {
		return wrap(parts[0]), nil
	}
	return wrap(sdf.Union3D(parts...)), nil
}

// Translate moves a solid by d. A solid it cannot move comes back
// broken: Check rejects it and later operations fail with
// ErrConstruction.
func (k *SdfxKernel) Translate(s kernel.Solid, d kernel.Vec3) kernel.Solid {
	ss, err := unwrap("translate", s)
	if err != nil {
		return &brokenSolid{err: err}
	}
	out := wrap(sdf.Transform3D(ss.s, sdf.Translate3d(toV3(d))))
	if ss.base != nil {
		out.base = ss.base
		out.shift = ss.shift.Add(toV3(d))
	} else {
		out.base = ss
		out.shift = toV3(d)
	}
	return out
}

// Rotate rotates a solid by degrees about the axis through origin
// (right-hand rule). Like Translate, it returns a broken solid for bad
// input, including a zero axis.
func (k *SdfxKernel) Rotate(s kernel.Solid, origin, axis kernel.Vec3, degrees float64) kernel.Solid {
	ss, err := unwrap("rotate", s)
	if err != nil {
		return &brokenSolid{err: err}
	}
	if axis.Length() == 0 {
		return &brokenSolid{err: fmt.Errorf("sdfx: rotate: zero axis: %w", kernel.ErrConstruction)}
	}
	rad := degrees * math.Pi / 180.0
	m := sdf.Translate3d(toV3(origin)).
		Mul(sdf.Rotate3d(toV3(axis.Unit()), rad)).
		Mul(sdf.Translate3d(toV3(origin.Scale(-1))))
	return wrap(sdf.Transform3D(ss.s, m))
}

// Check reports ErrValidity unless s is a solid of this kernel with a
// finite, non-degenerate bounding box and a finite field.
func (k *SdfxKernel) Check(s kernel.Solid) error {
	if s == nil {
		return fmt.Errorf("sdfx: nil solid: %w", kernel.ErrValidity)
	}
	if b, ok := s.(*brokenSolid); ok {
		return fmt.Errorf("%v: %w", b.err, kernel.ErrValidity)
	}
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil || ss.s == nil {
		return fmt.Errorf("sdfx: solid %T does not belong to this kernel: %w", s, kernel.ErrValidity)
	}
	bb := ss.s.BoundingBox()
	for _, v := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("sdfx: bounding box is not finite: %w", kernel.ErrValidity)
		}
	}
	if bb.Max.X <= bb.Min.X || bb.Max.Y <= bb.Min.Y || bb.Max.Z <= bb.Min.Z {
		return fmt.Errorf("sdfx: bounding box is degenerate: %w", kernel.ErrValidity)
	}
	center := bb.Min.Add(bb.Max).MulScalar(0.5)
	if d := ss.s.Evaluate(center); math.IsNaN(d) {
		return fmt.Errorf("sdfx: distance field is NaN: %w", kernel.ErrValidity)
	}
	return nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
// Translated copies of one solid share a single tessellation: their
// meshes are instances of it, placed by Offset. Concurrent requests for
// the same base wait for one tessellation.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	ss, err := unwrap("mesh", s)
	if err != nil {
		return nil, err
	}
	if ss.base == nil {
		return k.tessellate(ss.s), nil
	}
	return k.baseMesh(ss.base).Instance(fromV3(ss.shift)), nil
}

// baseMesh returns the cached tessellation of base, computing it once.
func (k *SdfxKernel) baseMesh(base *sdfxSolid) *kernel.Mesh {
	k.mu.Lock()
	m, ok := k.meshes[base]
	k.mu.Unlock()
	if ok {
		return m
	}
	v, _, _ := k.flight.Do(fmt.Sprintf("%p", base), func() (interface{}, error) {
		k.mu.Lock()
		m, ok := k.meshes[base]
		k.mu.Unlock()
		if ok {
			return m, nil
		}
		m = k.tessellate(base.s)
		k.mu.Lock()
		k.meshes[base] = m
		k.mu.Unlock()
		return m, nil
	})
	return v.(*kernel.Mesh)
}

// tessellate runs uniform marching cubes with a cell count chosen so
// that cells are about cellSize on the longest bounding box axis, then
// welds the loose triangles into an indexed mesh.
func (k *SdfxKernel) tessellate(sdf3 sdf.SDF3) *kernel.Mesh {
	k.tessellations.Add(1)
	size := sdf3.BoundingBox().Size()
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	cells := int(math.Ceil(longest / k.cellSize))
	if cells < minMeshCells {
		cells = minMeshCells
	}
	if cells > maxMeshCells {
		cells = maxMeshCells
	}

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)

	b := kernel.NewMeshBuilder(weldFraction * longest / float64(cells))
	for _, tri := range triangles {
		b.Add(fromV3(tri[0]), fromV3(tri[1]), fromV3(tri[2]))
	}
	return b.Mesh()
}

// touching reports whether two boxes overlap or share a boundary.
func touching(a, b sdf.Box3) bool {
	return a.Min.X <= b.Max.X+overlapTol && b.Min.X <= a.Max.X+overlapTol &&
		a.Min.Y <= b.Max.Y+overlapTol && b.Min.Y <= a.Max.Y+overlapTol &&
		a.Min.Z <= b.Max.Z+overlapTol && b.Min.Z <= a.Max.Z+overlapTol
}

func toV3(v kernel.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromV3(v v3.Vec) kernel.Vec3 {
	return kernel.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

package sdfx

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/chazu/coilblock/pkg/kernel"
)

func expectBox(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], wantMax[i])
		}
	}
}

func mustCylinder(t *testing.T, k *SdfxKernel, base, axis kernel.Vec3, r, h float64) kernel.Solid {
	t.Helper()
	s, err := k.Cylinder(base, axis, r, h)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	return s
}

func TestCylinder(t *testing.T) {
	k := New(WithCellSize(1))
	cyl := mustCylinder(t, k, kernel.V3(10, 20, -5), kernel.V3(0, 0, 1), 6, 30)
	expectBox(t, cyl, [3]float64{4, 14, -5}, [3]float64{16, 26, 25}, 1e-6)

	mesh, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != mesh.TriangleCount()*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), mesh.TriangleCount()*3)
	}
}

func TestCylinderAlongX(t *testing.T) {
	k := New()
	cyl := mustCylinder(t, k, kernel.V3(0, 0, 0), kernel.V3(1, 0, 0), 2, 50)
	min, max := cyl.BoundingBox()
	if math.Abs(min[0]) > 0.01 || math.Abs(max[0]-50) > 0.01 {
		t.Errorf("x extent = [%f, %f], expected [0, 50]", min[0], max[0])
	}
	if max[2]-min[2] > 4.5 {
		t.Errorf("z extent = %f, expected ~4", max[2]-min[2])
	}
}

func TestCylinderErrors(t *testing.T) {
	k := New()
	tests := []struct {
		name string
		axis kernel.Vec3
		r, h float64
	}{
		{"zero axis", kernel.Vec3{}, 1, 1},
		{"zero radius", kernel.V3(0, 0, 1), 0, 1},
		{"negative height", kernel.V3(0, 0, 1), 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := k.Cylinder(kernel.Vec3{}, tt.axis, tt.r, tt.h); !errors.Is(err, kernel.ErrConstruction) {
				t.Errorf("Cylinder() error = %v, want ErrConstruction", err)
			}
		})
	}
}

func TestCutMakesHollowTube(t *testing.T) {
	k := New(WithCellSize(0.5))
	up := kernel.V3(0, 0, 1)
	outer := mustCylinder(t, k, kernel.Vec3{}, up, 6, 20)
	inner := mustCylinder(t, k, kernel.Vec3{}, up, 5, 20)
	tube, err := k.Cut(outer, inner)
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	if err := k.Check(tube); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	outerMesh, _ := k.ToMesh(outer)
	tubeMesh, err := k.ToMesh(tube)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if tubeMesh.TriangleCount() <= outerMesh.TriangleCount() {
		t.Fatalf("tube (%d triangles) should have more triangles than cylinder (%d triangles)",
			tubeMesh.TriangleCount(), outerMesh.TriangleCount())
	}
}

func TestFuse(t *testing.T) {
	k := New()
	up := kernel.V3(0, 0, 1)
	a := mustCylinder(t, k, kernel.Vec3{}, up, 5, 10)
	b := mustCylinder(t, k, kernel.V3(8, 0, 0), up, 5, 10)
	u, err := k.Fuse(a, b)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	expectBox(t, u, [3]float64{-5, -5, 0}, [3]float64{13, 5, 10}, 1e-6)

	far := mustCylinder(t, k, kernel.V3(100, 0, 0), up, 5, 10)
	if _, err := k.Fuse(a, far); !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("Fuse of disjoint solids error = %v, want ErrConstruction", err)
	}
	if _, err := k.Fuse(a, nil); !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("Fuse with nil error = %v, want ErrConstruction", err)
	}
}

func TestCompound(t *testing.T) {
	k := New()
	if _, err := k.Compound(); !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("empty Compound error = %v, want ErrConstruction", err)
	}
	up := kernel.V3(0, 0, 1)
	c, err := k.Compound(
		mustCylinder(t, k, kernel.Vec3{}, up, 1, 2),
		mustCylinder(t, k, kernel.V3(50, 0, 0), up, 1, 2),
	)
	if err != nil {
		t.Fatalf("Compound failed: %v", err)
	}
	expectBox(t, c, [3]float64{-1, -1, 0}, [3]float64{51, 1, 2}, 1e-6)
}

func TestTranslate(t *testing.T) {
	k := New(WithCellSize(1))
	cyl := mustCylinder(t, k, kernel.Vec3{}, kernel.V3(0, 0, 1), 5, 10)
	moved := k.Translate(k.Translate(cyl, kernel.V3(100, 0, 0)), kernel.V3(0, 200, 300))
	expectBox(t, moved, [3]float64{95, 195, 300}, [3]float64{105, 205, 310}, 1e-6)

	base, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	m1, err := k.ToMesh(moved)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	m2, _ := k.ToMesh(k.Translate(cyl, kernel.V3(0, 0, 50)))
	if len(k.meshes) != 1 {
		t.Errorf("mesh cache holds %d entries, expected 1", len(k.meshes))
	}
	if m1.TriangleCount() != base.TriangleCount() || m2.TriangleCount() != base.TriangleCount() {
		t.Errorf("translated meshes have %d/%d triangles, base has %d",
			m1.TriangleCount(), m2.TriangleCount(), base.TriangleCount())
	}
	if m1.Offset != kernel.V3(100, 200, 300) || m2.Offset != kernel.V3(0, 0, 50) {
		t.Errorf("offsets = %v and %v, expected (100,200,300) and (0,0,50)", m1.Offset, m2.Offset)
	}
	if !m1.SharesGeometry(m2) {
		t.Error("translated copies do not share one tessellation")
	}
	if got, want := m1.Vertices[0], base.Vertices[0]; math.Abs(float64(got-want)) > 1e-3 {
		t.Errorf("first vertex x = %f, expected %f relative to the offset", got, want)
	}
}

func TestToMeshConcurrentCopiesTessellateOnce(t *testing.T) {
	k := New(WithCellSize(0.5))
	cyl := mustCylinder(t, k, kernel.Vec3{}, kernel.V3(0, 0, 1), 5, 10)

	const copies = 8
	meshes := make([]*kernel.Mesh, copies)
	var wg sync.WaitGroup
	for i := 0; i < copies; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := k.ToMesh(k.Translate(cyl, kernel.V3(0, 0, float64(i)*20)))
			if err != nil {
				t.Errorf("ToMesh failed: %v", err)
				return
			}
			meshes[i] = m
		}(i)
	}
	wg.Wait()

	if n := k.tessellations.Load(); n != 1 {
		t.Errorf("base solid tessellated %d times, expected 1", n)
	}
	for i := 1; i < copies; i++ {
		if meshes[i] == nil || meshes[0] == nil || !meshes[i].SharesGeometry(meshes[0]) {
			t.Errorf("copy %d does not share the first copy's tessellation", i)
		}
	}
}

func TestToMeshIsWatertight(t *testing.T) {
	k := New(WithCellSize(0.5))
	// Dimensions off the sampling grid so no corner lands on the surface.
	cyl := mustCylinder(t, k, kernel.V3(0.05, 0.05, 0.05), kernel.V3(0, 0, 1), 3.3, 7.1)
	m, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if m.TriangleCount() == 0 {
		t.Fatal("empty mesh")
	}
	if m.VertexCount() >= 3*m.TriangleCount() {
		t.Errorf("%d vertices for %d triangles: corners were not merged", m.VertexCount(), m.TriangleCount())
	}

	uses := make(map[[2]uint32]int)
	for i := 0; i+2 < len(m.Indices); i += 3 {
		for j := 0; j < 3; j++ {
			a, b := m.Indices[i+j], m.Indices[i+(j+1)%3]
			if a > b {
				a, b = b, a
			}
			uses[[2]uint32{a, b}]++
		}
	}
	bad := 0
	for _, n := range uses {
		if n != 2 {
			bad++
		}
	}
	if bad > 0 {
		t.Errorf("%d of %d edges are not shared by exactly two triangles", bad, len(uses))
	}
}

func TestTransformBadInput(t *testing.T) {
	k := New()
	cyl := mustCylinder(t, k, kernel.Vec3{}, kernel.V3(0, 0, 1), 1, 1)

	tests := []struct {
		name  string
		solid kernel.Solid
	}{
		{"translate foreign", k.Translate(&foreign{}, kernel.V3(1, 0, 0))},
		{"translate nil", k.Translate(nil, kernel.V3(1, 0, 0))},
		{"rotate foreign", k.Rotate(&foreign{}, kernel.Vec3{}, kernel.V3(0, 0, 1), 90)},
		{"rotate zero axis", k.Rotate(cyl, kernel.Vec3{}, kernel.Vec3{}, 90)},
		{"translate broken", k.Translate(k.Rotate(cyl, kernel.Vec3{}, kernel.Vec3{}, 90), kernel.V3(1, 0, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := k.Check(tt.solid); !errors.Is(err, kernel.ErrValidity) {
				t.Errorf("Check() = %v, want ErrValidity", err)
			}
			if _, err := k.Fuse(tt.solid, cyl); !errors.Is(err, kernel.ErrConstruction) {
				t.Errorf("Fuse() = %v, want ErrConstruction", err)
			}
			if _, err := k.ToMesh(tt.solid); !errors.Is(err, kernel.ErrConstruction) {
				t.Errorf("ToMesh() = %v, want ErrConstruction", err)
			}
		})
	}
}

func TestRotate(t *testing.T) {
	k := New()
	// A long cylinder along X rotated 90 degrees around Z should extend along Y instead.
	cyl := mustCylinder(t, k, kernel.Vec3{}, kernel.V3(1, 0, 0), 5, 100)
	rotated := k.Rotate(cyl, kernel.Vec3{}, kernel.V3(0, 0, 1), 90)
	min, max := rotated.BoundingBox()

	const tol = 1.0
	if xExtent := max[0] - min[0]; math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(min[1]) > tol || math.Abs(max[1]-100) > tol {
		t.Errorf("rotated Y range = [%f, %f], expected [0, 100]", min[1], max[1])
	}
}

func TestRotateAboutOffsetAxis(t *testing.T) {
	k := New()
	cyl := mustCylinder(t, k, kernel.V3(10, 0, 0), kernel.V3(0, 0, 1), 1, 2)
	// Half a turn about a vertical axis through x=20 lands the cylinder at x=30.
	rotated := k.Rotate(cyl, kernel.V3(20, 0, 0), kernel.V3(0, 0, 1), 180)
	min, max := rotated.BoundingBox()
	if cx := (min[0] + max[0]) / 2; math.Abs(cx-30) > 1e-6 {
		t.Errorf("rotated centre x = %f, expected 30", cx)
	}
}

func rampGrid(stations int, depth float64, z func(x float64) float64) [][]kernel.Vec3 {
	rows := make([][]kernel.Vec3, 2)
	for r, y := range []float64{0, depth} {
		for i := 0; i < stations; i++ {
			x := 100 * float64(i) / float64(stations-1)
			rows[r] = append(rows[r], kernel.V3(x, y, z(x)))
		}
	}
	return rows
}

func TestExtrudeRuledSurface(t *testing.T) {
	k := New(WithCellSize(2))
	grid := rampGrid(21, 60, func(x float64) float64 { return 0.5 * math.Sin(x/10) })
	surf, err := k.FitSurface(grid)
	if err != nil {
		t.Fatalf("FitSurface failed: %v", err)
	}
	face, err := k.MakeFace(surf)
	if err != nil {
		t.Fatalf("MakeFace failed: %v", err)
	}
	slab, err := k.Extrude(face, kernel.V3(0, 0, 2))
	if err != nil {
		t.Fatalf("Extrude failed: %v", err)
	}
	min, max := slab.BoundingBox()
	if math.Abs(min[0]) > 1e-6 || math.Abs(max[0]-100) > 1e-6 {
		t.Errorf("x range = [%f, %f], expected [0, 100]", min[0], max[0])
	}
	if math.Abs(min[1]) > 1e-6 || math.Abs(max[1]-60) > 1e-6 {
		t.Errorf("y range = [%f, %f], expected [0, 60]", min[1], max[1])
	}
	if min[2] < -0.51 || max[2] > 2.51 {
		t.Errorf("z range = [%f, %f], expected within [-0.5, 2.5]", min[2], max[2])
	}
	if err := k.Check(slab); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestFitSurfaceErrors(t *testing.T) {
	k := New()
	flat := func(float64) float64 { return 0 }
	twisted := rampGrid(5, 10, flat)
	twisted[1][2].Z = 1

	tests := []struct {
		name string
		grid [][]kernel.Vec3
	}{
		{"one row", rampGrid(5, 10, flat)[:1]},
		{"one station", [][]kernel.Vec3{{kernel.V3(0, 0, 0)}, {kernel.V3(0, 1, 0)}}},
		{"not ruled", twisted},
		{"ragged", [][]kernel.Vec3{rampGrid(5, 10, flat)[0], rampGrid(4, 10, flat)[1]}},
		{"zero depth", rampGrid(5, 0, flat)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := k.FitSurface(tt.grid); !errors.Is(err, kernel.ErrConstruction) {
				t.Errorf("FitSurface() error = %v, want ErrConstruction", err)
			}
		})
	}
}

func TestExtrudeRejectsSideways(t *testing.T) {
	k := New()
	surf, err := k.FitSurface(rampGrid(3, 10, func(float64) float64 { return 0 }))
	if err != nil {
		t.Fatalf("FitSurface failed: %v", err)
	}
	face, _ := k.MakeFace(surf)
	if _, err := k.Extrude(face, kernel.V3(1, 0, 0)); !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("Extrude() error = %v, want ErrConstruction", err)
	}
}

func semicircle(t *testing.T) kernel.Arc {
	t.Helper()
	arc, err := kernel.NewArc(kernel.V3(10, 0, 0), kernel.V3(0, 0, 1), kernel.V3(-1, 0, 0), 10, 0, math.Pi)
	if err != nil {
		t.Fatalf("NewArc failed: %v", err)
	}
	return arc
}

func TestSweep(t *testing.T) {
	k := New(WithCellSize(1))
	arc := semicircle(t)
	profile, err := kernel.NewCircle(arc.StartPoint(), arc.TangentAt(0), 2)
	if err != nil {
		t.Fatalf("NewCircle failed: %v", err)
	}
	pipe, err := k.Sweep(kernel.Wire{Edges: []kernel.Edge{profile}}, kernel.Wire{Edges: []kernel.Edge{arc}})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if err := k.Check(pipe); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	ss := pipe.(*sdfxSolid)
	if d := ss.s.Evaluate(toV3(arc.MidPoint())); d > -1.9 {
		t.Errorf("distance at spine midpoint = %f, expected about -2", d)
	}
	for _, p := range []kernel.Vec3{arc.StartPoint(), arc.EndPoint()} {
		if d := ss.s.Evaluate(toV3(p)); d > 1e-6 {
			t.Errorf("distance at spine end %v = %f, expected on or inside the pipe", p, d)
		}
	}
	// The far side of the circle is not swept.
	if d := ss.s.Evaluate(toV3(kernel.V3(10, 10, 0))); d < 1 {
		t.Errorf("distance at unswept point = %f, expected outside", d)
	}
}

func TestSweepRejectsMisplacedProfile(t *testing.T) {
	k := New()
	arc := semicircle(t)
	spine := kernel.Wire{Edges: []kernel.Edge{arc}}
	tests := []struct {
		name   string
		center kernel.Vec3
		normal kernel.Vec3
		radius float64
	}{
		{"off start", kernel.V3(1, 0, 0), arc.TangentAt(0), 2},
		{"tilted", arc.StartPoint(), kernel.V3(1, 0, 0), 2},
		{"too fat", arc.StartPoint(), arc.TangentAt(0), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := kernel.NewCircle(tt.center, tt.normal, tt.radius)
			if err != nil {
				t.Fatalf("NewCircle failed: %v", err)
			}
			if _, err := k.Sweep(kernel.Wire{Edges: []kernel.Edge{c}}, spine); !errors.Is(err, kernel.ErrConstruction) {
				t.Errorf("Sweep() error = %v, want ErrConstruction", err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	k := New()
	if err := k.Check(nil); !errors.Is(err, kernel.ErrValidity) {
		t.Errorf("Check(nil) = %v, want ErrValidity", err)
	}
	if err := k.Check(&foreign{}); !errors.Is(err, kernel.ErrValidity) {
		t.Errorf("Check(foreign) = %v, want ErrValidity", err)
	}
	cyl := mustCylinder(t, k, kernel.Vec3{}, kernel.V3(0, 0, 1), 1, 1)
	if err := k.Check(cyl); err != nil {
		t.Errorf("Check(cylinder) = %v", err)
	}
}

type foreign struct{}

func (foreign) BoundingBox() (min, max [3]float64) { return }

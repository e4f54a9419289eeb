// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx) provide surface fitting, sweeps, boolean
// operations and validity checks behind this interface. The kernel
// abstraction allows swapping backends without changing the builders.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation. Solids are values:
// every operation returns a new Solid and never mutates its inputs.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Surface is a kernel surface fitted through a point grid.
type Surface interface {
	BoundingBox() (min, max [3]float64)
}

// Face is a bounded face built on a Surface.
type Face interface {
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
//
// Operations that can fail report an error wrapping ErrConstruction.
// Check reports ErrValidity for nil or unsound solids. Implementations
// must be safe for concurrent use by multiple goroutines.
type Kernel interface {
	// Surfaces
	FitSurface(grid [][]Vec3) (Surface, error)
	MakeFace(s Surface) (Face, error)
	Extrude(f Face, dir Vec3) (Solid, error)

	// Primitives
	Cylinder(base, axis Vec3, radius, height float64) (Solid, error)

	// Sweep moves a closed profile wire along a spine wire.
	Sweep(profile, spine Wire) (Solid, error)

	// Boolean operations
	Cut(a, b Solid) (Solid, error)
	Fuse(a, b Solid) (Solid, error)
	Compound(solids ...Solid) (Solid, error)

	// Transforms cannot fail directly. Bad input (a foreign solid, a
	// zero rotation axis) yields a solid that Check rejects and that
	// every later operation reports as ErrConstruction.
	Translate(s Solid, d Vec3) Solid
	Rotate(s Solid, origin, axis Vec3, degrees float64) Solid

	// Check reports whether s is non-nil and topologically sound.
	Check(s Solid) error

	// ToMesh tessellates s. Translated copies may return instances that
	// share arrays and differ only in Mesh.Offset.
	ToMesh(s Solid) (*Mesh, error)
}

package kernel

import "math"

// Mesh is a triangle mesh produced from a solid for export.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
// Adjacent triangles share vertex indices.
//
// Meshes of translated copies share their arrays; only Offset differs.
// Vertices are relative to Offset.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // scene entry this came from
	Offset   Vec3      `json:"offset"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Instance returns a mesh that shares m's arrays and sits d further
// along. Nothing is copied.
func (m *Mesh) Instance(d Vec3) *Mesh {
	out := *m
	out.Offset = m.Offset.Add(d)
	return &out
}

// SharesGeometry reports whether m and o are instances of one tessellation.
func (m *Mesh) SharesGeometry(o *Mesh) bool {
	if m.IsEmpty() || o.IsEmpty() {
		return false
	}
	return &m.Vertices[0] == &o.Vertices[0] && len(m.Vertices) == len(o.Vertices)
}

// MeshBuilder assembles an indexed Mesh from loose triangles. Corners
// closer than the weld tolerance become one vertex, and triangles that
// collapse as a result are dropped. Vertex normals are the area-weighted
// average of the adjoining faces.
type MeshBuilder struct {
	tol     float64
	index   map[[3]int64]uint32
	points  []Vec3
	normals []Vec3
	indices []uint32
}

// NewMeshBuilder returns a builder welding corners within tol.
func NewMeshBuilder(tol float64) *MeshBuilder {
	if tol <= 0 {
		tol = 1e-6
	}
	return &MeshBuilder{tol: tol, index: make(map[[3]int64]uint32)}
}

func (b *MeshBuilder) vertex(p Vec3) uint32 {
	key := [3]int64{
		int64(math.Round(p.X / b.tol)),
		int64(math.Round(p.Y / b.tol)),
		int64(math.Round(p.Z / b.tol)),
	}
	if i, ok := b.index[key]; ok {
		return i
	}
	i := uint32(len(b.points))
	b.index[key] = i
	b.points = append(b.points, p)
	b.normals = append(b.normals, Vec3{})
	return i
}

// Add appends the triangle p0 p1 p2 (counter-clockwise seen from
// outside). It returns false if the triangle collapsed and was dropped.
func (b *MeshBuilder) Add(p0, p1, p2 Vec3) bool {
	i0, i1, i2 := b.vertex(p0), b.vertex(p1), b.vertex(p2)
	if i0 == i1 || i1 == i2 || i0 == i2 {
		return false
	}
	// Cross product length is twice the area, so this weights by area.
	n := b.points[i1].Sub(b.points[i0]).Cross(b.points[i2].Sub(b.points[i0]))
	for _, i := range []uint32{i0, i1, i2} {
		b.normals[i] = b.normals[i].Add(n)
	}
	b.indices = append(b.indices, i0, i1, i2)
	return true
}

// Mesh returns the assembled mesh.
func (b *MeshBuilder) Mesh() *Mesh {
	m := &Mesh{
		Vertices: make([]float32, 0, 3*len(b.points)),
		Normals:  make([]float32, 0, 3*len(b.points)),
		Indices:  b.indices,
	}
	for i, p := range b.points {
		m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
		n := b.normals[i]
		if l := n.Length(); l > 0 {
			n = n.Scale(1 / l)
		}
		m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return m
}

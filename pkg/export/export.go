// Package export writes tessellated scenes as 3MF files.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/hpinc/go3mf"

	"github.com/chazu/coilblock/pkg/kernel"
)

// ErrExport is wrapped by every failure to produce the output file.
var ErrExport = errors.New("export failed")

// Stats describes a written file. Vertices and triangles are counted once
// per object, however many items place it.
type Stats struct {
	Path      string `yaml:"path"`
	Objects   int    `yaml:"objects"`
	Items     int    `yaml:"items"`
	Vertices  int    `yaml:"vertices"`
	Triangles int    `yaml:"triangles"`
}

// Writer writes one 3MF model in millimetres: a mesh object per distinct
// tessellation and a build item per scene entry.
type Writer struct {
	Path   string
	Logger *log.Logger
}

func (w Writer) logger() *log.Logger {
	if w.Logger == nil {
		return log.New(io.Discard)
	}
	return w.Logger
}

// Model converts meshes to a 3MF model. Meshes that share a tessellation
// become one object placed by several build items, each translated by
// its mesh's Offset and carrying the entry name as part number. Empty
// meshes are skipped; a model with no geometry at all is an error.
func Model(meshes []*kernel.Mesh) (*go3mf.Model, error) {
	model := &go3mf.Model{Units: go3mf.UnitMillimeter}
	objects := make(map[*float32]uint32)
	for _, m := range meshes {
		if m == nil || m.IsEmpty() || m.TriangleCount() == 0 {
			continue
		}
		id, ok := objects[&m.Vertices[0]]
		if !ok {
			id = uint32(len(model.Resources.Objects) + 1)
			objects[&m.Vertices[0]] = id
			model.Resources.Objects = append(model.Resources.Objects, &go3mf.Object{
				ID:   id,
				Name: m.PartName,
				Mesh: toMesh(m),
			})
		}
		model.Build.Items = append(model.Build.Items, &go3mf.Item{
			ObjectID:   id,
			Transform:  translation(m.Offset),
			PartNumber: m.PartName,
		})
	}
	if len(model.Build.Items) == 0 {
		return nil, fmt.Errorf("export: nothing to write: %w", ErrExport)
	}
	return model, nil
}

// translation returns the 3MF transform moving an object by d. The zero
// matrix means no transform.
func translation(d kernel.Vec3) go3mf.Matrix {
	if d == (kernel.Vec3{}) {
		return go3mf.Matrix{}
	}
	return go3mf.Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		float32(d.X), float32(d.Y), float32(d.Z), 1,
	}
}

func toMesh(m *kernel.Mesh) *go3mf.Mesh {
	var out go3mf.Mesh
	out.Vertices.Vertex = make([]go3mf.Point3D, 0, m.VertexCount())
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		out.Vertices.Vertex = append(out.Vertices.Vertex,
			go3mf.Point3D{m.Vertices[i], m.Vertices[i+1], m.Vertices[i+2]})
	}
	out.Triangles.Triangle = make([]go3mf.Triangle, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		out.Triangles.Triangle = append(out.Triangles.Triangle,
			go3mf.Triangle{V1: m.Indices[i], V2: m.Indices[i+1], V3: m.Indices[i+2]})
	}
	return &out
}

// Write encodes meshes to w.Path. A partially written file is removed.
func (w Writer) Write(meshes []*kernel.Mesh) (Stats, error) {
	if w.Path == "" {
		return Stats{}, fmt.Errorf("export: no output path: %w", ErrExport)
	}
	model, err := Model(meshes)
	if err != nil {
		return Stats{}, err
	}
	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("export: %w: %v", ErrExport, err)
		}
	}

	stats := Stats{Path: w.Path, Objects: len(model.Resources.Objects), Items: len(model.Build.Items)}
	for _, o := range model.Resources.Objects {
		stats.Vertices += len(o.Mesh.Vertices.Vertex)
		stats.Triangles += len(o.Mesh.Triangles.Triangle)
	}

	if err := encode(w.Path, model); err != nil {
		os.Remove(w.Path)
		return Stats{}, fmt.Errorf("export: write %s: %w: %v", w.Path, ErrExport, err)
	}
	w.logger().Debug("wrote 3MF", "path", w.Path, "objects", stats.Objects, "items", stats.Items, "triangles", stats.Triangles)
	return stats, nil
}

func encode(path string, model *go3mf.Model) error {
	out, err := go3mf.CreateWriter(path)
	if err != nil {
		return err
	}
	if err := out.Encode(model); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Package params holds the coil block parameters, the quantities derived
// from them, and the configuration loader.
package params

import "github.com/chazu/coilblock/pkg/grid"

// Plate describes one corrugated plate.
type Plate struct {
	Width     float64 `koanf:"width" yaml:"width"`
	Depth     float64 `koanf:"depth" yaml:"depth"`
	Thickness float64 `koanf:"thickness" yaml:"thickness"`
	Stations  int     `koanf:"stations" yaml:"stations"` // wave samples across the width
}

// Corrugation is the triangular wave pressed into each plate.
type Corrugation struct {
	Amplitude float64 `koanf:"amplitude" yaml:"amplitude"`
	Cycles    float64 `koanf:"cycles" yaml:"cycles"`
}

// Grid is the hole and tube pattern.
type Grid struct {
	Columns      int     `koanf:"columns" yaml:"columns"`
	Rows         int     `koanf:"rows" yaml:"rows"`
	HoleDiameter float64 `koanf:"hole_diameter" yaml:"hole_diameter"`
	StaggerRatio float64 `koanf:"stagger_ratio" yaml:"stagger_ratio"`
}

// Stack controls how plates are repeated.
type Stack struct {
	Spacing      float64 `koanf:"spacing" yaml:"spacing"`
	TargetHeight float64 `koanf:"target_height" yaml:"target_height"`
}

// Tube controls the tube walls and how far tubes extend past the stack.
type Tube struct {
	Wall     float64 `koanf:"wall" yaml:"wall"`
	Overhang float64 `koanf:"overhang" yaml:"overhang"`
}

// HeaderSide configures one header manifold.
type HeaderSide struct {
	Ports      [][]int `koanf:"ports" yaml:"ports"` // [col, row] of each connected tube
	StubOffset float64 `koanf:"stub_offset" yaml:"stub_offset"`
	StubLength float64 `koanf:"stub_length" yaml:"stub_length"`
}

// Header configures both header manifolds.
type Header struct {
	RadiusMultiplier float64    `koanf:"radius_multiplier" yaml:"radius_multiplier"`
	Standoff         float64    `koanf:"standoff" yaml:"standoff"` // coil end to header axis
	ConnectorMargin  float64    `koanf:"connector_margin" yaml:"connector_margin"`
	Bottom           HeaderSide `koanf:"bottom" yaml:"bottom"`
	Top              HeaderSide `koanf:"top" yaml:"top"`
}

// Bends holds the three connection tables. Each entry is
// [colA, rowA, colB, rowB].
type Bends struct {
	Top    [][]int `koanf:"top" yaml:"top"`
	Bottom [][]int `koanf:"bottom" yaml:"bottom"`
	Column [][]int `koanf:"column" yaml:"column"`
}

// Parameters is the complete, immutable description of one coil block.
type Parameters struct {
	Plate       Plate       `koanf:"plate" yaml:"plate"`
	Corrugation Corrugation `koanf:"corrugation" yaml:"corrugation"`
	Grid        Grid        `koanf:"grid" yaml:"grid"`
	Stack       Stack       `koanf:"stack" yaml:"stack"`
	Tube        Tube        `koanf:"tube" yaml:"tube"`
	Header      Header      `koanf:"header" yaml:"header"`
	Bends       Bends       `koanf:"bends" yaml:"bends"`
}

// Pair joins two grid cells.
type Pair struct {
	A, B grid.Coord
}

// Pairs converts a raw connection table. Entries must already have passed
// Validate.
func Pairs(table [][]int) []Pair {
	out := make([]Pair, 0, len(table))
	for _, e := range table {
		if len(e) != 4 {
			continue
		}
		out = append(out, Pair{A: grid.C(e[0], e[1]), B: grid.C(e[2], e[3])})
	}
	return out
}

// Ports converts a raw port list. Entries must already have passed
// Validate.
func Ports(list [][]int) []grid.Coord {
	out := make([]grid.Coord, 0, len(list))
	for _, e := range list {
		if len(e) != 2 {
			continue
		}
		out = append(out, grid.C(e[0], e[1]))
	}
	return out
}

// Default returns the reference coil block.
func Default() Parameters {
	return Parameters{
		Plate:       Plate{Width: 800, Depth: 600, Thickness: 1.0, Stations: 80},
		Corrugation: Corrugation{Amplitude: 0.4, Cycles: 12},
		Grid:        Grid{Columns: 8, Rows: 5, HoleDiameter: 12.0, StaggerRatio: 0.5},
		Stack:       Stack{Spacing: 5.0, TargetHeight: 1000.0},
		Tube:        Tube{Wall: 1.0, Overhang: 10.0},
		Header: Header{
			RadiusMultiplier: 8,
			Standoff:         120,
			ConnectorMargin:  1.0,
			Bottom:           HeaderSide{Ports: [][]int{{1, 1}, {8, 1}}, StubOffset: 250, StubLength: 80},
			Top:              HeaderSide{Ports: [][]int{{1, 5}, {8, 5}}, StubOffset: -250, StubLength: 80},
		},
		Bends: DefaultBends(),
	}
}

// DefaultBends returns the reference tables: two serpentine circuits over
// columns 1-4 and 5-8.
func DefaultBends() Bends {
	var b Bends
	for row := 1; row <= 5; row++ {
		for col := 1; col <= 7; col += 2 {
			b.Top = append(b.Top, []int{col, row, col + 1, row})
		}
	}
	for row := 1; row <= 5; row++ {
		b.Bottom = append(b.Bottom, []int{2, row, 3, row}, []int{6, row, 7, row})
	}
	b.Column = [][]int{
		{4, 1, 4, 2}, {1, 2, 1, 3}, {4, 3, 4, 4}, {1, 4, 1, 5},
		{5, 1, 5, 2}, {8, 2, 8, 3}, {5, 3, 5, 4}, {8, 4, 8, 5},
	}
	return b
}

// Preview returns a small block with the same topology as the reference
// that builds and meshes in seconds.
func Preview() Parameters {
	return Parameters{
		Plate:       Plate{Width: 60, Depth: 40, Thickness: 1.0, Stations: 20},
		Corrugation: Corrugation{Amplitude: 0.4, Cycles: 3},
		Grid:        Grid{Columns: 4, Rows: 2, HoleDiameter: 4.0, StaggerRatio: 0.5},
		Stack:       Stack{Spacing: 4.0, TargetHeight: 20.0},
		Tube:        Tube{Wall: 0.5, Overhang: 3.0},
		Header: Header{
			RadiusMultiplier: 2.5,
			Standoff:         20,
			ConnectorMargin:  0.5,
			Bottom:           HeaderSide{Ports: [][]int{{1, 1}, {4, 1}}, StubOffset: 8, StubLength: 6},
			Top:              HeaderSide{Ports: [][]int{{1, 2}, {4, 2}}, StubOffset: -8, StubLength: 6},
		},
		Bends: Bends{
			Top:    [][]int{{1, 1, 2, 1}, {3, 1, 4, 1}, {1, 2, 2, 2}, {3, 2, 4, 2}},
			Bottom: [][]int{{2, 1, 3, 1}, {2, 2, 3, 2}},
			Column: [][]int{{4, 1, 4, 2}},
		},
	}
}

// Presets are the named starting points a config can build on.
var Presets = map[string]func() Parameters{
	"reference": Default,
	"preview":   Preview,
}

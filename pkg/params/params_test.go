package params

import (
	"testing"

	"github.com/chazu/coilblock/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveReference(t *testing.T) {
	d, err := Default().Derive()
	require.NoError(t, err)

	assert.InDelta(t, 6.0, d.Pitch, 1e-12)
	assert.Equal(t, 167, d.PlateCount)
	assert.InDelta(t, 997.0, d.ActualHeight, 1e-9)
	assert.InDelta(t, 6.0, d.OuterR, 1e-12)
	assert.InDelta(t, 5.0, d.InnerR, 1e-12)
	assert.InDelta(t, 1017.0, d.TubeLength, 1e-9)
	assert.InDelta(t, -10.0, d.ZStart, 1e-12)
	assert.InDelta(t, 1007.0, d.ZEnd, 1e-9)
	assert.InDelta(t, 48.0, d.HeaderR, 1e-12)
	assert.Equal(t, 8, d.Layout.Columns)
	assert.Equal(t, 5, d.Layout.Rows)
	assert.Greater(t, d.OuterR, d.InnerR)
	assert.Greater(t, d.InnerR, 0.0)
}

func TestDerivePlateCount(t *testing.T) {
	tests := []struct {
		name      string
		thickness float64
		spacing   float64
		target    float64
		want      int
	}{
		{"reference", 1.0, 5.0, 1000.0, 167},
		{"exact fit", 1.0, 1.0, 9.0, 5},
		{"one plate", 2.0, 5.0, 2.0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			p.Plate.Thickness = tt.thickness
			p.Stack.Spacing = tt.spacing
			p.Stack.TargetHeight = tt.target
			d, err := p.Derive()
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.PlateCount)
			assert.LessOrEqual(t, d.ActualHeight, tt.target+1e-9)
		})
	}
}

func TestDefaultTables(t *testing.T) {
	b := DefaultBends()
	assert.Len(t, b.Top, 20)
	assert.Len(t, b.Bottom, 10)
	assert.Len(t, b.Column, 8)

	// Every tube is bent exactly once at the top.
	seen := map[grid.Coord]int{}
	for _, pr := range Pairs(b.Top) {
		seen[pr.A]++
		seen[pr.B]++
	}
	assert.Len(t, seen, 40)
	for c, n := range seen {
		assert.Equal(t, 1, n, "tube %s", c)
	}
}

func TestPairsAndPorts(t *testing.T) {
	assert.Equal(t, []Pair{{A: grid.C(1, 2), B: grid.C(3, 4)}}, Pairs([][]int{{1, 2, 3, 4}}))
	assert.Equal(t, []grid.Coord{grid.C(8, 1)}, Ports([][]int{{8, 1}}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Parameters)
		errSubstr string
	}{
		{"wall too thick", func(p *Parameters) { p.Tube.Wall = 6 }, "leaves no bore"},
		{"zero spacing", func(p *Parameters) { p.Stack.Spacing = 0 }, "stack.spacing"},
		{"no rows", func(p *Parameters) { p.Grid.Rows = 0 }, "grid.rows"},
		{"hole too wide", func(p *Parameters) { p.Grid.HoleDiameter = 150 }, "does not fit"},
		{"stagger of one", func(p *Parameters) { p.Grid.StaggerRatio = 1 }, "stagger_ratio"},
		{"standoff inside header", func(p *Parameters) { p.Header.Standoff = 40 }, "header.standoff"},
		{"port outside grid", func(p *Parameters) { p.Header.Top.Ports = [][]int{{9, 5}} }, "header.top.ports[0]"},
		{"short port", func(p *Parameters) { p.Header.Bottom.Ports = [][]int{{1}} }, "must be [col, row]"},
		{"stub past end", func(p *Parameters) { p.Header.Bottom.StubOffset = 380 }, "past the header end"},
		{"bend outside grid", func(p *Parameters) { p.Bends.Top = append(p.Bends.Top, []int{8, 5, 9, 5}) }, "outside the grid"},
		{"top bend across rows", func(p *Parameters) { p.Bends.Top[0] = []int{1, 1, 2, 2} }, "bends.top[0]"},
		{"column bend skips a row", func(p *Parameters) { p.Bends.Column[0] = []int{4, 1, 4, 3} }, "bends.column[0]"},
		{"short bend", func(p *Parameters) { p.Bends.Bottom[3] = []int{1, 2, 3} }, "bends.bottom[3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)

			_, err = p.Derive()
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	p := Default()
	p.Plate.Width = -1
	p.Tube.Overhang = -1
	p.Header.ConnectorMargin = -1
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plate.width")
	assert.Contains(t, err.Error(), "tube.overhang")
	assert.Contains(t, err.Error(), "header.connector_margin")
}

func TestPreview(t *testing.T) {
	d, err := Preview().Derive()
	require.NoError(t, err)
	assert.Equal(t, 4, d.PlateCount)
	assert.InDelta(t, 16.0, d.ActualHeight, 1e-12)
	assert.InDelta(t, 22.0, d.TubeLength, 1e-12)
	assert.InDelta(t, 5.0, d.HeaderR, 1e-12)
	assert.Equal(t, 8, d.Layout.Len())
}

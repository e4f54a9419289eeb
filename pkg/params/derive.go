package params

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/coilblock/pkg/grid"
)

// Derived holds the quantities computed once from Parameters.
type Derived struct {
	Pitch        float64 // plate thickness + spacing
	PlateCount   int
	ActualHeight float64
	OuterR       float64 // tube outer radius, equal to the hole radius
	InnerR       float64
	TubeLength   float64
	ZStart       float64 // bottom end of every tube
	ZEnd         float64 // top end of every tube
	HeaderR      float64
	Layout       grid.Layout
}

// Derive validates p and computes the derived quantities.
func (p Parameters) Derive() (Derived, error) {
	if err := p.Validate(); err != nil {
		return Derived{}, err
	}
	var d Derived
	d.Pitch = p.Plate.Thickness + p.Stack.Spacing
	d.PlateCount = int(math.Floor((p.Stack.TargetHeight + p.Stack.Spacing) / d.Pitch))
	if d.PlateCount < 1 {
		return Derived{}, fmt.Errorf("params: target height %.3f fits no plate", p.Stack.TargetHeight)
	}
	d.ActualHeight = float64(d.PlateCount)*p.Plate.Thickness + float64(d.PlateCount-1)*p.Stack.Spacing
	d.OuterR = p.Grid.HoleDiameter / 2
	d.InnerR = d.OuterR - p.Tube.Wall
	d.TubeLength = d.ActualHeight + 2*p.Tube.Overhang
	d.ZStart = -p.Tube.Overhang
	d.ZEnd = d.ZStart + d.TubeLength
	d.HeaderR = p.Header.RadiusMultiplier * d.OuterR
	d.Layout = grid.NewLayout(p.Plate.Width, p.Plate.Depth, p.Grid.Columns, p.Grid.Rows, p.Grid.StaggerRatio)
	return d, nil
}

// Validate reports every problem with p at once.
func (p Parameters) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(p.Plate.Width > 0, "plate.width must be positive, got %v", p.Plate.Width)
	check(p.Plate.Depth > 0, "plate.depth must be positive, got %v", p.Plate.Depth)
	check(p.Plate.Thickness > 0, "plate.thickness must be positive, got %v", p.Plate.Thickness)
	check(p.Plate.Stations >= 2, "plate.stations must be at least 2, got %d", p.Plate.Stations)
	check(p.Corrugation.Amplitude >= 0, "corrugation.amplitude must not be negative, got %v", p.Corrugation.Amplitude)
	check(p.Corrugation.Cycles >= 0, "corrugation.cycles must not be negative, got %v", p.Corrugation.Cycles)
	check(p.Grid.Columns >= 1, "grid.columns must be at least 1, got %d", p.Grid.Columns)
	check(p.Grid.Rows >= 1, "grid.rows must be at least 1, got %d", p.Grid.Rows)
	check(p.Grid.HoleDiameter > 0, "grid.hole_diameter must be positive, got %v", p.Grid.HoleDiameter)
	check(p.Grid.StaggerRatio >= 0 && p.Grid.StaggerRatio < 1, "grid.stagger_ratio must be in [0, 1), got %v", p.Grid.StaggerRatio)
	check(p.Stack.Spacing > 0, "stack.spacing must be positive, got %v", p.Stack.Spacing)
	check(p.Stack.TargetHeight >= p.Plate.Thickness, "stack.target_height must hold at least one plate, got %v", p.Stack.TargetHeight)
	check(p.Tube.Wall > 0, "tube.wall must be positive, got %v", p.Tube.Wall)
	check(p.Tube.Overhang >= 0, "tube.overhang must not be negative, got %v", p.Tube.Overhang)

	outerR := p.Grid.HoleDiameter / 2
	check(outerR-p.Tube.Wall > 0, "tube.wall %v leaves no bore in a %v hole", p.Tube.Wall, p.Grid.HoleDiameter)
	if p.Grid.Columns >= 1 && p.Grid.Rows >= 1 {
		sx := p.Plate.Width / float64(p.Grid.Columns+1)
		sy := p.Plate.Depth / float64(p.Grid.Rows+1)
		check(p.Grid.HoleDiameter < math.Min(sx, sy), "grid.hole_diameter %v does not fit the %.3f x %.3f cell", p.Grid.HoleDiameter, sx, sy)
	}

	headerR := p.Header.RadiusMultiplier * outerR
	check(p.Header.RadiusMultiplier > 1, "header.radius_multiplier must exceed 1, got %v", p.Header.RadiusMultiplier)
	check(headerR-p.Tube.Wall > 0, "header radius %v leaves no bore", headerR)
	check(p.Header.Standoff > headerR, "header.standoff %v must clear the header radius %v", p.Header.Standoff, headerR)
	check(p.Header.ConnectorMargin >= 0, "header.connector_margin must not be negative, got %v", p.Header.ConnectorMargin)

	for _, side := range []struct {
		name string
		h    HeaderSide
	}{{"bottom", p.Header.Bottom}, {"top", p.Header.Top}} {
		check(len(side.h.Ports) > 0, "header.%s.ports must list at least one tube", side.name)
		for i, port := range side.h.Ports {
			if len(port) != 2 {
				errs = append(errs, fmt.Errorf("header.%s.ports[%d] must be [col, row], got %v", side.name, i, port))
				continue
			}
			check(p.inGrid(port[0], port[1]), "header.%s.ports[%d] %v is outside the grid", side.name, i, port)
		}
		check(side.h.StubLength > 0, "header.%s.stub_length must be positive, got %v", side.name, side.h.StubLength)
		half := p.Plate.Width / 2
		check(math.Abs(side.h.StubOffset)+headerR < half, "header.%s.stub_offset %v puts the stub past the header end", side.name, side.h.StubOffset)
	}

	errs = append(errs, p.checkTable("bends.top", p.Bends.Top, sameRow)...)
	errs = append(errs, p.checkTable("bends.bottom", p.Bends.Bottom, sameRow)...)
	errs = append(errs, p.checkTable("bends.column", p.Bends.Column, adjacentRows)...)

	if len(errs) > 0 {
		return fmt.Errorf("params: invalid parameters:\n%w", errors.Join(errs...))
	}
	return nil
}

func (p Parameters) inGrid(col, row int) bool {
	return col >= 1 && col <= p.Grid.Columns && row >= 1 && row <= p.Grid.Rows
}

func sameRow(colA, rowA, colB, rowB int) bool {
	return rowA == rowB && colA != colB
}

func adjacentRows(colA, rowA, colB, rowB int) bool {
	return colA == colB && (rowA-rowB == 1 || rowB-rowA == 1)
}

func (p Parameters) checkTable(name string, table [][]int, shape func(colA, rowA, colB, rowB int) bool) []error {
	var errs []error
	for i, e := range table {
		if len(e) != 4 {
			errs = append(errs, fmt.Errorf("%s[%d] must be [colA, rowA, colB, rowB], got %v", name, i, e))
			continue
		}
		if !p.inGrid(e[0], e[1]) || !p.inGrid(e[2], e[3]) {
			errs = append(errs, fmt.Errorf("%s[%d] %v references a tube outside the grid", name, i, e))
			continue
		}
		if !shape(e[0], e[1], e[2], e[3]) {
			errs = append(errs, fmt.Errorf("%s[%d] %v does not join the right pair of tubes", name, i, e))
		}
	}
	return errs
}

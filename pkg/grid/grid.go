// Package grid places the hole and tube pattern shared by every stage.
//
// Columns and rows are 1-based. Every stage that needs the position of a
// cell goes through Layout.Anchor, so holes, tubes, bends and header
// drills cannot drift apart.
package grid

import "fmt"

// Coord addresses one cell of the tube grid.
type Coord struct {
	Col int `yaml:"col"`
	Row int `yaml:"row"`
}

// C is shorthand for Coord{col, row}.
func C(col, row int) Coord {
	return Coord{Col: col, Row: row}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// Layout is the staggered rectangular hole pattern.
type Layout struct {
	Columns      int
	Rows         int
	SpacingX     float64
	SpacingY     float64
	StaggerRatio float64
}

// NewLayout spaces columns and rows evenly across a width × depth plate,
// leaving one spacing of margin on every side.
func NewLayout(width, depth float64, columns, rows int, staggerRatio float64) Layout {
	return Layout{
		Columns:      columns,
		Rows:         rows,
		SpacingX:     width / float64(columns+1),
		SpacingY:     depth / float64(rows+1),
		StaggerRatio: staggerRatio,
	}
}

// Stagger returns the x offset of a row: even rows are shifted by
// StaggerRatio·SpacingX, odd rows not at all.
func (l Layout) Stagger(row int) float64 {
	if row%2 == 0 {
		return l.StaggerRatio * l.SpacingX
	}
	return 0
}

// Anchor returns the (x, y) of a cell's axis.
func (l Layout) Anchor(c Coord) (x, y float64) {
	return float64(c.Col)*l.SpacingX + l.Stagger(c.Row), float64(c.Row) * l.SpacingY
}

// Contains reports whether c lies inside the grid.
func (l Layout) Contains(c Coord) bool {
	return c.Col >= 1 && c.Col <= l.Columns && c.Row >= 1 && c.Row <= l.Rows
}

// Len returns the number of cells.
func (l Layout) Len() int {
	return l.Columns * l.Rows
}

// Index returns the dense, column-major index of c.
func (l Layout) Index(c Coord) int {
	return (c.Col-1)*l.Rows + (c.Row - 1)
}

// Coords lists every cell in column-major order.
func (l Layout) Coords() []Coord {
	out := make([]Coord, 0, l.Len())
	for col := 1; col <= l.Columns; col++ {
		for row := 1; row <= l.Rows; row++ {
			out = append(out, C(col, row))
		}
	}
	return out
}

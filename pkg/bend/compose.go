package bend

import "github.com/chazu/coilblock/pkg/kernel"

// Part is one body a composite contributes to the scene.
type Part struct {
	Role  string // "bend+tubes", "bend", "tube A" or "tube B"
	Solid kernel.Solid
}

// Composite is the outcome of joining a bend to its two tubes: either
// Fused or Disjoint. Both are added to the scene the same way.
type Composite interface {
	Parts() []Part
	composite()
}

// Fused is a bend fused with both of its tubes into one body.
type Fused struct {
	Body kernel.Solid
}

func (f Fused) Parts() []Part {
	return []Part{{Role: "bend+tubes", Solid: f.Body}}
}

func (Fused) composite() {}

// Disjoint holds a bend and its two tubes as separate bodies after a
// fuse failed. They still touch, so the flow path is unbroken.
type Disjoint struct {
	Bend, A, B kernel.Solid
	Cause      error
}

func (d Disjoint) Parts() []Part {
	return []Part{
		{Role: "bend", Solid: d.Bend},
		{Role: "tube A", Solid: d.A},
		{Role: "tube B", Solid: d.B},
	}
}

func (Disjoint) composite() {}

// Compose fuses bend with tubeA and then with tubeB. If either fuse or
// the check of the fused body fails the three solids are returned
// unfused. Compose never fails.
func Compose(k kernel.Kernel, bend, tubeA, tubeB kernel.Solid) Composite {
	body, err := k.Fuse(bend, tubeA)
	if err == nil {
		body, err = k.Fuse(body, tubeB)
	}
	if err == nil {
		err = k.Check(body)
	}
	if err != nil {
		return Disjoint{Bend: bend, A: tubeA, B: tubeB, Cause: err}
	}
	return Fused{Body: body}
}

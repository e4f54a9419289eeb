package pipeline

import (
	"time"

	"github.com/chazu/coilblock/pkg/bend"
	"github.com/chazu/coilblock/pkg/export"
)

// Report summarises one run.
type Report struct {
	Plates    int            `yaml:"plates"`
	Height    float64        `yaml:"stack_height"`
	Tubes     int            `yaml:"tubes"`
	Bends     []PassReport   `yaml:"bends"`
	Headers   []HeaderReport `yaml:"headers"`
	Solids    int            `yaml:"solids"`
	BoundsMin [3]float64     `yaml:"bounds_min,flow"`
	BoundsMax [3]float64     `yaml:"bounds_max,flow"`
	Export    *export.Stats  `yaml:"export,omitempty"`
	Elapsed   time.Duration  `yaml:"elapsed"`
}

// PassReport counts the outcome of one bend pass.
type PassReport struct {
	Kind     string   `yaml:"kind"`
	Total    int      `yaml:"total"`
	Fused    int      `yaml:"fused"`
	Disjoint []string `yaml:"disjoint,omitempty,flow"` // specs kept as separate parts
}

// HeaderReport is the final state of one header.
type HeaderReport struct {
	Side  string `yaml:"side"`
	State string `yaml:"state"`
	Ports int    `yaml:"ports"`
}

// NewReport summarises a built assembly.
func NewReport(a *Assembly) *Report {
	rep := &Report{
		Plates: a.Derived.PlateCount,
		Height: a.Derived.ActualHeight,
		Tubes:  a.Tubes.Len(),
		Solids: a.Scene.Len(),
	}
	for i, results := range a.Bends {
		pr := PassReport{Kind: bend.Kind(i).String(), Total: len(results)}
		for _, res := range results {
			if res.Fused() {
				pr.Fused++
			} else {
				pr.Disjoint = append(pr.Disjoint, res.Spec.String())
			}
		}
		rep.Bends = append(rep.Bends, pr)
	}
	for _, h := range a.Headers {
		rep.Headers = append(rep.Headers, HeaderReport{
			Side:  h.Side.String(),
			State: h.State.String(),
			Ports: len(h.Ports),
		})
	}
	rep.BoundsMin, rep.BoundsMax, _ = a.Scene.Bounds()
	return rep
}

// Disjoint returns the number of bends kept as separate parts.
func (r *Report) Disjoint() int {
	n := 0
	for _, p := range r.Bends {
		n += len(p.Disjoint)
	}
	return n
}

package bend

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/scene"
	"github.com/chazu/coilblock/pkg/tube"
)

// Result is one routed bend as it entered the scene.
type Result struct {
	Spec      Spec
	Composite Composite
	Handles   []scene.Handle
}

// Fused reports whether the bend was fused with its tubes.
func (r Result) Fused() bool {
	_, ok := r.Composite.(Fused)
	return ok
}

// Router builds bends between tubes of a grid.
//
// Bends of one pass are independent, so up to Workers of them are built
// at once. Results always enter the scene in table order.
type Router struct {
	Kernel  kernel.Kernel
	Derived params.Derived
	Tubes   *tube.Grid
	Workers int
	Logger  *log.Logger
}

func (r *Router) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

// Geometry lays out the bend for s from the tube anchors.
func (r *Router) Geometry(s Spec) (Geometry, error) {
	ta, okA := r.Tubes.At(s.A)
	tb, okB := r.Tubes.At(s.B)
	if !okA || !okB {
		return Geometry{}, fmt.Errorf("bend references a missing tube: %w", kernel.ErrConstruction)
	}
	switch s.Kind {
	case TopRow:
		return SameRow(ta.Top(r.Derived.TubeLength), tb.Top(r.Derived.TubeLength), true)
	case BottomRow:
		return SameRow(ta.Anchor, tb.Anchor, false)
	case Column:
		return ColumnArc(ta.Anchor, tb.Anchor)
	}
	return Geometry{}, fmt.Errorf("unknown bend kind %s: %w", s.Kind, kernel.ErrConstruction)
}

// build makes the hollow bend for s and composes it with its tubes. Only
// fuse failures are absorbed; anything else is fatal.
func (r *Router) build(s Spec) (Composite, error) {
	g, err := r.Geometry(s)
	if err != nil {
		return nil, kernel.Fail(s.Kind.String()+" bend", s, err)
	}
	pipe, err := Pipe(r.Kernel, g, r.Derived.OuterR, r.Derived.InnerR)
	if err != nil {
		return nil, kernel.Fail(s.Kind.String()+" bend", s, err)
	}
	if err := r.Kernel.Check(pipe); err != nil {
		return nil, kernel.Fail(s.Kind.String()+" bend", s, err)
	}
	ta, _ := r.Tubes.At(s.A)
	tb, _ := r.Tubes.At(s.B)
	return Compose(r.Kernel, pipe, ta.Solid, tb.Solid), nil
}

// Route builds every spec of one pass and adds the results to sc in
// spec order.
func (r *Router) Route(ctx context.Context, sc *scene.Scene, specs []Spec) ([]Result, error) {
	composites := make([]Composite, len(specs))

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, s := range specs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			c, err := r.build(s)
			if err != nil {
				return err
			}
			composites[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(specs))
	for i, s := range specs {
		c := composites[i]
		if d, ok := c.(Disjoint); ok {
			r.logger().Warn("bend fuse failed, keeping parts separate",
				"kind", s.Kind, "a", s.A, "b", s.B, "cause", d.Cause)
		}
		res := Result{Spec: s, Composite: c}
		for _, part := range c.Parts() {
			name := fmt.Sprintf("%s bend %s %s", s.Kind, s, part.Role)
			h, err := sc.Add(name, part.Solid)
			if err != nil {
				return nil, kernel.Fail(s.Kind.String()+" bend", s, err)
			}
			res.Handles = append(res.Handles, h)
		}
		results = append(results, res)
	}
	return results, nil
}

// Package pipeline runs the full coil block build: plate, stack, tubes,
// the three bend passes, both headers, then tessellation and export.
//
// The Runner owns the scene for one run and hands it to each builder in
// turn. Stages run in a fixed order; cancellation is checked between
// stages and inside the bend and tessellation worker pools.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chazu/coilblock/pkg/bend"
	"github.com/chazu/coilblock/pkg/export"
	"github.com/chazu/coilblock/pkg/header"
	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/plate"
	"github.com/chazu/coilblock/pkg/scene"
	"github.com/chazu/coilblock/pkg/tessellate"
	"github.com/chazu/coilblock/pkg/tube"
)

// Runner builds coil blocks with one kernel.
type Runner struct {
	Kernel  kernel.Kernel
	Workers int
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(k kernel.Kernel, workers int, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{Kernel: k, Workers: workers, Logger: logger}
}

// Assembly is a built block before export.
type Assembly struct {
	Params  params.Parameters
	Derived params.Derived
	Scene   *scene.Scene
	Tubes   *tube.Grid
	Bends   [][]bend.Result // one slice per pass: top, bottom, column
	Headers []*header.Header
}

// progress logs completion of a stage with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// Build constructs every solid of the block and returns the populated
// scene. It does not tessellate.
func (r *Runner) Build(ctx context.Context, p params.Parameters) (*Assembly, error) {
	d, err := p.Derive()
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("derived parameters",
		"plates", d.PlateCount,
		"height", d.ActualHeight,
		"tube_length", d.TubeLength,
		"outer_r", d.OuterR,
		"inner_r", d.InnerR,
		"header_r", d.HeaderR)

	a := &Assembly{Params: p, Derived: d, Scene: scene.New(r.Kernel.Check)}

	// Stage 1: plate and stack
	prog := newProgress(r.Logger)
	slab, err := (&plate.Builder{Kernel: r.Kernel, Params: p, Derived: d}).Build()
	if err != nil {
		return nil, err
	}
	if _, err := plate.Stack(r.Kernel, a.Scene, slab, d.PlateCount, d.Pitch); err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Stacked %d plates", d.PlateCount))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: tubes
	prog = newProgress(r.Logger)
	a.Tubes, err = (&tube.Builder{Kernel: r.Kernel, Derived: d}).Build(a.Scene)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Built %d tubes", a.Tubes.Len()))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: bends, one pass per kind
	router := &bend.Router{
		Kernel:  r.Kernel,
		Derived: d,
		Tubes:   a.Tubes,
		Workers: r.Workers,
		Logger:  r.Logger,
	}
	for _, specs := range bend.AllSpecs(p.Bends) {
		if len(specs) == 0 {
			a.Bends = append(a.Bends, nil)
			continue
		}
		prog = newProgress(r.Logger)
		results, err := router.Route(ctx, a.Scene, specs)
		if err != nil {
			return nil, err
		}
		a.Bends = append(a.Bends, results)
		prog.done(fmt.Sprintf("Routed %d %s bends", len(results), specs[0].Kind))
	}

	// Stage 4: headers, bottom then top
	hb := &header.Builder{Kernel: r.Kernel, Params: p, Derived: d, Tubes: a.Tubes}
	for _, side := range []header.Side{header.Bottom, header.Top} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prog = newProgress(r.Logger)
		h, err := hb.Build(a.Scene, side)
		if err != nil {
			return nil, err
		}
		a.Headers = append(a.Headers, h)
		prog.done(fmt.Sprintf("Built %s header (%s)", side, h.State))
	}

	return a, nil
}

// Run builds the block, tessellates it and writes it to out.
func (r *Runner) Run(ctx context.Context, p params.Parameters, out string) (*Report, error) {
	start := time.Now()
	a, err := r.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog := newProgress(r.Logger)
	meshes, err := tessellate.Scene(ctx, a.Scene, r.Kernel, r.Workers)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Tessellated %d solids", len(meshes)))

	prog = newProgress(r.Logger)
	stats, err := export.Writer{Path: out, Logger: r.Logger}.Write(meshes)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Wrote %s", out))

	rep := NewReport(a)
	rep.Export = &stats
	rep.Elapsed = time.Since(start).Round(time.Millisecond)
	return rep, nil
}

// Package tessellate turns the entries of a scene into triangle meshes
// using a geometry kernel. One mesh is produced per entry.
package tessellate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/chazu/coilblock/pkg/scene"
)

// Tessellate meshes every entry, running up to workers conversions at
// once. Meshes come back in entry order, each named after its entry. The
// tessellator is read-only and never mutates the scene.
func Tessellate(ctx context.Context, entries []scene.Entry, k kernel.Kernel, workers int) ([]*kernel.Mesh, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}

	meshes := make([]*kernel.Mesh, len(entries))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, e := range entries {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			m, err := k.ToMesh(e.Solid)
			if err != nil {
				return fmt.Errorf("tessellate: ToMesh failed for %s: %w", e.Name, err)
			}
			// Copies may share arrays with a cached mesh; only the name
			// is set here.
			named := *m
			named.PartName = e.Name
			meshes[i] = &named
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// Scene meshes every entry of sc.
func Scene(ctx context.Context, sc *scene.Scene, k kernel.Kernel, workers int) ([]*kernel.Mesh, error) {
	return Tessellate(ctx, sc.Entries(), k, workers)
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chazu/coilblock/pkg/pipeline"
)

// renderSummary prints the run report as a table.
func renderSummary(w io.Writer, rep *pipeline.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Count", "Detail"})

	t.AppendRow(table.Row{"plates", rep.Plates, fmt.Sprintf("stack height %.3f", rep.Height)})
	t.AppendRow(table.Row{"tubes", rep.Tubes, ""})
	for _, b := range rep.Bends {
		detail := fmt.Sprintf("%d fused", b.Fused)
		if len(b.Disjoint) > 0 {
			detail += ", separate: " + strings.Join(b.Disjoint, " ")
		}
		t.AppendRow(table.Row{b.Kind + " bends", b.Total, detail})
	}
	for _, h := range rep.Headers {
		t.AppendRow(table.Row{h.Side + " header", h.Ports, h.State})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"solids", rep.Solids, fmt.Sprintf("%.1f x %.1f x %.1f",
		rep.BoundsMax[0]-rep.BoundsMin[0],
		rep.BoundsMax[1]-rep.BoundsMin[1],
		rep.BoundsMax[2]-rep.BoundsMin[2])})
	if rep.Export != nil {
		t.AppendRow(table.Row{"3MF objects", rep.Export.Objects, fmt.Sprintf("%s, %d items, %d triangles",
			rep.Export.Path, rep.Export.Items, rep.Export.Triangles)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%s)\n", rep.Elapsed)
}

package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic/score"
	"github.com/wcharczuk/go-chart/v2"
)

const GridPlotFile = "grid_validation.png"

type gridCurve struct {
	h2     float64
	sparse bool
}

// PlotGrid draws the validation statistic of every defined grid candidate
// against log10(p), one line per (h2, sparse) pair.
func PlotGrid(path string, records []score.Record) error {
	xs := make(map[gridCurve][]float64)
	ys := make(map[gridCurve][]float64)
	curves := make([]gridCurve, 0)
	for _, r := range records {
		if r.Method != MethodGrid || !r.Defined() || math.IsInf(r.Statistic, 0) {
			continue
		}
		c := gridCurve{h2: r.H2, sparse: r.Sparse}
		if _, exists := xs[c]; !exists {
			curves = append(curves, c)
		}
		xs[c] = append(xs[c], math.Log10(r.P))
		ys[c] = append(ys[c], r.Statistic)
	}
	if len(curves) == 0 {
		return fmt.Errorf("no grid candidate has a finite validation statistic")
	}
	sort.Slice(curves, func(i, j int) bool {
		if curves[i].sparse != curves[j].sparse {
			return !curves[i].sparse
		}
		return curves[i].h2 < curves[j].h2
	})

	series := make([]chart.Series, 0, len(curves))
	for _, c := range curves {
		name := fmt.Sprintf("h2 %g", c.h2)
		if c.sparse {
			name += " sparse"
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs[c],
			YValues: ys[c],
		})
	}

	graph := chart.Chart{
		Title:  "LDpred2-grid",
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Name: "log10(p)",
		},
		YAxis: chart.YAxis{
			Name: "validation statistic",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return pfx.Err(err)
	}

	outFile, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer outFile.Close()
	if _, err := buffer.WriteTo(outFile); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(outFile.Close())
}

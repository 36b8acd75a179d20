package ldmatrix

import (
	"fmt"
	"math"

	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/floats"
)

type CorrOptions struct {
	// Variants further apart than Window, in the units of pos, are not
	// correlated.
	Window float64

	// Correlations with r^2 below ThrR2 are dropped.
	ThrR2 float64
}

// Correlation computes the banded Pearson correlation between the columns
// cols of m over rows (all rows when nil). pos must be non-decreasing. Missing
// dosages are replaced by the column mean. The result is indexed locally:
// entry k describes cols[k].
func Correlation(m genotype.Matrix, cols []int, rows []int, pos []float64, opts CorrOptions) ([]Column, error) {
	if len(pos) != len(cols) {
		return nil, fmt.Errorf("%d positions for %d columns", len(pos), len(cols))
	}

	n := m.NSamples()
	if rows != nil {
		n = len(rows)
	}
	buf := make([]float64, n)

	block := make([]Column, len(cols))
	std := make([][]float64, len(cols))
	start := 0
	for j := range cols {
		if j > 0 && pos[j] < pos[j-1] {
			return nil, fmt.Errorf("positions decrease at column %d (%v after %v)", cols[j], pos[j], pos[j-1])
		}

		x, err := standardize(m, cols[j], rows, buf)
		if err != nil {
			return nil, err
		}
		std[j] = x

		for start < j && pos[j]-pos[start] > opts.Window {
			std[start] = nil
			start++
		}

		for i := start; i < j; i++ {
			r := floats.Dot(std[i], x)
			if r == 0 || r*r < opts.ThrR2 {
				continue
			}
			block[i].Rows = append(block[i].Rows, j)
			block[i].Values = append(block[i].Values, r)
			block[j].Rows = append(block[j].Rows, i)
			block[j].Values = append(block[j].Values, r)
		}

		block[j].Rows = append(block[j].Rows, j)
		block[j].Values = append(block[j].Values, 1)
	}

	return block, nil
}

// standardize returns column col centred on its mean, with missing values at
// the mean, scaled to unit norm. A constant column is all zeros.
func standardize(m genotype.Matrix, col int, rows []int, buf []float64) ([]float64, error) {
	if err := m.Dosages(col, rows, buf); err != nil {
		return nil, err
	}

	rs := runningvariance.NewRunningStat()
	for _, d := range buf {
		if !math.IsNaN(d) {
			rs.Push(d)
		}
	}

	x := make([]float64, len(buf))
	if rs.N < 2 || rs.StandardDeviation() == 0 {
		return x, nil
	}

	mean := rs.Mean()
	for i, d := range buf {
		if !math.IsNaN(d) {
			x[i] = d - mean
		}
	}

	norm := floats.Norm(x, 2)
	if norm == 0 {
		return x, nil
	}
	floats.Scale(1/norm, x)

	return x, nil
}

// Package score applies candidate effect vectors to genotypes, rates them on
// a validation split and picks the best one.
package score

import (
	"fmt"
	"math"

	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/carbocation/runningvariance"
)

// Predict computes G[rows, matched] %*% beta. Missing genotypes count as the
// column mean over rows.
func Predict(m genotype.Matrix, matched []snpmatch.Matched, beta []float64, rows []int) ([]float64, error) {
	out, err := PredictMany(m, matched, [][]float64{beta}, rows)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// PredictMany scores several effect vectors while reading each genotype
// column once. A vector with any non-finite effect scores NaN for everyone.
func PredictMany(m genotype.Matrix, matched []snpmatch.Matched, betas [][]float64, rows []int) ([][]float64, error) {
	n := m.NSamples()
	if rows != nil {
		n = len(rows)
	}

	out := make([][]float64, len(betas))
	usable := make([]bool, len(betas))
	for k, beta := range betas {
		if len(beta) != len(matched) {
			return nil, fmt.Errorf("effect vector %d has %d entries for %d variants", k, len(beta), len(matched))
		}
		out[k] = make([]float64, n)
		usable[k] = finite(beta)
		if !usable[k] {
			for i := range out[k] {
				out[k][i] = math.NaN()
			}
		}
	}

	buf := make([]float64, n)
	for j, v := range matched {
		if err := m.Dosages(v.GenotypeIndex, rows, buf); err != nil {
			return nil, err
		}

		rs := runningvariance.NewRunningStat()
		for _, d := range buf {
			if !math.IsNaN(d) {
				rs.Push(d)
			}
		}
		mean := 0.0
		if rs.N > 0 {
			mean = rs.Mean()
		}

		for k, beta := range betas {
			if !usable[k] || beta[j] == 0 {
				continue
			}
			for i, d := range buf {
				if math.IsNaN(d) {
					d = mean
				}
				out[k][i] += beta[j] * d
			}
		}
	}

	return out, nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

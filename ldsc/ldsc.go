// Package ldsc estimates SNP heritability by LD-score regression.
package ldsc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Chi2Cutoff excludes large-effect variants from the intercept fit.
const Chi2Cutoff = 30

const reweightIterations = 2

type Result struct {
	Intercept float64
	H2        float64
}

// Regress fits E[chi2] = intercept + n_eff * h2 / M * l. The intercept is
// estimated on variants with chi2 below Chi2Cutoff, then held fixed while h2
// is refit on all variants. Weights follow the usual inverse LD score and
// heteroscedasticity correction, updated from each fit.
func Regress(ldScores, chi2, nEff []float64, M int) (Result, error) {
	n := len(ldScores)
	if len(chi2) != n || len(nEff) != n {
		return Result{}, fmt.Errorf("ldsc: %d LD scores, %d chi2 and %d sample sizes", n, len(chi2), len(nEff))
	}
	if n < 3 || M < 1 {
		return Result{}, fmt.Errorf("ldsc: too few variants (%d)", n)
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = nEff[i] * ldScores[i] / float64(M)
	}

	h2 := clamp((stat.Mean(chi2, nil)-1)/stat.Mean(x, nil), 1e-4, 1)
	intercept := 1.0

	var xs, ys, ls []float64
	for i := range chi2 {
		if chi2[i] < Chi2Cutoff {
			xs = append(xs, x[i])
			ys = append(ys, chi2[i])
			ls = append(ls, ldScores[i])
		}
	}
	if len(xs) < 3 {
		return Result{}, fmt.Errorf("ldsc: only %d variants with chi2 < %d", len(xs), Chi2Cutoff)
	}

	w := make([]float64, len(xs))
	for iter := 0; iter < reweightIterations; iter++ {
		weights(w, xs, ls, intercept, h2)
		alpha, beta := stat.LinearRegression(xs, ys, w, false)
		intercept, h2 = alpha, clamp(beta, 1e-4, 1)
	}

	w = make([]float64, n)
	for iter := 0; iter < reweightIterations; iter++ {
		weights(w, x, ldScores, intercept, h2)
		num, den := 0.0, 0.0
		for i := range x {
			num += w[i] * x[i] * (chi2[i] - intercept)
			den += w[i] * x[i] * x[i]
		}
		h2 = num / den
	}

	if math.IsNaN(h2) || h2 <= 0 || floats.HasNaN(w) {
		return Result{Intercept: intercept, H2: h2}, fmt.Errorf("ldsc: heritability estimate %g is not positive", h2)
	}

	return Result{Intercept: intercept, H2: h2}, nil
}

func weights(w, x, l []float64, intercept, h2 float64) {
	for i := range w {
		v := intercept + h2*x[i]
		if v < 1 {
			v = 1
		}
		w[i] = 1 / (math.Max(l[i], 1) * 2 * v * v)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package ldpred

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	infTol     = 1e-10
	infMaxIter = 10000
)

// Inf is LDpred2-inf: the posterior mean under an infinitesimal model, the
// solution of (R + diag(M / (N h2))) b = b_hat, found by conjugate gradient.
// The result is on the per-allele scale, all NaN if the solver fails.
func Inf(in *Input, h2 float64) ([]float64, error) {
	m := in.M()
	diag := make([]float64, m)
	for j := range diag {
		diag[j] = float64(m) / (in.N[j] * h2)
	}

	apply := func(x, dst []float64) error {
		if err := mulVec(in.Corr, x, dst); err != nil {
			return err
		}
		for j := range dst {
			dst[j] += diag[j] * x[j]
		}
		return nil
	}

	x := make([]float64, m)
	r := append([]float64(nil), in.BetaHat...)
	p := append([]float64(nil), r...)
	ap := make([]float64, m)

	rr := floats.Dot(r, r)
	stop := infTol * infTol * math.Max(rr, math.SmallestNonzeroFloat64)
	for iter := 0; iter < infMaxIter && rr > stop; iter++ {
		if err := apply(p, ap); err != nil {
			return nil, err
		}

		alpha := rr / floats.Dot(p, ap)
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		rrNext := floats.Dot(r, r)
		floats.AddScaledTo(p, r, rrNext/rr, p)
		rr = rrNext
	}

	if rr > stop*1e6 || !allFinite(x) {
		return NaNVector(m), nil
	}

	return in.Unscale(x), nil
}

package ldpred

import (
	"context"
	"log"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

type LassoOptions struct {
	Deltas         []float64
	NLambda        int
	LambdaMinRatio float64
	MaxIter        int
	Tol            float64
	Workers        int
}

func DefaultLassoOptions() LassoOptions {
	return LassoOptions{
		Deltas:         []float64{0.001, 0.01, 0.1, 1},
		NLambda:        30,
		LambdaMinRatio: 0.01,
		MaxIter:        500,
		Tol:            1e-5,
		Workers:        1,
	}
}

// LassoFit is one (delta, lambda) solution.
type LassoFit struct {
	Delta    float64 `csv:"delta"`
	Lambda   float64 `csv:"lambda"`
	NumIter  int     `csv:"num_iter"`
	Beta     []float64
	Diverged bool
}

// Lambdas is the decreasing log-spaced penalty path from max|b_hat| down to
// ratio times that.
func Lambdas(betaHat []float64, n int, ratio float64) []float64 {
	hi := 0.0
	for _, b := range betaHat {
		hi = math.Max(hi, math.Abs(b))
	}
	if hi == 0 {
		hi = 1
	}

	out := seqLog(ratio*hi, hi, n)
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// Lassosum2 solves the penalized regression by coordinate descent,
// b_j = sign(u)(|u| - lambda)_+ / (1 + delta), for each delta along the
// decreasing lambda path, warm-starting each lambda from the previous one.
// Fits come back grouped by delta in the order of opts.Deltas.
func Lassosum2(ctx context.Context, in *Input, opts LassoOptions) ([]LassoFit, error) {
	lambdas := Lambdas(in.BetaHat, opts.NLambda, opts.LambdaMinRatio)
	out := make([]LassoFit, len(opts.Deltas)*len(lambdas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(opts.Workers, 1))
	for d, delta := range opts.Deltas {
		d, delta := d, delta
		g.Go(func() error {
			fits, err := lassoPath(gctx, in, delta, lambdas, opts)
			if err != nil {
				return err
			}
			copy(out[d*len(lambdas):], fits)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	diverged := 0
	for _, f := range out {
		if f.Diverged {
			diverged++
		}
	}
	log.Printf("lassosum2: %d of %d models diverged\n", diverged, len(out))

	return out, nil
}

func lassoPath(ctx context.Context, in *Input, delta float64, lambdas []float64, opts LassoOptions) ([]LassoFit, error) {
	m := in.M()
	curr := make([]float64, m)
	dotprods := make([]float64, m)

	out := make([]LassoFit, len(lambdas))
	for l, lambda := range lambdas {
		fit := LassoFit{Delta: delta, Lambda: lambda}

		converged := false
		for iter := 1; iter <= opts.MaxIter; iter++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fit.NumIter = iter

			maxDiff := 0.0
			for j := 0; j < m; j++ {
				c, err := in.Corr.Column(j)
				if err != nil {
					return nil, err
				}

				u := in.BetaHat[j] - (dotprods[j] - curr[j])
				next := 0.0
				if a := math.Abs(u) - lambda; a > 0 {
					next = math.Copysign(a, u) / (1 + delta)
				}

				if diff := next - curr[j]; diff != 0 {
					curr[j] = next
					addColumn(dotprods, c, diff)
					maxDiff = math.Max(maxDiff, math.Abs(diff))
				}
			}

			if !finiteQuadForm(curr, dotprods) {
				break
			}
			if maxDiff < opts.Tol {
				converged = true
				break
			}
		}

		if converged {
			fit.Beta = in.Unscale(curr)
		} else {
			fit.Diverged = true
			fit.Beta = NaNVector(m)
			// Later lambdas start over rather than from a failed solution
			for j := range curr {
				curr[j] = 0
				dotprods[j] = 0
			}
		}
		if floats.HasNaN(fit.Beta) && !fit.Diverged {
			fit.Diverged = true
		}

		out[l] = fit
	}

	return out, nil
}

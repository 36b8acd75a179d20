package ldpred

import (
	"context"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// Param is one point of the LDpred2-grid.
type Param struct {
	P      float64 `csv:"p"`
	H2     float64 `csv:"h2"`
	Sparse bool    `csv:"sparse"`
}

// ParamGrid is the default LDpred2 grid around a heritability estimate:
// h2 scaled by 0.3, 0.7, 1 and 1.4; 21 causal proportions from 1e-5 to 1;
// dense and sparse. p varies fastest, then h2, then sparsity.
func ParamGrid(h2 float64) []Param {
	ps := seqLog(1e-5, 1, 21)
	for i := range ps {
		ps[i] = signif(ps[i], 2)
	}

	out := make([]Param, 0, 2*4*len(ps))
	for _, sparse := range []bool{false, true} {
		for _, f := range []float64{0.3, 0.7, 1, 1.4} {
			for _, p := range ps {
				out = append(out, Param{P: p, H2: roundTo(h2*f, 4), Sparse: sparse})
			}
		}
	}

	return out
}

type GridOptions struct {
	BurnIn  int
	NumIter int
	Workers int
	Seed    int64
}

func DefaultGridOptions() GridOptions {
	return GridOptions{BurnIn: 50, NumIter: 100, Workers: 1, Seed: 1}
}

// Fit is the result of one estimator configuration. Beta is per-allele and
// all NaN when Diverged.
type Fit struct {
	Param
	Beta     []float64
	Diverged bool
}

// Grid runs one Gibbs sampler per parameter set and returns the posterior
// mean effects, in the order of params. Each point draws from its own
// generator seeded from opts.Seed and its index.
func Grid(ctx context.Context, in *Input, params []Param, opts GridOptions) ([]Fit, error) {
	out := make([]Fit, len(params))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(opts.Workers, 1))
	for k, par := range params {
		k, par := k, par
		g.Go(func() error {
			src := rand.NewSource(uint64(opts.Seed) + uint64(k))
			beta, ok, err := gibbsGrid(gctx, in, par, opts, src)
			if err != nil {
				return err
			}

			out[k] = Fit{Param: par, Diverged: !ok}
			if ok {
				out[k].Beta = in.Unscale(beta)
			} else {
				out[k].Beta = NaNVector(in.M())
			}
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
	log.Printf("LDpred2-grid: %d of %d models diverged\n", diverged, len(out))

	return out, nil
}

// gibbsGrid returns the standardized posterior mean and whether the chain
// stayed finite with b' R b <= 1.
func gibbsGrid(ctx context.Context, in *Input, par Param, opts GridOptions, src rand.Source) ([]float64, bool, error) {
	m := in.M()
	rng := rand.New(src)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	curr := make([]float64, m)
	avg := make([]float64, m)
	dotprods := make([]float64, m)

	h2PerVar := par.H2 / (float64(m) * par.P)
	invOddP := (1 - par.P) / par.P

	for iter := 0; iter < opts.BurnIn+opts.NumIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		for j := 0; j < m; j++ {
			c, err := in.Corr.Column(j)
			if err != nil {
				return nil, false, err
			}

			resid := in.BetaHat[j] - (dotprods[j] - curr[j])
			C1 := h2PerVar * in.N[j]
			C2 := 1 / (1 + 1/C1)
			mean := C2 * resid
			postp := 1 / (1 + invOddP*math.Sqrt(1+C1)*math.Exp(-0.5*in.N[j]*C2*resid*resid))

			// In sparse mode unlikely effects are exactly zero.
			next := 0.0
			if !par.Sparse || postp >= par.P {
				if rng.Float64() < postp {
					next = mean + math.Sqrt(C2/in.N[j])*norm.Rand()
				}
				if iter >= opts.BurnIn {
					avg[j] += postp * mean
				}
			}

			if diff := next - curr[j]; diff != 0 {
				curr[j] = next
				addColumn(dotprods, c, diff)
			}
		}

		if !finiteQuadForm(curr, dotprods) {
			return nil, false, nil
		}
	}

	for j := range avg {
		avg[j] /= float64(opts.NumIter)
	}

	return avg, allFinite(avg), nil
}

// finiteQuadForm checks that b' R b, the heritability explained by b, is a
// number no larger than 1.
func finiteQuadForm(b, rb []float64) bool {
	q := 0.0
	for j := range b {
		q += b[j] * rb[j]
	}
	return !math.IsNaN(q) && !math.IsInf(q, 0) && q <= 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package ldpred

import (
	"context"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

type AutoOptions struct {
	NChains int
	BurnIn  int
	NumIter int
	Workers int
	Seed    int64

	// Initial causal proportions are spread on a log scale over
	// [PInitMin, PInitMax], one per chain.
	PInitMin float64
	PInitMax float64
}

func DefaultAutoOptions() AutoOptions {
	return AutoOptions{
		NChains:  30,
		BurnIn:   500,
		NumIter:  200,
		Workers:  1,
		Seed:     1,
		PInitMin: 1e-4,
		PInitMax: 0.2,
	}
}

// Chain is one LDpred2-auto run. PPath and H2Path hold every iteration,
// burn-in included.
type Chain struct {
	PInit    float64
	PEst     float64
	H2Est    float64
	Beta     []float64
	PPath    []float64
	H2Path   []float64
	Diverged bool
}

// Auto runs LDpred2-auto: p and h2 are sampled along with the effects. A
// chain diverges when an effect goes non-finite or h2 leaves [1e-4, 1].
func Auto(ctx context.Context, in *Input, h2Init float64, opts AutoOptions) ([]Chain, error) {
	pInits := seqLog(opts.PInitMin, opts.PInitMax, opts.NChains)
	out := make([]Chain, opts.NChains)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(opts.Workers, 1))
	for k := range out {
		k := k
		g.Go(func() error {
			src := rand.NewSource(uint64(opts.Seed) + 1000003*uint64(k+1))
			chain, err := gibbsAuto(gctx, in, pInits[k], h2Init, opts, src)
			if err != nil {
				return err
			}
			if chain.Diverged {
				chain.Beta = NaNVector(in.M())
			} else {
				chain.Beta = in.Unscale(chain.Beta)
			}
			out[k] = chain
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	diverged := 0
	for _, c := range out {
		if c.Diverged {
			diverged++
		}
	}
	log.Printf("LDpred2-auto: %d of %d chains diverged\n", diverged, len(out))

	return out, nil
}

func gibbsAuto(ctx context.Context, in *Input, pInit, h2Init float64, opts AutoOptions, src rand.Source) (Chain, error) {
	m := in.M()
	rng := rand.New(src)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	chain := Chain{
		PInit:  pInit,
		PPath:  make([]float64, 0, opts.BurnIn+opts.NumIter),
		H2Path: make([]float64, 0, opts.BurnIn+opts.NumIter),
	}

	curr := make([]float64, m)
	avg := make([]float64, m)
	dotprods := make([]float64, m)

	p, h2 := pInit, h2Init
	for iter := 0; iter < opts.BurnIn+opts.NumIter; iter++ {
		if err := ctx.Err(); err != nil {
			return chain, err
		}

		h2PerVar := h2 / (float64(m) * p)
		invOddP := (1 - p) / p
		nCausal := 0

		for j := 0; j < m; j++ {
			c, err := in.Corr.Column(j)
			if err != nil {
				return chain, err
			}

			resid := in.BetaHat[j] - (dotprods[j] - curr[j])
			C1 := h2PerVar * in.N[j]
			C2 := 1 / (1 + 1/C1)
			mean := C2 * resid
			postp := 1 / (1 + invOddP*math.Sqrt(1+C1)*math.Exp(-0.5*in.N[j]*C2*resid*resid))

			next := 0.0
			if rng.Float64() < postp {
				next = mean + math.Sqrt(C2/in.N[j])*norm.Rand()
				nCausal++
			}
			if iter >= opts.BurnIn {
				avg[j] += postp * mean
			}

			if diff := next - curr[j]; diff != 0 {
				curr[j] = next
				addColumn(dotprods, c, diff)
			}
		}

		p = distuv.Beta{Alpha: 1 + float64(nCausal), Beta: 1 + float64(m-nCausal), Src: src}.Rand()
		h2 = 0
		for j := range curr {
			h2 += curr[j] * dotprods[j]
		}

		chain.PPath = append(chain.PPath, p)
		chain.H2Path = append(chain.H2Path, h2)

		if math.IsNaN(h2) || math.IsInf(h2, 0) || h2 > 1 {
			chain.Diverged = true
			return chain, nil
		}

		// A chain that has lost every effect restarts from a small h2
		if h2 < 1e-4 {
			h2 = 1e-4
		}
	}

	for j := range avg {
		avg[j] /= float64(opts.NumIter)
	}
	chain.Beta = avg
	chain.PEst = stat.Mean(chain.PPath[opts.BurnIn:], nil)
	chain.H2Est = stat.Mean(chain.H2Path[opts.BurnIn:], nil)
	chain.Diverged = !allFinite(avg) || chain.H2Est < 1e-4 || chain.H2Est > 1

	return chain, nil
}

package main

import (
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/pipeline"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/carbocation/polygenic/sumstats"
)

// matchEffects aligns the effects to the genotypes' counted allele. Effects
// files were already matched once, so strands are taken as given and every
// variant found is kept. A reversed variant scores -beta per counted allele,
// which shifts everyone's score by the same constant.
func matchEffects(effects []pipeline.Effect, src genotype.Source, byID bool) ([]snpmatch.Matched, error) {
	ss := make([]sumstats.Sumstat, len(effects))
	for i, e := range effects {
		ss[i] = sumstats.Sumstat{
			Chromosome: e.Chromosome,
			Position:   int(e.Position),
			SNP:        e.VariantID,
			A0:         sumstats.Allele(e.A0),
			A1:         sumstats.Allele(e.A1),
			Beta:       e.Beta,
			BetaSE:     1,
			NEff:       1,
		}
	}

	opts := snpmatch.DefaultOptions()
	opts.StrandFlip = false
	opts.MinMatch = 0
	if byID {
		opts.JoinBy = snpmatch.ByID
	}

	res, err := snpmatch.Match(ss, src.Variants(), opts)
	if err != nil {
		return nil, err
	}

	return res.Rows, nil
}

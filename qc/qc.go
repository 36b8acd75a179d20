// Package qc removes matched variants whose summary statistics or genotypes
// are inconsistent.
package qc

import (
	"log"
	"math"

	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/hwe"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/montanaflynn/stats"
)

// SDCheck compares the genotype standard deviation implied by the allele
// frequency with the one implied by the summary statistics. freqs holds the
// frequency of each matched row's A1 in the genotype data. It returns the
// indices of rows that pass.
//
// Binary-trait effects are log odds, for which sd_ss = 2 / sqrt(n_eff se^2 +
// beta^2). A continuous trait replaces the 2 with the phenotype standard
// deviation, estimated as median(sd_val * se * sqrt(n_eff)).
func SDCheck(matched []snpmatch.Matched, freqs []float64, binary bool) []int {
	sdVal := make([]float64, len(matched))
	for i := range matched {
		f := freqs[i]
		sdVal[i] = math.Sqrt(2 * f * (1 - f))
	}

	scale := 2.0
	if !binary {
		scale = PhenotypeSD(matched, sdVal)
		log.Printf("Standard deviation check: phenotype standard deviation estimated at %.4f\n", scale)
	}

	keep := make([]int, 0, len(matched))
	for i, m := range matched {
		sdSS := scale / math.Sqrt(m.NEff*m.BetaSE*m.BetaSE+m.Beta*m.Beta)

		switch {
		case math.IsNaN(sdVal[i]), math.IsNaN(sdSS):
		case sdSS < 0.5*sdVal[i], sdSS > sdVal[i]+0.1, sdSS < 0.1, sdVal[i] < 0.05:
		default:
			keep = append(keep, i)
		}
	}

	if dropped := len(matched) - len(keep); dropped > 0 {
		log.Printf("Standard deviation check removed %d of %d variants\n", dropped, len(matched))
	}

	return keep
}

// PhenotypeSD estimates the GWAS phenotype standard deviation from the
// genotype standard deviations sdVal, NaN when no variant is usable.
func PhenotypeSD(matched []snpmatch.Matched, sdVal []float64) float64 {
	est := make(stats.Float64Data, 0, len(matched))
	for i, m := range matched {
		v := sdVal[i] * m.BetaSE * math.Sqrt(m.NEff)
		if v > 0 && !math.IsInf(v, 0) {
			est = append(est, v)
		}
	}

	median, err := stats.Median(est)
	if err != nil {
		return math.NaN()
	}
	return median
}

// HWEFilter returns the indices of variants whose Hardy-Weinberg p-value is
// at least threshold.
func HWEFilter(counts []genotype.AlleleStats, threshold float64) []int {
	keep := make([]int, 0, len(counts))
	for i, s := range counts {
		if hwe.Fast(s.HomA1, s.Het, s.HomA2, threshold) >= threshold {
			keep = append(keep, i)
		}
	}

	if dropped := len(counts) - len(keep); dropped > 0 {
		log.Printf("Hardy-Weinberg filter (p < %g) removed %d of %d variants\n", threshold, dropped, len(counts))
	}

	return keep
}

// Intersect returns the indices present in both sorted index lists.
func Intersect(a, b []int) []int {
	out := make([]int, 0)
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	return out
}

// Subset keeps the given rows, in order.
func Subset(matched []snpmatch.Matched, keep []int) []snpmatch.Matched {
	out := make([]snpmatch.Matched, len(keep))
	for k, i := range keep {
		out[k] = matched[i]
	}

	return out
}

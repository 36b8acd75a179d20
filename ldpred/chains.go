package ldpred

import (
	"math"

	"github.com/montanaflynn/stats"
)

// madScale makes the MAD a consistent estimator of the normal sd.
const madScale = 1.4826

// FilterChains keeps the auto chains whose prediction standard deviation
// lies within k scaled median absolute deviations of the median, that is
// |sd - median| <= k * MAD. Non-finite values are never kept and do not
// enter the median.
func FilterChains(predSD []float64, k float64) []int {
	finite := make(stats.Float64Data, 0, len(predSD))
	for _, v := range predSD {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}

	median, err := stats.Median(finite)
	if err != nil {
		return nil
	}
	mad, err := stats.MedianAbsoluteDeviation(finite)
	if err != nil {
		return nil
	}
	mad *= madScale

	keep := make([]int, 0, len(predSD))
	for i, v := range predSD {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if math.Abs(v-median) <= k*mad {
			keep = append(keep, i)
		}
	}

	return keep
}

// AverageChains averages the effects of the kept chains. It returns nil if
// keep is empty.
func AverageChains(chains []Chain, keep []int) (beta []float64, p, h2 float64) {
	if len(keep) == 0 {
		return nil, math.NaN(), math.NaN()
	}

	beta = make([]float64, len(chains[keep[0]].Beta))
	for _, k := range keep {
		for j, b := range chains[k].Beta {
			beta[j] += b
		}
		p += chains[k].PEst
		h2 += chains[k].H2Est
	}

	n := float64(len(keep))
	for j := range beta {
		beta[j] /= n
	}

	return beta, p / n, h2 / n
}

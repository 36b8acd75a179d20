package hwe

import (
	"github.com/BenLubar/memoize"
)

var memoizedExact = memoize.Memoize(exact)

// Exact computes the exact Hardy-Weinberg p-value of Wigginton, Cutler and
// Abecasis (2005). Results are memoized, since rare variants share the same
// few count triples. Safe for concurrent use.
func Exact(AA, Aa, aa int64) float64 {
	// The test is symmetric in the homozygotes
	if aa > AA {
		AA, aa = aa, AA
	}

	return memoizedExact.(func(int64, int64, int64) float64)(AA, Aa, aa)
}

func exact(homc, hets, homr int64) float64 {
	if hets < 0 || homr < 0 || homc < 0 {
		return 1
	}

	n := homc + hets + homr
	rare := 2*homr + hets
	if n == 0 || rare == 0 {
		return 1
	}

	probs := make([]float64, rare+1)

	// Start from the most likely heterozygote count, which has the parity of
	// the rare allele count, and walk outward in both directions.
	mid := rare * (2*n - rare) / (2 * n)
	if mid%2 != rare%2 {
		mid++
	}

	probs[mid] = 1
	sum := 1.0

	curHomr := (rare - mid) / 2
	curHomc := n - mid - curHomr
	for h := mid; h > 1; h -= 2 {
		probs[h-2] = probs[h] * float64(h) * float64(h-1) / (4 * float64(curHomr+1) * float64(curHomc+1))
		sum += probs[h-2]
		curHomr++
		curHomc++
	}

	curHomr = (rare - mid) / 2
	curHomc = n - mid - curHomr
	for h := mid; h <= rare-2; h += 2 {
		probs[h+2] = probs[h] * 4 * float64(curHomr) * float64(curHomc) / (float64(h+2) * float64(h+1))
		sum += probs[h+2]
		curHomr--
		curHomc--
	}

	observed := probs[hets]
	p := 0.0
	for _, pr := range probs {
		if pr <= observed {
			p += pr
		}
	}
	p /= sum

	if p > 1 {
		return 1
	}

	return p
}

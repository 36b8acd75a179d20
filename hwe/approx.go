package hwe

import (
	"github.com/tokenme/probab/dst"
)

// Approximate is the 1 degree of freedom chi square Hardy-Weinberg p-value
// for counts of the two homozygotes and the heterozygote.
func Approximate(AA, Aa, aa int64) (p float64) {
	chi2 := ChiSquare(AA, Aa, aa)
	if chi2 == 0 {
		return 1
	}

	// dst panics on degenerate input
	defer func() {
		if recover() != nil {
			p = 1
		}
	}()

	return 1 - dst.ChiSquareCDF(1)(chi2)
}

// ChiSquare compares observed genotype counts with those expected from the
// observed allele frequency. Monomorphic sites give 0.
func ChiSquare(AA, Aa, aa int64) float64 {
	A := float64(2*AA + Aa)
	a := float64(2*aa + Aa)
	if A == 0 || a == 0 {
		return 0
	}

	n := float64(AA + Aa + aa)
	pA := A / (A + a)
	pa := a / (A + a)

	chi2 := 0.0
	for _, oe := range [][2]float64{
		{float64(AA), pA * pA * n},
		{float64(Aa), 2 * pA * pa * n},
		{float64(aa), pa * pa * n},
	} {
		d := oe[0] - oe[1]
		chi2 += d * d / oe[1]
	}

	return chi2
}

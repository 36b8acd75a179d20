// Package ldpred fits polygenic effect sizes from marginal GWAS effects and
// an LD matrix: LDpred2 (inf, grid and auto) and lassosum2.
package ldpred

import (
	"fmt"
	"math"

	"github.com/carbocation/polygenic/ldmatrix"
	"github.com/carbocation/polygenic/snpmatch"
)

// Corr is a symmetric sparse correlation matrix read column by column.
type Corr interface {
	NCols() int
	Column(j int) (ldmatrix.Column, error)
}

// Input holds marginal effects on the standardized scale, where
// b = beta / sqrt(n se^2 + beta^2), and the factors to convert back.
type Input struct {
	Corr    Corr
	BetaHat []float64
	N       []float64
	Scale   []float64
}

// NewInput standardizes the matched effects. Column j of corr must describe
// matched row j.
func NewInput(matched []snpmatch.Matched, corr Corr) (*Input, error) {
	if corr.NCols() != len(matched) {
		return nil, fmt.Errorf("LD matrix has %d columns for %d matched variants", corr.NCols(), len(matched))
	}

	in := &Input{
		Corr:    corr,
		BetaHat: make([]float64, len(matched)),
		N:       make([]float64, len(matched)),
		Scale:   make([]float64, len(matched)),
	}
	for j, m := range matched {
		scale := math.Sqrt(m.NEff*m.BetaSE*m.BetaSE + m.Beta*m.Beta)
		if !(scale > 0) || math.IsInf(scale, 0) {
			return nil, fmt.Errorf("variant %s has no usable scale (beta %g, se %g, n %g)", m.VariantID, m.Beta, m.BetaSE, m.NEff)
		}
		in.Scale[j] = scale
		in.BetaHat[j] = m.Beta / scale
		in.N[j] = m.NEff
	}

	return in, nil
}

func (in *Input) M() int { return len(in.BetaHat) }

// Unscale converts standardized effects to per-allele effects. A vector with
// any non-finite entry becomes all NaN.
func (in *Input) Unscale(b []float64) []float64 {
	out := make([]float64, len(b))
	if !allFinite(b) {
		for j := range out {
			out[j] = math.NaN()
		}
		return out
	}

	for j := range b {
		out[j] = b[j] * in.Scale[j]
	}
	return out
}

// NaNVector is the effect vector of a failed fit.
func NaNVector(m int) []float64 {
	out := make([]float64, m)
	for j := range out {
		out[j] = math.NaN()
	}
	return out
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// addColumn adds diff times column j of the matrix to dotprods.
func addColumn(dotprods []float64, c ldmatrix.Column, diff float64) {
	for k, i := range c.Rows {
		dotprods[i] += c.Values[k] * diff
	}
}

// mulVec computes dst = R x.
func mulVec(corr Corr, x, dst []float64) error {
	for i := range dst {
		dst[i] = 0
	}
	for j, xj := range x {
		if xj == 0 {
			continue
		}
		c, err := corr.Column(j)
		if err != nil {
			return err
		}
		addColumn(dst, c, xj)
	}
	return nil
}

// seqLog returns n values evenly spaced on the log scale from lo to hi.
func seqLog(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	a, b := math.Log(lo), math.Log(hi)
	for i := range out {
		out[i] = math.Exp(a + (b-a)*float64(i)/float64(n-1))
	}
	out[0], out[n-1] = lo, hi
	return out
}

// signif rounds to the given number of significant digits.
func signif(x float64, digits int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	mag := math.Pow(10, float64(digits)-math.Ceil(math.Log10(math.Abs(x))))
	return math.Round(x*mag) / mag
}

func roundTo(x float64, digits int) float64 {
	mag := math.Pow(10, float64(digits))
	return math.Round(x*mag) / mag
}

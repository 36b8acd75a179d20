package hwe

// Fast screens with the chi square approximation and only computes the exact
// p-value for sites the approximation puts below cutoff.
func Fast(AA, Aa, aa int64, cutoff float64) float64 {
	if p := Approximate(AA, Aa, aa); p >= cutoff {
		return p
	}

	return Exact(AA, Aa, aa)
}

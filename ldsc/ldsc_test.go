package ldsc

import (
	"math"
	"math/rand"
	"testing"
)

func TestRegressRecoversTruth(t *testing.T) {
	const (
		M         = 5000
		h2        = 0.3
		intercept = 1.05
	)

	rng := rand.New(rand.NewSource(7))
	l := make([]float64, M)
	chi2 := make([]float64, M)
	n := make([]float64, M)
	for i := range l {
		l[i] = 1 + 100*rng.Float64()
		n[i] = 10000
		chi2[i] = intercept + n[i]*h2/M*l[i]
	}

	res, err := Regress(l, chi2, n, M)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.H2-h2) > 1e-6 {
		t.Errorf("h2: got %v, want %v", res.H2, h2)
	}
	if math.Abs(res.Intercept-intercept) > 1e-6 {
		t.Errorf("intercept: got %v, want %v", res.Intercept, intercept)
	}
}

func TestRegressNoSignal(t *testing.T) {
	l := []float64{1, 2, 3, 4, 5}
	chi2 := []float64{1.2, 0.8, 1.1, 0.9, 0.7}
	n := []float64{100, 100, 100, 100, 100}

	if _, err := Regress(l, chi2, n, 5); err == nil {
		t.Error("expected an error without heritability signal")
	}
}

func TestRegressLengths(t *testing.T) {
	if _, err := Regress([]float64{1}, []float64{1, 2}, []float64{1}, 1); err == nil {
		t.Error("expected a length mismatch error")
	}
}

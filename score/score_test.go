package score

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/snpmatch"
)

func TestPredict(t *testing.T) {
	nan := math.NaN()
	variants := []polygenic.BIMRow{
		{Chromosome: "1", VariantID: "a", Coordinate: 1, Allele1: "A", Allele2: "G"},
		{Chromosome: "1", VariantID: "b", Coordinate: 2, Allele1: "A", Allele2: "G"},
	}
	samples := make([]polygenic.Sample, 4)
	for i := range samples {
		samples[i] = polygenic.Sample{FID: "fam", IID: string(rune('w' + i))}
	}
	dosages := [][]float64{
		{0, 1, 2, nan},
		{2, 2, 0, 0},
	}
	prefix := filepath.Join(t.TempDir(), "g")
	if err := genotype.WriteBED(prefix, variants, samples, dosages); err != nil {
		t.Fatal(err)
	}
	m, err := genotype.OpenBED(prefix, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	// Matched rows may address genotype columns in any order.
	matched := []snpmatch.Matched{{GenotypeIndex: 1}, {GenotypeIndex: 0}}

	pred, err := Predict(m, matched, []float64{0.5, 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 2, 1}
	for i := range want {
		if math.Abs(pred[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: got %v, want %v", i, pred[i], want[i])
		}
	}

	sub, err := Predict(m, matched, []float64{0.5, 1}, []int{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	// Over rows {3, 0} the mean of column 0 is 0.
	if sub[0] != 0 || sub[1] != 1 {
		t.Errorf("row subset: got %v", sub)
	}

	many, err := PredictMany(m, matched, [][]float64{{1, 1}, {nan, 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range many[1] {
		if !math.IsNaN(v) {
			t.Fatalf("an effect vector with NaN should score NaN, got %v", many[1])
		}
	}
	if many[0][0] != 2 {
		t.Errorf("got %v", many[0])
	}

	if _, err := Predict(m, matched, []float64{1}, nil); err == nil {
		t.Error("expected an error for a short effect vector")
	}
}

func simulate(n int, effect float64, binary bool, seed int64) (pred, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	pred = make([]float64, n)
	y = make([]float64, n)
	for i := range pred {
		pred[i] = rng.NormFloat64()
		liability := effect*pred[i] + rng.NormFloat64()
		if binary {
			if liability > 0 {
				y[i] = 1
			}
		} else {
			y[i] = liability
		}
	}
	return pred, y
}

func TestTStat(t *testing.T) {
	pred, y := simulate(500, 0.5, false, 1)
	if ts := TStat(pred, y, false); !(ts > 5) {
		t.Errorf("continuous t: got %v", ts)
	}

	pred, y = simulate(500, 1, true, 2)
	if z := TStat(pred, y, true); !(z > 5) {
		t.Errorf("binary z: got %v", z)
	}
	for i := range pred {
		pred[i] = -pred[i]
	}
	if z := TStat(pred, y, true); !(z < -5) {
		t.Errorf("binary z of the negated score: got %v", z)
	}

	constant := make([]float64, len(y))
	if ts := TStat(constant, y, false); !math.IsNaN(ts) {
		t.Errorf("constant prediction: got %v, want NaN", ts)
	}
	pred[3] = math.NaN()
	if ts := TStat(pred, y, false); !math.IsNaN(ts) {
		t.Errorf("NaN prediction: got %v, want NaN", ts)
	}
}

func TestAUC(t *testing.T) {
	pred := []float64{0.1, 0.4, 0.35, 0.8}
	y := []float64{0, 0, 1, 1}
	if auc := AUC(pred, y); math.Abs(auc-0.75) > 1e-12 {
		t.Errorf("got %v, want 0.75", auc)
	}

	if auc := AUC([]float64{1, 2, 3, 4}, []float64{0, 0, 1, 1}); auc != 1 {
		t.Errorf("perfect separation: got %v", auc)
	}
	if auc := AUC([]float64{1, 2, 3}, []float64{1, 1, 1}); !math.IsNaN(auc) {
		t.Errorf("single class: got %v, want NaN", auc)
	}
}

func TestCorrelation(t *testing.T) {
	if r := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(r-1) > 1e-12 {
		t.Errorf("got %v", r)
	}
	if r := Correlation([]float64{1, 1, 1}, []float64{2, 4, 6}); !math.IsNaN(r) {
		t.Errorf("got %v, want NaN", r)
	}
}

func TestSelect(t *testing.T) {
	nan := math.NaN()
	records := []Record{
		{Method: "grid", Statistic: 3},
		{Method: "grid", Statistic: nan},
		{Method: "auto", Statistic: 9, Diverged: true},
		{Method: "lassosum2", Statistic: 4},
		{Method: "inf", Statistic: 4},
	}

	best, err := Select(records)
	if err != nil {
		t.Fatal(err)
	}
	if best != 3 {
		t.Errorf("got %d, want 3", best)
	}

	_, err = Select([]Record{{Statistic: nan}, {Statistic: 1, Diverged: true}})
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate, got %v", err)
	}
}

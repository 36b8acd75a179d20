package ldmatrix

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/snpmatch"
)

// writeFixture writes n samples over variants on chromosomes 1 and 2. Columns
// 0 and 1 are identical, column 2 is their mirror image.
func writeFixture(t *testing.T, n int) (genotype.Matrix, []snpmatch.Matched) {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	base := make([]float64, n)
	other := make([]float64, n)
	for i := range base {
		base[i] = float64(rng.Intn(3))
		other[i] = float64(rng.Intn(3))
	}
	mirror := make([]float64, n)
	for i := range base {
		mirror[i] = 2 - base[i]
	}
	withMissing := append([]float64(nil), other...)
	withMissing[0] = math.NaN()

	variants := []polygenic.BIMRow{
		{Chromosome: "1", VariantID: "a", Coordinate: 100, Allele1: "A", Allele2: "G"},
		{Chromosome: "1", VariantID: "b", Coordinate: 200, Allele1: "A", Allele2: "G"},
		{Chromosome: "1", VariantID: "c", Coordinate: 300, Allele1: "A", Allele2: "G"},
		{Chromosome: "1", VariantID: "far", Coordinate: 10000000, Allele1: "A", Allele2: "G"},
		{Chromosome: "2", VariantID: "d", Coordinate: 100, Allele1: "A", Allele2: "G"},
		{Chromosome: "2", VariantID: "e", Coordinate: 200, Allele1: "A", Allele2: "G"},
	}
	dosages := [][]float64{base, base, mirror, base, other, withMissing}

	samples := make([]polygenic.Sample, n)
	for i := range samples {
		samples[i] = polygenic.Sample{FID: "f", IID: "i"}
	}

	prefix := filepath.Join(t.TempDir(), "geno")
	if err := genotype.WriteBED(prefix, variants, samples, dosages); err != nil {
		t.Fatal(err)
	}
	bed, err := genotype.OpenBED(prefix, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bed.Close() })

	matched := make([]snpmatch.Matched, len(variants))
	for i, v := range variants {
		matched[i] = snpmatch.Matched{Chromosome: v.Chromosome, Position: v.Coordinate, VariantID: v.VariantID, GenotypeIndex: i}
	}

	return bed, matched
}

func TestBuild(t *testing.T) {
	m, matched := writeFixture(t, 200)

	b := Builder{
		Path:     filepath.Join(t.TempDir(), "ld.sqlite"),
		WindowCM: 3,
		WindowBP: 3e6,
		Workers:  2,
	}
	res, err := b.Build(context.Background(), m, matched)
	if err != nil {
		t.Fatal(err)
	}
	if res.NCols != len(matched) {
		t.Fatalf("NCols: got %d, want %d", res.NCols, len(matched))
	}

	s, err := Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	get := func(i, j int) float64 {
		c, err := s.Column(j)
		if err != nil {
			t.Fatal(err)
		}
		for k, r := range c.Rows {
			if r == i {
				return c.Values[k]
			}
		}
		return 0
	}

	for j := 0; j < len(matched); j++ {
		if d := get(j, j); d != 1 {
			t.Errorf("diagonal %d: got %v", j, d)
		}
	}
	if r := get(0, 1); math.Abs(r-1) > 1e-9 {
		t.Errorf("identical columns: got r = %v", r)
	}
	if r := get(0, 2); math.Abs(r+1) > 1e-9 {
		t.Errorf("mirrored columns: got r = %v", r)
	}
	if r, rt := get(1, 2), get(2, 1); r != rt {
		t.Errorf("asymmetric: %v vs %v", r, rt)
	}
	if r := get(0, 3); r != 0 {
		t.Errorf("variants 10Mb apart should not be correlated, got %v", r)
	}
	if r := get(2, 4); r != 0 {
		t.Errorf("variants on different chromosomes should not be correlated, got %v", r)
	}
	if r := get(4, 5); math.Abs(r) < 0.9 {
		t.Errorf("mean imputation of one value should keep r near 1, got %v", r)
	}

	if math.Abs(res.LDScores[0]-3) > 1e-9 {
		t.Errorf("LD score of variant 0: got %v, want 3", res.LDScores[0])
	}
	if res.LDScores[3] != 1 {
		t.Errorf("LD score of an isolated variant: got %v, want 1", res.LDScores[3])
	}
}

func TestBuildRejectsUnsortedTable(t *testing.T) {
	m, matched := writeFixture(t, 20)
	matched[0], matched[5] = matched[5], matched[0]

	b := Builder{Path: filepath.Join(t.TempDir(), "ld.sqlite"), WindowBP: 3e6, Workers: 1}
	if _, err := b.Build(context.Background(), m, matched); err == nil {
		t.Error("expected an error for a table whose chromosomes are interleaved")
	}
}

func TestThreshold(t *testing.T) {
	m, _ := writeFixture(t, 200)

	cols := []int{0, 4}
	block, err := Correlation(m, cols, nil, []float64{0, 0}, CorrOptions{Window: 1, ThrR2: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(block[0].Rows) != 1 || len(block[1].Rows) != 1 {
		t.Errorf("independent columns should leave only the diagonal: %+v", block)
	}
}

func TestPositions(t *testing.T) {
	b := Builder{WindowCM: 3, WindowBP: 3e6}
	rows := func(cm ...float64) []snpmatch.Matched {
		out := make([]snpmatch.Matched, len(cm))
		for i := range cm {
			out[i] = snpmatch.Matched{Chromosome: "1", Position: uint32(1000 * (i + 1)), CentiMorgans: cm[i], GenotypeIndex: i}
		}
		return out
	}

	for _, tc := range []struct {
		name   string
		cm     []float64
		useCM  bool
		window float64
	}{
		{"leading zeros before the map starts", []float64{0, 0, 0.5, 1.2}, true, 3},
		{"flat stretch", []float64{0.1, 0.1, 0.4}, true, 3},
		{"no genetic positions", []float64{0, 0, 0}, false, 3e6},
		{"decreasing", []float64{0.5, 0.4, 0.6}, false, 3e6},
		{"negative", []float64{-0.1, 0.2, 0.3}, false, 3e6},
	} {
		r := rows(tc.cm...)
		cols, pos, window := b.positions(r)
		if window != tc.window {
			t.Errorf("%s: window %v, want %v", tc.name, window, tc.window)
		}
		for i := range r {
			if cols[i] != i {
				t.Errorf("%s: column %d maps to %d", tc.name, i, cols[i])
			}
			want := float64(r[i].Position)
			if tc.useCM {
				want = tc.cm[i]
			}
			if pos[i] != want {
				t.Errorf("%s: position %d is %v, want %v", tc.name, i, pos[i], want)
			}
		}
	}
}

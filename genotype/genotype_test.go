package genotype

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/carbocation/polygenic"
)

func fixture(t *testing.T) (string, [][]float64) {
	t.Helper()

	nan := math.NaN()
	variants := []polygenic.BIMRow{
		{Chromosome: "1", VariantID: "rs1", Coordinate: 100, Allele1: "A", Allele2: "G"},
		{Chromosome: "1", VariantID: "rs2", Coordinate: 200, Allele1: "C", Allele2: "T"},
		{Chromosome: "2", VariantID: "rs3", Coordinate: 50, Allele1: "G", Allele2: "A"},
	}
	samples := make([]polygenic.Sample, 5)
	for i := range samples {
		samples[i] = polygenic.Sample{FID: "f", IID: string(rune('a' + i))}
	}
	dosages := [][]float64{
		{0, 1, 2, nan, 1},
		{2, 2, 2, 2, 0},
		{nan, nan, 1, 0, 0},
	}

	prefix := filepath.Join(t.TempDir(), "geno")
	if err := WriteBED(prefix, variants, samples, dosages); err != nil {
		t.Fatal(err)
	}

	return prefix, dosages
}

func sameDosages(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			return false
		}
		if !math.IsNaN(a[i]) && a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBEDRoundTrip(t *testing.T) {
	prefix, want := fixture(t)

	b, err := OpenBED(prefix, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if b.NSamples() != 5 || b.NVariants() != 3 {
		t.Fatalf("got %d samples and %d variants", b.NSamples(), b.NVariants())
	}

	dst := make([]float64, 5)
	for j := range want {
		if err := b.Dosages(j, nil, dst); err != nil {
			t.Fatal(err)
		}
		if !sameDosages(dst, want[j]) {
			t.Errorf("column %d: got %v, want %v", j, dst, want[j])
		}
	}

	sub := make([]float64, 2)
	if err := b.Dosages(0, []int{4, 2}, sub); err != nil {
		t.Fatal(err)
	}
	if sub[0] != 1 || sub[1] != 2 {
		t.Errorf("row subset: got %v", sub)
	}

	if err := b.Dosages(3, nil, dst); err == nil {
		t.Error("expected an error for an out of range column")
	}
}

func TestOpenBEDRejectsBadMagic(t *testing.T) {
	prefix, _ := fixture(t)

	raw, err := os.ReadFile(prefix + ".bed")
	if err != nil {
		t.Fatal(err)
	}
	raw[2] = 0x00 // individual-major
	if err := os.WriteFile(prefix+".bed", raw, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenBED(prefix+".bed", nil); err == nil {
		t.Error("expected an error for an individual-major .bed")
	}
}

func TestOpenBEDRejectsTruncatedFile(t *testing.T) {
	prefix, _ := fixture(t)

	raw, err := os.ReadFile(prefix + ".bed")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(prefix+".bed", raw[:len(raw)-1], 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenBED(prefix, nil); err == nil {
		t.Error("expected an error for a truncated .bed")
	}
}

func TestAlleleFrequencies(t *testing.T) {
	prefix, _ := fixture(t)

	b, err := OpenBED(prefix, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	stats, err := AlleleFrequencies(b, []int{0, 2}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := stats[0].Freq; got != 0.5 {
		t.Errorf("freq of column 0: got %v, want 0.5", got)
	}
	if stats[0].Missing != 1 || stats[0].HomA1 != 1 || stats[0].Het != 2 || stats[0].HomA2 != 1 {
		t.Errorf("column 0 counts: %+v", stats[0])
	}
	if got := stats[1].Freq; math.Abs(got-1.0/6) > 1e-12 {
		t.Errorf("freq of column 2: got %v, want 1/6", got)
	}
}

func TestSplit(t *testing.T) {
	eligible := []int{9, 1, 3, 5, 7, 11, 13, 15, 17, 19}

	val, test, err := Split(eligible, 4, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(val) != 4 || len(test) != 6 {
		t.Fatalf("got %d validation and %d test samples", len(val), len(test))
	}

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, val...), test...) {
		if seen[i] {
			t.Errorf("sample %d appears twice", i)
		}
		seen[i] = true
	}
	for _, i := range eligible {
		if !seen[i] {
			t.Errorf("sample %d was lost", i)
		}
	}

	val2, test2, _ := Split(eligible, 4, 42)
	if !reflect.DeepEqual(val, val2) || !reflect.DeepEqual(test, test2) {
		t.Error("same seed gave a different split")
	}

	if _, _, err := Split(eligible, 10, 42); err == nil {
		t.Error("expected an error when no test samples remain")
	}
}

// Package genotype gives column-wise access to genotype dosages without ever
// holding the full individuals x variants matrix in memory.
package genotype

import (
	"fmt"
	"math"

	"github.com/carbocation/polygenic"
)

// Matrix is an individuals x variants dosage matrix. Dosages count allele 1
// of the variant (BIMRow.Allele1) and are NaN when missing.
type Matrix interface {
	NSamples() int
	NVariants() int

	// Dosages fills dst with the dosages of column col for the given rows (all
	// rows when rows is nil). len(dst) must equal the number of rows read.
	// Safe for concurrent use.
	Dosages(col int, rows []int, dst []float64) error

	Close() error
}

// Source is a Matrix that also knows its variant map and samples.
type Source interface {
	Matrix
	Variants() []polygenic.BIMRow
	Samples() []polygenic.Sample
}

func checkDst(m Matrix, col int, rows []int, dst []float64) error {
	if col < 0 || col >= m.NVariants() {
		return fmt.Errorf("column %d out of range (%d variants)", col, m.NVariants())
	}

	want := m.NSamples()
	if rows != nil {
		want = len(rows)
	}
	if len(dst) != want {
		return fmt.Errorf("dst has length %d but %d rows were requested", len(dst), want)
	}

	return nil
}

// AlleleStats summarizes one column over a set of rows. Genotype counts are
// rounded hard calls, for Hardy-Weinberg testing.
type AlleleStats struct {
	Freq    float64 // frequency of allele 1 among non-missing rows
	Missing int
	HomA1   int64
	Het     int64
	HomA2   int64
}

// AlleleFrequencies computes AlleleStats for each of cols over rows.
func AlleleFrequencies(m Matrix, cols []int, rows []int) ([]AlleleStats, error) {
	n := m.NSamples()
	if rows != nil {
		n = len(rows)
	}
	buf := make([]float64, n)

	out := make([]AlleleStats, len(cols))
	for k, col := range cols {
		if err := m.Dosages(col, rows, buf); err != nil {
			return nil, err
		}

		st := AlleleStats{}
		sum, nonMissing := 0.0, 0
		for _, d := range buf {
			if math.IsNaN(d) {
				st.Missing++
				continue
			}
			sum += d
			nonMissing++
			switch math.Round(d) {
			case 2:
				st.HomA1++
			case 1:
				st.Het++
			default:
				st.HomA2++
			}
		}
		if nonMissing > 0 {
			st.Freq = sum / float64(2*nonMissing)
		} else {
			st.Freq = math.NaN()
		}
		out[k] = st
	}

	return out, nil
}

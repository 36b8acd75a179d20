package sumstats

import (
	"math"
	"strings"

	"github.com/carbocation/polygenic"
)

type Allele string

// Sumstat is one variant of a GWAS summary-statistics table. Beta is the
// effect of A1; A0 is the other allele.
type Sumstat struct {
	Chromosome string
	Position   int
	SNP        string
	A0         Allele
	A1         Allele
	Beta       float64
	BetaSE     float64
	NEff       float64

	// NaN when the file doesn't carry them
	P    float64
	Freq float64
	Info float64
}

// HasPosition is false for files keyed only by identifier.
func (s Sumstat) HasPosition() bool {
	return s.Position > 0
}

// Chi2 is the squared Z statistic.
func (s Sumstat) Chi2() float64 {
	z := s.Beta / s.BetaSE
	return z * z
}

// Table is a loaded summary-statistics file.
type Table struct {
	Rows  []Sumstat
	Build polygenic.Build

	// Rows discarded while loading (impossible standard errors, non-finite
	// effects, missing sample sizes).
	Dropped int
}

// EffectiveN reconciles case/control imbalance: 4 / (1/nCase + 1/nControl).
func EffectiveN(nCase, nControl float64) float64 {
	if nCase <= 0 || nControl <= 0 {
		return math.NaN()
	}

	return 4 / (1/nCase + 1/nControl)
}

func normalizeAllele(a string) Allele {
	return Allele(strings.ToUpper(strings.TrimSpace(a)))
}

// Package snpmatch joins summary statistics to a genotype variant map,
// re-expressing every effect in terms of the genotype's counted allele.
package snpmatch

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/chrom"
	"github.com/carbocation/polygenic/sumstats"
)

// JoinKey selects how summary statistics find their variant.
type JoinKey int

const (
	ByPosition JoinKey = iota
	ByID
)

func (k JoinKey) String() string {
	if k == ByID {
		return "identifier"
	}
	return "position"
}

type Options struct {
	JoinBy     JoinKey
	StrandFlip bool

	// A join matching fewer than MinMatch * min(|sumstats|, |map|) variants
	// fails with a *LowMatchError.
	MinMatch float64

	// RemoveDups drops every variant whose join key occurs more than once.
	// Repeated genotype or sumstats indices are always dropped.
	RemoveDups bool

	SumstatsBuild polygenic.Build
	MapBuild      polygenic.Build
}

func DefaultOptions() Options {
	return Options{
		JoinBy:     ByPosition,
		StrandFlip: true,
		MinMatch:   0.2,
		RemoveDups: true,
	}
}

// Matched is one row of the joined table. A1 is the genotype's counted
// allele and Beta is its effect.
type Matched struct {
	Chromosome    string  `csv:"chr"`
	Position      uint32  `csv:"pos"`
	VariantID     string  `csv:"rsid"`
	A0            string  `csv:"a0"`
	A1            string  `csv:"a1"`
	Beta          float64 `csv:"beta"`
	BetaSE        float64 `csv:"beta_se"`
	NEff          float64 `csv:"n_eff"`
	Freq          float64 `csv:"freq"`
	CentiMorgans  float64 `csv:"cm"`
	GenotypeIndex int     `csv:"genotype_index"`
	SumstatIndex  int     `csv:"sumstat_index"`
	Flipped       bool    `csv:"flipped"`
	Reversed      bool    `csv:"reversed"`
}

// Chi2 is the squared Z statistic.
func (m Matched) Chi2() float64 {
	z := m.Beta / m.BetaSE
	return z * z
}

type Result struct {
	Rows   []Matched
	JoinBy JoinKey

	// min(|sumstats|, |map|), the ceiling on len(Rows)
	Candidates int

	Ambiguous  int
	Duplicates int
	Flipped    int
	Reversed   int
}

// LowMatchError reports a join that matched too few variants. The partial
// Result is still returned alongside it.
type LowMatchError struct {
	Matched    int
	Candidates int
	MinMatch   float64
	JoinBy     JoinKey
}

func (e *LowMatchError) Error() string {
	return fmt.Sprintf("not enough variants matched by %s: %d of %d (minimum fraction %g)", e.JoinBy, e.Matched, e.Candidates, e.MinMatch)
}

var complements = map[byte]byte{'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C'}

// complement returns the opposite-strand allele, or "" if a is not made of
// nucleotides.
func complement(a string) string {
	out := make([]byte, len(a))
	for i := 0; i < len(a); i++ {
		c, ok := complements[a[i]]
		if !ok {
			return ""
		}
		out[i] = c
	}

	return string(out)
}

// ambiguous pairs (A/T, C/G) read the same on both strands.
func ambiguous(a0, a1 string) bool {
	return len(a0) == 1 && len(a1) == 1 && complement(a0) == a1
}

type candidate struct {
	ss, geno          int
	key               string
	flipped, reversed bool
}

func (opts Options) key(chr string, pos uint32, id string) string {
	if opts.JoinBy == ByID {
		return id
	}
	return chr + ":" + strconv.FormatUint(uint64(pos), 10)
}

// Match performs the inner join of ss against variants. Rows come back in
// chromosome order, then position.
func Match(ss []sumstats.Sumstat, variants []polygenic.BIMRow, opts Options) (*Result, error) {
	res := &Result{
		JoinBy:     opts.JoinBy,
		Candidates: len(ss),
	}
	if len(variants) < res.Candidates {
		res.Candidates = len(variants)
	}

	mapChrom := make([]string, len(variants))
	byKey := make(map[string][]int, len(variants))
	for j, v := range variants {
		mapChrom[j] = chrom.Normalize(v.Chromosome)
		if opts.JoinBy == ByID && v.VariantID == "" {
			continue
		}
		k := opts.key(mapChrom[j], v.Coordinate, v.VariantID)
		byKey[k] = append(byKey[k], j)
	}

	cands := make([]candidate, 0, res.Candidates)
	for i, s := range ss {
		a0, a1 := strings.ToUpper(string(s.A0)), strings.ToUpper(string(s.A1))

		if opts.StrandFlip && ambiguous(a0, a1) {
			res.Ambiguous++
			continue
		}

		var k string
		switch opts.JoinBy {
		case ByID:
			if s.SNP == "" {
				continue
			}
			k = opts.key("", 0, s.SNP)
		default:
			if !s.HasPosition() {
				continue
			}
			k = opts.key(s.Chromosome, uint32(s.Position), "")
		}

		for _, j := range byKey[k] {
			v := variants[j]
			if opts.JoinBy == ByID && s.Chromosome != "" && s.Chromosome != mapChrom[j] {
				continue
			}

			g1, g0 := strings.ToUpper(v.Allele1), strings.ToUpper(v.Allele2)
			c := candidate{ss: i, geno: j, key: k}

			switch {
			case a1 == g1 && a0 == g0:
			case a1 == g0 && a0 == g1:
				c.reversed = true
			case opts.StrandFlip && complement(a1) == g1 && complement(a0) == g0 && complement(a1) != "":
				c.flipped = true
			case opts.StrandFlip && complement(a1) == g0 && complement(a0) == g1 && complement(a1) != "":
				c.flipped = true
				c.reversed = true
			default:
				continue
			}

			cands = append(cands, c)
		}
	}

	cands, res.Duplicates = dedupe(cands, opts.RemoveDups)

	res.Rows = make([]Matched, 0, len(cands))
	for _, c := range cands {
		s, v := ss[c.ss], variants[c.geno]

		beta := s.Beta
		if c.reversed {
			beta = -beta
			res.Reversed++
		}
		freq := s.Freq
		if c.reversed {
			// Freq describes the sumstats effect allele
			freq = 1 - freq
		}
		if c.flipped {
			res.Flipped++
		}

		res.Rows = append(res.Rows, Matched{
			Chromosome:    mapChrom[c.geno],
			Position:      v.Coordinate,
			VariantID:     v.VariantID,
			A0:            strings.ToUpper(v.Allele2),
			A1:            strings.ToUpper(v.Allele1),
			Beta:          beta,
			BetaSE:        s.BetaSE,
			NEff:          s.NEff,
			Freq:          freq,
			CentiMorgans:  v.CentiMorgans,
			GenotypeIndex: c.geno,
			SumstatIndex:  c.ss,
			Flipped:       c.flipped,
			Reversed:      c.reversed,
		})
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		a, b := res.Rows[i], res.Rows[j]
		if a.Chromosome != b.Chromosome {
			return chrom.Less(a.Chromosome, b.Chromosome)
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.GenotypeIndex < b.GenotypeIndex
	})

	log.Printf("%d variants to be matched by %s\n", len(ss), opts.JoinBy)
	if res.Ambiguous > 0 {
		log.Printf("%d ambiguous variants have been removed\n", res.Ambiguous)
	}
	log.Printf("%d variants have been matched; %d were flipped and %d were reversed\n", len(res.Rows), res.Flipped, res.Reversed)

	if float64(len(res.Rows)) < opts.MinMatch*float64(res.Candidates) || len(res.Rows) == 0 {
		return res, &LowMatchError{
			Matched:    len(res.Rows),
			Candidates: res.Candidates,
			MinMatch:   opts.MinMatch,
			JoinBy:     opts.JoinBy,
		}
	}

	return res, nil
}

// dedupe drops every candidate sharing a genotype index or a sumstats index
// with another, and with byKey also every candidate sharing a join key.
func dedupe(cands []candidate, byKey bool) ([]candidate, int) {
	genoCount := make(map[int]int, len(cands))
	ssCount := make(map[int]int, len(cands))
	keyCount := make(map[string]int, len(cands))
	for _, c := range cands {
		genoCount[c.geno]++
		ssCount[c.ss]++
		keyCount[c.key]++
	}

	out := cands[:0]
	dropped := 0
	for _, c := range cands {
		if genoCount[c.geno] > 1 || ssCount[c.ss] > 1 || (byKey && keyCount[c.key] > 1) {
			dropped++
			continue
		}
		out = append(out, c)
	}

	return out, dropped
}

package genotype

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
)

// WriteBED writes a SNP-major PLINK 1 fileset at prefix. dosages holds one
// column per variant with one value per sample; values are rounded to hard
// calls and NaN is written as missing.
func WriteBED(prefix string, variants []polygenic.BIMRow, samples []polygenic.Sample, dosages [][]float64) error {
	if len(dosages) != len(variants) {
		return fmt.Errorf("%d dosage columns for %d variants", len(dosages), len(variants))
	}

	if err := writeLines(prefix+".bim", len(variants), func(i int) string {
		v := variants[i]
		return fmt.Sprintf("%s\t%s\t%g\t%d\t%s\t%s", v.Chromosome, v.VariantID, v.CentiMorgans, v.Coordinate, v.Allele1, v.Allele2)
	}); err != nil {
		return err
	}

	if err := writeLines(prefix+".fam", len(samples), func(i int) string {
		s := samples[i]
		pheno := "-9"
		if s.Phenotype.Valid {
			pheno = fmt.Sprintf("%g", s.Phenotype.Float64)
		}
		return fmt.Sprintf("%s %s 0 0 %d %s", s.FID, s.IID, s.Sex, pheno)
	}); err != nil {
		return err
	}

	f, err := os.Create(prefix + ".bed")
	if err != nil {
		return pfx.Err(err)
	}
	w := bufio.NewWriter(f)

	if _, err := w.Write(bedMagic[:]); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	buf := make([]byte, (len(samples)+3)/4)
	for j, col := range dosages {
		if len(col) != len(samples) {
			f.Close()
			return fmt.Errorf("variant %d has %d dosages for %d samples", j, len(col), len(samples))
		}

		for k := range buf {
			buf[k] = 0
		}
		for i, d := range col {
			buf[i>>2] |= bedCode(d) << (2 * uint(i&3))
		}
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return pfx.Err(err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

func bedCode(d float64) byte {
	if math.IsNaN(d) {
		return 1
	}

	switch math.Round(d) {
	case 2:
		return 0
	case 1:
		return 2
	default:
		return 3
	}
}

func writeLines(path string, n int, line func(i int) string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	w := bufio.NewWriter(f)

	for i := 0; i < n; i++ {
		if _, err := fmt.Fprintln(w, line(i)); err != nil {
			f.Close()
			return pfx.Err(err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

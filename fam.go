package polygenic

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
)

// Map columns in the FAM file to their positions
const (
	FamFID int = iota
	FamIID
	FamFather
	FamMother
	FamSex
	FamPhenotype
)

// Sample is one row of a PLINK .fam (or a BGEN .sample) file.
type Sample struct {
	FID       string
	IID       string
	Sex       int
	Phenotype null.Float
}

// Key identifies a sample across files.
func (s Sample) Key() string {
	return s.FID + "\t" + s.IID
}

// ParsePhenotype returns an invalid null.Float for PLINK's missing codes.
func ParsePhenotype(value string) null.Float {
	switch value {
	case "", "-9", "NA", "na", "NaN", "nan", ".":
		return null.Float{}
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return null.Float{}
	}

	return null.FloatFrom(f)
}

// ReadFAM loads every sample of a .fam file, in file order, which is the row
// order of the matching .bed.
func ReadFAM(path string, client *storage.Client) ([]Sample, error) {
	rc, err := OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out := make([]Sample, 0)
	scanner := bufio.NewScanner(rc)
	for line := 1; scanner.Scan(); line++ {
		cols := strings.Fields(scanner.Text())
		if len(cols) == 0 {
			continue
		}
		if len(cols) < FamPhenotype+1 {
			return nil, fmt.Errorf("%s line %d: expected %d columns, saw %d", path, line, FamPhenotype+1, len(cols))
		}

		sex, _ := strconv.Atoi(cols[FamSex])
		out = append(out, Sample{
			FID:       cols[FamFID],
			IID:       cols[FamIID],
			Sex:       sex,
			Phenotype: ParsePhenotype(cols[FamPhenotype]),
		})
	}

	return out, pfx.Err(scanner.Err())
}

// ReadPhenotypeFile reads a delimited file with FID and IID columns (named in
// the header) and returns the values of column, keyed by Sample.Key().
func ReadPhenotypeFile(path, column string, client *storage.Client) (map[string]null.Float, error) {
	rc, err := OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, pfx.Err(err)
	}

	delim := DetermineDelimiter(strings.NewReader(headerLine))
	r := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	r.Comma = delim
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, pfx.Err(err)
	}

	fidCol, iidCol, valCol := -1, -1, -1
	for i, name := range header {
		switch {
		case strings.EqualFold(name, "FID") || strings.EqualFold(name, "#FID"):
			fidCol = i
		case strings.EqualFold(name, "IID"):
			iidCol = i
		case name == column:
			valCol = i
		}
	}
	if iidCol < 0 || valCol < 0 {
		return nil, fmt.Errorf("%s: header must name IID and %q; saw %v", path, column, header)
	}

	out := make(map[string]null.Float)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		fid := ""
		if fidCol >= 0 {
			fid = row[fidCol]
		} else {
			// Without FID, PLINK convention is FID == IID
			fid = row[iidCol]
		}
		out[fid+"\t"+row[iidCol]] = ParsePhenotype(row[valCol])
	}

	return out, nil
}

// AlignPhenotype returns one value per sample, in sample order. Samples absent
// from phenos are missing.
func AlignPhenotype(samples []Sample, phenos map[string]null.Float) []null.Float {
	out := make([]null.Float, len(samples))
	for i, s := range samples {
		out[i] = phenos[s.Key()]
	}

	return out
}

// RecodeCaseControl detects PLINK 1/2 case-control coding and recodes it to
// 0/1, with 0 treated as missing. It reports whether the trait is binary.
// Traits already coded 0/1 are also reported as binary.
func RecodeCaseControl(y []null.Float) ([]null.Float, bool) {
	seen := make(map[float64]struct{})
	for _, v := range y {
		if v.Valid {
			seen[v.Float64] = struct{}{}
		}
	}

	only := func(allowed ...float64) bool {
		if len(seen) == 0 {
			return false
		}
	Outer:
		for k := range seen {
			for _, a := range allowed {
				if k == a {
					continue Outer
				}
			}
			return false
		}
		return true
	}

	switch {
	case only(0, 1):
		return y, true
	case only(0, 1, 2):
		out := make([]null.Float, len(y))
		for i, v := range y {
			if !v.Valid || v.Float64 == 0 {
				continue
			}
			out[i] = null.FloatFrom(v.Float64 - 1)
		}
		return out, true
	}

	return y, false
}

package sumstats

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/polygenic/chrom"
)

type Parser struct {
	Layout Layout
}

func New(layout string) (*Parser, error) {
	l, exists := Layouts[layout]
	if !exists {
		return nil, fmt.Errorf("Layout %s is not found. Valid layout names include: %s", layout, LayoutNames())
	}

	return NewWithLayout(l)
}

func NewWithLayout(layout Layout) (*Parser, error) {
	if layout.Parser == nil {
		layout.Parser = &defaultParseRow
	}

	return &Parser{Layout: layout}, nil
}

// Split breaks a line into fields according to the layout's delimiter.
func (p *Parser) Split(line string) []string {
	if p.Layout.Delimiter == ' ' {
		return strings.Fields(line)
	}

	fields := strings.Split(line, string(p.Layout.Delimiter))
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return fields
}

func (p *Parser) ParseRow(row []string) (Sumstat, error) {
	return (*p.Layout.Parser)(&p.Layout, row)
}

var defaultParseRow = func(layout *Layout, row []string) (Sumstat, error) {
	return DefaultParseRow(layout, row)
}

// DefaultParseRow parses the columns named by layout. Optional numeric fields
// that are absent or unparseable are NaN; NEff is NaN when the row has no
// sample size, so that a caller-supplied N can be substituted.
func DefaultParseRow(layout *Layout, row []string) (Sumstat, error) {
	s := Sumstat{
		P:    math.NaN(),
		Freq: math.NaN(),
		Info: math.NaN(),
		NEff: math.NaN(),
	}

	get := func(col int) (string, error) {
		if col == Absent {
			return "", nil
		}
		if col >= len(row) {
			return "", fmt.Errorf("column %d requested but row has %d fields", col, len(row))
		}
		return row[col], nil
	}

	var err error
	var v string

	if v, err = get(layout.ColChromosome); err != nil {
		return s, err
	}
	s.Chromosome = chrom.Normalize(v)

	if v, err = get(layout.ColSNP); err != nil {
		return s, err
	}
	s.SNP = v

	if layout.ColPosition != Absent {
		if v, err = get(layout.ColPosition); err != nil {
			return s, err
		}
		if s.Position, err = strconv.Atoi(v); err != nil {
			return s, err
		}
	}

	if v, err = get(layout.ColA0); err != nil {
		return s, err
	}
	s.A0 = normalizeAllele(v)
	if v, err = get(layout.ColA1); err != nil {
		return s, err
	}
	s.A1 = normalizeAllele(v)

	if layout.ColBeta != Absent {
		if v, err = get(layout.ColBeta); err != nil {
			return s, err
		}
		if s.Beta, err = strconv.ParseFloat(v, 64); err != nil {
			return s, err
		}
	} else {
		if v, err = get(layout.ColOR); err != nil {
			return s, err
		}
		or, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, err
		}
		s.Beta = math.Log(or)
	}

	if v, err = get(layout.ColSE); err != nil {
		return s, err
	}
	if s.BetaSE, err = strconv.ParseFloat(v, 64); err != nil {
		return s, err
	}

	optional := func(col int) float64 {
		v, err := get(col)
		if err != nil || v == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}

	if layout.ColNCase != Absent && layout.ColNControl != Absent {
		s.NEff = EffectiveN(optional(layout.ColNCase), optional(layout.ColNControl))
	} else if layout.ColN != Absent {
		s.NEff = optional(layout.ColN)
	}

	s.P = optional(layout.ColP)
	if layout.ColP == Absent && layout.ColLog10P != Absent {
		// REGENIE provides -log10(P)
		s.P = math.Pow(10, -optional(layout.ColLog10P))
	}
	s.Freq = optional(layout.ColFreq)
	s.Info = optional(layout.ColInfo)

	return s, nil
}

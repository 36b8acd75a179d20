package sumstats

import (
	"fmt"
	"sort"
	"strings"
)

// Absent marks a column the layout doesn't have.
const Absent = -1

// Layout maps 0-based columns of a summary-statistics file to fields.
type Layout struct {
	Delimiter rune // ' ' means any run of whitespace
	Comment   rune
	HasHeader bool

	ColChromosome int
	ColPosition   int
	ColSNP        int
	ColA0         int
	ColA1         int
	ColBeta       int
	ColOR         int
	ColSE         int
	ColN          int
	ColNCase      int
	ColNControl   int
	ColP          int
	ColLog10P     int
	ColFreq       int
	ColInfo       int

	Parser *func(layout *Layout, row []string) (Sumstat, error)
}

func absentLayout() Layout {
	return Layout{
		Delimiter:     '\t',
		Comment:       '#',
		ColChromosome: Absent,
		ColPosition:   Absent,
		ColSNP:        Absent,
		ColA0:         Absent,
		ColA1:         Absent,
		ColBeta:       Absent,
		ColOR:         Absent,
		ColSE:         Absent,
		ColN:          Absent,
		ColNCase:      Absent,
		ColNControl:   Absent,
		ColP:          Absent,
		ColLog10P:     Absent,
		ColFreq:       Absent,
		ColInfo:       Absent,
		Parser:        &defaultParseRow,
	}
}

// AutoLayout is the name of the layout that is detected from the header.
const AutoLayout = "AUTO"

var Layouts = map[string]Layout{
	// SNP CHR BP GENPOS ALLELE1 ALLELE0 A1FREQ INFO CHISQ_LINREG P_LINREG BETA
	// SE CHISQ_BOLT_LMM_INF P_BOLT_LMM_INF CHISQ_BOLT_LMM P_BOLT_LMM
	"BOLT": func() Layout {
		l := absentLayout()
		l.HasHeader = true
		l.ColSNP = 0
		l.ColChromosome = 1
		l.ColPosition = 2
		l.ColA1 = 4
		l.ColA0 = 5
		l.ColFreq = 6
		l.ColInfo = 7
		l.ColBeta = 10
		l.ColSE = 11
		l.ColP = 15
		return l
	}(),

	// CHROM GENPOS ID ALLELE0 ALLELE1 A1FREQ INFO N TEST BETA SE CHISQ LOG10P
	"REGENIE": func() Layout {
		l := absentLayout()
		l.Delimiter = ' '
		l.HasHeader = true
		l.ColChromosome = 0
		l.ColPosition = 1
		l.ColSNP = 2
		l.ColA0 = 3
		l.ColA1 = 4
		l.ColFreq = 5
		l.ColInfo = 6
		l.ColN = 7
		l.ColBeta = 9
		l.ColSE = 10
		l.ColLog10P = 12
		return l
	}(),

	// chr pos rsid a0 a1 beta beta_se n_eff
	"LDPRED2": func() Layout {
		l := absentLayout()
		l.HasHeader = true
		l.ColChromosome = 0
		l.ColPosition = 1
		l.ColSNP = 2
		l.ColA0 = 3
		l.ColA1 = 4
		l.ColBeta = 5
		l.ColSE = 6
		l.ColN = 7
		return l
	}(),
}

func LayoutNames() string {
	names := make([]string, 0, len(Layouts)+1)
	for m := range Layouts {
		names = append(names, m)
	}
	names = append(names, AutoLayout)
	sort.Strings(names)

	return strings.Join(names, ", ")
}

// Header aliases, most specific first. The first alias found in the header
// wins, so BOLT's GENPOS (a genetic position) only stands in for a physical
// position when nothing better is present.
var aliases = []struct {
	field   func(l *Layout) *int
	names   []string
	require bool
}{
	{func(l *Layout) *int { return &l.ColChromosome }, []string{"chr", "chrom", "#chrom", "#chr", "chromosome", "chr_name"}, true},
	{func(l *Layout) *int { return &l.ColPosition }, []string{"pos", "bp", "position", "base_pair_location", "bp_hg19", "bp_hg38", "genpos"}, false},
	{func(l *Layout) *int { return &l.ColSNP }, []string{"rsid", "snp", "id", "snpid", "rs_id", "snp_id", "markername", "variant_id", "rs"}, false},
	{func(l *Layout) *int { return &l.ColA1 }, []string{"a1", "allele1", "effect_allele", "ea", "tested_allele", "alt"}, true},
	{func(l *Layout) *int { return &l.ColA0 }, []string{"a0", "a2", "allele0", "allele2", "other_allele", "oa", "nea", "non_effect_allele", "ref"}, true},
	{func(l *Layout) *int { return &l.ColBeta }, []string{"beta", "effect", "b", "log_odds"}, false},
	{func(l *Layout) *int { return &l.ColOR }, []string{"or", "odds_ratio"}, false},
	{func(l *Layout) *int { return &l.ColSE }, []string{"beta_se", "se", "stderr", "standard_error", "sebeta", "se_beta"}, true},
	{func(l *Layout) *int { return &l.ColN }, []string{"n_eff", "neff", "n", "n_total", "obs_ct", "nobs"}, false},
	{func(l *Layout) *int { return &l.ColNCase }, []string{"n_case", "ncase", "ncas", "n_cases", "cases"}, false},
	{func(l *Layout) *int { return &l.ColNControl }, []string{"n_control", "ncontrol", "ncon", "n_controls", "controls"}, false},
	{func(l *Layout) *int { return &l.ColP }, []string{"p", "pval", "p_value", "pvalue", "p_bolt_lmm"}, false},
	{func(l *Layout) *int { return &l.ColLog10P }, []string{"log10p", "mlog10p", "neglog10p"}, false},
	{func(l *Layout) *int { return &l.ColFreq }, []string{"a1freq", "frq", "freq", "af", "eaf", "a1_freq", "maf"}, false},
	{func(l *Layout) *int { return &l.ColInfo }, []string{"info", "imputation_info"}, false},
}

// DetectLayout builds a layout from a header row by matching column names
// case-insensitively against known aliases.
func DetectLayout(header []string, delimiter rune) (Layout, error) {
	l := absentLayout()
	l.Delimiter = delimiter
	l.HasHeader = true

	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	missing := make([]string, 0)
	for _, alias := range aliases {
		col := alias.field(&l)
		for _, name := range alias.names {
			if i, exists := index[name]; exists {
				*col = i
				break
			}
		}
		if alias.require && *col == Absent {
			missing = append(missing, alias.names[0])
		}
	}

	if l.ColBeta == Absent && l.ColOR == Absent {
		missing = append(missing, "beta (or OR)")
	}
	if l.ColPosition == Absent && l.ColSNP == Absent {
		missing = append(missing, "pos (or rsid)")
	}
	if len(missing) > 0 {
		return l, fmt.Errorf("summary statistics header is missing required columns %v; saw %v", missing, header)
	}

	return l, nil
}

// HasSampleSize reports whether rows can yield an effective sample size
// without an external override.
func (l Layout) HasSampleSize() bool {
	return l.ColN != Absent || (l.ColNCase != Absent && l.ColNControl != Absent)
}

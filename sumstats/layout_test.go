package sumstats

import (
	"math"
	"testing"
)

func TestBOLTLayout(t *testing.T) {
	row := []string{"rs3131972", "1", "752721", "0.0", "A", "G", "0.16", "0.98", "1.2", "0.27", "-0.0042", "0.0038", "1.2", "0.27", "1.2", "0.27"}
	parser, err := New("BOLT")
	if err != nil {
		t.Fatal(err)
	}
	parsedRow, err := parser.ParseRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if parsedRow.A1 != Allele("A") ||
		parsedRow.A0 != Allele("G") ||
		parsedRow.Chromosome != "1" ||
		parsedRow.SNP != "rs3131972" ||
		parsedRow.Position != 752721 ||
		parsedRow.Beta != -0.0042 ||
		parsedRow.BetaSE != 0.0038 ||
		parsedRow.P != 0.27 {
		t.Errorf("Mismatch: %+v", parsedRow)
	}
	if !math.IsNaN(parsedRow.NEff) {
		t.Errorf("BOLT carries no N, expected NaN, saw %f", parsedRow.NEff)
	}
}

func TestREGENIELayout(t *testing.T) {
	row := []string{"01", "751756", "1:751756:C:T", "C", "T", "0.16", "0.99", "4000", "ADD", "0.01", "0.005", "4.0", "1.30103"}
	parser, err := New("REGENIE")
	if err != nil {
		t.Fatal(err)
	}
	parsedRow, err := parser.ParseRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if parsedRow.Chromosome != "1" || parsedRow.A0 != "C" || parsedRow.A1 != "T" || parsedRow.NEff != 4000 {
		t.Errorf("Mismatch: %+v", parsedRow)
	}
	if math.Abs(parsedRow.P-0.05) > 1e-6 {
		t.Errorf("expected P=0.05 from LOG10P, saw %g", parsedRow.P)
	}
}

func TestDetectLayout(t *testing.T) {
	header := []string{"MarkerName", "CHR", "BP", "Allele1", "Allele2", "OR", "SE", "P", "Ncas", "Ncon"}
	l, err := DetectLayout(header, '\t')
	if err != nil {
		t.Fatal(err)
	}
	if l.ColSNP != 0 || l.ColChromosome != 1 || l.ColPosition != 2 || l.ColA1 != 3 || l.ColA0 != 4 ||
		l.ColBeta != Absent || l.ColOR != 5 || l.ColSE != 6 || l.ColP != 7 || l.ColNCase != 8 || l.ColNControl != 9 {
		t.Errorf("unexpected layout %+v", l)
	}

	p, _ := NewWithLayout(l)
	s, err := p.ParseRow([]string{"rs1", "chr2", "100", "a", "g", "2.0", "0.1", "1e-3", "1000", "3000"})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.Beta-math.Log(2)) > 1e-12 {
		t.Errorf("expected beta=log(OR), saw %g", s.Beta)
	}
	if s.A1 != "A" || s.A0 != "G" || s.Chromosome != "2" {
		t.Errorf("unexpected parse %+v", s)
	}
	if expected := 4 / (1/1000.0 + 1/3000.0); math.Abs(s.NEff-expected) > 1e-9 {
		t.Errorf("expected n_eff %f, saw %f", expected, s.NEff)
	}
}

func TestDetectLayoutPrefersPhysicalPosition(t *testing.T) {
	l, err := DetectLayout([]string{"SNP", "CHR", "BP", "GENPOS", "ALLELE1", "ALLELE0", "BETA", "SE"}, '\t')
	if err != nil {
		t.Fatal(err)
	}
	if l.ColPosition != 2 {
		t.Errorf("expected BP (2) as the position column, saw %d", l.ColPosition)
	}
}

func TestDetectLayoutMissingColumns(t *testing.T) {
	if _, err := DetectLayout([]string{"CHR", "BP", "A1", "A2", "P"}, '\t'); err == nil {
		t.Error("expected an error for a header without effect sizes")
	}
}

func TestEffectiveN(t *testing.T) {
	if n := EffectiveN(5000, 5000); n != 10000 {
		t.Errorf("balanced design should give n_eff = n, saw %f", n)
	}
	if !math.IsNaN(EffectiveN(0, 100)) {
		t.Error("expected NaN without cases")
	}
}

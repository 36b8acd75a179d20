package sumstats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/polygenic"
)

func TestLoadAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ss.txt")
	contents := "##source=test\n" +
		"#CHROM POS ID A0 A1 BETA SE N\n" +
		"1 100 rs1 A G 0.1 0.01 1000\n" +
		"chr1 200 rs2 C T -0.2 0.02 1000\n" +
		"1 300 rs3 C T 0.2 0 1000\n" +
		"1 400 rs4 C T NA 0.02 1000\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	tab, err := Load(path, AutoLayout, LoadOptions{Build: polygenic.GRCh37})
	if err != nil {
		t.Fatal(err)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("expected 2 usable rows, saw %d: %+v", len(tab.Rows), tab.Rows)
	}
	if tab.Dropped != 2 {
		t.Errorf("expected 2 dropped rows, saw %d", tab.Dropped)
	}
	if tab.Rows[1].Chromosome != "1" || tab.Rows[1].SNP != "rs2" || tab.Rows[1].Beta != -0.2 {
		t.Errorf("unexpected row %+v", tab.Rows[1])
	}
	if tab.Build != polygenic.GRCh37 {
		t.Errorf("expected build to be carried, saw %q", tab.Build)
	}
}

func TestLoadNeedsSampleSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ss.tsv")
	if err := os.WriteFile(path, []byte("CHR\tBP\tA1\tA2\tBETA\tSE\n1\t100\tA\tG\t0.1\t0.01\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, AutoLayout, LoadOptions{}); err == nil {
		t.Error("expected an error without sample size")
	}

	tab, err := Load(path, AutoLayout, LoadOptions{N: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if len(tab.Rows) != 1 || tab.Rows[0].NEff != 5000 {
		t.Errorf("expected the override N to apply, saw %+v", tab.Rows)
	}
}

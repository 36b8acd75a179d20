package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/score"
	"github.com/kshedden/gonpy"
	"gopkg.in/guregu/null.v3"
)

const (
	nChrom      = 2
	perChrom    = 20
	nTarget     = 300
	nGWAS       = 3000
	causalEvery = 7
)

type simulation struct {
	variants []polygenic.BIMRow
	freqs    []float64
	effects  []float64
}

// newSimulation lays out chroms x per variants. Every causalEvery-th variant
// is causal, with effects shrinking as the count grows so that total genetic
// variance stays roughly fixed.
func newSimulation(rng *rand.Rand, chroms, per int) simulation {
	size := 0.4 * math.Sqrt(float64(nChrom*perChrom)/float64(chroms*per))

	sim := simulation{}
	for c := 1; c <= chroms; c++ {
		for k := 0; k < per; k++ {
			j := len(sim.variants)
			sim.variants = append(sim.variants, polygenic.BIMRow{
				Chromosome: fmt.Sprint(c),
				VariantID:  fmt.Sprintf("rs%d", 1000+j),
				Coordinate: uint32(10000 * (k + 1)),
				Allele1:    "A",
				Allele2:    "G",
			})
			sim.freqs = append(sim.freqs, 0.1+0.4*rng.Float64())

			effect := 0.0
			if j%causalEvery == 0 {
				effect = size
			}
			sim.effects = append(sim.effects, effect)
		}
	}
	return sim
}

// draw returns one genotype column per variant and a phenotype per person.
func (sim simulation) draw(rng *rand.Rand, n int) ([][]float64, []float64) {
	g := make([][]float64, len(sim.variants))
	y := make([]float64, n)
	for i := range y {
		y[i] = rng.NormFloat64()
	}
	for j := range g {
		g[j] = make([]float64, n)
		for i := range g[j] {
			d := 0.0
			for a := 0; a < 2; a++ {
				if rng.Float64() < sim.freqs[j] {
					d++
				}
			}
			g[j][i] = d
			y[i] += sim.effects[j] * d
		}
	}
	return g, y
}

// writeSumstats runs a marginal regression per variant on a separate sample.
// A binary GWAS regresses the dichotomized phenotype and reports approximate
// log odds, beta / (K (1 - K)) for case fraction K.
func (sim simulation) writeSumstats(t *testing.T, rng *rand.Rand, path string, binary bool) {
	t.Helper()

	g, y := sim.draw(rng, nGWAS)
	scale := 1.0
	if binary {
		y = dichotomize(y)
		k := 0.0
		for _, v := range y {
			k += v
		}
		k /= float64(len(y))
		scale = 1 / (k * (1 - k))
	}

	var b strings.Builder
	b.WriteString("CHR\tPOS\tSNP\tA1\tA2\tBETA\tSE\tN\n")
	for j, v := range sim.variants {
		beta, se := regress(g[j], y)
		fmt.Fprintf(&b, "%s\t%d\t%s\t%s\t%s\t%g\t%g\t%d\n", v.Chromosome, v.Coordinate, v.VariantID, v.Allele1, v.Allele2, scale*beta, scale*se, nGWAS)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

// dichotomize codes values above the mean as 1 and the rest as 0.
func dichotomize(y []float64) []float64 {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	out := make([]float64, len(y))
	for i, v := range y {
		if v > mean {
			out[i] = 1
		}
	}
	return out
}

func regress(x, y []float64) (beta, se float64) {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var sxx, sxy float64
	for i := range x {
		sxx += (x[i] - mx) * (x[i] - mx)
		sxy += (x[i] - mx) * (y[i] - my)
	}
	beta = sxy / sxx

	var rss float64
	for i := range x {
		r := y[i] - my - beta*(x[i]-mx)
		rss += r * r
	}
	se = math.Sqrt(rss / (n - 2) / sxx)
	return beta, se
}

// setup writes a target PLINK fileset and GWAS results for it. With binary
// set, the phenotype is dichotomized at its mean and written as PLINK 1/2,
// and the GWAS reports log odds.
func setup(t *testing.T, binary bool) Config {
	t.Helper()
	return setupSized(t, binary, nChrom, perChrom)
}

func setupSized(t *testing.T, binary bool, chroms, per int) Config {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	sim := newSimulation(rng, chroms, per)
	dir := t.TempDir()

	g, y := sim.draw(rng, nTarget)
	cases := dichotomize(y)

	samples := make([]polygenic.Sample, nTarget)
	for i := range samples {
		samples[i] = polygenic.Sample{FID: fmt.Sprintf("F%d", i), IID: fmt.Sprintf("I%d", i), Phenotype: null.FloatFrom(y[i])}
		if binary {
			// PLINK 1 = control, 2 = case
			samples[i].Phenotype = null.FloatFrom(1 + cases[i])
		}
	}
	// A few missing genotypes and one unphenotyped sample
	g[3][5] = math.NaN()
	g[11][17] = math.NaN()
	samples[9].Phenotype = null.Float{}

	prefix := filepath.Join(dir, "target")
	if err := genotype.WriteBED(prefix, sim.variants, samples, g); err != nil {
		t.Fatal(err)
	}

	ssPath := filepath.Join(dir, "gwas.tsv")
	sim.writeSumstats(t, rng, ssPath, binary)

	cfg := DefaultConfig()
	cfg.Genotypes = prefix
	cfg.Sumstats = ssPath
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.TmpDir = t.TempDir()
	cfg.NVal = 0.5
	cfg.Workers = 2
	cfg.HWEThreshold = 1e-10
	cfg.H2 = 0.3
	cfg.GridBurnIn = 10
	cfg.GridNumIter = 20
	cfg.AutoChains = 4
	cfg.AutoBurnIn = 20
	cfg.AutoNumIter = 20
	cfg.LassoNLambda = 5
	cfg.LassoMaxIter = 100

	return cfg
}

func nCandidates(cfg Config) int {
	return 1 + 168 + 1 + len(cfg.LassoDeltas)*cfg.LassoNLambda
}

func sameStat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func TestRunContinuous(t *testing.T) {
	cfg := setup(t, false)

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Binary {
		t.Error("expected a continuous trait")
	}
	// The standard deviation check is on by default and should spare
	// consistent summary statistics.
	if len(res.Matched) < nChrom*perChrom*9/10 {
		t.Errorf("expected most of %d variants to pass matching and QC, saw %d", nChrom*perChrom, len(res.Matched))
	}
	if len(res.Records) != nCandidates(cfg) {
		t.Fatalf("expected %d candidates, saw %d", nCandidates(cfg), len(res.Records))
	}

	grid := 0
	for _, r := range res.Records {
		if r.Method == MethodGrid {
			grid++
		}
	}
	if grid != 168 {
		t.Errorf("expected 168 grid candidates, saw %d", grid)
	}

	best := res.Records[res.Best]
	if !best.Defined() {
		t.Errorf("selected an undefined candidate %+v", best)
	}
	for _, r := range res.Records {
		if r.Defined() && r.Statistic > best.Statistic {
			t.Errorf("candidate %+v beats the selected %+v", r, best)
		}
	}
	if len(res.BestBeta) != len(res.Matched) {
		t.Errorf("best effects have %d entries for %d variants", len(res.BestBeta), len(res.Matched))
	}

	if len(res.ValidationRows)+len(res.TestRows) != nTarget-1 {
		t.Errorf("split covers %d samples, expected %d", len(res.ValidationRows)+len(res.TestRows), nTarget-1)
	}
	seen := make(map[int]bool)
	for _, i := range res.ValidationRows {
		seen[i] = true
	}
	for _, i := range res.TestRows {
		if seen[i] {
			t.Errorf("sample %d is in both splits", i)
		}
		if i == 9 {
			t.Error("the unphenotyped sample was scored")
		}
	}

	if !(res.TestCorrelation > 0) {
		t.Errorf("expected a positive test correlation, saw %v", res.TestCorrelation)
	}
	if !math.IsNaN(res.TestAUC) {
		t.Errorf("expected no AUC for a continuous trait, saw %v", res.TestAUC)
	}

	for _, name := range []string{MatchedFile, RecordsFile, BestEffectsFile, GridEffectsFile, LassoEffectsFile, AutoChainsFile} {
		if _, err := os.Stat(filepath.Join(cfg.OutDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(cfg.OutDir, RecordsFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var records []score.Record
	if err := ReadTSV(f, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != len(res.Records) {
		t.Errorf("records.tsv has %d rows, expected %d", len(records), len(res.Records))
	}

	npy, err := os.Open(filepath.Join(cfg.OutDir, GridEffectsFile))
	if err != nil {
		t.Fatal(err)
	}
	defer npy.Close()
	r, err := gonpy.NewReader(npy)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Shape) != 2 || r.Shape[0] != 168 || r.Shape[1] != len(res.Matched) {
		t.Errorf("unexpected grid matrix shape %v", r.Shape)
	}

	left, err := os.ReadDir(cfg.TmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("expected the LD matrix to be removed, found %d entries", len(left))
	}
}

func TestRunThousandVariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping the 1000-variant run in short mode")
	}

	const chroms, per = 2, 500
	cfg := setupSized(t, false, chroms, per)
	// Variants sit 10 kb apart; keep about 20 neighbours on each side.
	cfg.WindowBP = 2e5

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Matched) < chroms*per*9/10 {
		t.Errorf("expected most of %d variants to pass matching and QC, saw %d", chroms*per, len(res.Matched))
	}
	if len(res.Records) != nCandidates(cfg) {
		t.Fatalf("expected %d candidates, saw %d", nCandidates(cfg), len(res.Records))
	}

	grid := 0
	for _, r := range res.Records {
		if r.Method == MethodGrid {
			grid++
		}
	}
	if grid != 168 {
		t.Errorf("expected 168 grid candidates, saw %d", grid)
	}

	if !res.Records[res.Best].Defined() {
		t.Errorf("selected an undefined candidate %+v", res.Records[res.Best])
	}
	if !(res.TestCorrelation > 0) {
		t.Errorf("expected a positive test correlation, saw %v", res.TestCorrelation)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := setup(t, false)

	first, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg.OutDir = filepath.Join(t.TempDir(), "again")
	cfg.Workers = 3
	second, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if first.Best != second.Best {
		t.Errorf("selected candidate %d, then %d", first.Best, second.Best)
	}
	for k := range first.Records {
		if !sameStat(first.Records[k].Statistic, second.Records[k].Statistic) {
			t.Errorf("candidate %d: statistic %v, then %v", k, first.Records[k].Statistic, second.Records[k].Statistic)
		}
	}
}

func TestRunBinary(t *testing.T) {
	cfg := setup(t, true)
	cfg.KeepLD = true

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if !res.Binary {
		t.Fatal("expected 1/2 coding to be detected as binary")
	}
	if len(res.Matched) < nChrom*perChrom*9/10 {
		t.Errorf("expected most of %d variants to pass matching and QC, saw %d", nChrom*perChrom, len(res.Matched))
	}
	if !(res.TestAUC > 0.5) {
		t.Errorf("expected a useful AUC, saw %v", res.TestAUC)
	}
	if _, err := os.Stat(res.LDPath); err != nil {
		t.Errorf("expected the LD matrix to be kept: %v", err)
	}
}

func TestRunRejectsContinuousAsBinary(t *testing.T) {
	cfg := setup(t, false)
	cfg.Trait = TraitBinary

	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("expected an error for a continuous phenotype declared binary")
	}
}

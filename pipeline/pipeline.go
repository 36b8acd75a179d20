package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/genmap"
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/ldmatrix"
	"github.com/carbocation/polygenic/ldpred"
	"github.com/carbocation/polygenic/ldsc"
	"github.com/carbocation/polygenic/qc"
	"github.com/carbocation/polygenic/score"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/carbocation/polygenic/sumstats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"
)

// Method names used in selection records.
const (
	MethodInf       = "inf"
	MethodGrid      = "grid"
	MethodAuto      = "auto"
	MethodLassosum2 = "lassosum2"
)

type Result struct {
	Records []score.Record
	Best    int

	// Effects of the selected candidate, one per matched variant
	BestBeta []float64

	Matched []snpmatch.Matched
	JoinBy  snpmatch.JoinKey
	H2      float64
	Binary  bool

	ValidationRows []int
	TestRows       []int

	// Accuracy of the selected candidate on the test rows. AUC is NaN for a
	// continuous trait.
	TestCorrelation float64
	TestAUC         float64

	AutoChains []ChainSummary

	// Set when KeepLD is on
	LDPath string
}

// candidate is an effect vector waiting to be scored.
type candidate struct {
	record score.Record
	beta   []float64
}

// Open picks the genotype backend from the path: .bgen files through their
// BGI index, anything else as a PLINK fileset.
func Open(cfg Config) (genotype.Source, error) {
	if genotype.IsBGEN(cfg.Genotypes) {
		return genotype.OpenBGEN(cfg.Genotypes, cfg.BGI, cfg.SampleFile, cfg.Client)
	}
	return genotype.OpenBED(cfg.Genotypes, cfg.Client)
}

// Run executes the whole workflow and writes its outputs into cfg.OutDir.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, pfx.Err(err)
	}

	src, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	log.Printf("Genotypes: %d samples, %d variants\n", src.NSamples(), src.NVariants())

	y, binary, err := loadPhenotype(cfg, src.Samples())
	if err != nil {
		return nil, err
	}

	eligible := make([]int, 0, len(y))
	for i, v := range y {
		if v.Valid {
			eligible = append(eligible, i)
		}
	}
	val, test, err := genotype.Split(eligible, cfg.NVal, cfg.Seed)
	if err != nil {
		return nil, err
	}
	sort.Ints(val)
	sort.Ints(test)
	log.Printf("%d phenotyped samples: %d for validation, %d for testing (binary trait: %v)\n", len(eligible), len(val), len(test), binary)

	matched, joinBy, err := match(cfg, src.Variants())
	if err != nil {
		return nil, err
	}

	matched, err = filterVariants(cfg, src, matched, binary)
	if err != nil {
		return nil, err
	}
	if err := WriteTSV(outPath(cfg.OutDir, MatchedFile), matched); err != nil {
		return nil, err
	}

	out := &Result{
		Matched:        matched,
		JoinBy:         joinBy,
		Binary:         binary,
		ValidationRows: val,
		TestRows:       test,
	}

	ldDir, err := os.MkdirTemp(cfg.TmpDir, "polygenic-ld-")
	if err != nil {
		return nil, pfx.Err(err)
	}
	if cfg.KeepLD {
		out.LDPath = filepath.Join(ldDir, "ld.sqlite")
		log.Println("Keeping the LD matrix at", out.LDPath)
	} else {
		defer os.RemoveAll(ldDir)
	}

	builder := ldmatrix.Builder{
		Path:     filepath.Join(ldDir, "ld.sqlite"),
		WindowCM: cfg.WindowCM,
		WindowBP: cfg.WindowBP,
		ThrR2:    cfg.ThrR2,
		Workers:  cfg.Workers,
	}
	ld, err := builder.Build(ctx, src, matched)
	if err != nil {
		return nil, err
	}

	store, err := ldmatrix.Open(ld.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	store.SetCacheSize(store.NCols())

	out.H2, err = heritability(cfg, matched, ld.LDScores)
	if err != nil {
		return nil, err
	}

	in, err := ldpred.NewInput(matched, store)
	if err != nil {
		return nil, err
	}

	yVal := values(y, val)
	yTest := values(y, test)

	cands, err := fitAll(ctx, cfg, in, out.H2)
	if err != nil {
		return nil, err
	}

	auto, chains, err := fitAuto(ctx, cfg, src, in, matched, out.H2, val)
	if err != nil {
		return nil, err
	}
	out.AutoChains = chains
	cands = append(cands, auto)

	lasso, err := fitLassosum2(ctx, cfg, in)
	if err != nil {
		return nil, err
	}
	cands = append(cands, lasso...)

	betas := make([][]float64, len(cands))
	for k, c := range cands {
		betas[k] = c.beta
	}
	preds, err := score.PredictMany(src, matched, betas, val)
	if err != nil {
		return nil, err
	}

	out.Records = make([]score.Record, len(cands))
	for k, c := range cands {
		rec := c.record
		rec.Statistic = score.TStat(preds[k], yVal, binary)
		out.Records[k] = rec
	}
	if err := WriteTSV(outPath(cfg.OutDir, RecordsFile), out.Records); err != nil {
		return nil, err
	}

	out.Best, err = score.Select(out.Records)
	if err != nil {
		return nil, err
	}
	best := out.Records[out.Best]
	out.BestBeta = cands[out.Best].beta
	log.Printf("Selected %s (p %g, h2 %g, sparse %v, delta %g, lambda %g) with validation statistic %.4f\n",
		best.Method, best.P, best.H2, best.Sparse, best.Delta, best.Lambda, best.Statistic)

	testPred, err := score.Predict(src, matched, out.BestBeta, test)
	if err != nil {
		return nil, err
	}
	out.TestCorrelation = score.Correlation(testPred, yTest)
	out.TestAUC = math.NaN()
	if binary {
		out.TestAUC = score.AUC(testPred, yTest)
		log.Printf("Test split: r = %.4f, AUC = %.4f\n", out.TestCorrelation, out.TestAUC)
	} else {
		log.Printf("Test split: r = %.4f, r2 = %.4f\n", out.TestCorrelation, out.TestCorrelation*out.TestCorrelation)
	}

	if err := writeEffects(cfg, matched, cands, out); err != nil {
		return nil, err
	}
	if err := PlotGrid(outPath(cfg.OutDir, GridPlotFile), out.Records); err != nil {
		log.Println("Could not plot the grid:", err)
	}

	return out, nil
}

// loadPhenotype returns one value per sample and whether the trait is
// binary (recoded to 0/1).
func loadPhenotype(cfg Config, samples []polygenic.Sample) ([]null.Float, bool, error) {
	var y []null.Float
	if cfg.PhenotypeFile != "" {
		phenos, err := polygenic.ReadPhenotypeFile(cfg.PhenotypeFile, cfg.PhenotypeColumn, cfg.Client)
		if err != nil {
			return nil, false, err
		}
		y = polygenic.AlignPhenotype(samples, phenos)
	} else {
		y = make([]null.Float, len(samples))
		for i, s := range samples {
			y[i] = s.Phenotype
		}
	}

	if cfg.Trait == TraitContinuous {
		return y, false, nil
	}

	recoded, binary := polygenic.RecodeCaseControl(y)
	if cfg.Trait == TraitBinary && !binary {
		return nil, false, fmt.Errorf("trait was declared binary but the phenotype is not coded 0/1 or 1/2")
	}
	if binary {
		return recoded, true, nil
	}

	return y, false, nil
}

func match(cfg Config, variants []polygenic.BIMRow) ([]snpmatch.Matched, snpmatch.JoinKey, error) {
	ssBuild, _ := polygenic.ParseBuild(cfg.SumstatsBuild)
	mapBuild, _ := polygenic.ParseBuild(cfg.GenotypeBuild)

	tbl, err := sumstats.Load(cfg.Sumstats, cfg.SumstatsLayout, sumstats.LoadOptions{
		N:      cfg.SumstatsN,
		Build:  ssBuild,
		Client: cfg.Client,
	})
	if err != nil {
		return nil, 0, err
	}

	// Assign mutates, so work on a copy of the backend's map.
	variants = append([]polygenic.BIMRow(nil), variants...)
	if cfg.GeneticMap != "" {
		cols := genmap.PLINKColumns
		if cfg.GeneticMapFormat == "hapmap" {
			cols = genmap.HapMapColumns
		}
		gm, err := genmap.LoadFile(cfg.GeneticMap, cols, cfg.Client)
		if err != nil {
			return nil, 0, err
		}
		if missing := gm.Assign(variants); missing > 0 {
			log.Printf("%d variants lie on chromosomes the genetic map does not cover\n", missing)
		}
	}

	opts := snpmatch.DefaultOptions()
	opts.StrandFlip = cfg.StrandFlip
	opts.MinMatch = cfg.MinMatch
	opts.SumstatsBuild = ssBuild
	opts.MapBuild = mapBuild
	if cfg.JoinByID {
		opts.JoinBy = snpmatch.ByID
	}

	res, err := snpmatch.MatchWithFallback(tbl.Rows, variants, opts)
	if err != nil {
		return nil, 0, err
	}

	return res.Rows, res.JoinBy, nil
}

// filterVariants applies the sumstats standard-deviation check and the
// Hardy-Weinberg filter, computed over every genotyped sample.
func filterVariants(cfg Config, m genotype.Matrix, matched []snpmatch.Matched, binary bool) ([]snpmatch.Matched, error) {
	if !cfg.SDCheck && cfg.HWEThreshold <= 0 {
		return matched, nil
	}

	cols := make([]int, len(matched))
	for i, v := range matched {
		cols[i] = v.GenotypeIndex
	}
	st, err := genotype.AlleleFrequencies(m, cols, nil)
	if err != nil {
		return nil, err
	}

	keep := make([]int, len(matched))
	for i := range keep {
		keep[i] = i
	}

	if cfg.SDCheck {
		freqs := make([]float64, len(st))
		for i, s := range st {
			freqs[i] = s.Freq
		}
		keep = qc.Intersect(keep, qc.SDCheck(matched, freqs, binary))
	}
	if cfg.HWEThreshold > 0 {
		keep = qc.Intersect(keep, qc.HWEFilter(st, cfg.HWEThreshold))
	}

	if len(keep) == 0 {
		return nil, fmt.Errorf("no matched variant passed quality control")
	}

	return qc.Subset(matched, keep), nil
}

func heritability(cfg Config, matched []snpmatch.Matched, ldScores []float64) (float64, error) {
	if cfg.H2 > 0 {
		log.Printf("Using the configured heritability %g\n", cfg.H2)
		return cfg.H2, nil
	}

	chi2 := make([]float64, len(matched))
	nEff := make([]float64, len(matched))
	for i, m := range matched {
		chi2[i] = m.Chi2()
		nEff[i] = m.NEff
	}

	res, err := ldsc.Regress(ldScores, chi2, nEff, len(matched))
	if err != nil {
		return 0, fmt.Errorf("LD score regression failed (set h2 to skip it): %w", err)
	}
	log.Printf("LD score regression: intercept %.4f, h2 %.4f\n", res.Intercept, res.H2)

	return res.H2, nil
}

func baseRecord(method string) score.Record {
	return score.Record{
		Method: method,
		P:      math.NaN(),
		H2:     math.NaN(),
		Delta:  math.NaN(),
		Lambda: math.NaN(),
		Chain:  -1,
	}
}

// fitAll runs LDpred2-inf and LDpred2-grid.
func fitAll(ctx context.Context, cfg Config, in *ldpred.Input, h2 float64) ([]candidate, error) {
	out := make([]candidate, 0)

	inf, err := ldpred.Inf(in, h2)
	if err != nil {
		return nil, err
	}
	rec := baseRecord(MethodInf)
	rec.H2 = h2
	rec.Diverged = !finite(inf)
	out = append(out, candidate{record: rec, beta: inf})

	fits, err := ldpred.Grid(ctx, in, ldpred.ParamGrid(h2), ldpred.GridOptions{
		BurnIn:  cfg.GridBurnIn,
		NumIter: cfg.GridNumIter,
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	for _, fit := range fits {
		rec := baseRecord(MethodGrid)
		rec.P, rec.H2, rec.Sparse = fit.P, fit.H2, fit.Sparse
		rec.Diverged = fit.Diverged
		out = append(out, candidate{record: rec, beta: fit.Beta})
	}

	return out, nil
}

// fitAuto runs the auto chains, drops those whose prediction spread on the
// validation rows is an outlier, and averages the rest into one candidate.
func fitAuto(ctx context.Context, cfg Config, m genotype.Matrix, in *ldpred.Input, matched []snpmatch.Matched, h2 float64, val []int) (candidate, []ChainSummary, error) {
	chains, err := ldpred.Auto(ctx, in, h2, ldpred.AutoOptions{
		NChains:  cfg.AutoChains,
		BurnIn:   cfg.AutoBurnIn,
		NumIter:  cfg.AutoNumIter,
		Workers:  cfg.Workers,
		Seed:     cfg.Seed,
		PInitMin: cfg.AutoPInitMin,
		PInitMax: cfg.AutoPInitMax,
	})
	if err != nil {
		return candidate{}, nil, err
	}

	betas := make([][]float64, len(chains))
	for k, c := range chains {
		betas[k] = c.Beta
	}
	preds, err := score.PredictMany(m, matched, betas, val)
	if err != nil {
		return candidate{}, nil, err
	}

	predSD := make([]float64, len(chains))
	for k, p := range preds {
		predSD[k] = math.NaN()
		if !chains[k].Diverged && finite(p) && len(p) > 1 {
			predSD[k] = stat.StdDev(p, nil)
		}
	}

	keep := ldpred.FilterChains(predSD, cfg.MADThreshold)
	kept := make(map[int]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	log.Printf("LDpred2-auto: kept %d of %d chains\n", len(keep), len(chains))

	summaries := make([]ChainSummary, len(chains))
	for k, c := range chains {
		summaries[k] = ChainSummary{
			Chain:    k,
			PInit:    c.PInit,
			PEst:     c.PEst,
			H2Est:    c.H2Est,
			PredSD:   predSD[k],
			Kept:     kept[k],
			Diverged: c.Diverged,
		}
	}

	rec := baseRecord(MethodAuto)
	beta, p, h2Est := ldpred.AverageChains(chains, keep)
	if beta == nil {
		beta = ldpred.NaNVector(in.M())
		rec.Diverged = true
	} else {
		rec.P, rec.H2 = p, h2Est
	}

	return candidate{record: rec, beta: beta}, summaries, nil
}

func fitLassosum2(ctx context.Context, cfg Config, in *ldpred.Input) ([]candidate, error) {
	opts := ldpred.DefaultLassoOptions()
	opts.Deltas = cfg.LassoDeltas
	opts.NLambda = cfg.LassoNLambda
	opts.LambdaMinRatio = cfg.LassoLambdaMinRatio
	opts.MaxIter = cfg.LassoMaxIter
	opts.Workers = cfg.Workers

	fits, err := ldpred.Lassosum2(ctx, in, opts)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, len(fits))
	for k, fit := range fits {
		rec := baseRecord(MethodLassosum2)
		rec.Delta, rec.Lambda = fit.Delta, fit.Lambda
		rec.Diverged = fit.Diverged
		out[k] = candidate{record: rec, beta: fit.Beta}
	}

	return out, nil
}

func writeEffects(cfg Config, matched []snpmatch.Matched, cands []candidate, res *Result) error {
	if err := WriteTSV(outPath(cfg.OutDir, BestEffectsFile), Effects(matched, res.BestBeta)); err != nil {
		return err
	}
	if err := WriteTSV(outPath(cfg.OutDir, AutoChainsFile), res.AutoChains); err != nil {
		return err
	}

	var grid, lasso [][]float64
	for _, c := range cands {
		switch c.record.Method {
		case MethodGrid:
			grid = append(grid, c.beta)
		case MethodLassosum2:
			lasso = append(lasso, c.beta)
		}
	}
	if err := WriteNPY(outPath(cfg.OutDir, GridEffectsFile), grid, len(matched)); err != nil {
		return err
	}

	return WriteNPY(outPath(cfg.OutDir, LassoEffectsFile), lasso, len(matched))
}

func values(y []null.Float, rows []int) []float64 {
	out := make([]float64, len(rows))
	for k, i := range rows {
		out[k] = y[i].Float64
	}
	return out
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

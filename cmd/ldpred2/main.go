// ldpred2 builds polygenic scores from GWAS summary statistics with
// LDpred2-inf, -grid, -auto and lassosum2, picks the best on a validation
// split and reports its accuracy on the held-out test split.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/polygenic/pipeline"
	"github.com/carbocation/polygenic/sumstats"
	"github.com/mattn/go-isatty"

	_ "github.com/carbocation/polygenic/compileinfoprint"
)

func main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(0)
	}

	cfg, err := parseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalln(err)
	}

	if cfg.Genotypes == "" || cfg.Sumstats == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --genotypes and --sumstats (or a --config that names them)")
	}

	// Initialize the Google Storage client only if we're pointing to Google
	// Storage paths.
	for _, p := range []string{cfg.Genotypes, cfg.BGI, cfg.SampleFile, cfg.Sumstats, cfg.PhenotypeFile, cfg.GeneticMap} {
		if strings.HasPrefix(p, "gs://") {
			client, err := storage.NewClient(context.Background())
			if err != nil {
				log.Fatalln(err)
			}
			defer client.Close()
			cfg.Client = client
			break
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	best := res.Records[res.Best]
	log.Printf("Best: %s with validation statistic %.4f; test correlation %.4f\n", best.Method, best.Statistic, res.TestCorrelation)
	log.Println("Outputs are in", cfg.OutDir)
}

// parseArgs reads the settings from args. Flags given explicitly win over the
// -config file, which wins over the defaults.
func parseArgs(fs *flag.FlagSet, args []string) (pipeline.Config, error) {
	def := pipeline.DefaultConfig()

	var (
		configPath string
		noFlip     bool
		flagCfg    = def
	)
	fs.StringVar(&configPath, "config", "", "Optional: JSON file with any of the settings below (flags given explicitly override it)")
	fs.StringVar(&flagCfg.Genotypes, "genotypes", "", "PLINK prefix (.bed/.bim/.fam) or path to a .bgen. Local or gs://")
	fs.StringVar(&flagCfg.BGI, "bgi", "", "Optional: BGI index of the .bgen, if not at the .bgen path + .bgi")
	fs.StringVar(&flagCfg.SampleFile, "sample", "", "Optional: Oxford .sample file for a .bgen")
	fs.StringVar(&flagCfg.GenotypeBuild, "genotype-build", "", "Optional: genome build of the genotypes (e.g., GRCh37)")
	fs.StringVar(&flagCfg.Sumstats, "sumstats", "", "GWAS summary statistics. Local or gs://, optionally compressed")
	fs.StringVar(&flagCfg.SumstatsLayout, "layout", def.SumstatsLayout, "Layout of the summary statistics. One of: "+sumstats.LayoutNames())
	fs.Float64Var(&flagCfg.SumstatsN, "n", 0, "Optional: sample size for summary statistics that carry none")
	fs.StringVar(&flagCfg.SumstatsBuild, "sumstats-build", "", "Optional: genome build of the summary statistics")
	fs.StringVar(&flagCfg.PhenotypeFile, "pheno", "", "Optional: phenotype file with FID and IID columns. Defaults to the .fam phenotype")
	fs.StringVar(&flagCfg.PhenotypeColumn, "pheno-col", "", "Column of -pheno to use")
	fs.StringVar(&flagCfg.Trait, "trait", def.Trait, "auto, binary or continuous")
	fs.StringVar(&flagCfg.GeneticMap, "map", "", "Optional: genetic map, used for a window in centiMorgans")
	fs.StringVar(&flagCfg.GeneticMapFormat, "map-format", def.GeneticMapFormat, "plink or hapmap")
	fs.StringVar(&flagCfg.OutDir, "out", def.OutDir, "Folder for the outputs")
	fs.StringVar(&flagCfg.TmpDir, "tmp", def.TmpDir, "Folder for the LD matrix")
	fs.BoolVar(&flagCfg.KeepLD, "keep-ld", false, "Keep the LD matrix after the run")
	fs.Float64Var(&flagCfg.NVal, "nval", def.NVal, "Validation set size: a count, or a fraction of the phenotyped samples")
	fs.Int64Var(&flagCfg.Seed, "seed", def.Seed, "Random seed for the split and the samplers")
	fs.IntVar(&flagCfg.Workers, "workers", def.Workers, "Number of concurrent workers")
	fs.BoolVar(&flagCfg.JoinByID, "join-by-id", false, "Match variants by identifier rather than by position")
	fs.BoolVar(&noFlip, "no-strand-flip", false, "Don't try the opposite strand when matching")
	fs.Float64Var(&flagCfg.MinMatch, "min-match", def.MinMatch, "Fail if fewer than this fraction of the candidate variants match")
	fs.BoolVar(&flagCfg.SDCheck, "sd-check", def.SDCheck, "Drop variants whose summary statistics imply an implausible genotype standard deviation")
	fs.Float64Var(&flagCfg.H2, "h2", 0, "Optional: heritability. If unset, estimated by LD score regression")
	fs.Float64Var(&flagCfg.WindowCM, "window-cm", def.WindowCM, "LD window in centiMorgans")
	fs.Float64Var(&flagCfg.WindowBP, "window-bp", def.WindowBP, "LD window in base pairs, for chromosomes without genetic positions")
	fs.Float64Var(&flagCfg.HWEThreshold, "hwe", 0, "Optional: drop variants with a Hardy-Weinberg p-value below this")
	fs.IntVar(&flagCfg.AutoChains, "chains", def.AutoChains, "Number of LDpred2-auto chains")
	if err := fs.Parse(args); err != nil {
		return def, err
	}

	cfg := def
	if configPath != "" {
		var err error
		if cfg, err = pipeline.ParseJSONConfigFromPath(configPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
		case "genotypes":
			cfg.Genotypes = flagCfg.Genotypes
		case "bgi":
			cfg.BGI = flagCfg.BGI
		case "sample":
			cfg.SampleFile = flagCfg.SampleFile
		case "genotype-build":
			cfg.GenotypeBuild = flagCfg.GenotypeBuild
		case "sumstats":
			cfg.Sumstats = flagCfg.Sumstats
		case "layout":
			cfg.SumstatsLayout = flagCfg.SumstatsLayout
		case "n":
			cfg.SumstatsN = flagCfg.SumstatsN
		case "sumstats-build":
			cfg.SumstatsBuild = flagCfg.SumstatsBuild
		case "pheno":
			cfg.PhenotypeFile = flagCfg.PhenotypeFile
		case "pheno-col":
			cfg.PhenotypeColumn = flagCfg.PhenotypeColumn
		case "trait":
			cfg.Trait = flagCfg.Trait
		case "map":
			cfg.GeneticMap = flagCfg.GeneticMap
		case "map-format":
			cfg.GeneticMapFormat = flagCfg.GeneticMapFormat
		case "out":
			cfg.OutDir = flagCfg.OutDir
		case "tmp":
			cfg.TmpDir = flagCfg.TmpDir
		case "keep-ld":
			cfg.KeepLD = flagCfg.KeepLD
		case "nval":
			cfg.NVal = flagCfg.NVal
		case "seed":
			cfg.Seed = flagCfg.Seed
		case "workers":
			cfg.Workers = flagCfg.Workers
		case "join-by-id":
			cfg.JoinByID = flagCfg.JoinByID
		case "no-strand-flip":
			cfg.StrandFlip = !noFlip
		case "min-match":
			cfg.MinMatch = flagCfg.MinMatch
		case "sd-check":
			cfg.SDCheck = flagCfg.SDCheck
		case "h2":
			cfg.H2 = flagCfg.H2
		case "window-cm":
			cfg.WindowCM = flagCfg.WindowCM
		case "window-bp":
			cfg.WindowBP = flagCfg.WindowBP
		case "hwe":
			cfg.HWEThreshold = flagCfg.HWEThreshold
		case "chains":
			cfg.AutoChains = flagCfg.AutoChains
		}
	})

	return cfg, nil
}

// snpmatch joins GWAS summary statistics to the variants of a .bim file or a
// .bgen index and writes the matched table, with effects re-signed to the
// genotypes' counted allele.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/pipeline"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/carbocation/polygenic/sumstats"
	"github.com/mattn/go-isatty"

	_ "github.com/carbocation/polygenic/compileinfoprint"
)

var client *storage.Client

func main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(0)
	}

	var (
		variantPath   string
		bgiPath       string
		sumstatsPath  string
		layout        string
		n             float64
		sumstatsBuild string
		mapBuild      string
		output        string
		byID          bool
		noFlip        bool
		minMatch      float64
	)
	flag.StringVar(&variantPath, "variants", "", "A .bim file, or a .bgen whose index lists the variants")
	flag.StringVar(&bgiPath, "bgi", "", "Optional: BGI index of the .bgen, if not at the .bgen path + .bgi")
	flag.StringVar(&sumstatsPath, "sumstats", "", "GWAS summary statistics. Local or gs://, optionally compressed")
	flag.StringVar(&layout, "layout", sumstats.AutoLayout, "Layout of the summary statistics. One of: "+sumstats.LayoutNames())
	flag.Float64Var(&n, "n", 0, "Optional: sample size for summary statistics that carry none")
	flag.StringVar(&sumstatsBuild, "sumstats-build", "", "Optional: genome build of the summary statistics")
	flag.StringVar(&mapBuild, "variants-build", "", "Optional: genome build of the variants")
	flag.StringVar(&output, "output", "matched.tsv", "Where to write the matched table")
	flag.BoolVar(&byID, "join-by-id", false, "Match by identifier rather than by position")
	flag.BoolVar(&noFlip, "no-strand-flip", false, "Don't try the opposite strand")
	flag.Float64Var(&minMatch, "min-match", 0.2, "Fail if fewer than this fraction of the candidate variants match")
	flag.Parse()

	if variantPath == "" || sumstatsPath == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --variants and --sumstats")
	}

	if strings.HasPrefix(variantPath, "gs://") || strings.HasPrefix(sumstatsPath, "gs://") || strings.HasPrefix(bgiPath, "gs://") {
		var err error
		client, err = storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
		defer client.Close()
	}

	opts := snpmatch.DefaultOptions()
	opts.StrandFlip = !noFlip
	opts.MinMatch = minMatch
	if byID {
		opts.JoinBy = snpmatch.ByID
	}

	var err error
	if opts.SumstatsBuild, err = polygenic.ParseBuild(sumstatsBuild); err != nil {
		log.Fatalln(err)
	}
	if opts.MapBuild, err = polygenic.ParseBuild(mapBuild); err != nil {
		log.Fatalln(err)
	}

	variants, err := loadVariants(variantPath, bgiPath)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Loaded", len(variants), "variants from", variantPath)

	tbl, err := sumstats.Load(sumstatsPath, layout, sumstats.LoadOptions{N: n, Build: opts.SumstatsBuild, Client: client})
	if err != nil {
		log.Fatalln(err)
	}

	res, err := snpmatch.MatchWithFallback(tbl.Rows, variants, opts)
	if err != nil {
		log.Fatalln(err)
	}

	if err := pipeline.WriteTSV(output, res.Rows); err != nil {
		log.Fatalln(err)
	}
	log.Printf("Wrote %d matched variants (joined by %s) to %s\n", len(res.Rows), res.JoinBy, output)
}

func loadVariants(path, bgiPath string) ([]polygenic.BIMRow, error) {
	if !genotype.IsBGEN(path) {
		return polygenic.ReadBIM(path, client)
	}

	// Only the index is read, but it is opened alongside its BGEN.
	b, err := genotype.OpenBGEN(path, bgiPath, "", client)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return b.Variants(), nil
}

// applyprs applies an effects file (chr pos rsid a0 a1 beta, as written by
// ldpred2) to PLINK or BGEN genotypes and prints one score per sample.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/pipeline"
	"github.com/carbocation/polygenic/score"
	"github.com/mattn/go-isatty"

	_ "github.com/carbocation/polygenic/compileinfoprint"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(0)
	}

	var (
		cfg        = pipeline.DefaultConfig()
		effectPath string
		sourceName string
		byID       bool
	)
	flag.StringVar(&cfg.Genotypes, "genotypes", "", "PLINK prefix (.bed/.bim/.fam) or path to a .bgen. Local or gs://")
	flag.StringVar(&cfg.BGI, "bgi", "", "Optional: BGI index of the .bgen, if not at the .bgen path + .bgi")
	flag.StringVar(&cfg.SampleFile, "sample", "", "Optional: Oxford .sample file for a .bgen")
	flag.StringVar(&effectPath, "input", "", "Effects file, e.g. best_effects.tsv")
	flag.StringVar(&sourceName, "source", "", "Source of your score (e.g., a trait and a version, or whatever you find convenient to track)")
	flag.BoolVar(&byID, "join-by-id", false, "Match effects to genotypes by identifier rather than by position")
	flag.Parse()

	if sourceName == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --source")
	}

	if cfg.Genotypes == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --genotypes")
	}

	if effectPath == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide --input")
	}

	if strings.HasPrefix(cfg.Genotypes, "gs://") || strings.HasPrefix(effectPath, "gs://") {
		client, err := storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
		defer client.Close()
		cfg.Client = client
	}

	effects, err := loadEffects(effectPath, cfg.Client)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("There are", len(effects), "variants in the effects file")

	src, err := pipeline.Open(cfg)
	if err != nil {
		log.Fatalln(err)
	}
	defer src.Close()

	matched, err := matchEffects(effects, src, byID)
	if err != nil {
		log.Fatalln(err)
	}

	beta := make([]float64, len(matched))
	for i, m := range matched {
		beta[i] = m.Beta
	}

	prs, err := score.Predict(src, matched, beta, nil)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Fprintf(STDOUT, "FID\tIID\tsource\tscore\tn_variants\n")
	for i, s := range src.Samples() {
		fmt.Fprintf(STDOUT, "%s\t%s\t%s\t%f\t%d\n", s.FID, s.IID, sourceName, prs[i], len(matched))
	}
}

func loadEffects(path string, client *storage.Client) ([]pipeline.Effect, error) {
	rc, err := polygenic.OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var effects []pipeline.Effect
	if err := pipeline.ReadTSV(rc, &effects); err != nil {
		return nil, err
	}

	return effects, nil
}

// Package pipeline runs the whole polygenic score workflow: load, match, QC,
// LD, heritability, the four estimators, validation and test scoring.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/ldpred"
	"github.com/carbocation/polygenic/sumstats"
)

// Trait kinds. TraitAuto detects binary 0/1 or PLINK 1/2 coding.
const (
	TraitAuto       = "auto"
	TraitBinary     = "binary"
	TraitContinuous = "continuous"
)

type Config struct {
	ConfigPath string `json:"-"`

	// Needed only for gs:// paths
	Client *storage.Client `json:"-"`

	// PLINK prefix, or a .bgen path
	Genotypes     string `json:"genotypes"`
	BGI           string `json:"bgi"`
	SampleFile    string `json:"sample_file"`
	GenotypeBuild string `json:"genotype_build"`

	Sumstats       string  `json:"sumstats"`
	SumstatsLayout string  `json:"sumstats_layout"`
	SumstatsN      float64 `json:"sumstats_n"`
	SumstatsBuild  string  `json:"sumstats_build"`

	// Phenotypes come from the .fam (or .sample) unless PhenotypeFile is set.
	PhenotypeFile   string `json:"phenotype_file"`
	PhenotypeColumn string `json:"phenotype_column"`
	Trait           string `json:"trait"`

	GeneticMap       string `json:"genetic_map"`
	GeneticMapFormat string `json:"genetic_map_format"`

	OutDir string `json:"out_dir"`
	TmpDir string `json:"tmp_dir"`
	KeepLD bool   `json:"keep_ld"`

	// Validation size, as a count or a fraction of phenotyped samples
	NVal    float64 `json:"n_val"`
	Seed    int64   `json:"seed"`
	Workers int     `json:"workers"`

	JoinByID   bool    `json:"join_by_id"`
	StrandFlip bool    `json:"strand_flip"`
	MinMatch   float64 `json:"min_match"`

	SDCheck      bool    `json:"sd_check"`
	HWEThreshold float64 `json:"hwe_threshold"`

	WindowCM float64 `json:"window_cm"`
	WindowBP float64 `json:"window_bp"`
	ThrR2    float64 `json:"thr_r2"`

	// A positive H2 skips LD-score regression.
	H2 float64 `json:"h2"`

	GridBurnIn  int `json:"grid_burn_in"`
	GridNumIter int `json:"grid_num_iter"`

	AutoChains   int     `json:"auto_chains"`
	AutoBurnIn   int     `json:"auto_burn_in"`
	AutoNumIter  int     `json:"auto_num_iter"`
	AutoPInitMin float64 `json:"auto_p_init_min"`
	AutoPInitMax float64 `json:"auto_p_init_max"`
	MADThreshold float64 `json:"mad_threshold"`

	LassoDeltas         []float64 `json:"lasso_deltas"`
	LassoNLambda        int       `json:"lasso_n_lambda"`
	LassoLambdaMinRatio float64   `json:"lasso_lambda_min_ratio"`
	LassoMaxIter        int       `json:"lasso_max_iter"`
}

// DefaultConfig carries the settings of the LDpred2 tutorial.
func DefaultConfig() Config {
	grid := ldpred.DefaultGridOptions()
	auto := ldpred.DefaultAutoOptions()
	lasso := ldpred.DefaultLassoOptions()

	return Config{
		SumstatsLayout:      sumstats.AutoLayout,
		Trait:               TraitAuto,
		GeneticMapFormat:    "plink",
		OutDir:              ".",
		TmpDir:              os.TempDir(),
		NVal:                0.5,
		Seed:                1,
		Workers:             runtime.NumCPU(),
		StrandFlip:          true,
		MinMatch:            0.2,
		SDCheck:             true,
		WindowCM:            3,
		WindowBP:            3e6,
		GridBurnIn:          grid.BurnIn,
		GridNumIter:         grid.NumIter,
		AutoChains:          auto.NChains,
		AutoBurnIn:          auto.BurnIn,
		AutoNumIter:         auto.NumIter,
		AutoPInitMin:        auto.PInitMin,
		AutoPInitMax:        auto.PInitMax,
		MADThreshold:        3,
		LassoDeltas:         lasso.Deltas,
		LassoNLambda:        lasso.NLambda,
		LassoLambdaMinRatio: lasso.LambdaMinRatio,
		LassoMaxIter:        lasso.MaxIter,
	}
}

// ParseJSONConfigFromPath reads a JSON file over DefaultConfig. Fields the
// file omits keep their defaults.
func ParseJSONConfigFromPath(path string) (Config, error) {
	out := DefaultConfig()

	f, err := os.Open(polygenic.ExpandHome(path))
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}
		return out, pfx.Err(err)
	}
	out.ConfigPath = path

	out.expandPaths()

	return out, nil
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Genotypes, &c.BGI, &c.SampleFile, &c.Sumstats, &c.PhenotypeFile, &c.GeneticMap, &c.OutDir, &c.TmpDir} {
		*p = polygenic.ExpandHome(*p)
	}
}

// Validate checks the settings Run cannot do without.
func (c Config) Validate() error {
	switch {
	case c.Genotypes == "":
		return fmt.Errorf("no genotypes given")
	case c.Sumstats == "":
		return fmt.Errorf("no summary statistics given")
	case c.NVal <= 0:
		return fmt.Errorf("the validation set size must be positive, got %g", c.NVal)
	case c.Trait != TraitAuto && c.Trait != TraitBinary && c.Trait != TraitContinuous:
		return fmt.Errorf("trait must be %s, %s or %s, got %q", TraitAuto, TraitBinary, TraitContinuous, c.Trait)
	case c.GeneticMapFormat != "plink" && c.GeneticMapFormat != "hapmap":
		return fmt.Errorf("genetic map format must be plink or hapmap, got %q", c.GeneticMapFormat)
	case c.AutoChains < 1:
		return fmt.Errorf("at least one auto chain is required")
	}

	if _, err := polygenic.ParseBuild(c.GenotypeBuild); err != nil {
		return err
	}
	if _, err := polygenic.ParseBuild(c.SumstatsBuild); err != nil {
		return err
	}

	return nil
}

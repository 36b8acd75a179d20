package pipeline

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic/snpmatch"
	"github.com/gocarina/gocsv"
	"github.com/kshedden/gonpy"
)

const (
	MatchedFile      = "matched.tsv"
	RecordsFile      = "records.tsv"
	BestEffectsFile  = "best_effects.tsv"
	GridEffectsFile  = "grid_effects.npy"
	LassoEffectsFile = "lassosum2_effects.npy"
	AutoChainsFile   = "auto_chains.tsv"
)

// Effect is one row of an effects file, readable by cmd/applyprs.
type Effect struct {
	Chromosome string  `csv:"chr"`
	Position   uint32  `csv:"pos"`
	VariantID  string  `csv:"rsid"`
	A0         string  `csv:"a0"`
	A1         string  `csv:"a1"`
	Beta       float64 `csv:"beta"`
}

// ChainSummary is one row of auto_chains.tsv.
type ChainSummary struct {
	Chain    int     `csv:"chain"`
	PInit    float64 `csv:"p_init"`
	PEst     float64 `csv:"p_est"`
	H2Est    float64 `csv:"h2_est"`
	PredSD   float64 `csv:"pred_sd"`
	Kept     bool    `csv:"kept"`
	Diverged bool    `csv:"diverged"`
}

// Effects pairs an effect vector with the variants it applies to.
func Effects(matched []snpmatch.Matched, beta []float64) []Effect {
	out := make([]Effect, len(matched))
	for i, m := range matched {
		out[i] = Effect{
			Chromosome: m.Chromosome,
			Position:   m.Position,
			VariantID:  m.VariantID,
			A0:         m.A0,
			A1:         m.A1,
			Beta:       beta[i],
		}
	}
	return out
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteTSV marshals a slice of csv-tagged structs as a tab-delimited file.
func WriteTSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	w := csv.NewWriter(bufw)
	w.Comma = '\t'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(w)); err != nil {
		return pfx.Err(err)
	}
	if err := bufw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

// ReadTSV unmarshals a tab-delimited file written by WriteTSV into out, a
// pointer to a slice of structs.
func ReadTSV(r io.Reader, out interface{}) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	return pfx.Err(gocsv.UnmarshalCSV(cr, out))
}

// WriteNPY writes vectors as the rows of a float64 .npy matrix. Each vector
// must have cols entries.
func WriteNPY(path string, vectors [][]float64, cols int) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return pfx.Err(err)
	}
	npw.Shape = []int{len(vectors), cols}

	flat := make([]float64, 0, len(vectors)*cols)
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	if err := npw.WriteFloat64(flat); err != nil {
		return pfx.Err(err)
	}
	if err := bufw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

func outPath(dir, name string) string {
	return filepath.Join(dir, name)
}

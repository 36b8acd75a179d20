package genotype

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/bgen"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/chrom"
)

const maxOpenAttempts = 10

var openRetryDelay = 5 * time.Second

// BGEN exposes the expected allele-1 dosages of a BGEN file through its BGI
// index. Multiallelic variants are skipped.
type BGEN struct {
	path    string
	bgi     *bgen.BGIIndex
	b       *bgen.BGEN
	index   []bgen.VariantIndex
	variant []polygenic.BIMRow
	samples []polygenic.Sample

	mu sync.Mutex
}

// OpenBGEN opens path and its index (path.bgi unless bgiPath is set). A gs://
// index is first copied to the local temp directory, since sqlite needs a
// file name. samplePath is an Oxford .sample file; when empty, samples are
// numbered from the first variant's sample count.
func OpenBGEN(path, bgiPath, samplePath string, client *storage.Client) (*BGEN, error) {
	if bgiPath == "" {
		bgiPath = path + ".bgi"
	}

	if polygenic.IsGoogleStoragePath(bgiPath) {
		local, fresh, err := ImportBGILocked(bgiPath, client)
		if err != nil {
			return nil, err
		}
		if fresh {
			log.Printf("Copied BGI file from %s to %s\n", bgiPath, local)
		}
		bgiPath = local
	}

	bgi, b, err := openBGIAndBGEN(path, bgiPath)
	if err != nil {
		return nil, err
	}

	out := &BGEN{path: path, bgi: bgi, b: b}

	var index []bgen.VariantIndex
	if err := bgi.DB.Select(&index, "SELECT * FROM Variant ORDER BY file_start_position ASC"); err != nil {
		out.Close()
		return nil, pfx.Err(err)
	}

	skipped := 0
	for _, vi := range index {
		if vi.NAlleles != 2 {
			skipped++
			continue
		}
		out.index = append(out.index, vi)
		out.variant = append(out.variant, polygenic.BIMRow{
			Chromosome: chrom.Normalize(vi.Chromosome),
			VariantID:  vi.RSID,
			Coordinate: uint32(vi.Position),
			Allele1:    string(vi.Allele1),
			Allele2:    string(vi.Allele2),
		})
	}
	if skipped > 0 {
		log.Printf("%s: skipped %d multiallelic variants\n", path, skipped)
	}

	if samplePath != "" {
		out.samples, err = polygenic.ReadSampleFile(samplePath, "", client)
		if err != nil {
			out.Close()
			return nil, err
		}
	} else if len(out.index) > 0 {
		v, err := out.read(0)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.samples = make([]polygenic.Sample, v.NSamples)
		for i := range out.samples {
			id := fmt.Sprintf("sample%d", i+1)
			out.samples[i] = polygenic.Sample{FID: id, IID: id}
		}
	}

	return out, nil
}

// openBGIAndBGEN retries because network filesystems throw transient i/o
// errors that clear after a short wait.
func openBGIAndBGEN(bgenPath, bgiPath string) (bgi *bgen.BGIIndex, b *bgen.BGEN, err error) {
	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		bgi, err = OpenBGI(bgiPath + "?mode=ro")
		if err != nil && attempt == maxOpenAttempts {
			return nil, nil, pfx.Err(err)
		} else if err != nil {
			log.Println("OpenBGI: Sleeping to recover from", err.Error(), "attempt", attempt)
			time.Sleep(openRetryDelay)
			continue
		}
		bgi.Metadata.FirstThousandBytes = nil

		b, err = bgen.Open(bgenPath)
		if err != nil && attempt == maxOpenAttempts {
			bgi.Close()
			return nil, nil, pfx.Err(err)
		} else if err != nil {
			log.Println("bgen.Open: Sleeping to recover from", err.Error(), "attempt", attempt)
			bgi.Close()
			time.Sleep(openRetryDelay)
			continue
		}

		break
	}

	return bgi, b, nil
}

func (g *BGEN) NSamples() int                { return len(g.samples) }
func (g *BGEN) NVariants() int               { return len(g.index) }
func (g *BGEN) Variants() []polygenic.BIMRow { return g.variant }
func (g *BGEN) Samples() []polygenic.Sample  { return g.samples }

func (g *BGEN) Close() error {
	var err error
	if g.b != nil {
		err = g.b.Close()
	}
	if g.bgi != nil {
		g.bgi.Close()
	}
	return err
}

func (g *BGEN) read(col int) (*bgen.Variant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	vr := g.b.NewVariantReader()
	v := vr.ReadAt(int64(g.index[col].FileStartPosition))
	if err := vr.Error(); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s variant %s: %w", g.path, g.index[col].RSID, err))
	}

	return v, nil
}

func (g *BGEN) Dosages(col int, rows []int, dst []float64) error {
	if err := checkDst(g, col, rows, dst); err != nil {
		return err
	}

	v, err := g.read(col)
	if err != nil {
		return err
	}
	if len(v.SampleProbabilities) != len(g.samples) {
		return fmt.Errorf("%s variant %s has %d samples, expected %d", g.path, g.index[col].RSID, len(v.SampleProbabilities), len(g.samples))
	}

	if rows == nil {
		for i := range dst {
			dst[i] = dosage(v.SampleProbabilities[i])
		}
		return nil
	}

	for k, i := range rows {
		if i < 0 || i >= len(g.samples) {
			return fmt.Errorf("row %d out of range (%d samples)", i, len(g.samples))
		}
		dst[k] = dosage(v.SampleProbabilities[i])
	}

	return nil
}

// dosage is the expected count of the first allele for a diploid call.
func dosage(sp bgen.SampleProbability) float64 {
	if sp.Ploidy != 2 || len(sp.Probabilities) != 3 {
		return math.NaN()
	}

	p := sp.Probabilities
	if p[0]+p[1]+p[2] == 0 {
		return math.NaN()
	}

	return 2*p[0] + p[1]
}

// IsBGEN reports whether path names a BGEN file rather than a PLINK prefix.
func IsBGEN(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".bgen")
}

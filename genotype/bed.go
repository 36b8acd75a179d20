package genotype

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
)

var bedMagic = [3]byte{0x6c, 0x1b, 0x01}

// bedCodes maps one .bed byte to the four allele-1 dosages it packs. Codes:
// 00 homozygous allele 1, 01 missing, 10 heterozygous, 11 homozygous allele 2.
var bedCodes = func() [256][4]float64 {
	var out [256][4]float64
	dosage := [4]float64{2, math.NaN(), 1, 0}
	for b := 0; b < 256; b++ {
		for k := 0; k < 4; k++ {
			out[b][k] = dosage[(b>>(2*k))&3]
		}
	}
	return out
}()

// BED is a SNP-major PLINK 1 binary genotype file with its .bim and .fam.
type BED struct {
	prefix   string
	r        polygenic.ReaderAtCloser
	variants []polygenic.BIMRow
	samples  []polygenic.Sample
	bytesPer int64
	bufs     sync.Pool
}

// OpenBED opens prefix.bed, prefix.bim and prefix.fam. Paths may be gs://
// objects when client is non-nil; the .bed is then read with ranged requests.
func OpenBED(prefix string, client *storage.Client) (*BED, error) {
	prefix = strings.TrimSuffix(prefix, ".bed")

	variants, err := polygenic.ReadBIM(prefix+".bim", client)
	if err != nil {
		return nil, err
	}

	samples, err := polygenic.ReadFAM(prefix+".fam", client)
	if err != nil {
		return nil, err
	}

	r, size, err := polygenic.OpenReaderAt(prefix+".bed", client)
	if err != nil {
		return nil, err
	}

	b := &BED{
		prefix:   prefix,
		r:        r,
		variants: variants,
		samples:  samples,
		bytesPer: int64((len(samples) + 3) / 4),
	}
	b.bufs.New = func() interface{} {
		buf := make([]byte, b.bytesPer)
		return &buf
	}

	var magic [3]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		r.Close()
		return nil, pfx.Err(fmt.Errorf("%s.bed: %w", prefix, err))
	}
	if magic != bedMagic {
		r.Close()
		return nil, fmt.Errorf("%s.bed is not a SNP-major PLINK 1 .bed file (magic bytes %x)", prefix, magic)
	}

	if expected := 3 + b.bytesPer*int64(len(variants)); size != expected {
		r.Close()
		return nil, fmt.Errorf("%s.bed has %d bytes but %d samples and %d variants need %d", prefix, size, len(samples), len(variants), expected)
	}

	return b, nil
}

func (b *BED) NSamples() int                { return len(b.samples) }
func (b *BED) NVariants() int               { return len(b.variants) }
func (b *BED) Variants() []polygenic.BIMRow { return b.variants }
func (b *BED) Samples() []polygenic.Sample  { return b.samples }
func (b *BED) Close() error                 { return b.r.Close() }

func (b *BED) Dosages(col int, rows []int, dst []float64) error {
	if err := checkDst(b, col, rows, dst); err != nil {
		return err
	}

	bufp := b.bufs.Get().(*[]byte)
	defer b.bufs.Put(bufp)
	buf := *bufp

	if _, err := b.r.ReadAt(buf, 3+int64(col)*b.bytesPer); err != nil {
		return pfx.Err(fmt.Errorf("%s.bed column %d: %w", b.prefix, col, err))
	}

	if rows == nil {
		for i := range dst {
			dst[i] = bedCodes[buf[i>>2]][i&3]
		}
		return nil
	}

	for k, i := range rows {
		if i < 0 || i >= len(b.samples) {
			return fmt.Errorf("row %d out of range (%d samples)", i, len(b.samples))
		}
		dst[k] = bedCodes[buf[i>>2]][i&3]
	}

	return nil
}

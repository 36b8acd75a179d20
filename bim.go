package polygenic

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

type BIM struct {
	path    string
	file    io.ReadCloser
	scanner *bufio.Scanner
	line    int
	err     error
}

// OpenBIM opens a (possibly compressed) .bim file. client may be nil for
// local paths.
func OpenBIM(path string, client *storage.Client) (*BIM, error) {
	bim := &BIM{
		path: path,
	}

	rc, err := OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	bim.file = rc
	bim.scanner = bufio.NewScanner(bim.file)

	return bim, nil
}

func (b *BIM) Close() error {
	return b.file.Close()
}

func (b *BIM) Err() error {
	if b.err != nil {
		return b.err
	}

	return b.scanner.Err()
}

// Read returns the next row, or nil at the end of the file or on error. Check
// Err() to tell the two apart.
func (b *BIM) Read() *BIMRow {
	if !b.scanner.Scan() {
		return nil
	}
	b.line++

	cols := strings.Fields(b.scanner.Text())

	if len(cols) < Allele2+1 {
		b.err = fmt.Errorf("%s line %d: expected %d columns, saw %d", b.path, b.line, Allele2+1, len(cols))
		return nil
	}

	row := &BIMRow{
		Chromosome: cols[Chromosome],
		VariantID:  cols[VariantID],
		Allele1:    cols[Allele1],
		Allele2:    cols[Allele2],
	}

	coord64, err := strconv.ParseUint(cols[Coordinate], 10, 32)
	if err != nil {
		b.err = fmt.Errorf("%s line %d: %w", b.path, b.line, err)
		return nil
	}
	row.Coordinate = uint32(coord64)

	// PLINK writes genetic positions in Morgans or centiMorgans depending on
	// the tool that produced the file. Anything under 10 at the end of a
	// chromosome is Morgans, but a single row can't tell us that, so we keep
	// the raw value and let ReadBIM rescale the whole map.
	if morgans, err := strconv.ParseFloat(cols[Morgans], 64); err == nil {
		row.CentiMorgans = morgans
	}

	return row
}

// ReadBIM loads a complete variant map. Genetic positions are converted to
// centiMorgans if the file appears to carry Morgans.
func ReadBIM(path string, client *storage.Client) ([]BIMRow, error) {
	b, err := OpenBIM(path, client)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	out := make([]BIMRow, 0)
	maxGenPos := 0.0
	for row := b.Read(); row != nil; row = b.Read() {
		if row.CentiMorgans > maxGenPos {
			maxGenPos = row.CentiMorgans
		}
		out = append(out, *row)
	}
	if err := b.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	// No chromosome is shorter than ~40 cM, so a maximum below 10 means the
	// column holds Morgans.
	if maxGenPos > 0 && maxGenPos < 10 {
		for i := range out {
			out[i].CentiMorgans *= 100
		}
	}

	return out, nil
}

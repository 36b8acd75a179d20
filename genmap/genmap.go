// Package genmap assigns genetic positions (centiMorgans) to physical
// positions by linear interpolation along a recombination map.
package genmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/chrom"
)

// Columns describes a map file. Indices are 0-based.
type Columns struct {
	Delim     rune
	HasHeader bool
	Chr       int
	BP        int
	CM        int
}

var (
	// PLINK .map: chr, id, cM, bp
	PLINKColumns = Columns{Delim: ' ', Chr: 0, BP: 3, CM: 2}

	// HapMap-style: Chromosome Position(bp) Rate(cM/Mb) Map(cM)
	HapMapColumns = Columns{Delim: '\t', HasHeader: true, Chr: 0, BP: 1, CM: 3}
)

type point struct {
	bp int
	cm float64
}

// Map holds one sorted list of anchor points per chromosome.
type Map struct {
	points map[string][]point
}

// LoadFile reads a map from a local or gs:// path, decompressing as needed.
func LoadFile(path string, cols Columns, client *storage.Client) (*Map, error) {
	rc, err := polygenic.OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Load(rc, cols)
}

func Load(f io.Reader, cols Columns) (*Map, error) {
	r := csv.NewReader(f)
	r.Comma = cols.Delim
	r.Comment = '#'
	r.FieldsPerRecord = -1
	if cols.Delim == ' ' {
		r.TrimLeadingSpace = true
	}

	m := &Map{points: make(map[string][]point)}
	for line := 0; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if line == 0 && cols.HasHeader {
			continue
		}

		if len(row) <= cols.Chr || len(row) <= cols.BP || len(row) <= cols.CM {
			return nil, fmt.Errorf("map line %d has %d fields", line+1, len(row))
		}

		bp, err := strconv.Atoi(strings.TrimSpace(row[cols.BP]))
		if err != nil {
			return nil, fmt.Errorf("map line %d: %w", line+1, err)
		}
		cm, err := strconv.ParseFloat(strings.TrimSpace(row[cols.CM]), 64)
		if err != nil {
			return nil, fmt.Errorf("map line %d: %w", line+1, err)
		}

		chr := chrom.Normalize(row[cols.Chr])
		m.points[chr] = append(m.points[chr], point{bp: bp, cm: cm})
	}

	for _, pts := range m.points {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].bp < pts[j].bp })
	}

	return m, nil
}

// Has reports whether the map covers chr.
func (m *Map) Has(chr string) bool {
	return len(m.points[chrom.Normalize(chr)]) > 0
}

// Interpolate returns the genetic position of each physical position on chr.
// Positions outside the map take the value of the nearest end. Sorted input
// is walked in a single pass.
func (m *Map) Interpolate(chr string, positions []uint32) ([]float64, error) {
	pts := m.points[chrom.Normalize(chr)]
	if len(pts) == 0 {
		return nil, fmt.Errorf("genetic map has no entries for chromosome %s", chr)
	}

	out := make([]float64, len(positions))
	cursor := 0
	for i, p := range positions {
		pos := int(p)
		if cursor > 0 && pos < pts[cursor].bp {
			cursor = sort.Search(len(pts), func(k int) bool { return pts[k].bp > pos }) - 1
			if cursor < 0 {
				cursor = 0
			}
		}
		for cursor < len(pts)-1 && pos >= pts[cursor+1].bp {
			cursor++
		}

		out[i] = interpolate(pos, pts, cursor)
	}

	return out, nil
}

// Y3 = Y1 + (Y2 - Y1) / (X2 - X1) * (X3 - X1)
func interpolate(pos int, pts []point, behind int) float64 {
	left := pts[behind]
	if pos <= left.bp || behind == len(pts)-1 {
		return left.cm
	}

	right := pts[behind+1]
	if right.bp == left.bp {
		return left.cm
	}

	return left.cm + (right.cm-left.cm)/float64(right.bp-left.bp)*float64(pos-left.bp)
}

// Assign fills CentiMorgans of every variant on a chromosome the map covers.
// It returns how many variants were left unassigned.
func (m *Map) Assign(variants []polygenic.BIMRow) int {
	byChrom := make(map[string][]int)
	for i, v := range variants {
		c := chrom.Normalize(v.Chromosome)
		byChrom[c] = append(byChrom[c], i)
	}

	missing := 0
	for c, idx := range byChrom {
		if !m.Has(c) {
			missing += len(idx)
			continue
		}

		pos := make([]uint32, len(idx))
		for k, i := range idx {
			pos[k] = variants[i].Coordinate
		}
		cm, _ := m.Interpolate(c, pos)
		for k, i := range idx {
			variants[i].CentiMorgans = cm[k]
		}
	}

	return missing
}

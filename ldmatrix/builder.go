package ldmatrix

import (
	"context"
	"fmt"
	"log"

	"github.com/carbocation/polygenic/genotype"
	"github.com/carbocation/polygenic/snpmatch"
	"golang.org/x/sync/errgroup"
)

// Builder computes the LD matrix of a matched table one chromosome at a time.
type Builder struct {
	Path string

	// Window in centiMorgans, used when every variant of a chromosome has a
	// genetic position.
	WindowCM float64

	// Window in base pairs otherwise.
	WindowBP float64

	ThrR2   float64
	Workers int

	// Rows restricts the individuals used, nil for all.
	Rows []int
}

// Result describes a finished store. The writer is closed; open it with Open.
type Result struct {
	Path     string
	NCols    int
	LDScores []float64
}

type chromBlock struct {
	chr        string
	start, end int
}

// chromBlocks splits the matched table into its chromosome runs, which must
// be contiguous.
func chromBlocks(matched []snpmatch.Matched) ([]chromBlock, error) {
	out := make([]chromBlock, 0)
	seen := make(map[string]bool)
	for i := 0; i < len(matched); {
		chr := matched[i].Chromosome
		if seen[chr] {
			return nil, fmt.Errorf("chromosome %s is not contiguous in the matched table", chr)
		}
		seen[chr] = true

		j := i
		for j < len(matched) && matched[j].Chromosome == chr {
			j++
		}
		out = append(out, chromBlock{chr: chr, start: i, end: j})
		i = j
	}

	return out, nil
}

// Build writes the LD matrix of matched, whose GenotypeIndex values address
// columns of m. Chromosomes are correlated concurrently and appended in
// table order, so column k of the store is matched row k.
func (b Builder) Build(ctx context.Context, m genotype.Matrix, matched []snpmatch.Matched) (*Result, error) {
	blocks, err := chromBlocks(matched)
	if err != nil {
		return nil, err
	}

	store, err := Create(b.Path)
	if err != nil {
		return nil, err
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	done := make([]chan []Column, len(blocks))
	for k := range done {
		done[k] = make(chan []Column, 1)
	}

	ldScores := make([]float64, len(matched))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers + 1)

	// The writer holds one slot and drains the chromosomes in order.
	g.Go(func() error {
		for k, cb := range blocks {
			var block []Column
			select {
			case block = <-done[k]:
			case <-gctx.Done():
				return gctx.Err()
			}

			if err := store.AddColumns(block); err != nil {
				return err
			}
			for j, c := range block {
				for _, r := range c.Values {
					ldScores[cb.start+j] += r * r
				}
			}
			log.Printf("LD: chromosome %s done (%d variants)\n", cb.chr, cb.end-cb.start)
		}
		return nil
	})

	for k, cb := range blocks {
		k, cb := k, cb
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cols, pos, window := b.positions(matched[cb.start:cb.end])
			block, err := Correlation(m, cols, b.Rows, pos, CorrOptions{Window: window, ThrR2: b.ThrR2})
			if err != nil {
				return fmt.Errorf("chromosome %s: %w", cb.chr, err)
			}
			done[k] <- block
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		store.Remove()
		return nil, err
	}

	ncol := store.NCols()
	if err := store.Close(); err != nil {
		return nil, err
	}

	if ncol != len(matched) {
		return nil, fmt.Errorf("LD store has %d columns for %d matched variants", ncol, len(matched))
	}

	return &Result{Path: b.Path, NCols: ncol, LDScores: ldScores}, nil
}

// positions picks genetic distance when the chromosome has it: some positive
// value, none negative, and never decreasing along the table. Variants ahead of
// the first map point carry that point's value, often 0.
func (b Builder) positions(rows []snpmatch.Matched) (cols []int, pos []float64, window float64) {
	cols = make([]int, len(rows))
	hasCM, useCM := false, true
	for i, r := range rows {
		cols[i] = r.GenotypeIndex
		if r.CentiMorgans > 0 {
			hasCM = true
		}
		if r.CentiMorgans < 0 || (i > 0 && r.CentiMorgans < rows[i-1].CentiMorgans) {
			useCM = false
		}
	}
	if hasCM && !useCM {
		log.Printf("LD: chromosome %s has decreasing or negative genetic positions; using the %g bp window\n", rows[0].Chromosome, b.WindowBP)
	}
	useCM = useCM && hasCM

	pos = make([]float64, len(rows))
	for i, r := range rows {
		if useCM {
			pos[i] = r.CentiMorgans
		} else {
			pos[i] = float64(r.Position)
		}
	}

	if useCM {
		return cols, pos, b.WindowCM
	}
	return cols, pos, b.WindowBP
}

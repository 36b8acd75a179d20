package sumstats

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
)

type LoadOptions struct {
	// N is the sample size assigned to rows that carry none.
	N float64

	// Build of the positions in the file. Required to be explicit because
	// positions are meaningless across assemblies.
	Build polygenic.Build

	Client *storage.Client
}

// Load reads a (possibly compressed, possibly gs://) summary-statistics file.
// With layout AUTO the columns are detected from the header. Rows with
// non-positive or non-finite standard errors, non-finite effects, or no usable
// sample size are dropped and counted.
func Load(path, layout string, opts LoadOptions) (*Table, error) {
	rc, err := polygenic.OpenInput(path, opts.Client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var parser *Parser
	if layout != AutoLayout {
		if parser, err = New(layout); err != nil {
			return nil, err
		}
		if !parser.Layout.HasSampleSize() && opts.N <= 0 {
			return nil, fmt.Errorf("layout %s has no sample size column; provide a sample size", layout)
		}
	}

	out := &Table{Build: opts.Build}
	parseFailures := 0
	lineNo := 0
	sawHeader := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "##") {
			continue
		}

		if parser == nil {
			// The header of an AUTO file may itself start with '#' (#CHROM)
			header := strings.TrimPrefix(line, "#")
			delim := guessDelimiter(header)
			l, err := DetectLayout(splitOn(header, delim), delim)
			if err != nil {
				return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
			}
			if parser, err = NewWithLayout(l); err != nil {
				return nil, err
			}
			if !l.HasSampleSize() && opts.N <= 0 {
				return nil, fmt.Errorf("%s has no N, N_EFF or N_CASE/N_CONTROL columns; provide a sample size", path)
			}
			sawHeader = true
			continue
		}

		if parser.Layout.Comment != 0 && strings.HasPrefix(line, string(parser.Layout.Comment)) {
			continue
		}
		if parser.Layout.HasHeader && !sawHeader {
			sawHeader = true
			continue
		}

		s, err := parser.ParseRow(parser.Split(line))
		if err != nil {
			if parseFailures == 0 {
				log.Printf("%s line %d could not be parsed (%v); such rows are dropped\n", path, lineNo, err)
			}
			parseFailures++
			out.Dropped++
			continue
		}

		if math.IsNaN(s.NEff) {
			s.NEff = opts.N
		}

		if !usable(s) {
			out.Dropped++
			continue
		}

		out.Rows = append(out.Rows, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	if parseFailures > len(out.Rows) {
		return nil, fmt.Errorf("%s: %d rows could not be parsed but only %d could; is the layout right?", path, parseFailures, len(out.Rows))
	}

	log.Printf("Loaded %d summary statistics from %s (%d dropped)\n", len(out.Rows), path, out.Dropped)

	return out, nil
}

func usable(s Sumstat) bool {
	switch {
	case math.IsNaN(s.Beta) || math.IsInf(s.Beta, 0):
		return false
	case !(s.BetaSE > 0) || math.IsInf(s.BetaSE, 0):
		return false
	case !(s.NEff > 0) || math.IsInf(s.NEff, 0):
		return false
	case s.A0 == "" || s.A1 == "":
		return false
	}

	return true
}

func guessDelimiter(header string) rune {
	if strings.ContainsRune(header, '\t') {
		return '\t'
	}

	switch d := polygenic.DetermineDelimiter(strings.NewReader(header)); d {
	case ',', ';', '|':
		return d
	}

	return ' '
}

func splitOn(line string, delim rune) []string {
	p := Parser{Layout: Layout{Delimiter: delim}}
	return p.Split(line)
}

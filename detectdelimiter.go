package polygenic

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// delimiters that tabular genomics files actually use.
var delimiters = map[rune]bool{'\t': true, ',': true, ' ': true, ';': true, '|': true}

// DetermineDelimiter guesses the delimiter of a CSV-like header, ignoring
// quoted text. Candidates other than tab, comma, space, semicolon and pipe
// are skipped. Without a candidate, whitespace-only headers are taken as
// space delimited and everything else as tab delimited.
func DetermineDelimiter(r io.Reader) rune {
	b, err := io.ReadAll(r)
	if err != nil {
		return '\t'
	}

	d := detector.New()
	for _, candidate := range d.DetectDelimiter(bytes.NewReader(b), '"') {
		if c := []rune(candidate); len(c) == 1 && delimiters[c[0]] {
			return c[0]
		}
	}

	if !bytes.ContainsRune(b, '\t') && bytes.ContainsRune(bytes.TrimSpace(b), ' ') {
		return ' '
	}

	return '\t'
}

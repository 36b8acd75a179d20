// Package chrom normalizes chromosome labels and defines the fixed order in
// which chromosomes are processed.
package chrom

import (
	"sort"
	"strconv"
	"strings"
)

// Normalize strips "chr"/"chrom_" prefixes and the leading zeroes that BGENIX
// writes in the UK Biobank ("01"), and maps PLINK's numeric codes for the
// non-autosomes to their names.
func Normalize(chr string) string {
	c := strings.TrimSpace(chr)
	lower := strings.ToLower(c)
	switch {
	case strings.HasPrefix(lower, "chrom_"):
		c = c[len("chrom_"):]
	case strings.HasPrefix(lower, "chr"):
		c = c[len("chr"):]
	}

	if n, err := strconv.Atoi(c); err == nil {
		switch n {
		case 23:
			return "X"
		case 24:
			return "Y"
		case 25:
			return "XY"
		case 26:
			return "MT"
		}
		return strconv.Itoa(n)
	}

	c = strings.ToUpper(c)
	if c == "M" {
		return "MT"
	}

	return c
}

var named = map[string]int{
	"X":  23,
	"Y":  24,
	"XY": 25,
	"MT": 26,
}

// Rank gives the processing position of a normalized chromosome: autosomes by
// number, then X, Y, XY, MT. Anything else sorts after, in lexical order.
func Rank(chr string) int {
	if n, err := strconv.Atoi(chr); err == nil && n > 0 {
		return n
	}
	if r, ok := named[chr]; ok {
		return r
	}

	return 1 << 20
}

// Less orders two normalized chromosomes.
func Less(a, b string) bool {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return ra < rb
	}

	return a < b
}

// Sorted returns the distinct chromosomes of chrs in processing order.
func Sorted(chrs []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range chrs {
		if _, exists := seen[c]; exists {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })

	return out
}

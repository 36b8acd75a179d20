package polygenic

import (
	"fmt"
	"strings"
)

// Build is the genome assembly that positions refer to. Positions from
// different builds must never be joined on.
type Build string

const (
	BuildUnknown Build = ""
	GRCh37       Build = "GRCh37"
	GRCh38       Build = "GRCh38"
)

// ParseBuild accepts the common aliases (hg19, b37, hg38, ...).
func ParseBuild(s string) (Build, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return BuildUnknown, nil
	case "grch37", "hg19", "b37", "37":
		return GRCh37, nil
	case "grch38", "hg38", "b38", "38":
		return GRCh38, nil
	}

	return BuildUnknown, fmt.Errorf("unrecognized genome build %q", s)
}

// Conflicts is true only when both builds are known and differ.
func (b Build) Conflicts(other Build) bool {
	return b != BuildUnknown && other != BuildUnknown && b != other
}

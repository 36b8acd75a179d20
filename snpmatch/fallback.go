package snpmatch

import (
	"errors"
	"fmt"
	"log"

	"github.com/carbocation/polygenic"
	"github.com/carbocation/polygenic/sumstats"
)

// MatchWithFallback joins by position and falls back to identifiers when the
// position join matches too few variants. The position join is skipped
// outright when the sumstats and map builds are both known and differ.
func MatchWithFallback(ss []sumstats.Sumstat, variants []polygenic.BIMRow, opts Options) (*Result, error) {
	if opts.JoinBy == ByPosition {
		if opts.SumstatsBuild.Conflicts(opts.MapBuild) {
			log.Printf("Summary statistics are on %s but genotypes are on %s; matching by identifier\n", opts.SumstatsBuild, opts.MapBuild)
		} else {
			res, err := Match(ss, variants, opts)
			var low *LowMatchError
			if err == nil {
				return res, nil
			} else if !errors.As(err, &low) {
				return nil, err
			}
			log.Println(err, "; retrying by identifier")
		}
	}

	opts.JoinBy = ByID
	res, err := Match(ss, variants, opts)
	if err != nil {
		return res, fmt.Errorf("matching by position and by identifier both failed: %w", err)
	}

	return res, nil
}

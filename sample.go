package polygenic

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// ReadSampleFile loads an Oxford .sample file (the sample list of a BGEN).
// The first two lines are the header and the column types. If phenotype names
// a column, its values become the samples' phenotypes.
func ReadSampleFile(path, phenotype string, client *storage.Client) ([]Sample, error) {
	rc, err := OpenInput(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	var header []string
	phenoCol, sexCol := -1, -1
	out := make([]Sample, 0)
	for line := 0; scanner.Scan(); line++ {
		cols := strings.Fields(scanner.Text())
		switch line {
		case 0:
			header = cols
			for i, name := range header {
				if phenotype != "" && name == phenotype {
					phenoCol = i
				}
				if strings.EqualFold(name, "sex") {
					sexCol = i
				}
			}
			if len(header) < 2 {
				return nil, fmt.Errorf("%s: expected at least ID_1 and ID_2 in the header, saw %v", path, header)
			}
			if phenotype != "" && phenoCol < 0 {
				return nil, fmt.Errorf("%s: no column named %q in %v", path, phenotype, header)
			}
			continue
		case 1:
			// Column types (0 D C P B)
			continue
		}

		if len(cols) < len(header) {
			return nil, fmt.Errorf("%s line %d: expected %d columns, saw %d", path, line+1, len(header), len(cols))
		}

		s := Sample{FID: cols[0], IID: cols[1]}
		if sexCol >= 0 {
			s.Sex, _ = strconv.Atoi(cols[sexCol])
		}
		if phenoCol >= 0 {
			s.Phenotype = ParsePhenotype(cols[phenoCol])
		}
		out = append(out, s)
	}

	return out, pfx.Err(scanner.Err())
}

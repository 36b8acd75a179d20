package score

import (
	"errors"
	"math"
)

// Record describes one candidate and how it did on the validation split.
// Fields that don't apply to a method are NaN (or -1 for Chain).
type Record struct {
	Method    string  `csv:"method"`
	P         float64 `csv:"p"`
	H2        float64 `csv:"h2"`
	Sparse    bool    `csv:"sparse"`
	Delta     float64 `csv:"delta"`
	Lambda    float64 `csv:"lambda"`
	Chain     int     `csv:"chain"`
	Statistic float64 `csv:"validation_stat"`
	Diverged  bool    `csv:"diverged"`
}

var ErrNoCandidate = errors.New("score: no candidate has a defined validation statistic")

// Defined reports whether r can be selected.
func (r Record) Defined() bool {
	return !r.Diverged && !math.IsNaN(r.Statistic) && !math.IsInf(r.Statistic, -1)
}

// Select returns the index of the record with the largest defined
// statistic. Ties go to the earliest record.
func Select(records []Record) (int, error) {
	best := -1
	for i, r := range records {
		if !r.Defined() {
			continue
		}
		if best < 0 || r.Statistic > records[best].Statistic {
			best = i
		}
	}

	if best < 0 {
		return -1, ErrNoCandidate
	}
	return best, nil
}

package genotype

import (
	"fmt"
	"math/rand"
	"sort"
)

// Split partitions eligible row indices into a validation set of nVal rows
// and a test set holding the rest. Both are sorted and disjoint, and the same
// seed always gives the same partition. nVal may also be a fraction in (0,1).
func Split(eligible []int, nVal float64, seed int64) (val, test []int, err error) {
	test = append([]int(nil), eligible...)
	sort.Ints(test)

	wantVal := int(nVal)
	if nVal > 0 && nVal < 1 {
		wantVal = int(nVal * float64(len(test)))
	}
	if wantVal <= 0 || wantVal >= len(test) {
		return nil, nil, fmt.Errorf("cannot draw %d validation samples from %d eligible samples and leave a test set", wantVal, len(test))
	}

	randsrc := rand.NewSource(seed)
	wantTest := len(test) - wantVal
	for n := len(test); n > wantTest; {
		i := int(randsrc.Int63()) % n
		val = append(val, test[i])
		n--
		test[i] = test[n]
		test = test[:n]
	}
	sort.Ints(test)
	sort.Ints(val)

	return val, test, nil
}

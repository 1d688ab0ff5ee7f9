// Package classifier trains and applies a random forest mood classifier.
package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

// Split partitions rows into train and test sets so that each mood keeps
// its share. Within a class the rows are shuffled by a source seeded from
// seed, then round(n*ratio) of them (at least 1, at most n-1) go to test.
// Both partitions keep input order.
func Split(rows []domain.FeatureRow, ratio float64, seed uint64) (train, test []domain.FeatureRow, err error) {
	if !(ratio > 0 && ratio < 1) {
		return nil, nil, &domain.ConfigurationError{
			Field:  "classifier.test_ratio",
			Reason: fmt.Sprintf("%v is not in (0, 1)", ratio),
		}
	}

	byClass := make(map[domain.Mood][]int)
	for i, r := range rows {
		if !r.Mood.Valid() {
			return nil, nil, fmt.Errorf("row %s has no mood", r.TrackID)
		}
		byClass[r.Mood] = append(byClass[r.Mood], i)
	}

	rng := rand.New(rand.NewPCG(seed, splitStream))
	inTest := make([]bool, len(rows))
	for _, m := range domain.Moods() {
		idx := byClass[m]
		if len(idx) < 2 {
			return nil, nil, &domain.InsufficientDataError{Stage: "split", Class: m, Have: len(idx), Need: 2}
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := len(idx)
		k := min(max(int(math.Round(float64(n)*ratio)), 1), n-1)
		for _, i := range idx[:k] {
			inTest[i] = true
		}
	}

	for i, r := range rows {
		if inTest[i] {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	return train, test, nil
}

// Stream selectors keep the split and the forest on independent sequences
// derived from the same seed.
const (
	splitStream  = 0x5eed_0001
	forestStream = 0x5eed_0002
)

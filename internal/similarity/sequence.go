package similarity

import "github.com/pmezard/go-difflib/difflib"

// SequenceRatio is the difflib matching-blocks ratio 2*M/T over word
// tokens. Splitting on words rather than lines copes with pages that
// barely use line breaks.
type SequenceRatio struct{}

func (SequenceRatio) Name() string { return "sequence" }

func (SequenceRatio) Score(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

package similarity

import "strings"

// ShingleJaccard is the Jaccard overlap of the sets of Size-word
// shingles of both sequences.
type ShingleJaccard struct {
	Size int
}

func (ShingleJaccard) Name() string { return "jaccard" }

func (j ShingleJaccard) Score(a, b []string) float64 {
	sa, sb := shingles(a, j.size()), shingles(b, j.size())
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for s := range sa {
		if _, ok := sb[s]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func (j ShingleJaccard) size() int {
	if j.Size <= 0 {
		return DefaultShingleSize
	}
	return j.Size
}

// shingles of a sequence shorter than k is the sequence itself.
func shingles(toks []string, k int) map[string]struct{} {
	out := map[string]struct{}{}
	if len(toks) == 0 {
		return out
	}
	if len(toks) < k {
		out[strings.Join(toks, "\x00")] = struct{}{}
		return out
	}
	for i := 0; i+k <= len(toks); i++ {
		out[strings.Join(toks[i:i+k], "\x00")] = struct{}{}
	}
	return out
}

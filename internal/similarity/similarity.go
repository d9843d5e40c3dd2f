package similarity

import (
	"fmt"
	"strings"
)

// Defaults. The sequence ratio threshold is the classic soft-404 value;
// shingle overlap is a coarser measure and gets a lower bar.
const (
	DefaultThreshold        = 0.95
	DefaultJaccardThreshold = 0.9
	DefaultShingleSize      = 3
)

// Score is a near-duplicate confidence in [0, 1].
type Score float64

// Metric scores two token sequences. Implementations need not be
// symmetric; Comparator orders its inputs before calling them.
type Metric interface {
	Name() string
	Score(a, b []string) float64
}

// Tokenizer turns a raw body into normalized tokens.
type Tokenizer interface {
	Tokens(body []byte, contentType string) []string
}

type Body struct {
	Data        []byte
	ContentType string
}

type Comparator struct {
	metric    Metric
	threshold float64
	tokenizer Tokenizer
}

// NewComparator returns a comparator declaring near-duplicates at or
// above threshold. A nil tokenizer lower-cases and splits on whitespace.
func NewComparator(m Metric, threshold float64, tok Tokenizer) *Comparator {
	if m == nil {
		m = SequenceRatio{}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if tok == nil {
		tok = fieldsTokenizer{}
	}
	return &Comparator{metric: m, threshold: threshold, tokenizer: tok}
}

func (c *Comparator) Threshold() float64 { return c.threshold }

func (c *Comparator) Metric() Metric { return c.metric }

// Compare scores a against b. Two empty bodies are trivially
// duplicates; an empty body never matches a non-empty one.
func (c *Comparator) Compare(a, b Body) (Score, bool) {
	ta := c.tokenizer.Tokens(a.Data, a.ContentType)
	tb := c.tokenizer.Tokens(b.Data, b.ContentType)
	switch {
	case len(ta) == 0 && len(tb) == 0:
		return 1, true
	case len(ta) == 0 || len(tb) == 0:
		return 0, false
	}
	if strings.Join(ta, " ") > strings.Join(tb, " ") {
		ta, tb = tb, ta
	}
	s := clamp(c.metric.Score(ta, tb))
	return Score(s), s >= c.threshold
}

func (c *Comparator) IsNearDuplicate(a, b Body) bool {
	_, near := c.Compare(a, b)
	return near
}

// MetricByName resolves "sequence" or "jaccard".
func MetricByName(name string, shingleSize int) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sequence":
		return SequenceRatio{}, nil
	case "jaccard", "shingle":
		return ShingleJaccard{Size: shingleSize}, nil
	}
	return nil, fmt.Errorf("unknown similarity metric %q", name)
}

type fieldsTokenizer struct{}

func (fieldsTokenizer) Tokens(body []byte, _ string) []string {
	return strings.Fields(strings.ToLower(string(body)))
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}

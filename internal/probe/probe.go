package probe

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"strings"
	"sync"

	"go-soft404/internal/models"
)

// DefaultTokenLength makes collisions with real resources negligible.
const DefaultTokenLength = 25

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// TokenSource yields random path tokens. Implementations must be safe
// for concurrent use.
type TokenSource interface {
	Token(n int) string
}

type randSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a reproducible source: two sources built
// from the same seed produce the same token sequence.
func NewSeededSource(seed uint64) TokenSource {
	return &randSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSource returns a source backed by the runtime's
// concurrency-safe generator.
func NewRandomSource() TokenSource { return globalSource{} }

func (s *randSource) Token(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token(n, s.r.IntN)
}

type globalSource struct{}

func (globalSource) Token(n int) string { return token(n, rand.IntN) }

func token(n int, intN func(int) int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[intN(len(alphabet))])
	}
	return b.String()
}

type Builder struct {
	src    TokenSource
	length int
}

// New returns a Builder. A nil src uses NewRandomSource, a length below
// 10 falls back to DefaultTokenLength.
func New(src TokenSource, length int) *Builder {
	if src == nil {
		src = NewRandomSource()
	}
	if length < 10 {
		length = DefaultTokenLength
	}
	return &Builder{src: src, length: length}
}

// ParseTarget validates an absolute http(s) URL.
func ParseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q needs an http or https scheme", models.ErrMalformedURL, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", models.ErrMalformedURL, rawURL)
	}
	return u, nil
}

// Build derives a sibling of rawURL that should not exist: the parent
// directory of its path plus a random token, keeping the extension of
// the last segment. Scheme and host are kept; query and fragment are dropped.
func (b *Builder) Build(rawURL string) (string, error) {
	u, err := ParseTarget(rawURL)
	if err != nil {
		return "", err
	}
	parent, ext := Parent(u.Path), extension(u.Path)

	p := *u
	p.RawQuery = ""
	p.ForceQuery = false
	p.Fragment = ""
	p.RawFragment = ""
	p.RawPath = ""
	for {
		p.Path = parent + b.src.Token(b.length) + ext
		if p.Path != u.Path {
			break
		}
	}
	return p.String(), nil
}

// Parent returns the directory containing the last path segment,
// always ending with a slash.
//
//	""          -> "/"
//	"/one"      -> "/"
//	"/one/two/" -> "/one/"
func Parent(p string) string {
	p = strings.TrimSuffix(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "/"
	}
	return p[:i+1]
}

func extension(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	ext := path.Ext(p)
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// Package soft404 reports whether a URL is dead, including pages that
// answer 200 OK while serving a "not found" template or the homepage.
//
//	if soft404.IsDead("http://example.com/old-page") {
//		...
//	}
package soft404

import (
	"context"
	"sync"

	"go-soft404/internal/config"
	"go-soft404/internal/crawler"
	"go-soft404/internal/detector"
	"go-soft404/internal/models"
	"go-soft404/internal/parser"
	"go-soft404/internal/probe"
	"go-soft404/internal/similarity"
	"go-soft404/pkg/logger"
)

type (
	Verdict = models.Verdict
	Result  = models.CheckResult
)

const (
	Unknown = models.Unknown
	Alive   = models.Alive
	Dead    = models.Dead
)

// ErrMalformedURL is wrapped by Check for URLs that cannot be fetched.
var ErrMalformedURL = models.ErrMalformedURL

// New wires a detector from cfg. A nil cfg uses defaults.
func New(cfg *config.Config, log *logger.Logger) (*detector.Detector, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	fetcher := crawler.NewHTTPClient(cfg.Timeout(), cfg.DialTimeout(), cfg.Fetch.MaxBodyBytes,
		crawler.WithMaxRedirects(*cfg.Fetch.MaxRedirects),
		crawler.WithUserAgent(cfg.Fetch.UserAgent),
	)

	src := probe.NewRandomSource()
	if cfg.Probe.Seed != nil {
		src = probe.NewSeededSource(*cfg.Probe.Seed)
	}
	probes := probe.New(src, cfg.Probe.TokenLength)

	metric, err := similarity.MetricByName(cfg.Compare.Metric, cfg.Compare.ShingleSize)
	if err != nil {
		return nil, err
	}
	var popts []parser.Option
	if !*cfg.Compare.StripMarkup {
		popts = append(popts, parser.WithMarkup())
	}
	cmp := similarity.NewComparator(metric, cfg.Compare.Threshold, parser.New(popts...))

	return detector.New(fetcher, probes, cmp,
		detector.WithLogger(log.With("component", "detector")),
		detector.WithUnknownAsDead(cfg.Verdict.UnknownIsDead),
	), nil
}

var (
	defaultOnce     sync.Once
	defaultDetector *detector.Detector
)

func std() *detector.Detector {
	defaultOnce.Do(func() {
		d, err := New(nil, nil)
		if err != nil {
			panic(err)
		}
		defaultDetector = d
	})
	return defaultDetector
}

// IsDead reports whether rawURL looks dead using default settings. URLs
// that cannot be fetched at all are reported as not dead.
func IsDead(rawURL string) bool {
	return std().IsDead(context.Background(), rawURL)
}

// Check is IsDead with the full tri-state result.
func Check(ctx context.Context, rawURL string) (Result, error) {
	return std().Check(ctx, rawURL)
}

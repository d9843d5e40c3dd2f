// Package detector decides whether a URL is dead, including pages that
// answer 200 OK while serving a generic "not found" template.
package detector

import (
	"context"
	"time"

	"go-soft404/internal/models"
	"go-soft404/internal/probe"
	"go-soft404/internal/similarity"
	"go-soft404/pkg/logger"
)

// Fetcher performs one GET with redirects resolved.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) models.FetchResult
}

// ProbeBuilder derives a URL on the same host that should not exist.
type ProbeBuilder interface {
	Build(rawURL string) (string, error)
}

// Comparator judges whether two bodies are the same page template.
type Comparator interface {
	Compare(a, b similarity.Body) (similarity.Score, bool)
}

type Detector struct {
	fetcher       Fetcher
	probes        ProbeBuilder
	comparator    Comparator
	log           *logger.Logger
	unknownIsDead bool
}

type Option func(*Detector)

func WithLogger(l *logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// WithUnknownAsDead makes IsDead report true when the target itself
// could not be fetched.
func WithUnknownAsDead(v bool) Option {
	return func(d *Detector) { d.unknownIsDead = v }
}

func New(f Fetcher, p ProbeBuilder, c Comparator, opts ...Option) *Detector {
	d := &Detector{
		fetcher:    f,
		probes:     p,
		comparator: c,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check runs the full decision for rawURL. The only error returned
// wraps models.ErrMalformedURL; network trouble yields Verdict Unknown.
func (d *Detector) Check(ctx context.Context, rawURL string) (models.CheckResult, error) {
	start := time.Now()
	res := models.CheckResult{URL: rawURL}
	if _, err := probe.ParseTarget(rawURL); err != nil {
		res.Error = err.Error()
		return res, err
	}
	log := d.log.With("url", rawURL)

	target := d.fetcher.Fetch(ctx, rawURL)
	res.FinalURL = target.FinalURL
	res.TargetStatus = target.StatusCode
	if target.Failed() {
		res.Failure = target.Failure
		if target.Err != nil {
			res.Error = target.Err.Error()
		}
		log.Debugf("target fetch failed: %s", target.Failure)
		return d.decide(res, models.Unknown, models.ReasonTargetFailed, start), nil
	}
	if target.HardError() {
		log.Debugf("target returned hard error %d", target.StatusCode)
		return d.decide(res, models.Dead, models.ReasonHardError, start), nil
	}

	probeURL, err := d.probes.Build(rawURL)
	if err != nil {
		res.Error = err.Error()
		return d.decide(res, models.Unknown, models.ReasonTargetFailed, start), nil
	}
	res.ProbeURL = probeURL
	log = log.With("probe", probeURL)

	known := d.fetcher.Fetch(ctx, probeURL)
	res.ProbeStatus = known.StatusCode
	if known.Failed() {
		// the host's behaviour for missing pages is unknown, so nothing proves the target dead
		log.Debugf("probe fetch failed: %s", known.Failure)
		return d.decide(res, models.Alive, models.ReasonProbeFailed, start), nil
	}
	if known.HardError() {
		log.Debugf("host returns real errors (%d) for missing pages", known.StatusCode)
		return d.decide(res, models.Alive, models.ReasonProbeHardError, start), nil
	}

	if target.Redirects > 0 && known.Redirects > 0 && target.FinalURL == known.FinalURL {
		log.Debugf("target and probe both redirect to %s", target.FinalURL)
		return d.decide(res, models.Dead, models.ReasonSameRedirect, start), nil
	}

	score, near := d.comparator.Compare(
		similarity.Body{Data: target.Body, ContentType: target.ContentType},
		similarity.Body{Data: known.Body, ContentType: known.ContentType},
	)
	s := float64(score)
	res.Similarity = &s
	log.Debugf("similarity %.3f", s)
	if near {
		return d.decide(res, models.Dead, models.ReasonNearDuplicate, start), nil
	}
	return d.decide(res, models.Alive, models.ReasonDistinctContent, start), nil
}

// IsDead collapses Check into a boolean. Malformed URLs and unknown
// outcomes are not dead unless WithUnknownAsDead is set.
func (d *Detector) IsDead(ctx context.Context, rawURL string) bool {
	res, err := d.Check(ctx, rawURL)
	if err != nil {
		return false
	}
	return res.Dead
}

func (d *Detector) decide(res models.CheckResult, v models.Verdict, why models.Reason, start time.Time) models.CheckResult {
	res.Verdict = v
	res.Reason = why
	res.Dead = v == models.Dead || (v == models.Unknown && d.unknownIsDead)
	res.CheckMs = time.Since(start).Milliseconds()
	return res
}

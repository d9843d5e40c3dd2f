// Package batch fans independent URL checks out over a bounded pool.
package batch

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"go-soft404/internal/models"
	"go-soft404/pkg/logger"
)

type Checker interface {
	Check(ctx context.Context, rawURL string) (models.CheckResult, error)
}

type Runner struct {
	checker     Checker
	concurrency int
	limiter     *rate.Limiter
	perURL      time.Duration
	log         *logger.Logger
	inflight    singleflight.Group
}

type Option func(*Runner)

func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRate caps check starts per second; rps <= 0 disables the limit.
func WithRate(rps float64, burst int) Option {
	return func(r *Runner) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds each check, target and probe together.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.perURL = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func New(c Checker, opts ...Option) *Runner {
	r := &Runner{checker: c, concurrency: 10, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run checks every URL and returns results in input order.
func (r *Runner) Run(ctx context.Context, urls []string) []models.CheckResult {
	results := make([]models.CheckResult, len(urls))
	_ = r.each(ctx, urls, func(i int, res models.CheckResult) {
		results[i] = res
	})
	return results
}

// Stream calls emit as each check completes. emit is never called
// concurrently. It returns ctx.Err() if ctx ends before all URLs ran.
func (r *Runner) Stream(ctx context.Context, urls []string, emit func(models.CheckResult)) error {
	out := make(chan models.CheckResult)
	done := make(chan error, 1)
	go func() {
		done <- r.each(ctx, urls, func(_ int, res models.CheckResult) { out <- res })
		close(out)
	}()
	for res := range out {
		emit(res)
	}
	return <-done
}

func (r *Runner) each(ctx context.Context, urls []string, put func(int, models.CheckResult)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		i, u := i, strings.TrimSpace(u)
		g.Go(func() error {
			put(i, r.checkOne(gctx, u))
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (r *Runner) checkOne(ctx context.Context, u string) models.CheckResult {
	if u == "" {
		return models.CheckResult{URL: u, Error: "empty url"}
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return models.CheckResult{URL: u, Error: err.Error()}
		}
	}
	// duplicates in one batch share a single in-flight check
	v, _, shared := r.inflight.Do(u, func() (any, error) {
		cctx := ctx
		if r.perURL > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, r.perURL)
			defer cancel()
		}
		res, err := r.checker.Check(cctx, u)
		if err != nil {
			res.URL = u
			res.Error = err.Error()
		}
		return res, nil
	})
	res := v.(models.CheckResult)
	if shared {
		r.log.Debugf("shared in-flight check for %s", u)
	}
	r.log.Debugf("%s: %s (%s)", u, res.Verdict, res.Reason)
	return res
}

package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-soft404/internal/models"
)

const (
	DefaultMaxRedirects = 10
	DefaultSizeCap      = 64 * 1024
	DefaultUserAgent    = "go-soft404/1.0"
)

// Doer sends a single HTTP request. *http.Client satisfies it; the
// client must not follow redirects on its own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPClient struct {
	doer         Doer
	timeout      time.Duration
	sizeCap      int64
	userAgent    string
	maxRedirects int
}

type Option func(*HTTPClient)

// WithDoer replaces the underlying transport, mostly for tests.
func WithDoer(d Doer) Option {
	return func(h *HTTPClient) { h.doer = d }
}

func WithMaxRedirects(n int) Option {
	return func(h *HTTPClient) {
		if n >= 0 {
			h.maxRedirects = n
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(h *HTTPClient) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

// NewHTTPClient builds a fetcher whose timeout bounds a whole redirect
// chain. Bodies are read up to sizeCap bytes.
func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64, opts ...Option) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if sizeCap <= 0 {
		sizeCap = DefaultSizeCap
	}
	h := &HTTPClient{
		doer: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:      timeout,
		sizeCap:      sizeCap,
		userAgent:    DefaultUserAgent,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fetch GETs rawURL and follows redirects itself, up to the configured
// hop limit. Network problems are reported through FetchResult.Failure,
// never as a Go error.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) models.FetchResult {
	start := time.Now()
	res := models.FetchResult{RequestedURL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		res.Failure = models.FailureInvalidURL
		res.Err = fmt.Errorf("%w: %q", models.ErrMalformedURL, rawURL)
		return finish(res, start)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	visited := map[string]struct{}{}
	current := u
	for hops := 0; ; hops++ {
		visited[current.String()] = struct{}{}
		res.FinalURL = current.String()
		res.Redirects = hops

		resp, err := h.get(ctx, current)
		if err != nil {
			res.Failure = classify(ctx, err)
			res.Err = err
			res.StatusCode = 0
			return finish(res, start)
		}
		res.StatusCode = resp.StatusCode
		res.ContentType = resp.Header.Get("Content-Type")

		loc := resp.Header.Get("Location")
		if isRedirect(resp.StatusCode) && loc != "" {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.sizeCap))
			resp.Body.Close()

			next, err := current.Parse(loc)
			if err != nil || next.Host == "" || (next.Scheme != "http" && next.Scheme != "https") {
				res.Failure = models.FailureBadRedirect
				res.Err = fmt.Errorf("bad redirect location %q", loc)
				return finish(res, start)
			}
			next.Fragment = ""
			if _, seen := visited[next.String()]; seen {
				res.Failure = models.FailureRedirectLoop
				res.Err = fmt.Errorf("redirect loop at %s", next)
				return finish(res, start)
			}
			if hops >= h.maxRedirects {
				res.Failure = models.FailureTooManyRedirects
				res.Err = fmt.Errorf("stopped after %d redirects", hops)
				return finish(res, start)
			}
			current = next
			continue
		}

		body, err := h.readBody(resp)
		resp.Body.Close()
		if err != nil {
			res.Failure = classify(ctx, err)
			if res.Failure == models.FailureConnect {
				res.Failure = models.FailureRead
			}
			res.Err = err
			return finish(res, start)
		}
		res.Body = body
		return finish(res, start)
	}
}

func (h *HTTPClient) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)
	return h.doer.Do(req)
}

func (h *HTTPClient) readBody(resp *http.Response) ([]byte, error) {
	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}
	// enforce a size cap; a truncated page is still a usable sample
	data, err := io.ReadAll(io.LimitReader(body, h.sizeCap))
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func finish(res models.FetchResult, start time.Time) models.FetchResult {
	if res.Failed() {
		res.Body = nil
	}
	res.FetchMs = time.Since(start).Milliseconds()
	return res
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func classify(ctx context.Context, err error) models.FailureKind {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.FailureTimeout
	case errors.Is(err, context.Canceled):
		return models.FailureCanceled
	case errors.As(err, &dnsErr):
		return models.FailureDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.FailureTimeout
	default:
		return models.FailureConnect
	}
}

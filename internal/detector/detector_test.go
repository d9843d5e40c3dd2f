package detector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-soft404/internal/crawler"
	"go-soft404/internal/models"
	"go-soft404/internal/parser"
	"go-soft404/internal/probe"
	"go-soft404/internal/similarity"
)

const token = "qqqqqqqqqqqqqqqqqqqqqqqqq"

type fixedSource struct{}

func (fixedSource) Token(int) string { return token }

const homepage = `<html><head><title>Example Store</title></head><body>
<nav>Home Shop About Contact Careers Blog Support</nav>
<h1>Welcome to Example Store</h1>
<p>Browse our catalogue of garden tools, kitchen supplies, outdoor furniture and
seasonal decorations. Free shipping on orders over fifty dollars. Sign up for our
newsletter to hear about weekly deals and new arrivals before anyone else.</p>
<footer>Copyright Example Store. All rights reserved. Privacy Terms Sitemap</footer>
</body></html>`

const article = `<html><head><title>How to sharpen a hedge trimmer</title></head><body>
<h1>How to sharpen a hedge trimmer</h1>
<p>Unplug the trimmer, clamp the blade and work each tooth with a flat file at the
original bevel angle. Lubricate the blade afterwards and test on a thin branch.</p>
</body></html>`

func newDetector(opts ...Option) *Detector {
	p := parser.New()
	return New(
		crawler.NewHTTPClient(5*time.Second, 2*time.Second, 64*1024),
		probe.New(fixedSource{}, len(token)),
		similarity.NewComparator(similarity.SequenceRatio{}, similarity.DefaultThreshold, p),
		opts...,
	)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// softHost serves the homepage with 200 for every path except pages.
func softHost(pages map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if body, ok := pages[r.URL.Path]; ok {
			writeHTML(w, 200, body)
			return
		}
		writeHTML(w, 200, strings.Replace(homepage, "</h1>", "</h1><p>"+r.URL.Path+"</p>", 1))
	}
}

func hardHost(pages map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if body, ok := pages[r.URL.Path]; ok {
			writeHTML(w, 200, body)
			return
		}
		writeHTML(w, 404, "<html><body>Not Found</body></html>")
	}
}

func check(t *testing.T, d *Detector, url string) models.CheckResult {
	t.Helper()
	res, err := d.Check(context.Background(), url)
	if err != nil {
		t.Fatalf("check %s: %v", url, err)
	}
	return res
}

func TestRealPageOnHardHostIsAlive(t *testing.T) {
	ts := httptest.NewServer(hardHost(map[string]string{"/real-page": article}))
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/real-page")
	if res.Verdict != models.Alive || res.Reason != models.ReasonProbeHardError || res.Dead {
		t.Fatalf("want alive via probe hard error, got %+v", res)
	}
	if res.ProbeURL != ts.URL+"/"+token || res.ProbeStatus != 404 {
		t.Fatalf("unexpected probe %s (%d)", res.ProbeURL, res.ProbeStatus)
	}
}

func TestBogusPathOnSoftHostIsDead(t *testing.T) {
	ts := httptest.NewServer(softHost(nil))
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/totally-bogus-path-xyz")
	if res.Verdict != models.Dead || res.Reason != models.ReasonNearDuplicate || !res.Dead {
		t.Fatalf("want dead near duplicate, got %+v", res)
	}
	if res.Similarity == nil || *res.Similarity < similarity.DefaultThreshold {
		t.Fatalf("unexpected similarity %v", res.Similarity)
	}
}

func TestRealPageOnSoftHostIsAlive(t *testing.T) {
	ts := httptest.NewServer(softHost(map[string]string{"/blog/hedge-trimmer": article}))
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/blog/hedge-trimmer")
	if res.Verdict != models.Alive || res.Reason != models.ReasonDistinctContent {
		t.Fatalf("want alive distinct content, got %+v", res)
	}
	if res.ProbeURL != ts.URL+"/blog/"+token {
		t.Fatalf("probe should be a sibling, got %s", res.ProbeURL)
	}
}

func TestHardStatusIsDeadWithoutProbe(t *testing.T) {
	for _, code := range []int{404, 410, 500} {
		var hits int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			writeHTML(w, code, "gone")
		}))
		res := check(t, newDetector(), ts.URL+"/missing.html")
		ts.Close()
		if res.Verdict != models.Dead || res.Reason != models.ReasonHardError || res.TargetStatus != code {
			t.Fatalf("%d: want dead hard error, got %+v", code, res)
		}
		if n := atomic.LoadInt32(&hits); n != 1 || res.ProbeURL != "" {
			t.Fatalf("%d: probe must not be fetched, saw %d requests", code, n)
		}
	}
}

func TestRootURLGoesThroughSameLogic(t *testing.T) {
	ts := httptest.NewServer(hardHost(map[string]string{"/": homepage}))
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/")
	if res.Verdict != models.Alive || res.ProbeURL != ts.URL+"/"+token {
		t.Fatalf("want alive with root probe, got %+v", res)
	}

	soft := httptest.NewServer(softHost(nil))
	defer soft.Close()
	res = check(t, newDetector(), soft.URL)
	if res.ProbeURL != soft.URL+"/"+token {
		t.Fatalf("root probe malformed: %s", res.ProbeURL)
	}
	if res.Verdict == models.Unknown {
		t.Fatalf("root must reach a verdict, got %+v", res)
	}
}

func TestSameRedirectIsDead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			writeHTML(w, 200, homepage)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/old/product")
	if res.Verdict != models.Dead || res.Reason != models.ReasonSameRedirect {
		t.Fatalf("want dead same redirect, got %+v", res)
	}
	if res.FinalURL != ts.URL+"/" {
		t.Fatalf("want final url at homepage, got %s", res.FinalURL)
	}
}

func TestRedirectToHomepageComparedAgainstInPlaceTemplate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old-page" {
			http.Redirect(w, r, "/", http.StatusMovedPermanently)
			return
		}
		writeHTML(w, 200, homepage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/old-page")
	if res.Verdict != models.Dead || res.Reason != models.ReasonNearDuplicate {
		t.Fatalf("want dead near duplicate, got %+v", res)
	}
}

func TestRedirectToLivePageIsAlive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old-article":
			http.Redirect(w, r, "/articles/hedge", http.StatusMovedPermanently)
		case "/articles/hedge":
			writeHTML(w, 200, article)
		default:
			writeHTML(w, 404, "missing")
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res := check(t, newDetector(), ts.URL+"/old-article")
	if res.Verdict != models.Alive || res.FinalURL != ts.URL+"/articles/hedge" {
		t.Fatalf("want alive at redirected page, got %+v", res)
	}
}

func TestTargetFailureIsUnknown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	res := check(t, newDetector(), addr+"/page")
	if res.Verdict != models.Unknown || res.Dead || res.Failure != models.FailureConnect {
		t.Fatalf("want unknown, not dead, got %+v", res)
	}
	if newDetector().IsDead(context.Background(), addr+"/page") {
		t.Fatal("unknown folds into not dead by default")
	}
	if !newDetector(WithUnknownAsDead(true)).IsDead(context.Background(), addr+"/page") {
		t.Fatal("WithUnknownAsDead should report unknown as dead")
	}
}

type stubFetcher struct {
	results map[string]models.FetchResult
	calls   []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) models.FetchResult {
	s.calls = append(s.calls, rawURL)
	if r, ok := s.results[rawURL]; ok {
		return r
	}
	return models.FetchResult{RequestedURL: rawURL, Failure: models.FailureTimeout, Err: errors.New("timeout")}
}

func TestProbeFailureIsAlive(t *testing.T) {
	f := &stubFetcher{results: map[string]models.FetchResult{
		"http://example.com/a/page": {StatusCode: 200, Body: []byte(homepage), FinalURL: "http://example.com/a/page"},
	}}
	d := New(f, probe.New(fixedSource{}, 0), similarity.NewComparator(nil, 0, nil))
	res, err := d.Check(context.Background(), "http://example.com/a/page")
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != models.Alive || res.Reason != models.ReasonProbeFailed {
		t.Fatalf("want alive probe failed, got %+v", res)
	}
	if len(f.calls) != 2 || f.calls[1] != "http://example.com/a/"+token {
		t.Fatalf("unexpected fetches %v", f.calls)
	}
}

func TestEmptyBodiesOnBothSidesAreDead(t *testing.T) {
	f := &stubFetcher{results: map[string]models.FetchResult{
		"http://example.com/x":        {StatusCode: 200, Body: []byte{}},
		"http://example.com/" + token: {StatusCode: 200, Body: []byte{}},
	}}
	d := New(f, probe.New(fixedSource{}, 0), similarity.NewComparator(nil, 0, parser.New()))
	res, _ := d.Check(context.Background(), "http://example.com/x")
	if res.Verdict != models.Dead || res.Reason != models.ReasonNearDuplicate {
		t.Fatalf("want dead, got %+v", res)
	}
}

func TestMalformedURLFailsBeforeNetwork(t *testing.T) {
	f := &stubFetcher{}
	d := New(f, probe.New(nil, 0), similarity.NewComparator(nil, 0, nil))
	for _, raw := range []string{"", "example.com/page", "ftp://example.com/file"} {
		_, err := d.Check(context.Background(), raw)
		if !errors.Is(err, models.ErrMalformedURL) {
			t.Fatalf("%q: want ErrMalformedURL, got %v", raw, err)
		}
		if d.IsDead(context.Background(), raw) {
			t.Fatalf("%q: malformed url is not dead", raw)
		}
	}
	if len(f.calls) != 0 {
		t.Fatalf("no fetch expected, got %v", f.calls)
	}
}

func TestVerdictIsStable(t *testing.T) {
	ts := httptest.NewServer(softHost(map[string]string{"/real": article}))
	defer ts.Close()

	d := New(
		crawler.NewHTTPClient(5*time.Second, 2*time.Second, 64*1024),
		probe.New(probe.NewRandomSource(), 0),
		similarity.NewComparator(similarity.SequenceRatio{}, similarity.DefaultThreshold, parser.New()),
	)
	for _, path := range []string{"/real", "/gone"} {
		first := d.IsDead(context.Background(), ts.URL+path)
		for i := 0; i < 3; i++ {
			if got := d.IsDead(context.Background(), ts.URL+path); got != first {
				t.Fatalf("%s: verdict flipped on run %d", path, i)
			}
		}
	}
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedURL is returned for targets that cannot be fetched at all
// (unparseable, missing scheme or host, non-HTTP scheme).
var ErrMalformedURL = errors.New("malformed url")

// FailureKind names why a fetch produced no usable response.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureInvalidURL       FailureKind = "invalid_url"
	FailureDNS              FailureKind = "dns"
	FailureConnect          FailureKind = "connect"
	FailureTimeout          FailureKind = "timeout"
	FailureCanceled         FailureKind = "canceled"
	FailureRedirectLoop     FailureKind = "redirect_loop"
	FailureTooManyRedirects FailureKind = "too_many_redirects"
	FailureBadRedirect      FailureKind = "bad_redirect"
	FailureRead             FailureKind = "read"
)

// FetchResult is the outcome of one GET with its redirect chain resolved.
// A result with a Failure never carries a Body.
type FetchResult struct {
	RequestedURL string      `json:"requestedUrl"`
	FinalURL     string      `json:"finalUrl,omitempty"`
	StatusCode   int         `json:"statusCode,omitempty"`
	Redirects    int         `json:"redirects"`
	ContentType  string      `json:"contentType,omitempty"`
	Body         []byte      `json:"-"`
	Failure      FailureKind `json:"failure,omitempty"`
	Err          error       `json:"-"`
	FetchMs      int64       `json:"fetchMs"`
}

func (r FetchResult) Failed() bool { return r.Failure != FailureNone }

// HardError reports a completed fetch whose final status is 4xx/5xx.
func (r FetchResult) HardError() bool {
	return !r.Failed() && r.StatusCode >= 400
}

// Verdict is the tri-state outcome of a check. The public boolean
// contract collapses Unknown into "not dead" by default.
type Verdict int

const (
	Unknown Verdict = iota
	Alive
	Dead
)

func (v Verdict) String() string {
	switch v {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Verdict) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "alive":
		*v = Alive
	case "dead":
		*v = Dead
	case "unknown", "":
		*v = Unknown
	default:
		return fmt.Errorf("unknown verdict %q", string(b))
	}
	return nil
}

// Reason explains which branch of the decision produced a verdict.
type Reason string

const (
	ReasonTargetFailed    Reason = "target_failed"
	ReasonHardError       Reason = "hard_error"
	ReasonProbeFailed     Reason = "probe_failed"
	ReasonProbeHardError  Reason = "probe_hard_error"
	ReasonSameRedirect    Reason = "same_redirect"
	ReasonNearDuplicate   Reason = "near_duplicate"
	ReasonDistinctContent Reason = "distinct_content"
)

type CheckResult struct {
	URL          string      `json:"url"`
	Verdict      Verdict     `json:"verdict"`
	Dead         bool        `json:"dead"`
	Reason       Reason      `json:"reason,omitempty"`
	FinalURL     string      `json:"finalUrl,omitempty"`
	TargetStatus int         `json:"targetStatus,omitempty"`
	Failure      FailureKind `json:"failure,omitempty"`
	ProbeURL     string      `json:"probeUrl,omitempty"`
	ProbeStatus  int         `json:"probeStatus,omitempty"`
	Similarity   *float64    `json:"similarity,omitempty"`
	CheckMs      int64       `json:"checkMs"`
	Error        string      `json:"error,omitempty"`
}

// Page is the readable part of a fetched document.
type Page struct {
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	WordCount int    `json:"wordCount,omitempty"`
}

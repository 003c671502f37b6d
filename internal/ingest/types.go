// Package ingest defines the core types shared across the pipeline stages.
package ingest

import (
	"net/url"
	"strings"
	"time"
)

// ImageCandidate is a discovered image reference, not yet validated or
// downloaded. Width and Height are the dimensions declared by the search
// surface and may be zero when absent (they are not trusted downstream).
type ImageCandidate struct {
	URL    string
	Domain string
	Width  int
	Height int
}

// Area returns the declared pixel area, or zero when either dimension is
// missing.
func (c ImageCandidate) Area() int64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	return int64(c.Width) * int64(c.Height)
}

// NewCandidate builds a candidate from a raw URL, deriving the hosting
// domain. An unparseable URL yields an empty domain; the ranker rejects it.
func NewCandidate(rawURL string, width, height int) ImageCandidate {
	domain := ""
	if u, err := url.Parse(rawURL); err == nil {
		domain = strings.ToLower(u.Hostname())
	}
	return ImageCandidate{
		URL:    rawURL,
		Domain: domain,
		Width:  width,
		Height: height,
	}
}

// RankedCandidate is a candidate that survived filtering, with its score.
type RankedCandidate struct {
	ImageCandidate
	Score int64
}

// Rejection records a candidate filtered out during ranking, with the reason.
type Rejection struct {
	ImageCandidate
	Reason string
}

// FetchResult holds the raw payload of a successfully fetched candidate.
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// NormalizedImage is the canonical JPEG payload ready for persistence.
type NormalizedImage struct {
	Data   []byte
	Width  int
	Height int
}

// WriteOutcome describes what the asset store did with a key.
type WriteOutcome string

// Write outcomes recorded per item.
const (
	OutcomeSkipped     WriteOutcome = "skipped"
	OutcomeWritten     WriteOutcome = "written"
	OutcomeOverwritten WriteOutcome = "overwritten"
	OutcomeFailed      WriteOutcome = "failed"
)

// AssetRecord captures the terminal state of one catalog item in a run.
type AssetRecord struct {
	Key       string
	Path      string
	Existed   bool
	Outcome   WriteOutcome
	SourceURL string
	Width     int
	Height    int
	Bytes     int
	Reason    string
	FetchedAt time.Time
}

// Failure pairs a catalog key with the reason its ingestion failed.
type Failure struct {
	Key    string
	Reason string
}

// RunSummary aggregates per-item outcomes for one batch run. It is created
// fresh per run and discarded after reporting.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Attempted  int
	Skipped    int
	Succeeded  int
	Failed     int
	Failures   []Failure
}

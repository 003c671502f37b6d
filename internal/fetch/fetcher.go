// Package fetch downloads candidate images with timeout, size guard, and
// bounded retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/catalogops/imageingest/internal/ingest"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxBytes       int64
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RespectRobots  bool
}

// Fetcher retrieves raw candidate bytes using a cloned colly collector per
// attempt.
type Fetcher struct {
	cfg    Config
	policy *RetryPolicy
	base   *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:    cfg,
		policy: NewRetryPolicy(cfg.MaxAttempts, cfg.BackoffInitial, cfg.BackoffMax),
		base:   c,
	}
}

// Fetch downloads url, retrying transient failures with backoff. It returns
// a typed error on exhaustion or permanent failure; the caller advances to
// the next ranked candidate.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (ingest.FetchResult, error) {
	if err := validateURL(rawURL); err != nil {
		return ingest.FetchResult{}, err
	}

	var lastErr error
	for attempt := 0; attempt < f.policy.MaxAttempts(); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, f.policy.Backoff(attempt-1)); err != nil {
				return ingest.FetchResult{}, err
			}
		}
		result, err := f.attempt(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !f.policy.ShouldRetry(err, attempt+1) {
			break
		}
	}
	return ingest.FetchResult{}, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) (ingest.FetchResult, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	// The visited store is shared across clones; retries and overlapping
	// candidates must be able to hit the same URL again.
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.MaxBodySize = int(f.cfg.MaxBytes) + 1

	var (
		result    ingest.FetchResult
		fetchErr  error
		status    int
		tooLarge  bool
		declared  int64
		completed bool
	)

	collector.OnResponseHeaders(func(r *colly.Response) {
		if length := r.Headers.Get("Content-Length"); length != "" {
			if n, err := strconv.ParseInt(length, 10, 64); err == nil && n > f.cfg.MaxBytes {
				declared = n
				tooLarge = true
				r.Request.Abort()
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		completed = true
		result = ingest.FetchResult{
			Body:        append([]byte(nil), r.Body...),
			ContentType: r.Headers.Get("Content-Type"),
			StatusCode:  r.StatusCode,
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := f.run(ctx, collector, rawURL); err != nil {
		return ingest.FetchResult{}, err
	}

	switch {
	case tooLarge:
		return ingest.FetchResult{}, &ingest.PayloadTooLargeError{URL: rawURL, Size: declared, Limit: f.cfg.MaxBytes}
	case fetchErr != nil || !completed:
		if fetchErr == nil {
			fetchErr = errors.New("no response received")
		}
		return ingest.FetchResult{}, classify(rawURL, fetchErr, status)
	case int64(len(result.Body)) > f.cfg.MaxBytes:
		return ingest.FetchResult{}, &ingest.PayloadTooLargeError{
			URL:   rawURL,
			Size:  int64(len(result.Body)),
			Limit: f.cfg.MaxBytes,
		}
	default:
		return result, nil
	}
}

// run executes the visit in a goroutine so a canceled context unblocks the
// caller even mid-transfer.
func (f *Fetcher) run(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan struct{})
	go func() {
		// Visit errors surface through the OnError hook.
		_ = collector.Visit(rawURL)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// classify maps a raw transport or HTTP failure onto the retry taxonomy.
func classify(rawURL string, err error, status int) error {
	transient := true
	switch {
	case status == http.StatusTooManyRequests:
	case status >= 500:
	case status >= 400:
		transient = false
	case isTimeout(err):
	default:
		// Connection-level failures without a status are treated as
		// transient.
	}
	return &ingest.FetchError{URL: rawURL, Status: status, Err: err, Transient: transient}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ingest.FetchError{URL: rawURL, Err: err, Transient: false}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ingest.FetchError{
			URL:       rawURL,
			Err:       fmt.Errorf("unsupported scheme %q", u.Scheme),
			Transient: false,
		}
	}
	if u.Host == "" {
		return &ingest.FetchError{URL: rawURL, Err: errors.New("missing host"), Transient: false}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

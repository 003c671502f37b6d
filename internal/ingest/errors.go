package ingest

import (
	"errors"
	"fmt"
)

// ProviderError wraps a search backend failure. It is non-fatal: the item is
// recorded as failed and the batch continues.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NoCandidateError reports that ranking left zero usable candidates.
type NoCandidateError struct {
	Query string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no usable image candidate for query %q", e.Query)
}

// FetchError is a classified download failure for one candidate. Transient
// failures (timeouts, connection resets, 5xx, 429) are retried; permanent
// ones advance the pipeline to the next ranked candidate.
type FetchError struct {
	URL       string
	Status    int
	Err       error
	Transient bool
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: %s failure (status %d): %v", e.URL, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PayloadTooLargeError reports a candidate body exceeding the configured
// byte ceiling. Never retried.
type PayloadTooLargeError struct {
	URL   string
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("fetch %s: payload %d bytes exceeds limit %d", e.URL, e.Size, e.Limit)
}

// DecodeError reports a payload that is not a decodable raster image.
// Permanent for that candidate.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

package ingest

import (
	"context"
	"time"
)

// SearchProvider discovers image candidates for a query. Implementations
// wrap backend failures in *ProviderError.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]ImageCandidate, error)
}

// Ranker filters and orders candidates. Rejections never surface as errors.
type Ranker interface {
	Rank(candidates []ImageCandidate) ([]RankedCandidate, []Rejection)
}

// Fetcher downloads a candidate URL with timeout and bounded retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Normalizer validates and converts a raw payload into the canonical format.
type Normalizer interface {
	Normalize(data []byte) (NormalizedImage, error)
}

// AssetStore maps catalog keys to persisted files with atomic, idempotent
// write semantics.
type AssetStore interface {
	Path(key string) string
	Exists(key string) bool
	Write(ctx context.Context, key string, img NormalizedImage, overwrite bool) (WriteOutcome, error)
}

// Mirror replicates successfully written assets to secondary storage.
// Mirror failures are logged and never fail the item.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Publisher emits run events to a messaging system (or discards them).
type Publisher interface {
	Publish(ctx context.Context, payload []byte) (string, error)
}

// Limiter throttles outbound calls per hosting domain.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock with the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

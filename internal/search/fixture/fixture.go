// Package fixture serves image search results from a local JSON file,
// keyed by exact query string. Useful for offline runs and rehearsals.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/catalogops/imageingest/internal/ingest"
)

type fixtureEntry struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Provider looks queries up in an in-memory table loaded at construction.
type Provider struct {
	entries map[string][]fixtureEntry
}

// Load reads a fixture file: a JSON object mapping query strings to arrays
// of {url, width, height}.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var entries map[string][]fixtureEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &Provider{entries: entries}, nil
}

// Search returns the fixture candidates for query, capped at maxResults. An
// unknown query yields an empty result, not an error, mirroring a live
// provider that found nothing.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]ingest.ImageCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ingest.ProviderError{Err: err}
	}
	rows := p.entries[query]
	if maxResults > 0 && len(rows) > maxResults {
		rows = rows[:maxResults]
	}
	candidates := make([]ingest.ImageCandidate, 0, len(rows))
	for _, row := range rows {
		if row.URL == "" {
			continue
		}
		candidates = append(candidates, ingest.NewCandidate(row.URL, row.Width, row.Height))
	}
	return candidates, nil
}

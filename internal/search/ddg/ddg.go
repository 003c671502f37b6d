// Package ddg implements image search against the DuckDuckGo images
// endpoint.
package ddg

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/ingest"
)

const defaultBaseURL = "https://duckduckgo.com"

// The token is embedded in the HTML of a regular search page and must be
// presented to the JSON endpoint.
var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)`)

// Config controls the provider.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Provider performs the two-step search flow: fetch a vqd token from the
// HTML front page, then query the i.js JSON endpoint with it.
type Provider struct {
	client *resty.Client
	logger *zap.Logger
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// New builds a Provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Provider{client: client, logger: logger}
}

// Search returns up to maxResults candidates for query. Failures wrap into
// *ProviderError so the caller can fail the item without aborting the run.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]ingest.ImageCandidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	vqd, err := p.token(ctx, query)
	if err != nil {
		return nil, &ingest.ProviderError{Err: err}
	}

	var parsed searchResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":   "us-en",
			"o":   "json",
			"q":   query,
			"vqd": vqd,
			"f":   ",,,",
		}).
		SetResult(&parsed).
		Get("/i.js")
	if err != nil {
		return nil, &ingest.ProviderError{Err: fmt.Errorf("image search: %w", err)}
	}
	if resp.IsError() {
		return nil, &ingest.ProviderError{
			Err: fmt.Errorf("image search: unexpected status %d", resp.StatusCode()),
		}
	}

	candidates := make([]ingest.ImageCandidate, 0, maxResults)
	for _, r := range parsed.Results {
		rawURL := r.Image
		if rawURL == "" {
			rawURL = r.Thumbnail
		}
		if rawURL == "" {
			continue
		}
		candidates = append(candidates, ingest.NewCandidate(rawURL, r.Width, r.Height))
		if len(candidates) == maxResults {
			break
		}
	}
	p.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("returned", len(parsed.Results)),
		zap.Int("kept", len(candidates)),
	)
	return candidates, nil
}

func (p *Provider) token(ctx context.Context, query string) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get("/")
	if err != nil {
		return "", fmt.Errorf("token handshake: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token handshake: unexpected status %d", resp.StatusCode())
	}
	match := vqdPattern.FindSubmatch(resp.Body())
	if match == nil {
		return "", fmt.Errorf("token handshake: vqd token not found in response")
	}
	return string(match[1]), nil
}

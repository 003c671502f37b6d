// Package rank scores and orders image candidates by domain reputation and
// declared size.
package rank

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/catalogops/imageingest/internal/ingest"
)

// reputableTierBase keeps reputable-domain candidates strictly above any
// unlisted candidate: declared areas top out far below 2^40.
const reputableTierBase int64 = 1 << 40

// Extensions accepted when a candidate path declares one. Extensionless
// URLs pass; the normalizer sniffs the payload either way.
var validExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {},
}

// Config carries the domain lists driving the two scoring tiers and the
// outright rejections.
type Config struct {
	ReputableDomains []string
	BlockedDomains   []string
}

// Ranker orders candidates deterministically. Safe for concurrent use.
type Ranker struct {
	reputable *domainMatcher
	blocked   *domainMatcher
}

// New builds a Ranker from the configured domain lists.
func New(cfg Config) *Ranker {
	return &Ranker{
		reputable: newDomainMatcher(cfg.ReputableDomains),
		blocked:   newDomainMatcher(cfg.BlockedDomains),
	}
}

// Rank filters unusable candidates and returns the survivors ordered by
// score descending, ties broken by discovery order. Rejected candidates are
// returned with reasons for diagnostics; rejection never raises an error.
func (r *Ranker) Rank(candidates []ingest.ImageCandidate) ([]ingest.RankedCandidate, []ingest.Rejection) {
	ranked := make([]ingest.RankedCandidate, 0, len(candidates))
	var rejected []ingest.Rejection

	for _, c := range candidates {
		if reason := r.inspect(&c); reason != "" {
			rejected = append(rejected, ingest.Rejection{ImageCandidate: c, Reason: reason})
			continue
		}
		ranked = append(ranked, ingest.RankedCandidate{
			ImageCandidate: c,
			Score:          r.score(c),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, rejected
}

// inspect validates one candidate, normalizing its Domain as a side effect.
// Returns the rejection reason, or "" when the candidate is usable.
func (r *Ranker) inspect(c *ingest.ImageCandidate) string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Sprintf("malformed url: %v", err)
	}
	if u.Hostname() == "" {
		return "malformed url: missing host"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("disallowed scheme %q", u.Scheme)
	}
	c.Domain = strings.ToLower(u.Hostname())
	if r.blocked.Matches(c.Domain) {
		return fmt.Sprintf("blocked domain %s", c.Domain)
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		if _, ok := validExtensions[ext]; !ok {
			return fmt.Sprintf("unsupported extension %s", ext)
		}
	}
	return ""
}

// score is monotonic in the ordering contract: reputable tier dominates,
// declared area orders within a tier, missing dimensions sit at the tier
// minimum.
func (r *Ranker) score(c ingest.ImageCandidate) int64 {
	score := c.Area()
	if r.reputable.Matches(c.Domain) {
		score += reputableTierBase
	}
	return score
}

package rank

import "strings"

// domainMatcher holds configured host patterns. Every entry matches its own
// host and any subdomain; explicit "*.host" and ".host" forms are accepted
// and behave the same way.
type domainMatcher struct {
	suffixes []string
}

func newDomainMatcher(patterns []string) *domainMatcher {
	m := &domainMatcher{}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "*.")
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		m.add(value)
	}
	if len(m.suffixes) == 0 {
		return nil
	}
	return m
}

func (m *domainMatcher) add(suffix string) {
	for _, existing := range m.suffixes {
		if existing == suffix {
			return
		}
	}
	m.suffixes = append(m.suffixes, suffix)
}

// Matches reports whether host equals a configured entry or is a subdomain
// of one.
func (m *domainMatcher) Matches(host string) bool {
	if m == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	for _, suffix := range m.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

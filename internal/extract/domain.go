package extract

import (
	"net/url"
	"strings"
)

// compoundSecondLevel lists second-level labels that, under a short
// country TLD, form a compound suffix such as "co.uk" or "com.au".
var compoundSecondLevel = map[string]bool{
	"co": true, "com": true, "org": true, "net": true, "gov": true, "edu": true,
}

// BaseDomain returns the registrable part of hostname: the last two
// labels, or the last three when the suffix looks like "co.uk".
func BaseDomain(hostname string) string {
	host := strings.TrimSuffix(strings.ToLower(hostname), ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	last := labels[len(labels)-1]
	second := labels[len(labels)-2]
	if compoundSecondLevel[second] && len(last) <= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// urlHost parses raw and returns its lower-cased hostname and base domain.
// ok is false for URLs that do not parse or have no host.
func urlHost(raw string) (host, base string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	host = strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", false
	}
	return host, BaseDomain(host), true
}

// TargetDomain normalizes a browser URL or bare hostname into the base
// domain used to classify links. It returns "" when nothing usable is
// given.
func TargetDomain(activeURL string) string {
	s := strings.TrimSpace(activeURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	_, base, ok := urlHost(s)
	if !ok {
		return ""
	}
	return base
}

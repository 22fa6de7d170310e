package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brcs124/2FacTrac/internal/model"
)

// verificationKeywords signal verification intent in link text, nearby
// plain text, or the URL itself.
var verificationKeywords = []string{
	"verify", "verification", "confirm", "confirmation", "activate",
	"validation", "account", "sign-in", "login", "sign in", "signin",
	"log in", "authenticate", "email", "click here", "link", "authorize",
	"approve",
}

// verificationURLPatterns match verification-style paths and parameters.
var verificationURLPatterns = func() []*regexp.Regexp {
	literals := []string{
		"/verify", "/verification", "/confirm", "/validate", "/activate",
		"token=", "code=", "key=", "confirm_email", "email-verification",
		"verify-email", "account-confirm", "sign-in", "login", "auth",
	}
	patterns := make([]*regexp.Regexp, 0, len(literals))
	for _, l := range literals {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(l)))
	}
	return patterns
}()

// maxContextLineLen bounds the plain-text lines considered as link context.
const maxContextLineLen = 300

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// linkCandidate is a URL under consideration with its signals.
type linkCandidate struct {
	model.LinkCandidate

	indicator bool
	endorsed  bool
}

// linkTier selects candidates for one step of the link cascade.
type linkTier func(c linkCandidate) bool

// linkTiers is tried in order; the first tier with a match wins and the
// earliest matching candidate in that tier is returned.
var linkTiers = []linkTier{
	func(c linkCandidate) bool {
		return c.Type == model.LinkTypeExactDomain && (c.endorsed || c.indicator)
	},
	func(c linkCandidate) bool {
		return c.Type == model.LinkTypeContainsDomain && (c.endorsed || c.indicator)
	},
	func(c linkCandidate) bool { return c.Type == model.LinkTypeExactDomain },
	func(c linkCandidate) bool { return c.Type == model.LinkTypeContainsDomain },
	func(c linkCandidate) bool { return c.Type == model.LinkTypeVerificationIndicator },
	func(c linkCandidate) bool { return c.endorsed },
}

// ExtractLink returns the best verification link in body for the target
// base domain. Nothing is returned without a target.
func ExtractLink(body model.DecodedBody, target string) (model.LinkCandidate, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" || body.Empty() {
		return model.LinkCandidate{}, false
	}

	candidates := classifyLinks(body, target)
	for _, tier := range linkTiers {
		for _, c := range candidates {
			if tier(c) {
				return c.LinkCandidate, true
			}
		}
	}
	return model.LinkCandidate{}, false
}

// classifyLinks collects every URL in body in first-seen order and tags it
// against target.
func classifyLinks(body model.DecodedBody, target string) []linkCandidate {
	searchText := body.SearchText()

	var doc *goquery.Document
	if body.HTML != "" {
		if d, err := goquery.NewDocumentFromReader(strings.NewReader(body.HTML)); err == nil {
			doc = d
		}
	}

	urls := dedupe(append(textURLs(searchText+"\n"+body.HTML), hrefURLs(doc)...))
	endorsed := endorsedURLs(searchText, doc)

	candidates := make([]linkCandidate, 0, len(urls))
	for _, raw := range urls {
		host, base, ok := urlHost(raw)
		if !ok {
			continue
		}

		c := linkCandidate{
			LinkCandidate: model.LinkCandidate{URL: raw, BaseDomain: base},
			indicator:     hasVerificationSignal(raw),
			endorsed:      endorsed[raw],
		}

		switch {
		case base == target:
			c.Type = model.LinkTypeExactDomain
		case strings.Contains(host, target):
			c.Type = model.LinkTypeContainsDomain
		case c.indicator:
			c.Type = model.LinkTypeVerificationIndicator
		default:
			c.Type = model.LinkTypeOther
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// textURLs returns http(s) URLs found anywhere in text.
func textURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if u := cleanURL(m); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// hrefURLs returns every href attribute value starting with http.
func hrefURLs(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var urls []string
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if strings.HasPrefix(strings.ToLower(href), "http") {
			urls = append(urls, href)
		}
	})
	return urls
}

// endorsedURLs returns URLs that sit next to verification wording: inside
// an anchor whose text mentions a keyword, or on a plain-text line that
// does.
func endorsedURLs(searchText string, doc *goquery.Document) map[string]bool {
	endorsed := make(map[string]bool)

	if doc != nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if !strings.HasPrefix(strings.ToLower(href), "http") {
				return
			}
			if containsKeyword(s.Text()) {
				endorsed[href] = true
			}
		})
	}

	for _, line := range strings.Split(searchText, "\n") {
		if len(line) > maxContextLineLen || !containsKeyword(line) {
			continue
		}
		for _, u := range textURLs(line) {
			endorsed[u] = true
		}
	}

	return endorsed
}

func containsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range verificationKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// hasVerificationSignal reports whether the URL itself carries a keyword
// or a verification-style path or parameter.
func hasVerificationSignal(raw string) bool {
	if containsKeyword(raw) {
		return true
	}
	for _, p := range verificationURLPatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}

var htmlAmpReplacer = strings.NewReplacer("&amp;", "&")

// cleanURL unescapes HTML ampersands and drops trailing punctuation picked
// up from prose.
func cleanURL(raw string) string {
	u := htmlAmpReplacer.Replace(raw)
	return strings.TrimRight(u, ".,;:!?)]}")
}

// dedupe removes repeated entries, preserving first occurrence order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}

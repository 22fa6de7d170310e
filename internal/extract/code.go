package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/brcs124/2FacTrac/internal/model"
)

// codeStrategy is one step of the code cascade.
type codeStrategy struct {
	name string
	find func(body model.DecodedBody) (string, bool)
}

// codeStrategies is tried in order; the first strategy that yields a code
// wins. Numeric strategies run before the HTML ones even when both would
// match.
var codeStrategies = []codeStrategy{
	{name: "contextual_numeric", find: findContextualNumeric},
	{name: "standalone_numeric", find: findStandaloneNumeric},
	{name: "isolated_element", find: findIsolatedElement},
	{name: "styled_element", find: findStyledElement},
	{name: "separated_token", find: findSeparatedToken},
}

// ExtractCode runs the code cascade over body and returns the first code
// found, with the 1-based tier of the strategy that produced it.
func ExtractCode(body model.DecodedBody) (model.CodeCandidate, bool) {
	if body.Empty() {
		return model.CodeCandidate{}, false
	}
	for i, s := range codeStrategies {
		if code, ok := s.find(body); ok {
			return model.CodeCandidate{Value: code, Tier: i + 1}, true
		}
	}
	return model.CodeCandidate{}, false
}

// strategyName returns the name of the strategy at the 1-based tier.
func strategyName(tier int) string {
	if tier < 1 || tier > len(codeStrategies) {
		return ""
	}
	return codeStrategies[tier-1].name
}

var (
	contextualNumericPattern = regexp.MustCompile(
		`(?im)(?:verification code |code is:? ?|code: ?|is: ?|:|^|\s)(\d{6,7})(?:$|\s|\.|,)`,
	)
	standaloneNumericPattern = regexp.MustCompile(`\b(\d{6,7})\b`)
)

func findContextualNumeric(body model.DecodedBody) (string, bool) {
	m := contextualNumericPattern.FindStringSubmatch(body.SearchText())
	if m == nil {
		return "", false
	}
	return m[1], true
}

func findStandaloneNumeric(body model.DecodedBody) (string, bool) {
	for _, m := range standaloneNumericPattern.FindAllStringSubmatch(body.SearchText(), -1) {
		if looksLikeYear(m[1]) {
			continue
		}
		return m[1], true
	}
	return "", false
}

// looksLikeYear reports whether digits reads as a calendar year.
func looksLikeYear(digits string) bool {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return false
	}
	return n >= 1900 && n <= 2100
}

// isolatedElementTags are scanned in this order.
var isolatedElementTags = []string{
	"div", "td", "tr", "h1", "h2", "h3", "h4", "h5", "h6",
	"p", "span", "strong", "b", "em", "i", "a", "li",
}

var isolatedElementPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(isolatedElementTags))
	for _, tag := range isolatedElementTags {
		patterns = append(patterns, regexp.MustCompile(
			`(?is)<`+tag+`(?:\s[^>]*)?>\s*([\w-]{4,7})\s*</`+tag+`\s*>`,
		))
	}
	return patterns
}()

func findIsolatedElement(body model.DecodedBody) (string, bool) {
	if body.HTML == "" {
		return "", false
	}
	for _, p := range isolatedElementPatterns {
		if code, ok := firstIsolated(p, body.HTML); ok {
			return code, true
		}
	}
	return "", false
}

var styledElementPattern = regexp.MustCompile(
	`(?s)(?i:<[a-z][a-z0-9]*\s[^>]*style\s*=\s*["'][^"']*` +
		`(?:font-size|font-weight|color|background|text-align\s*:\s*center)` +
		`[^"']*["'][^>]*>)\s*([A-Z0-9-]{4,7})\s*<`,
)

func findStyledElement(body model.DecodedBody) (string, bool) {
	if body.HTML == "" {
		return "", false
	}
	return firstIsolated(styledElementPattern, body.HTML)
}

var separatedTokenPattern = regexp.MustCompile(`(?:^|>)([A-Z0-9-]{4,7})(?:<|$)`)

func findSeparatedToken(body model.DecodedBody) (string, bool) {
	if body.HTML == "" {
		return "", false
	}
	return firstIsolated(separatedTokenPattern, body.HTML)
}

// firstIsolated returns the first submatch of p in s accepted by
// IsIsolatedCode.
func firstIsolated(p *regexp.Regexp, s string) (string, bool) {
	for _, m := range p.FindAllStringSubmatch(s, -1) {
		candidate := strings.TrimSpace(m[1])
		if IsIsolatedCode(candidate) {
			return candidate, true
		}
	}
	return "", false
}

var (
	hyphenCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{2,4}-[A-Za-z0-9]{1,3}$`)

	navigationWords = map[string]bool{
		"click": true, "here": true, "login": true, "go": true,
		"open": true, "view": true, "visit": true, "see": true,
	}
)

// IsIsolatedCode decides whether a short token standing alone in markup
// looks like a verification code rather than a word.
func IsIsolatedCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 4 || len(s) > 7 {
		return false
	}

	var letters, digits int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		}
	}

	switch {
	case digits == len(s) && len(s) >= 5:
		return true
	case letters > 0 && digits > 0:
		return true
	case hyphenCodePattern.MatchString(s):
		return true
	case letters == len(s):
		return false
	case navigationWords[strings.ToLower(s)]:
		return false
	}
	return digits > 0
}

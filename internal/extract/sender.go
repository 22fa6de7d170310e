package extract

import (
	"regexp"
	"strings"

	"github.com/brcs124/2FacTrac/internal/model"
)

var displayNamePattern = regexp.MustCompile(`^\s*(.+?)\s*<[^>]*>`)

// ExtractSender returns the display name of the From header, or the raw
// header value when it has no "Name <addr>" form. It returns "" when the
// header is absent.
func ExtractSender(headers []model.Header) string {
	for _, h := range headers {
		if !strings.EqualFold(h.Name, "From") {
			continue
		}
		if m := displayNamePattern.FindStringSubmatch(h.Value); m != nil {
			if name := strings.TrimSpace(strings.Trim(m[1], `"`)); name != "" {
				return name
			}
		}
		return h.Value
	}
	return ""
}

// Package extract implements the verification code and link extraction
// pipeline: payload decoding, the code and link strategy cascades, sender
// attribution and cross-message ranking. Everything here is pure and
// synchronous.
package extract

import (
	"encoding/base64"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brcs124/2FacTrac/internal/model"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// DecodeBody turns a message payload into plain text and HTML. One level of
// parts is scanned for the first text/plain and text/html part; children of
// a nested multipart are appended in encounter order. A part with malformed
// base64 contributes nothing. When the message has HTML but no plain text,
// a tag-stripped copy of the HTML becomes the search text.
func DecodeBody(msg model.RawMessage, logger *slog.Logger) model.DecodedBody {
	if logger == nil {
		logger = slog.Default()
	}

	var plain, html []string
	payload := msg.Payload

	if len(payload.Parts) > 0 {
		var havePlain, haveHTML bool
		for _, part := range payload.Parts {
			switch {
			case len(part.Parts) > 0:
				for _, child := range part.Parts {
					switch child.MimeType {
					case mimeTextPlain:
						plain = appendDecoded(plain, msg.ID, child, logger)
					case mimeTextHTML:
						html = appendDecoded(html, msg.ID, child, logger)
					}
				}
			case part.MimeType == mimeTextPlain && !havePlain:
				havePlain = true
				plain = appendDecoded(plain, msg.ID, part, logger)
			case part.MimeType == mimeTextHTML && !haveHTML:
				haveHTML = true
				html = appendDecoded(html, msg.ID, part, logger)
			}
		}
	} else if payload.MimeType == mimeTextHTML {
		html = appendDecoded(html, msg.ID, payload, logger)
	} else {
		plain = appendDecoded(plain, msg.ID, payload, logger)
	}

	plainText := strings.Join(plain, "\n")
	htmlText := strings.Join(html, "\n")

	var stripped string
	if plainText == "" && htmlText != "" {
		stripped = stripHTML(htmlText)
	}

	return model.NewDecodedBody(plainText, htmlText, stripped, msg.Snippet)
}

// appendDecoded decodes the body of part and appends it to dst when it
// yields text.
func appendDecoded(
	dst []string, msgID string, part model.MessagePart, logger *slog.Logger,
) []string {
	if part.Body == nil || part.Body.Data == "" {
		return dst
	}
	text, err := decodeBase64URL(part.Body.Data)
	if err != nil {
		logger.Debug("skipping undecodable part",
			"message_id", msgID, "mime_type", part.MimeType, "err", err)
		return dst
	}
	if text == "" {
		return dst
	}
	return append(dst, text)
}

var base64URLReplacer = strings.NewReplacer("-", "+", "_", "/")

// decodeBase64URL decodes base64url text, tolerating missing padding and
// standard-alphabet input.
func decodeBase64URL(data string) (string, error) {
	s := base64URLReplacer.Replace(strings.TrimSpace(data))
	s = strings.TrimRight(s, "=")
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// nonTextElementPattern matches style and script elements with their
// content, which is never visible text.
var nonTextElementPattern = regexp.MustCompile(
	`(?is)<style\b[^>]*>.*?</style\s*>|<script\b[^>]*>.*?</script\s*>`,
)

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`(?s)<.*?>`)

var (
	blockTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|tr|h[1-6])\s*>`)
	entityReplacer  = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// stripHTML removes HTML tags from a string and decodes common
// entities. Style and script content is dropped. Block-level closing tags become line breaks so that
// line-oriented searches still see one paragraph per line.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := nonTextElementPattern.ReplaceAllString(html, "")
	result = blockTagPattern.ReplaceAllString(result, "\n")
	result = htmlTagPattern.ReplaceAllString(result, "")
	result = entityReplacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}

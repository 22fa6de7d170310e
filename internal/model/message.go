package model

import "strings"

// Header is a single name/value pair from a message or part header block.
// Order is preserved as received.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PartBody holds the encoded body of a message part.
type PartBody struct {
	// Data is the body content encoded as base64url text.
	Data string `json:"data,omitempty"`

	// Size is the decoded size in bytes as reported by the source.
	Size int `json:"size,omitempty"`
}

// MessagePart is a node of a message payload tree. Leaf parts carry a
// Body; multipart containers carry child Parts.
type MessagePart struct {
	MimeType string        `json:"mimeType"`
	Filename string        `json:"filename,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
	Body     *PartBody     `json:"body,omitempty"`
	Parts    []MessagePart `json:"parts,omitempty"`
}

// RawMessage is a received message as handed to the extraction pipeline.
// The JSON layout follows the Gmail API "full" message resource.
type RawMessage struct {
	// ID is the opaque identifier assigned by the message source.
	ID string `json:"id"`

	// Payload is the root of the MIME payload tree.
	Payload MessagePart `json:"payload"`

	// Snippet is a short plain-text preview of the message.
	Snippet string `json:"snippet,omitempty"`

	// InternalDate is the receipt time in milliseconds since the epoch.
	// Zero means unknown.
	InternalDate int64 `json:"internalDate,string,omitempty"`
}

// Header returns the value of the first header named name, compared
// case-insensitively, and whether it was present.
func (p MessagePart) Header(name string) (string, bool) {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// DecodedBody is the normalized text of a message.
type DecodedBody struct {
	// PlainText is the decoded text/plain content.
	PlainText string

	// HTML is the decoded text/html content, kept for structure-aware scans.
	HTML string

	// Snippet is the source-provided preview, used as a last resort.
	Snippet string

	// surrogate is PlainText derived from HTML when no text/plain part exists.
	surrogate string
}

// NewDecodedBody builds a DecodedBody. stripped is the tag-stripped form of
// html and is only consulted when plain is empty.
func NewDecodedBody(plain, html, stripped, snippet string) DecodedBody {
	return DecodedBody{
		PlainText: plain,
		HTML:      html,
		Snippet:   snippet,
		surrogate: stripped,
	}
}

// SearchText returns the plain-text equivalent used for regex searches:
// the plain text part, else the HTML with tags stripped, else the snippet.
func (b DecodedBody) SearchText() string {
	switch {
	case b.PlainText != "":
		return b.PlainText
	case b.surrogate != "":
		return b.surrogate
	default:
		return b.Snippet
	}
}

// Empty reports whether there is nothing to extract from.
func (b DecodedBody) Empty() bool {
	return b.PlainText == "" && b.HTML == "" && b.Snippet == ""
}

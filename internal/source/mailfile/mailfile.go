// Package mailfile reads messages from a local directory of RFC 5322
// (.eml) files, such as a mail client's drop folder or a maildir "new"
// directory. File modification time stands in for receipt time.
package mailfile

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/source"
)

// maxPartDepth bounds recursion into nested multiparts.
const maxPartDepth = 8

// snippetLen is the maximum length of a generated snippet.
const snippetLen = 200

// Source implements source.Source over a directory of .eml files.
type Source struct {
	dir string
}

// New creates a source reading from dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Type returns the source type identifier.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeMailFile
}

type entry struct {
	name    string
	modTime time.Time
}

// ListRecent returns the names of .eml files in the directory, newest
// first, restricted by opts.
func (s *Source) ListRecent(
	ctx context.Context, opts source.ListOptions,
) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, s.wrapErr(fmt.Sprintf("listing %s", s.dir), err)
	}

	cutoff := opts.Cutoff()
	var entries []entry
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".eml") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if !cutoff.IsZero() && info.ModTime().Before(cutoff) {
			continue
		}
		entries = append(entries, entry{name: de.Name(), modTime: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].modTime.After(entries[j].modTime)
	})

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.name)
	}
	return ids, nil
}

// Fetch reads and parses the file named id.
func (s *Source) Fetch(
	_ context.Context, id string,
) (*model.RawMessage, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("invalid message id %q", id)
	}

	path := filepath.Join(s.dir, id)
	info, err := os.Stat(path)
	if err != nil {
		return nil, s.wrapErr(fmt.Sprintf("reading %s", id), err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, s.wrapErr(fmt.Sprintf("reading %s", id), err)
	}

	msg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", id, err)
	}
	msg.ID = id
	msg.InternalDate = info.ModTime().UnixMilli()
	return msg, nil
}

// wrapErr turns permission failures into source.AuthError.
func (s *Source) wrapErr(what string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &source.AuthError{
			SourceType: source.SourceTypeMailFile,
			Message:    fmt.Sprintf("%s: access denied", what),
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Parse converts a raw RFC 5322 message into the payload tree used by the
// extraction pipeline. Leaf bodies are transfer-decoded, converted to
// UTF-8 and re-encoded as base64url.
func Parse(raw []byte) (*model.RawMessage, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	payload, snippet, err := buildPart(entity, 0)
	if err != nil {
		return nil, err
	}

	return &model.RawMessage{
		Payload: payload,
		Snippet: snippet,
	}, nil
}

// buildPart converts e and its children into a MessagePart. snippet is a
// short preview taken from the first text/plain leaf.
func buildPart(e *message.Entity, depth int) (model.MessagePart, string, error) {
	mediaType, _, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}

	part := model.MessagePart{
		MimeType: mediaType,
		Headers:  headersOf(e.Header),
	}
	if _, params, err := e.Header.ContentDisposition(); err == nil {
		part.Filename = params["filename"]
	}

	if mr := e.MultipartReader(); mr != nil {
		if depth >= maxPartDepth {
			return part, "", nil
		}
		var snippet string
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return part, snippet, fmt.Errorf("reading part of %s: %w", mediaType, err)
			}
			childPart, childSnippet, err := buildPart(child, depth+1)
			if err != nil {
				return part, snippet, err
			}
			if snippet == "" {
				snippet = childSnippet
			}
			part.Parts = append(part.Parts, childPart)
		}
		return part, snippet, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return part, "", fmt.Errorf("reading %s body: %w", mediaType, err)
	}
	part.Body = &model.PartBody{
		Data: base64.URLEncoding.EncodeToString(body),
		Size: len(body),
	}

	var snippet string
	if mediaType == "text/plain" {
		snippet = makeSnippet(string(body))
	}
	return part, snippet, nil
}

// headersOf lists the header fields of h with encoded words decoded.
func headersOf(h message.Header) []model.Header {
	var headers []model.Header
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		headers = append(headers, model.Header{Name: fields.Key(), Value: value})
	}
	return headers
}

// makeSnippet collapses whitespace and truncates text to a preview.
func makeSnippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if r := []rune(s); len(r) > snippetLen {
		s = string(r[:snippetLen])
	}
	return s
}

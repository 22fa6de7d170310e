// Package gmailjson reads messages exported from the Gmail API
// (users.messages.get with format=full), one JSON document per file.
package gmailjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/source"
)

// Source implements source.Source over a directory of JSON exports.
type Source struct {
	dir string
}

// New creates a source reading from dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Type returns the source type identifier.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeGmailJSON
}

// ListRecent returns the file names of exports ordered by internalDate,
// newest first. Files that fail to decode are left out.
func (s *Source) ListRecent(
	ctx context.Context, opts source.ListOptions,
) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, s.wrapErr(fmt.Sprintf("listing %s", s.dir), err)
	}

	type entry struct {
		name string
		date int64
	}

	var cutoff int64
	if c := opts.Cutoff(); !c.IsZero() {
		cutoff = c.UnixMilli()
	}

	var entries []entry
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".json") {
			continue
		}
		msg, err := s.read(de.Name())
		if err != nil {
			if source.IsAuthError(err) {
				return nil, err
			}
			continue
		}
		if cutoff > 0 && msg.InternalDate < cutoff {
			continue
		}
		entries = append(entries, entry{name: de.Name(), date: msg.InternalDate})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].date > entries[j].date
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

// Fetch decodes the export named id. The message keeps the Gmail ID
// recorded in the file, falling back to the file name.
func (s *Source) Fetch(
	_ context.Context, id string,
) (*model.RawMessage, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("invalid message id %q", id)
	}
	return s.read(id)
}

func (s *Source) read(name string) (*model.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, s.wrapErr(fmt.Sprintf("reading %s", name), err)
	}

	var msg model.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if msg.ID == "" {
		msg.ID = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return &msg, nil
}

// wrapErr turns permission failures into source.AuthError.
func (s *Source) wrapErr(what string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &source.AuthError{
			SourceType: source.SourceTypeGmailJSON,
			Message:    fmt.Sprintf("%s: access denied", what),
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

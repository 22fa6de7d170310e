package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brcs124/2FacTrac/internal/model"
)

// AuthError indicates that access to a message source was refused.
// A batch that hits one stops immediately.
type AuthError struct {
	SourceType SourceType
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of message source.
type SourceType string

const (
	SourceTypeMailFile  SourceType = model.SourceTypeMailFile
	SourceTypeGmailJSON SourceType = model.SourceTypeGmailJSON
)

// ListOptions bounds which messages make up a batch.
type ListOptions struct {
	// Limit is the maximum number of message IDs returned.
	Limit int

	// Window excludes messages older than now minus Window. Zero disables
	// the age filter.
	Window time.Duration

	// Now is the reference time for Window; zero means time.Now().
	Now time.Time
}

// Cutoff returns the oldest receipt time admitted by the options, or the
// zero time when no window applies.
func (o ListOptions) Cutoff() time.Time {
	if o.Window <= 0 {
		return time.Time{}
	}
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.Add(-o.Window)
}

// Source defines the contract every message source implements.
type Source interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ListRecent returns the IDs of recent messages, newest first.
	ListRecent(ctx context.Context, opts ListOptions) ([]string, error)

	// Fetch retrieves the full content of a single message.
	Fetch(ctx context.Context, id string) (*model.RawMessage, error)
}

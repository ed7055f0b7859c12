// Package posts reads post identifiers from the configured backend and maps them to site paths.
package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBackendUnavailable = errors.New("posts backend unavailable")

// Post is a row of the posts table. Only the id is ever selected.
type Post struct {
	ID string `json:"id"`
}

// UnmarshalJSON accepts ids encoded as JSON strings or numbers.
func (p *Post) UnmarshalJSON(data []byte) error {
	var row struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	raw := bytes.TrimSpace(row.ID)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return fmt.Errorf("post row without id: %s", data)
	case raw[0] == '"':
		return json.Unmarshal(raw, &p.ID)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("unsupported post id %s: %w", raw, err)
		}
		p.ID = n.String()
	}
	return nil
}

// Source lists the ids of all posts.
type Source interface {
	ListPostIDs(ctx context.Context) ([]Post, error)
	Name() string
	Close() error
}

// BackendError is returned when the hosted backend answers with a non-2xx status.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("posts backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("posts backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *BackendError) Unwrap() error {
	if e.StatusCode >= 500 {
		return ErrBackendUnavailable
	}
	return nil
}

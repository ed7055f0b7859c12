package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// SupabaseSource reads posts through the PostgREST endpoint of a hosted backend.
type SupabaseSource struct {
	baseURL string
	key     string
	table   string
	client  *http.Client
}

// NewSupabaseSource validates the project URL. A nil client gets a client with timeout.
func NewSupabaseSource(projectURL, key, table string, client *http.Client, timeout time.Duration) (*SupabaseSource, error) {
	u, err := url.Parse(strings.TrimSpace(projectURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", projectURL)
	}
	if key == "" {
		return nil, errors.New("supabase key is required")
	}
	if client == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &SupabaseSource{
		baseURL: strings.TrimRight(u.String(), "/"),
		key:     key,
		table:   table,
		client:  client,
	}, nil
}

func (s *SupabaseSource) Name() string { return "supabase" }

func (s *SupabaseSource) endpoint() string {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("order", "id.asc")
	return s.baseURL + "/rest/v1/" + url.PathEscape(s.table) + "?" + q.Encode()
}

// ListPostIDs issues GET /rest/v1/<table>?select=id&order=id.asc.
func (s *SupabaseSource) ListPostIDs(ctx context.Context) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &BackendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var rows []Post
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode posts response: %w", err)
	}
	if rows == nil {
		rows = []Post{}
	}
	return rows, nil
}

// Close releases idle keep-alive connections.
func (s *SupabaseSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

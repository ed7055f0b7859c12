package posts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseSourceListPostIDs(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"b"},{"id":7}]`))
	}))
	defer srv.Close()

	src, err := NewSupabaseSource(srv.URL+"/", "anon-key", "posts", srv.Client(), 0)
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.ListPostIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Post{{ID: "b"}, {ID: "7"}}, rows)
	assert.Equal(t, "/rest/v1/posts", gotPath)
	assert.Equal(t, "order=id.asc&select=id", gotQuery)
	assert.Equal(t, "anon-key", gotKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, "supabase", src.Name())
}

func TestSupabaseSourceEmptyTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src, err := NewSupabaseSource(srv.URL, "k", "posts", srv.Client(), 0)
	require.NoError(t, err)
	rows, err := src.ListPostIDs(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSupabaseSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	src, err := NewSupabaseSource(srv.URL, "wrong", "posts", srv.Client(), 0)
	require.NoError(t, err)
	_, err = src.ListPostIDs(context.Background())

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
	assert.Contains(t, backendErr.Body, "Invalid API key")
}

func TestSupabaseSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	src, err := NewSupabaseSource(url, "k", "posts", nil, time.Second)
	require.NoError(t, err)
	_, err = src.ListPostIDs(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestNewSupabaseSourceValidates(t *testing.T) {
	_, err := NewSupabaseSource("not a url", "k", "posts", nil, 0)
	assert.Error(t, err)
	_, err = NewSupabaseSource("https://example.supabase.co", "", "posts", nil, 0)
	assert.Error(t, err)
}

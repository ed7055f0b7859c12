package posts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	rows  []Post
	err   error
	calls int
}

func (f *fakeSource) ListPostIDs(context.Context) ([]Post, error) {
	f.calls++
	return f.rows, f.err
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Close() error { return nil }

func TestRoutesKeepsQueryOrder(t *testing.T) {
	got := Routes([]Post{{ID: "3"}, {ID: "1"}, {ID: "a1b2"}})
	assert.Equal(t, []string{"/post/3", "/post/1", "/post/a1b2"}, got)
}

func TestRoutesEmptyIsNotNil(t *testing.T) {
	got := Routes(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestRoutePathEscapesSegment(t *testing.T) {
	assert.Equal(t, "/post/9f1c0e8a-2b7d-4e0f-9a51-3f2d8c7b6a10", RoutePath("9f1c0e8a-2b7d-4e0f-9a51-3f2d8c7b6a10"))
	assert.Equal(t, "/post/a%2Fb", RoutePath("a/b"))
}

func TestMapperPostRoutes(t *testing.T) {
	src := &fakeSource{rows: []Post{{ID: "1"}, {ID: "2"}}}
	m := NewMapper(src, nil)

	assert.Equal(t, []string{"/post/1", "/post/2"}, m.PostRoutes(context.Background()))
	assert.Equal(t, Envelope{Data: []string{"/post/1", "/post/2"}}, m.PublicPostRoutes(context.Background()))
	assert.Equal(t, 2, src.calls)
}

func TestMapperFailureLogsAndReturnsEmpty(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	src := &fakeSource{err: errors.New("connection refused")}
	m := NewMapper(src, zap.New(core))

	routes := m.PostRoutes(context.Background())
	require.NotNil(t, routes)
	assert.Empty(t, routes)

	env := m.PublicPostRoutes(context.Background())
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(data))

	entries := logs.FilterMessage("取得文章路由失敗").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
}

func TestMapperDiscoverReturnsError(t *testing.T) {
	m := NewMapper(&fakeSource{err: ErrBackendUnavailable}, nil)
	_, err := m.Discover(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = NewMapper(nil, nil).Discover(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestPostUnmarshalAcceptsStringsAndNumbers(t *testing.T) {
	var rows []Post
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"abc"},{"id":42},{"id":12345678901234567890}]`), &rows))
	assert.Equal(t, []Post{{ID: "abc"}, {ID: "42"}, {ID: "12345678901234567890"}}, rows)

	assert.Error(t, json.Unmarshal([]byte(`[{"id":null}]`), &rows))
	assert.Error(t, json.Unmarshal([]byte(`[{"title":"no id"}]`), &rows))
	assert.Error(t, json.Unmarshal([]byte(`[{"id":true}]`), &rows))
}

func TestBackendErrorUnwrap(t *testing.T) {
	assert.ErrorIs(t, &BackendError{StatusCode: 503}, ErrBackendUnavailable)
	assert.NotErrorIs(t, &BackendError{StatusCode: 401}, ErrBackendUnavailable)
	assert.Equal(t, "posts backend returned status 401: bad key", (&BackendError{StatusCode: 401, Body: "bad key"}).Error())
}

package posts

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/i18n"
	"github.com/go-while/go-dailyprophet/internal/logging"
)

const PathPrefix = "/post/"

// RoutePath returns the site path of a single post.
func RoutePath(id string) string {
	return PathPrefix + url.PathEscape(id)
}

// Routes maps posts to their site paths, keeping query order. The result is never nil.
func Routes(posts []Post) []string {
	routes := make([]string, 0, len(posts))
	for _, p := range posts {
		routes = append(routes, RoutePath(p.ID))
	}
	return routes
}

// Envelope is the public API response body.
type Envelope struct {
	Data []string `json:"data"`
}

// Mapper turns the posts table into route lists for the API handlers and startup discovery.
type Mapper struct {
	source Source
	logger *zap.Logger
}

func NewMapper(source Source, logger *zap.Logger) *Mapper {
	return &Mapper{source: source, logger: logging.OrNop(logger)}
}

// Discover queries the backend and returns all post routes or the query error.
func (m *Mapper) Discover(ctx context.Context) ([]string, error) {
	if m.source == nil {
		return nil, ErrBackendUnavailable
	}
	rows, err := m.source.ListPostIDs(ctx)
	if err != nil {
		return nil, err
	}
	return Routes(rows), nil
}

// PostRoutes is the server variant: failures are logged and yield an empty list.
func (m *Mapper) PostRoutes(ctx context.Context) []string {
	routes, err := m.Discover(ctx)
	if err != nil {
		m.logger.Error(i18n.Text("", i18n.MsgRoutesFailed), zap.Error(err))
		return []string{}
	}
	return routes
}

// PublicPostRoutes is the public API variant wrapping the routes in {"data": [...]}.
func (m *Mapper) PublicPostRoutes(ctx context.Context) Envelope {
	return Envelope{Data: m.PostRoutes(ctx)}
}

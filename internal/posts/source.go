package posts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-while/go-dailyprophet/internal/config"
)

// OpenSource opens the posts backend selected in cfg. local is the sqlite main database,
// only used by the sqlite backend.
func OpenSource(ctx context.Context, cfg *config.MainConfig, local *sql.DB) (Source, error) {
	table := cfg.Database.PostsTable
	if table == "" {
		table = config.DefaultPostsTable
	}
	switch cfg.Database.Backend {
	case config.BackendSQLite:
		if local == nil {
			return nil, fmt.Errorf("sqlite backend requires the local database")
		}
		return NewSQLiteSource(local, table), nil
	case config.BackendPostgres:
		return OpenPostgresSource(ctx, cfg.Database.PostgresDSN, table)
	case config.BackendSupabase:
		return NewSupabaseSource(cfg.Supabase.URL, cfg.Supabase.Key, table, nil, cfg.Supabase.Timeout)
	default:
		return nil, fmt.Errorf("unknown posts backend %q", cfg.Database.Backend)
	}
}

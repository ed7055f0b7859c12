package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// BunSource selects post ids through bun, over sqlite or postgres.
type BunSource struct {
	db      *bun.DB
	table   string
	name    string
	ownsDB  bool
	timeout time.Duration
}

// NewSQLiteSource reads posts from an already opened sqlite database. The caller keeps ownership of sqldb.
func NewSQLiteSource(sqldb *sql.DB, table string) *BunSource {
	return &BunSource{
		db:    bun.NewDB(sqldb, sqlitedialect.New()),
		table: table,
		name:  "sqlite",
	}
}

// OpenPostgresSource connects to a hosted postgres database and verifies the connection.
func OpenPostgresSource(ctx context.Context, dsn, table string) (*BunSource, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(4)
	sqldb.SetMaxIdleConns(2)
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to ping postgres: %w; also failed to close: %v", err, cerr)
		}
		return nil, fmt.Errorf("failed to ping postgres: %w", errors.Join(ErrBackendUnavailable, err))
	}
	return &BunSource{
		db:      bun.NewDB(sqldb, pgdialect.New()),
		table:   table,
		name:    "postgres",
		ownsDB:  true,
		timeout: 30 * time.Second,
	}, nil
}

func (s *BunSource) Name() string { return s.name }

// ListPostIDs runs SELECT CAST(id AS TEXT) AS post_id FROM <table> ORDER BY <table>.id.
func (s *BunSource) ListPostIDs(ctx context.Context) ([]Post, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	// the cast gets its own alias so ORDER BY sorts the column, not its text form
	var ids []string
	err := s.db.NewSelect().
		ColumnExpr("CAST(? AS TEXT) AS post_id", bun.Ident("id")).
		TableExpr("?", bun.Ident(s.table)).
		OrderExpr("?.? ASC", bun.Ident(s.table), bun.Ident("id")).
		Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select ids from %s (%s): %w", s.table, s.name, err)
	}
	rows := make([]Post, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Post{ID: id})
	}
	return rows, nil
}

// Close closes the connection pool when the source opened it itself.
func (s *BunSource) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
	"github.com/go-while/go-dailyprophet/internal/sitemap"
)

// generateAndRecord writes the sitemap and stores its bookkeeping in the config table
func generateAndRecord(ctx context.Context, writer *sitemap.Writer, db *database.Database) error {
	res, err := writer.Generate(ctx)
	if err != nil {
		return err
	}
	return db.RecordSitemap(res.GeneratedAt, res.URLCount)
}

// logLocalPosts reports how many rows the local posts table holds when it backs the routes.
// Returns -1 for the remote backends.
func logLocalPosts(db *database.Database, backend string, log *zap.Logger) int {
	if backend != config.BackendSQLite {
		return -1
	}
	n, err := db.CountPosts()
	if err != nil {
		log.Warn("failed to count local posts", zap.Error(err))
		return -1
	}
	if n == 0 {
		log.Warn("local posts table is empty, only the home page will be listed")
	} else {
		log.Info("local posts", zap.Int("count", n))
	}
	return n
}

// startSitemapRefresher rewrites the sitemap every interval until ctx is done
func startSitemapRefresher(ctx context.Context, writer *sitemap.Writer, db *database.Database, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zap.L().Info("sitemap refresher started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := generateAndRecord(ctx, writer, db); err != nil {
				zap.L().Warn("periodic sitemap failed", zap.Error(err))
			}
		}
	}
}

// monitorUpdateFile signals a graceful shutdown once a '.update' file shows up in the working directory
func monitorUpdateFile(ctx context.Context, shutdownChan chan<- bool) {
	watchUpdateFile(ctx, ".update", 60*time.Second, shutdownChan)
}

func watchUpdateFile(ctx context.Context, updateFilePath string, every time.Duration, shutdownChan chan<- bool) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log := zap.L().Named("update")
	log.Debug("update file monitor started", zap.String("file", updateFilePath), zap.Duration("every", every))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := os.Stat(updateFilePath); err != nil {
			continue
		}
		log.Info("update file detected, triggering graceful shutdown", zap.String("file", updateFilePath))
		if err := os.Rename(updateFilePath, updateFilePath+".todo"); err != nil {
			log.Warn("failed to rename update file", zap.String("file", updateFilePath), zap.Error(err))
			continue
		}
		select {
		case shutdownChan <- true:
		default:
			log.Debug("shutdown channel already signaled")
		}
		return
	}
}

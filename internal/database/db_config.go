package database

import (
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const (
	configKeySitemapGeneratedAt = "sitemap_generated_at"
	configKeySitemapURLCount    = "sitemap_url_count"
)

// GetConfigValue retrieves a configuration value from the config table
func (db *Database) GetConfigValue(key string) (string, error) {
	var value string
	err := retryableQueryRowScan(db.mainDB, "SELECT value FROM config WHERE key = ?", []interface{}{key}, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // missing keys read as empty
		}
		return "", err
	}
	return value, nil
}

// SetConfigValue sets or updates a configuration value in the config table
func (db *Database) SetConfigValue(key, value string) error {
	_, err := retryableExec(db.mainDB, `
		INSERT OR REPLACE INTO config (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}

// SitemapStatus is the bookkeeping of the last successful sitemap write
type SitemapStatus struct {
	GeneratedAt time.Time `json:"generated_at"`
	URLCount    int       `json:"url_count"`
}

// RecordSitemap stores when the sitemap was last written and how many URLs it had
func (db *Database) RecordSitemap(at time.Time, urlCount int) error {
	if err := db.SetConfigValue(configKeySitemapGeneratedAt, at.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return db.SetConfigValue(configKeySitemapURLCount, strconv.Itoa(urlCount))
}

// LastSitemap returns the last recorded sitemap write, or nil if there was none
func (db *Database) LastSitemap() (*SitemapStatus, error) {
	at, err := db.GetConfigValue(configKeySitemapGeneratedAt)
	if err != nil || at == "" {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return nil, err
	}
	countStr, err := db.GetConfigValue(configKeySitemapURLCount)
	if err != nil {
		return nil, err
	}
	count, _ := strconv.Atoi(countStr)
	return &SitemapStatus{GeneratedAt: ts, URLCount: count}, nil
}

// Package database provides the local sqlite database of go-dailyprophet: site config values,
// admin credentials, API tokens and a local copy of the posts table for development.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/logging"
)

const MainDBFile = "dailyprophet.sq3"

// Database wraps the main sqlite connection
type Database struct {
	mainDB    *sql.DB
	dbconfig  *DBConfig
	logger    *zap.Logger
	MainMutex sync.RWMutex
	closed    bool
}

// DBConfig represents database configuration
type DBConfig struct {
	// Directory to store database files
	DataDir string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB when negative
	TempStore string // MEMORY, FILE
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		DataDir:         "./data",
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 0, // sqlite connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -16384, // 16MB
		TempStore:       "MEMORY",
	}
}

// OpenDatabase opens (and creates) the main database below dbconfig.DataDir and applies migrations
func OpenDatabase(dbconfig *DBConfig, logger *zap.Logger) (*Database, error) {
	if dbconfig == nil {
		dbconfig = DefaultDBConfig()
	}
	db := &Database{
		dbconfig: dbconfig,
		logger:   logging.OrNop(logger).Named("database"),
	}
	if err := db.initMainDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize main database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.mainDB.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// GetMainDB returns the main database connection for direct access
func (db *Database) GetMainDB() *sql.DB {
	return db.mainDB
}

// Path returns the main database file
func (db *Database) Path() string {
	return filepath.Join(db.dbconfig.DataDir, "cfg", MainDBFile)
}

func (db *Database) initMainDB() error {
	dbPath := db.Path()
	db.logger.Info("initializing main database", zap.String("path", dbPath))

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	mainDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open main database: %w", err)
	}
	mainDB.SetMaxOpenConns(db.dbconfig.MaxOpenConns)
	mainDB.SetMaxIdleConns(db.dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	if err := mainDB.Ping(); err != nil {
		return errors.Join(fmt.Errorf("failed to ping main database: %w", err), mainDB.Close())
	}
	if err := db.applySQLitePragmas(mainDB); err != nil {
		return errors.Join(err, mainDB.Close())
	}
	db.mainDB = mainDB
	return nil
}

// applySQLitePragmas applies performance and configuration pragmas to the connection
func (db *Database) applySQLitePragmas(conn *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize),
		fmt.Sprintf("PRAGMA synchronous = %s", db.dbconfig.SyncMode),
		fmt.Sprintf("PRAGMA temp_store = %s", db.dbconfig.TempStore),
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
	}
	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma '%s': %w", pragma, err)
		}
	}
	return nil
}

// Shutdown closes the main database. Calling it twice is a no-op.
func (db *Database) Shutdown() error {
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.mainDB.Close(); err != nil {
		return fmt.Errorf("failed to close main database: %w", err)
	}
	db.logger.Info("main database closed")
	return nil
}

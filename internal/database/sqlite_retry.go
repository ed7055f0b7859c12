package database

import (
	"database/sql"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetries = 100
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

// isRetryableError checks if the error is a retryable SQLite lock error
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "busy")
}

// backoff sleeps with linear backoff capped at maxDelay plus up to 50% jitter
func backoff(attempt int) {
	delay := time.Duration(attempt+1) * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	time.Sleep(delay + time.Duration(rand.Int63n(int64(delay)/2)))
}

// withRetry runs fn until it returns a non-retryable result or maxRetries is reached
func withRetry(what string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxRetries-1 {
			zap.L().Warn("sqlite retry",
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxRetries),
				zap.String("query", what),
				zap.Error(err))
			backoff(attempt)
		}
	}
	return err
}

// retryableExec executes a SQL statement with retry logic for lock conflicts
func retryableExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := withRetry(truncateString(query, 50), func() error {
		var err error
		result, err = db.Exec(query, args...)
		return err
	})
	return result, err
}

// retryableQueryRowScan executes a QueryRow and Scan with retry logic
func retryableQueryRowScan(db *sql.DB, query string, args []interface{}, dest ...interface{}) error {
	return withRetry(truncateString(query, 50), func() error {
		return db.QueryRow(query, args...).Scan(dest...)
	})
}

// retryableQuery executes a query that returns multiple rows with retry logic
func retryableQuery(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := withRetry(truncateString(query, 50), func() error {
		var err error
		rows, err = db.Query(query, args...)
		return err
	})
	return rows, err
}

// retryableTransactionExec runs txFunc inside a transaction, retrying the whole transaction on lock conflicts
func retryableTransactionExec(db *sql.DB, txFunc func(*sql.Tx) error) error {
	return withRetry("transaction", func() error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := txFunc(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}

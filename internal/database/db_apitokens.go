package database

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var ErrTokenInvalid = errors.New("invalid or expired token")

// APIToken represents an API token record
type APIToken struct {
	ID         int        `json:"id"`
	APIToken   string     `json:"-"` // sha256 of the plain token
	OwnerName  string     `json:"owner_name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsEnabled  bool       `json:"is_enabled"`
	UsageCount int        `json:"usage_count"`
}

// GenerateAPIToken creates a new cryptographically secure API token
func GenerateAPIToken() (string, error) {
	bytes := make([]byte, 32) // 64 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken creates a SHA-256 hash of the token for database storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CreateAPIToken generates and stores a new API token. The plain token is only returned here.
func (db *Database) CreateAPIToken(ownerName string, expiresAt *time.Time) (*APIToken, string, error) {
	if ownerName == "" {
		return nil, "", errors.New("token owner is required")
	}
	plainToken, err := GenerateAPIToken()
	if err != nil {
		return nil, "", err
	}
	hashedToken := HashToken(plainToken)

	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()

	result, err := retryableExec(db.mainDB,
		`INSERT INTO api_tokens (apitoken, ownername, expires_at, is_enabled) VALUES (?, ?, ?, 1)`,
		hashedToken, ownerName, expiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store api token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, "", err
	}
	return &APIToken{
		ID:        int(id),
		APIToken:  hashedToken,
		OwnerName: ownerName,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		IsEnabled: true,
	}, plainToken, nil
}

const apiTokenColumns = `id, apitoken, ownername, created_at, last_used_at, expires_at, is_enabled, usage_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIToken(row rowScanner) (*APIToken, error) {
	var token APIToken
	var lastUsed, expires sql.NullTime
	if err := row.Scan(&token.ID, &token.APIToken, &token.OwnerName, &token.CreatedAt,
		&lastUsed, &expires, &token.IsEnabled, &token.UsageCount); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		token.LastUsedAt = &lastUsed.Time
	}
	if expires.Valid {
		token.ExpiresAt = &expires.Time
	}
	return &token, nil
}

// ValidateAPIToken checks if a token exists, is enabled, and not expired
func (db *Database) ValidateAPIToken(plainToken string) (*APIToken, error) {
	if plainToken == "" {
		return nil, ErrTokenInvalid
	}
	db.MainMutex.RLock()
	defer db.MainMutex.RUnlock()

	var token *APIToken
	err := withRetry("validate api token", func() error {
		var err error
		token, err = scanAPIToken(db.mainDB.QueryRow(
			`SELECT `+apiTokenColumns+` FROM api_tokens WHERE apitoken = ? AND is_enabled = 1`,
			HashToken(plainToken)))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenInvalid
	}
	return token, nil
}

// UpdateTokenUsage updates the last_used_at timestamp and increments usage_count
func (db *Database) UpdateTokenUsage(tokenID int) error {
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	_, err := retryableExec(db.mainDB,
		`UPDATE api_tokens SET last_used_at = ?, usage_count = usage_count + 1 WHERE id = ?`,
		time.Now().UTC(), tokenID)
	return err
}

// ListAPITokens returns all tokens, newest first
func (db *Database) ListAPITokens() ([]*APIToken, error) {
	db.MainMutex.RLock()
	defer db.MainMutex.RUnlock()

	rows, err := retryableQuery(db.mainDB, `SELECT `+apiTokenColumns+` FROM api_tokens ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		token, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DisableAPIToken disables a token by id
func (db *Database) DisableAPIToken(tokenID int) error {
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	result, err := retryableExec(db.mainDB, `UPDATE api_tokens SET is_enabled = 0 WHERE id = ?`, tokenID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("api token %d not found", tokenID)
	}
	return nil
}

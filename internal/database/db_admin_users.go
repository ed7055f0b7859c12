package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
)

const MinPasswordLength = 6

// BcryptCost is the cost used for new password hashes
var BcryptCost = bcrypt.DefaultCost

// AdminUser may regenerate the sitemap when the endpoint is protected
type AdminUser struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CreateAdminUser stores a new admin with a bcrypt password hash
func (db *Database) CreateAdminUser(username, password string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if _, err := db.GetAdminUser(username); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	result, err := retryableExec(db.mainDB,
		`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`, username, hashed)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &AdminUser{ID: int(id), Username: username, PasswordHash: hashed, CreatedAt: now, UpdatedAt: now}, nil
}

// GetAdminUser loads an admin by username
func (db *Database) GetAdminUser(username string) (*AdminUser, error) {
	db.MainMutex.RLock()
	defer db.MainMutex.RUnlock()

	var u AdminUser
	err := retryableQueryRowScan(db.mainDB,
		`SELECT id, username, password_hash, created_at, updated_at FROM admin_users WHERE username = ?`,
		[]interface{}{username}, &u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// VerifyAdminPassword returns the user when the password matches
func (db *Database) VerifyAdminPassword(username, password string) (*AdminUser, error) {
	u, err := db.GetAdminUser(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateAdminPassword replaces the password hash of an existing admin
func (db *Database) UpdateAdminPassword(username, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	result, err := retryableExec(db.mainDB,
		`UPDATE admin_users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`, hashed, username)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteAdminUser removes an admin
func (db *Database) DeleteAdminUser(username string) error {
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	result, err := retryableExec(db.mainDB, `DELETE FROM admin_users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListAdminUsers returns all admins ordered by username
func (db *Database) ListAdminUsers() ([]*AdminUser, error) {
	db.MainMutex.RLock()
	defer db.MainMutex.RUnlock()
	rows, err := retryableQuery(db.mainDB,
		`SELECT id, username, password_hash, created_at, updated_at FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*AdminUser
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

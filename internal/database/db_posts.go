package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertPost adds a row to the local posts table
func (db *Database) InsertPost(id, title string) error {
	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	_, err := retryableExec(db.mainDB, `INSERT INTO posts (id, title) VALUES (?, ?)`, id, title)
	if err != nil {
		return fmt.Errorf("failed to insert post %s: %w", id, err)
	}
	return nil
}

// CountPosts returns the number of rows in the local posts table
func (db *Database) CountPosts() (int, error) {
	db.MainMutex.RLock()
	defer db.MainMutex.RUnlock()
	var n int
	err := retryableQueryRowScan(db.mainDB, `SELECT COUNT(*) FROM posts`, nil, &n)
	return n, err
}

// SeedDemoPosts inserts n posts with random uuid ids in one transaction and returns the ids
func (db *Database) SeedDemoPosts(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, uuid.NewString())
	}

	db.MainMutex.Lock()
	defer db.MainMutex.Unlock()
	err := retryableTransactionExec(db.mainDB, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO posts (id, title) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, id := range ids {
			if _, err := stmt.Exec(id, fmt.Sprintf("Demo post %d", i+1)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo posts: %w", err)
	}
	return ids, nil
}

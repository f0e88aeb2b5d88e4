package download

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// duplicateKey is the stable (creation_time, prompt[:100]) pair DownloadLog
// duplicate lookups depend on (spec testable property #6).
type duplicateKey struct {
	creationTime string
	promptPrefix string
}

func newDuplicateKey(creationTime, prompt string) duplicateKey {
	return duplicateKey{creationTime: creationTime, promptPrefix: prefix100(prompt)}
}

func prefix100(s string) string {
	if len(s) <= 100 {
		return s
	}
	return s[:100]
}

// sqliteIndex is the side-car duplicate-key cache backing
// DownloadLog.IsDuplicate: rebuilt from the text log on Load rather than
// treated as the source of truth, matching the teacher's own raw
// database/sql usage (internal/storage/db.go) rather than an ORM.
type sqliteIndex struct {
	db *sql.DB
}

func openIndex(path string) (*sqliteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open duplicate index: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS duplicate_keys (
			creation_time TEXT NOT NULL,
			prompt_prefix TEXT NOT NULL,
			file_id TEXT NOT NULL,
			PRIMARY KEY (creation_time, prompt_prefix)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create duplicate_keys table: %w", err)
	}
	return &sqliteIndex{db: db}, nil
}

// rebuild replaces the index's contents with exactly the keys in entries.
func (idx *sqliteIndex) rebuild(entries []Entry) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM duplicate_keys`); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO duplicate_keys (creation_time, prompt_prefix, file_id) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		key := newDuplicateKey(e.CreationTime, e.Prompt)
		if _, err := stmt.Exec(key.creationTime, key.promptPrefix, e.FileID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (idx *sqliteIndex) has(key duplicateKey) (bool, error) {
	var count int
	err := idx.db.QueryRow(
		`SELECT COUNT(*) FROM duplicate_keys WHERE creation_time = ? AND prompt_prefix = ?`,
		key.creationTime, key.promptPrefix,
	).Scan(&count)
	return count > 0, err
}

func (idx *sqliteIndex) add(key duplicateKey, fileID string) error {
	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO duplicate_keys (creation_time, prompt_prefix, file_id) VALUES (?, ?, ?)`,
		key.creationTime, key.promptPrefix, fileID,
	)
	return err
}

func (idx *sqliteIndex) close() error {
	return idx.db.Close()
}

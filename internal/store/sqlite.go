package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_locks (
	conversation_id TEXT PRIMARY KEY,
	locked_by       TEXT NOT NULL,
	locked_at       TEXT NOT NULL
);
`

// SQLitePersister keeps conversation locks in a local SQLite file so a
// takeover survives restarts.
type SQLitePersister struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the lock database at path.
func OpenSQLite(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open lock db: %w", err)
	}
	// The driver is in-process; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init lock db: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

func (p *SQLitePersister) SaveLock(rec LockRecord) error {
	_, err := p.db.Exec(
		`INSERT INTO conversation_locks (conversation_id, locked_by, locked_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET locked_by = excluded.locked_by, locked_at = excluded.locked_at`,
		rec.ConversationID, rec.LockedBy, rec.LockedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (p *SQLitePersister) DeleteLock(conversationID string) error {
	_, err := p.db.Exec(`DELETE FROM conversation_locks WHERE conversation_id = ?`, conversationID)
	return err
}

func (p *SQLitePersister) LoadLocks() ([]LockRecord, error) {
	rows, err := p.db.Query(`SELECT conversation_id, locked_by, locked_at FROM conversation_locks`)
	if err != nil {
		return nil, fmt.Errorf("load locks: %w", err)
	}
	defer rows.Close()

	var recs []LockRecord
	for rows.Next() {
		var rec LockRecord
		var at string
		if err := rows.Scan(&rec.ConversationID, &rec.LockedBy, &at); err != nil {
			return nil, fmt.Errorf("scan lock row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, at); err == nil {
			rec.LockedAt = ts
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

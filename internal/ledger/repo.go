package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/deckhand/internal/apperr"
)

// Pass is one recorded resolution or sync pass.
type Pass struct {
	ID        int64     `json:"id"`
	Deck      string    `json:"deck"`
	Path      string    `json:"path"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Revision  int       `json:"revision"`
	Entries   int       `json:"entries"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 50

// Record appends a pass and returns its id.
func (db *DB) Record(p Pass) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO passes (deck, path, outcome, error, revision, entries, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Deck, p.Path, p.Outcome, p.Error, p.Revision, p.Entries, p.Checksum, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("ledger: record pass: %w", err)
	}
	return res.LastInsertId()
}

// History returns the most recent passes for deck, newest first.
func (db *DB) History(deck string, limit int) ([]Pass, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, deck, path, outcome, error, revision, entries, checksum, created_at
		FROM passes WHERE deck = ? ORDER BY id DESC LIMIT ?
	`, deck, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		var p Pass
		if err := rows.Scan(&p.ID, &p.Deck, &p.Path, &p.Outcome, &p.Error, &p.Revision, &p.Entries, &p.Checksum, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Latest returns the newest pass for deck, or apperr.ErrNotFound.
func (db *DB) Latest(deck string) (*Pass, error) {
	var p Pass
	err := db.conn.QueryRow(`
		SELECT id, deck, path, outcome, error, revision, entries, checksum, created_at
		FROM passes WHERE deck = ? ORDER BY id DESC LIMIT 1
	`, deck).Scan(&p.ID, &p.Deck, &p.Path, &p.Outcome, &p.Error, &p.Revision, &p.Entries, &p.Checksum, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: latest: %w", err)
	}
	return &p, nil
}

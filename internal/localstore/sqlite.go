// Package localstore is the device-local SQLite file backing the demo
// social features (likes and comments). Nothing in it is synced to the
// backend; wiping the file resets the demo state.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MOULOUNDOU/digicode-immo/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS likes (
	listing_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (listing_id, user_id)
);
CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_listing ON comments (listing_id, created_at DESC);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the local store at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create local store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// Single writer keeps TOGGLE semantics race-free without retries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ToggleLike flips the like state for (listingID, userID) and reports
// the resulting state. Two calls always restore the original state.
func (s *Store) ToggleLike(ctx context.Context, listingID, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin like toggle: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM likes WHERE listing_id = ? AND user_id = ?`, listingID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}

	liked := false
	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO likes (listing_id, user_id, created_at) VALUES (?, ?, ?)`,
			listingID, userID, time.Now().UTC())
		if err != nil {
			return false, fmt.Errorf("failed to insert like: %w", err)
		}
		liked = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit like toggle: %w", err)
	}
	return liked, nil
}

// IsLiked reports whether the user currently likes the listing.
func (s *Store) IsLiked(ctx context.Context, listingID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE listing_id = ? AND user_id = ?`,
		listingID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query like state: %w", err)
	}
	return n > 0, nil
}

// LikeCount returns the number of likes on a listing.
func (s *Store) LikeCount(ctx context.Context, listingID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE listing_id = ?`, listingID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

// LikedListingIDs returns the IDs of all listings the user likes,
// most recently liked first.
func (s *Store) LikedListingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id FROM likes WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked listings: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked listing: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertComment stores a comment row. ID and timestamps are assigned by
// the caller.
func (s *Store) InsertComment(ctx context.Context, c *models.Comment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, listing_id, user_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ListingID, c.UserID, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// CommentsForListing returns all comments on a listing, newest first.
func (s *Store) CommentsForListing(ctx context.Context, listingID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, user_id, body, created_at FROM comments
		 WHERE listing_id = ? ORDER BY created_at DESC, id DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ListingID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

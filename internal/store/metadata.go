package store

import (
	"context"
	"database/sql"
	"errors"
)

const importHashPrefix = "import_hash:"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.queryRow(ctx, s.db, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ImportedQuiz returns the ID of the quiz previously imported from content
// with the given sha256 hash, or "" if the content is new.
func (s *Store) ImportedQuiz(ctx context.Context, hash string) (string, error) {
	return s.GetMetadata(ctx, importHashPrefix+hash)
}

// SetImportedQuiz records that content with the given hash became quizID.
func (s *Store) SetImportedQuiz(ctx context.Context, hash, quizID string) error {
	return s.SetMetadata(ctx, importHashPrefix+hash, quizID)
}

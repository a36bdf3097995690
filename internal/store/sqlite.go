// ABOUTME: SQLite implementation of the TokenStore interface using modernc.org/sqlite
// ABOUTME: Provides issued-token persistence with automatic schema creation

package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the TokenStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP,
			revoked_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(hash);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// hashToken returns the hex SHA-256 digest of a plaintext token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateToken issues a new opaque bearer token and stores its hash.
func (s *SQLiteStore) CreateToken(ctx context.Context, label string, ttl time.Duration) (*IssuedToken, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generating token: %w", err)
	}
	plaintext := "blx_" + base64.RawURLEncoding.EncodeToString(raw)

	token := &IssuedToken{
		ID:        uuid.New().String(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	if ttl > 0 {
		expires := token.CreatedAt.Add(ttl)
		token.ExpiresAt = &expires
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, label, hash, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.Label, hashToken(plaintext), token.CreatedAt, token.ExpiresAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("inserting token: %w", err)
	}

	s.logger.Info("token issued", "id", token.ID, "label", label)
	return token, plaintext, nil
}

// ListTokens returns all issued tokens, newest first.
func (s *SQLiteStore) ListTokens(ctx context.Context) ([]*IssuedToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, expires_at, revoked_at FROM tokens ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*IssuedToken
	for rows.Next() {
		t := &IssuedToken{}
		if err := rows.Scan(&t.ID, &t.Label, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RevokeToken marks a token as revoked by ID.
func (s *SQLiteStore) RevokeToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	s.logger.Info("token revoked", "id", id)
	return nil
}

// Verify reports whether the plaintext token is live.
// Satisfies the auth.Verifier interface.
func (s *SQLiteStore) Verify(token string) error {
	var expiresAt, revokedAt *time.Time
	err := s.db.QueryRowContext(context.Background(),
		`SELECT expires_at, revoked_at FROM tokens WHERE hash = ?`,
		hashToken(token),
	).Scan(&expiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up token: %w", err)
	}

	if revokedAt != nil {
		return ErrTokenRevoked
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return ErrTokenExpired
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

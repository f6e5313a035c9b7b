package websession

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planadmin/internal/storage"
)

// SQLStore keeps sessions in the web_sessions table.
type SQLStore struct {
	db     *sql.DB
	upsert string
}

// NewSQLStore builds a store for the given database/sql driver name.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	upsert := `INSERT INTO web_sessions (id, user_id, data, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, data = excluded.data, expires_at = excluded.expires_at`
	if storage.Driver(driver) == "mysql" {
		upsert = `INSERT INTO web_sessions (id, user_id, data, expires_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), data = VALUES(data), expires_at = VALUES(expires_at)`
	}
	return &SQLStore{db: db, upsert: upsert}
}

// Load returns the live session with id.
func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var (
		userID sql.NullInt64
		data   string
		sess   = &Session{ID: id}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, data, expires_at FROM web_sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	).Scan(&userID, &data, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &sess.Values); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Values == nil {
		sess.Values = make(map[string]json.RawMessage)
	}
	sess.UserID = userID.Int64
	return sess, nil
}

// Save upserts the session.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id required")
	}
	data, err := json.Marshal(sess.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var userID sql.NullInt64
	if sess.UserID > 0 {
		userID = sql.NullInt64{Int64: sess.UserID, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, sess.ID, userID, string(data), sess.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.modified = false
	return nil
}

// Delete removes the session.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUser removes every session bound to userID.
func (s *SQLStore) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// PurgeExpired removes expired sessions and reports how many were dropped.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

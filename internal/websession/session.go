// Package websession stores per-browser server-side sessions keyed by a cookie.
package websession

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state of one browser.
type Session struct {
	ID        string                     `json:"id"`
	UserID    int64                      `json:"user_id,omitempty"`
	Values    map[string]json.RawMessage `json:"values"`
	ExpiresAt time.Time                  `json:"expires_at"`

	modified bool
}

// Store persists sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// New creates an empty session with a random id.
func New(ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Values:    make(map[string]json.RawMessage),
		ExpiresAt: time.Now().UTC().Add(ttl),
		modified:  true,
	}
}

// Strings returns the string list stored under key.
func (s *Session) Strings(key string) ([]string, bool) {
	raw, ok := s.Values[key]
	if !ok {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	if out == nil {
		out = []string{}
	}
	return out, true
}

// SetStrings stores values under key.
func (s *Session) SetStrings(key string, values []string) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	s.set(key, data)
}

// Get decodes the value under key into dest. It reports false when the key is
// missing or does not decode.
func (s *Session) Get(key string, dest any) bool {
	raw, ok := s.Values[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores value under key.
func (s *Session) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.modified = true
	}
}

// SetUser binds the session to a user, or unbinds it with 0.
func (s *Session) SetUser(userID int64) {
	if s.UserID != userID {
		s.UserID = userID
		s.modified = true
	}
}

// Modified reports whether the session needs saving.
func (s *Session) Modified() bool {
	return s.modified
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (s *Session) set(key string, data json.RawMessage) {
	if s.Values == nil {
		s.Values = make(map[string]json.RawMessage)
	}
	if old, ok := s.Values[key]; ok && string(old) == string(data) {
		return
	}
	s.Values[key] = data
	s.modified = true
}

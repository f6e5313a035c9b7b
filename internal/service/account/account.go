// Package account manages admin users, their passwords and permissions, and the
// plan record that anchors report dates.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"planadmin/internal/events"
	"planadmin/internal/models"
	"planadmin/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPermission  = errors.New(`permission must look like "app.codename"`)
)

// Service handles user lifecycle and permission persistence.
type Service struct {
	db       *sql.DB
	driver   string
	bus      *events.Bus
	hashCost int
}

// NewService builds an account service. bus may be nil when nothing listens
// for user lifecycle events.
func NewService(db *sql.DB, driver string, bus *events.Bus) *Service {
	return &Service{
		db:       db,
		driver:   storage.Driver(driver),
		bus:      bus,
		hashCost: bcrypt.DefaultCost,
	}
}

// RegisterUser creates a user with the supplied credentials and publishes
// events.UserCreated. When a subscriber fails the user is removed again so that
// no user exists without its dependent records.
func (s *Service) RegisterUser(ctx context.Context, username, password string, superuser bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_superuser, created_at) VALUES (?, ?, ?, ?)`,
		username, string(hash), superuser, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	user := &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		IsSuperuser:  superuser,
		CreatedAt:    now,
		Permissions:  map[string]struct{}{},
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.NewUserEvent(events.UserCreated, id)); err != nil {
			if _, delErr := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); delErr != nil {
				return nil, errors.Join(fmt.Errorf("user created hooks: %w", err), fmt.Errorf("undo user: %w", delErr))
			}
			return nil, fmt.Errorf("user created hooks: %w", err)
		}
	}
	return user, nil
}

// Login validates credentials and returns the user profile with permissions.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	user, err := s.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// DeleteUser removes a user and cascaded data.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.NewUserEvent(events.UserDeleted, id)); err != nil {
			return fmt.Errorf("user deleted hooks: %w", err)
		}
	}
	return nil
}

// LoadUser returns the user with its permissions, or sql.ErrNoRows.
func (s *Service) LoadUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_superuser, created_at FROM users WHERE id = ?`, id,
	)
	return s.scanWithPerms(ctx, row)
}

// UserByUsername returns the named user with its permissions, or sql.ErrNoRows.
func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_superuser, created_at FROM users WHERE username = ?`,
		strings.TrimSpace(username),
	)
	return s.scanWithPerms(ctx, row)
}

func (s *Service) scanWithPerms(ctx context.Context, row *sql.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	perms, err := s.permissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Permissions = perms
	return &user, nil
}

func (s *Service) permissions(ctx context.Context, userID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT codename FROM user_permissions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()
	perms := make(map[string]struct{})
	for rows.Next() {
		var codename string
		if err := rows.Scan(&codename); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms[codename] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return perms, nil
}

// GrantPermission gives the user perm ("app.codename"). Granting twice is a no-op.
func (s *Service) GrantPermission(ctx context.Context, userID int64, perm string) error {
	perm = strings.TrimSpace(perm)
	if !validPerm(perm) {
		return ErrInvalidPermission
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	stmt := `INSERT OR IGNORE INTO user_permissions (user_id, codename) VALUES (?, ?)`
	if s.driver == "mysql" {
		stmt = `INSERT IGNORE INTO user_permissions (user_id, codename) VALUES (?, ?)`
	}
	if _, err := s.db.ExecContext(ctx, stmt, userID, perm); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// RevokePermission removes perm from the user.
func (s *Service) RevokePermission(ctx context.Context, userID int64, perm string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_permissions WHERE user_id = ? AND codename = ?`, userID, strings.TrimSpace(perm),
	); err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

// SetSuperuser toggles the superuser flag.
func (s *Service) SetSuperuser(ctx context.Context, userID int64, superuser bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_superuser = ? WHERE id = ?`, superuser, userID)
	if err != nil {
		return fmt.Errorf("update superuser: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return nil
}

func validPerm(perm string) bool {
	app, codename, ok := strings.Cut(perm, ".")
	return ok && app != "" && codename != "" && !strings.ContainsAny(perm, " \t")
}

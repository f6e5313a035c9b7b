package account

import (
	"context"
	"fmt"

	"planadmin/internal/models"
)

// UserColumns are the sortable columns of the users report, 1-based in the
// order they are displayed.
var UserColumns = []string{"username", "is_superuser", "created_at"}

// ListUsers returns every user ordered by the 1-based column of UserColumns.
// An out of range column sorts by username. Permissions are not loaded.
func (s *Service) ListUsers(ctx context.Context, column int, descending bool) ([]models.User, error) {
	orderBy := UserColumns[0]
	if column >= 1 && column <= len(UserColumns) {
		orderBy = UserColumns[column-1]
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	// orderBy comes from UserColumns only.
	query := fmt.Sprintf(
		`SELECT id, username, is_superuser, created_at FROM users ORDER BY %s %s, id ASC`, orderBy, dir,
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsSuperuser, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

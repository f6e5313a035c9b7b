package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"planadmin/internal/models"
)

// CurrentPlan returns the plan row, or sql.ErrNoRows when none was set up.
func (s *Service) CurrentPlan(ctx context.Context) (*models.Plan, error) {
	var p models.Plan
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, currentdate FROM plans ORDER BY id LIMIT 1`,
	).Scan(&p.ID, &p.Name, &p.CurrentDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("query plan: %w", err)
	}
	return &p, nil
}

// SetCurrentDate stores the plan date, creating the plan row on first use.
// An empty name keeps the existing one.
func (s *Service) SetCurrentDate(ctx context.Context, name string, date time.Time) (*models.Plan, error) {
	name = strings.TrimSpace(name)
	date = date.UTC()
	current, err := s.CurrentPlan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if name == "" {
			name = "default"
		}
		res, err := s.db.ExecContext(ctx, `INSERT INTO plans (name, currentdate) VALUES (?, ?)`, name, date)
		if err != nil {
			return nil, fmt.Errorf("create plan: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("plan id: %w", err)
		}
		return &models.Plan{ID: id, Name: name, CurrentDate: date}, nil
	case err != nil:
		return nil, err
	}

	if name == "" {
		name = current.Name
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE plans SET name = ?, currentdate = ? WHERE id = ?`, name, date, current.ID,
	); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return &models.Plan{ID: current.ID, Name: name, CurrentDate: date}, nil
}

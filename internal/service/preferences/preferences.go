// Package preferences owns the per-user report preferences record.
package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"planadmin/internal/events"
	"planadmin/internal/models"

	"github.com/sirupsen/logrus"
)

// DefaultHorizon is the span between the initial start and end dates.
const DefaultHorizon = 365 * 24 * time.Hour

// ErrInvalid wraps validation failures of Update.
var ErrInvalid = errors.New("invalid preferences")

// Service reads and writes preference rows.
type Service struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewService builds the preferences service.
func NewService(db *sql.DB, log logrus.FieldLogger) *Service {
	return &Service{db: db, log: log.WithField("component", "preferences")}
}

// Register subscribes the service to user lifecycle events on bus.
func (s *Service) Register(bus *events.Bus) {
	bus.Subscribe(events.UserCreated, s.HandleUserCreated)
}

// HandleUserCreated makes sure the new user has a preference row.
func (s *Service) HandleUserCreated(ctx context.Context, event events.Event) error {
	_, created, err := s.GetOrCreate(ctx, event.UserID)
	if err != nil {
		return err
	}
	if created {
		s.log.WithField("user_id", event.UserID).Debug("preferences created")
	}
	return nil
}

// GetOrCreate returns the user's preferences, inserting the default row when
// missing. A new row starts at the plan's current date and ends DefaultHorizon
// later; without a plan both dates stay empty.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*models.Preferences, bool, error) {
	if userID <= 0 {
		return nil, false, errors.New("invalid user id")
	}
	prefs, err := s.Get(ctx, userID)
	if err == nil {
		return prefs, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	prefs = &models.Preferences{
		UserID:       userID,
		Buckets:      models.BucketStandard,
		LastModified: time.Now().UTC(),
	}
	start, err := s.planDate(ctx)
	if err != nil {
		return nil, false, err
	}
	if start != nil {
		end := start.Add(DefaultHorizon)
		prefs.StartDate = start
		prefs.EndDate = &end
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, buckets, start_date, end_date, last_modified) VALUES (?, ?, ?, ?, ?)`,
		userID, string(prefs.Buckets), nullTime(prefs.StartDate), nullTime(prefs.EndDate), prefs.LastModified,
	)
	if err != nil {
		return nil, false, fmt.Errorf("create preferences: %w", err)
	}
	if prefs.ID, err = res.LastInsertId(); err != nil {
		return nil, false, fmt.Errorf("preferences id: %w", err)
	}
	return prefs, true, nil
}

// planDate returns the day of the plan's current date, nil when no plan exists.
func (s *Service) planDate(ctx context.Context) (*time.Time, error) {
	var current time.Time
	err := s.db.QueryRowContext(ctx, `SELECT currentdate FROM plans ORDER BY id LIMIT 1`).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query plan date: %w", err)
	}
	y, mo, d := current.UTC().Date()
	current = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &current, nil
}

// Get returns the user's preferences or sql.ErrNoRows.
func (s *Service) Get(ctx context.Context, userID int64) (*models.Preferences, error) {
	var (
		p          models.Preferences
		buckets    string
		start, end sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, buckets, start_date, end_date, last_modified FROM preferences WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.UserID, &buckets, &start, &end, &p.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	p.Buckets = models.Bucket(buckets)
	if start.Valid {
		t := start.Time.UTC()
		p.StartDate = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		p.EndDate = &t
	}
	return &p, nil
}

// Update is the editable part of a preference row.
type Update struct {
	Buckets   models.Bucket
	StartDate *time.Time
	EndDate   *time.Time
}

// Validate checks buckets against the choices and the date order.
func (u Update) Validate() error {
	if !u.Buckets.Valid() {
		return fmt.Errorf("%w: unknown buckets %q", ErrInvalid, u.Buckets)
	}
	if u.StartDate != nil && u.EndDate != nil && u.EndDate.Before(*u.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalid)
	}
	return nil
}

// Save validates and stores u, refreshing last_modified. A missing row is
// created first.
func (s *Service) Save(ctx context.Context, userID int64, u Update) (*models.Preferences, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	prefs, _, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs.Buckets = u.Buckets
	prefs.StartDate = utcPtr(u.StartDate)
	prefs.EndDate = utcPtr(u.EndDate)
	prefs.LastModified = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE preferences SET buckets = ?, start_date = ?, end_date = ?, last_modified = ? WHERE id = ?`,
		string(prefs.Buckets), nullTime(prefs.StartDate), nullTime(prefs.EndDate), prefs.LastModified, prefs.ID,
	); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return prefs, nil
}

// Choice is one option of the buckets select.
type Choice struct {
	Value    string
	Label    string
	Selected bool
}

// Choices lists the bucket options with current marked as selected.
func Choices(current models.Bucket) []Choice {
	out := make([]Choice, 0, len(models.BucketChoices))
	for _, c := range models.BucketChoices {
		out = append(out, Choice{Value: string(c.Value), Label: c.Label, Selected: c.Value == current})
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

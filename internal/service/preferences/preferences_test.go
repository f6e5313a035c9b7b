package preferences

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"planadmin/internal/config"
	"planadmin/internal/events"
	"planadmin/internal/logger"
	"planadmin/internal/models"
	"planadmin/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, "sqlite3"))
	t.Cleanup(func() { db.Close() })
	return db
}

func insertUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (username, password_hash, created_at) VALUES (?, '', ?)`, username, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestUserCreatedInitialisesFromPlan(t *testing.T) {
	db := openTestDB(t)
	current := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := db.Exec(`INSERT INTO plans (name, currentdate) VALUES ('main', ?)`, current)
	require.NoError(t, err)

	svc := NewService(db, logger.Discard())
	bus := events.NewBus(nil)
	svc.Register(bus)

	userID := insertUser(t, db, "alice")
	require.NoError(t, bus.Publish(context.Background(), events.NewUserEvent(events.UserCreated, userID)))

	prefs, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.BucketStandard, prefs.Buckets)
	require.NotNil(t, prefs.StartDate)
	require.NotNil(t, prefs.EndDate)
	assert.True(t, current.Equal(*prefs.StartDate))
	assert.True(t, current.AddDate(0, 0, 365).Equal(*prefs.EndDate))
	assert.False(t, prefs.LastModified.IsZero())
}

func TestUserCreatedDropsPlanTimeOfDay(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO plans (name, currentdate) VALUES ('main', ?)`, time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	svc := NewService(db, logger.Discard())

	prefs, created, err := svc.GetOrCreate(context.Background(), insertUser(t, db, "bob"))
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, prefs.StartDate)
	require.NotNil(t, prefs.EndDate)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, day.Equal(*prefs.StartDate), "start %s", prefs.StartDate)
	assert.True(t, day.AddDate(0, 0, 365).Equal(*prefs.EndDate), "end %s", prefs.EndDate)
}

func TestUserCreatedWithoutPlanLeavesDatesEmpty(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, logger.Discard())
	userID := insertUser(t, db, "bob")

	require.NoError(t, svc.HandleUserCreated(context.Background(), events.NewUserEvent(events.UserCreated, userID)))
	prefs, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, prefs.StartDate)
	assert.Nil(t, prefs.EndDate)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, logger.Discard())
	userID := insertUser(t, db, "carol")
	ctx := context.Background()

	first, created, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM preferences WHERE user_id = ?`, userID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetOrCreateFailsForUnknownUser(t *testing.T) {
	svc := NewService(openTestDB(t), logger.Discard())
	_, _, err := svc.GetOrCreate(context.Background(), 404)
	assert.Error(t, err, "foreign key must reject a preference without user")
}

func TestSaveValidatesAndTouchesLastModified(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, logger.Discard())
	userID := insertUser(t, db, "dave")
	ctx := context.Background()

	before, _, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	_, err = svc.Save(ctx, userID, Update{Buckets: "fortnight"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Save(ctx, userID, Update{Buckets: models.BucketWeek, StartDate: &end, EndDate: &start})
	assert.ErrorIs(t, err, ErrInvalid)

	time.Sleep(2 * time.Millisecond)
	saved, err := svc.Save(ctx, userID, Update{Buckets: models.BucketWeek, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.True(t, saved.LastModified.After(before.LastModified))

	got, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.BucketWeek, got.Buckets)
	assert.True(t, start.Equal(*got.StartDate))
	assert.True(t, end.Equal(*got.EndDate))

	cleared, err := svc.Save(ctx, userID, Update{Buckets: models.BucketMonth})
	require.NoError(t, err)
	assert.Nil(t, cleared.StartDate)
	got, err = svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got.EndDate)
}

func TestPreferencesGoWithUser(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, logger.Discard())
	userID := insertUser(t, db, "erin")
	_, _, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM users WHERE id = ?`, userID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), userID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestChoicesMarksSelected(t *testing.T) {
	choices := Choices(models.BucketQuarter)
	require.Len(t, choices, len(models.BucketChoices))
	assert.Equal(t, "standard", choices[0].Value)
	for _, c := range choices {
		assert.Equal(t, c.Value == "quarter", c.Selected, c.Value)
	}
}

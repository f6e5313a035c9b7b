package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"planadmin/internal/config"
	"planadmin/internal/redis"
	"planadmin/internal/storage"

	"github.com/gin-gonic/gin"
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

func insertUser(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, '', ?)`,
		id, "user_"+time.Now().Format("150405.000000"), time.Now().UTC())
	require.NoError(t, err)
}

func TestAuthIssueValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 1)
	ctx := context.Background()

	svc := NewService(db, nil, time.Hour)
	token, err := svc.IssueToken(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)

	require.NoError(t, svc.RevokeToken(ctx, token))
	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token2, err := svc.IssueToken(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, svc.RevokeUserTokens(ctx, 1))
	_, err = svc.ValidateToken(ctx, token2)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, ErrTokenRequired)
	_, err = svc.IssueToken(ctx, 0)
	assert.Error(t, err)
}

func TestAuthValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 2)

	svc := NewService(db, nil, 10*time.Millisecond)
	token, err := svc.IssueToken(context.Background(), 2)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, token).Scan(&count))
	assert.Zero(t, count, "expired token not purged")
}

func TestAuthPurgeExpired(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 3)
	ctx := context.Background()

	short := NewService(db, nil, 5*time.Millisecond)
	_, err := short.IssueToken(ctx, 3)
	require.NoError(t, err)
	long := NewService(db, nil, time.Hour)
	keep, err := long.IssueToken(ctx, 3)
	require.NoError(t, err)
	time.Sleep(15 * time.Millisecond)

	n, err := long.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = long.ValidateToken(ctx, keep)
	assert.NoError(t, err)
}

func TestAuthTokenCacheUsesRedis(t *testing.T) {
	cacheClient, ok, err := redis.NewTestClient()
	if !ok {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed auth tests")
	}
	require.NoError(t, err)
	defer cacheClient.Close()

	db := openTestDB(t)
	insertUser(t, db, 10)
	svc := NewService(db, cacheClient, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, 10)
	require.NoError(t, err)

	key := redisTokenPrefix + token
	got, err := cacheClient.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "10", got)

	_, err = db.Exec(`DELETE FROM user_tokens WHERE token = ?`, token)
	require.NoError(t, err)
	userID, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err, "cache should answer without the row")
	assert.Equal(t, int64(10), userID)

	require.NoError(t, svc.RevokeToken(ctx, token))
	_, err = cacheClient.Get(ctx, key)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
	_, err = svc.ValidateToken(ctx, token)
	assert.Error(t, err)
}

func newAuthRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	whoami := func(c *gin.Context) {
		id, ok := UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user": id, "ok": ok})
	}
	router.GET("/strict", svc.Middleware(), whoami)
	router.GET("/optional", svc.Optional(), whoami)
	router.POST("/form", svc.CSRFMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func TestMiddlewareRequiresToken(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 4)
	svc := NewService(db, nil, time.Hour)
	token, err := svc.IssueToken(context.Background(), 4)
	require.NoError(t, err)
	router := newAuthRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/strict", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/strict", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":4,"ok":true}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/strict", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalNeverRejects(t *testing.T) {
	svc := NewService(openTestDB(t), nil, time.Hour)
	router := newAuthRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":0,"ok":false}`, rec.Body.String())
}

func TestCSRFAcceptsHeaderOrFormField(t *testing.T) {
	svc := NewService(openTestDB(t), nil, time.Hour)
	router := newAuthRouter(svc)
	csrf := &http.Cookie{Name: svc.CSRFCookieName(), Value: "abc"}

	tests := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "missing token",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/form", nil)
				req.AddCookie(csrf)
				return req
			},
			status: http.StatusForbidden,
		},
		{
			name: "header matches cookie",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/form", nil)
				req.AddCookie(csrf)
				req.Header.Set(svc.CSRFHeaderName(), "abc")
				return req
			},
			status: http.StatusNoContent,
		},
		{
			name: "form field matches cookie",
			build: func() *http.Request {
				form := url.Values{svc.CSRFFormField(): {"abc"}}
				req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.AddCookie(csrf)
				return req
			},
			status: http.StatusNoContent,
		},
		{
			name: "form field mismatch",
			build: func() *http.Request {
				form := url.Values{svc.CSRFFormField(): {"xyz"}}
				req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.AddCookie(csrf)
				return req
			},
			status: http.StatusForbidden,
		},
		{
			name: "bearer is exempt",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/form", nil)
				req.Header.Set("Authorization", "Bearer whatever")
				return req
			},
			status: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.build())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

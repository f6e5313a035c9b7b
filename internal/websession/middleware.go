package websession

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sessionContextKey = "web_session"

// Manager connects a Store to gin requests through a cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	log        logrus.FieldLogger
}

// NewManager builds a session manager.
func NewManager(store Store, cookieName string, ttl time.Duration, log logrus.FieldLogger) *Manager {
	if cookieName == "" {
		cookieName = "sessionid"
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		log:        log.WithField("component", "websession"),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Middleware loads the session named by the cookie, or starts a new one, and
// saves it after the handler when it changed. A saved session expires ttl after
// its last change. Store failures are logged and never fail the request.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := m.load(c)
		c.Set(sessionContextKey, sess)
		m.setCookie(c, sess)

		c.Next()

		// Rotate may have swapped the session.
		sess = FromContext(c)
		if sess == nil || !sess.Modified() {
			return
		}
		sess.ExpiresAt = time.Now().UTC().Add(m.ttl)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()
		if err := m.store.Save(ctx, sess); err != nil {
			m.log.WithField("session", shortID(sess.ID)).Errorf("save session: %v", err)
		}
	}
}

// Rotate replaces the session id, keeping its values, and drops the old record.
// Call it on login so a pre-login id cannot be reused.
func (m *Manager) Rotate(c *gin.Context) *Session {
	old := FromContext(c)
	fresh := New(m.ttl)
	if old != nil {
		for k, v := range old.Values {
			fresh.Values[k] = v
		}
		if err := m.store.Delete(c.Request.Context(), old.ID); err != nil {
			m.log.WithField("session", shortID(old.ID)).Warnf("drop rotated session: %v", err)
		}
		// The old value is still saved by the middleware unless it is marked clean.
		old.modified = false
	}
	c.Set(sessionContextKey, fresh)
	m.setCookie(c, fresh)
	return fresh
}

// Destroy deletes the session and expires the cookie.
func (m *Manager) Destroy(c *gin.Context) {
	if sess := FromContext(c); sess != nil {
		if err := m.store.Delete(c.Request.Context(), sess.ID); err != nil {
			m.log.WithField("session", shortID(sess.ID)).Warnf("destroy session: %v", err)
		}
		sess.modified = false
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   gin.Mode() == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromContext returns the session installed by the middleware, or nil.
func FromContext(c *gin.Context) *Session {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := val.(*Session)
	return sess
}

func (m *Manager) load(c *gin.Context) *Session {
	id, err := c.Cookie(m.cookieName)
	if err != nil || id == "" {
		return New(m.ttl)
	}
	sess, err := m.store.Load(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.WithField("session", shortID(id)).Warnf("load session: %v", err)
		}
		return New(m.ttl)
	}
	return sess
}

func (m *Manager) setCookie(c *gin.Context, sess *Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.ID,
		Expires:  m.cookieExpiry(sess),
		Path:     "/",
		HttpOnly: true,
		Secure:   gin.Mode() == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
}

// cookieExpiry slides the cookie with the session; a request that changes the
// session pushes the stored expiry to the same point.
func (m *Manager) cookieExpiry(sess *Session) time.Time {
	if next := time.Now().UTC().Add(m.ttl); next.After(sess.ExpiresAt) {
		return next
	}
	return sess.ExpiresAt
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

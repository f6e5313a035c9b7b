package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"planadmin/internal/auth"
	"planadmin/internal/models"
	"planadmin/internal/service/account"
	"planadmin/internal/service/preferences"
	"planadmin/internal/tags"
	"planadmin/internal/websession"
)

const dateLayout = "2006-01-02"

// Options carries the services the handlers are wired to.
type Options struct {
	Accounts    *account.Service
	Preferences *preferences.Service
	Auth        *auth.Service
	Sessions    *websession.Manager
	Tags        *tags.Library
	Log         logrus.FieldLogger
}

// Handler wires HTTP routes to the account and preference services.
type Handler struct {
	accounts *account.Service
	prefs    *preferences.Service
	auth     *auth.Service
	sessions *websession.Manager
	tags     *tags.Library
	pages    *renderer
	log      logrus.FieldLogger
}

// NewHandler constructs a Handler and parses the admin templates.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Accounts == nil || opts.Preferences == nil || opts.Auth == nil || opts.Sessions == nil {
		return nil, errors.New("api: missing service")
	}
	if opts.Tags == nil || opts.Tags.Registry == nil || opts.Tags.Crumbs == nil {
		return nil, errors.New("api: template library needs a registry and a breadcrumb manager")
	}
	pages, err := newRenderer(opts.Tags)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Handler{
		accounts: opts.Accounts,
		prefs:    opts.Preferences,
		auth:     opts.Auth,
		sessions: opts.Sessions,
		tags:     opts.Tags,
		pages:    pages,
		log:      log.WithField("component", "api"),
	}, nil
}

// requirePathUser rejects requests whose token user differs from the :id path parameter.
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		paramID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || paramID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if paramID != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	userRoutes := api.Group("/users/:id")
	userRoutes.Use(h.auth.Middleware(), h.requirePathUser(), h.auth.CSRFMiddleware())
	userRoutes.POST("/logout", h.logoutUser)
	userRoutes.DELETE("", h.deleteUser)
	userRoutes.GET("/preferences", h.getPreferences)
	userRoutes.PUT("/preferences", h.putPreferences)

	site := router.Group("/admin")
	site.Use(h.sessions.Middleware(), h.auth.CSRFMiddleware())
	site.GET("/login/", h.loginPage)
	site.POST("/login/", h.loginSubmit)
	site.POST("/logout/", h.logoutPage)

	staff := site.Group("")
	staff.Use(h.requireAdminUser())
	staff.GET("/", h.indexPage)
	staff.GET("/preferences/", h.preferencesPage)
	staff.POST("/preferences/", h.preferencesSubmit)
	staff.GET("/report/users/", h.usersReport)
	staff.GET("/:app/:model/", h.modelPage)
	staff.GET("/:app/:model/:key", h.objectPage)
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.RegisterUser(c.Request.Context(), req.Username, req.Password, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// Preferences interface
type preferencesRequest struct {
	Buckets   string  `json:"buckets"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (h *Handler) getPreferences(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	prefs, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preferences not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) putPreferences(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	update, err := buildUpdate(req.Buckets, deref(req.StartDate), deref(req.EndDate))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prefs, err := h.prefs.Save(c.Request.Context(), userID, update)
	if err != nil {
		if errors.Is(err, preferences.ErrInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func buildUpdate(buckets, start, end string) (preferences.Update, error) {
	u := preferences.Update{Buckets: models.Bucket(strings.TrimSpace(buckets))}
	if u.Buckets == "" {
		u.Buckets = models.BucketStandard
	}
	var err error
	if u.StartDate, err = parseDate(start); err != nil {
		return u, fmt.Errorf("%w: start_date: %v", preferences.ErrInvalid, err)
	}
	if u.EndDate, err = parseDate(end); err != nil {
		return u, fmt.Errorf("%w: end_date: %v", preferences.ErrInvalid, err)
	}
	return u, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input means no date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", s)
		}
	}
	t = t.UTC()
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

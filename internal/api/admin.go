package api

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"planadmin/internal/admin"
	"planadmin/internal/auth"
	"planadmin/internal/models"
	"planadmin/internal/service/account"
	"planadmin/internal/service/preferences"
	"planadmin/internal/tags"
	"planadmin/internal/websession"
)

const (
	adminUserContextKey = "admin_user"
	flashSessionKey     = "flash"
	siteTitle           = "Site administration"
	usersReportPerm     = "auth.change_user"
)

// requireAdminUser resolves the user bound to the web session, sending
// anonymous visitors to the login page.
func (h *Handler) requireAdminUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := websession.FromContext(c)
		if sess == nil || sess.UserID <= 0 {
			redirectToLogin(c)
			return
		}
		user, err := h.accounts.LoadUser(c.Request.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				sess.SetUser(0)
				redirectToLogin(c)
				return
			}
			h.log.WithField("user_id", sess.UserID).Errorf("load session user: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(adminUserContextKey, user)
		auth.SetUser(c, user.ID)
		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, "/admin/login/?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

func adminUser(c *gin.Context) *models.User {
	val, ok := c.Get(adminUserContextKey)
	if !ok {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}

// newPage fills the parts shared by every admin page.
func (h *Handler) newPage(c *gin.Context, title string, data any) (page, bool) {
	csrf, err := h.auth.EnsureCSRFCookie(c)
	if err != nil {
		h.log.Errorf("csrf cookie: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return page{}, false
	}
	p := page{Title: title, User: adminUser(c), CSRF: csrf, Data: data}
	if sess := websession.FromContext(c); sess != nil {
		var flash string
		if sess.Get(flashSessionKey, &flash) {
			p.Flash = flash
			sess.Delete(flashSessionKey)
		}
	}
	return p, true
}

type loginData struct {
	Next     string
	Username string
}

func (h *Handler) loginPage(c *gin.Context) {
	if sess := websession.FromContext(c); sess != nil && sess.UserID > 0 {
		c.Redirect(http.StatusFound, safeNext(c.Query("next")))
		return
	}
	p, ok := h.newPage(c, "Log in", loginData{Next: safeNext(c.Query("next"))})
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "login", p, nil)
}

func (h *Handler) loginSubmit(c *gin.Context) {
	username := c.PostForm("username")
	next := safeNext(c.PostForm("next"))
	user, err := h.accounts.Login(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		p, ok := h.newPage(c, "Log in", loginData{Next: next, Username: username})
		if !ok {
			return
		}
		if errors.Is(err, account.ErrInvalidCredentials) {
			p.Error = "Please enter a correct username and password."
		} else {
			p.Error = err.Error()
		}
		h.pages.render(c, http.StatusOK, "login", p, nil)
		return
	}
	sess := h.sessions.Rotate(c)
	sess.SetUser(user.ID)
	h.log.WithField("user_id", user.ID).Info("admin login")
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) logoutPage(c *gin.Context) {
	h.sessions.Destroy(c)
	c.Redirect(http.StatusFound, "/admin/login/")
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/admin/"
	}
	return next
}

type indexData struct {
	Apps         []string
	Plan         *models.Plan
	CanViewUsers bool
}

func (h *Handler) indexPage(c *gin.Context) {
	user := adminUser(c)
	data := indexData{
		Apps:         h.tags.Registry.Apps(),
		CanViewUsers: user.HasPerm(usersReportPerm),
	}
	plan, err := h.accounts.CurrentPlan(c.Request.Context())
	switch {
	case err == nil:
		data.Plan = plan
	case !errors.Is(err, sql.ErrNoRows):
		h.log.Warnf("load plan: %v", err)
	}
	p, ok := h.newPage(c, siteTitle, data)
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "index", p, nil)
}

type preferencesData struct {
	Choices   []preferences.Choice
	StartDate string
	EndDate   string
}

func (h *Handler) preferencesPage(c *gin.Context) {
	user := adminUser(c)
	prefs, _, err := h.prefs.GetOrCreate(c.Request.Context(), user.ID)
	if err != nil {
		h.log.WithField("user_id", user.ID).Errorf("load preferences: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	p, ok := h.newPage(c, "Preferences", preferencesData{
		Choices:   preferences.Choices(prefs.Buckets),
		StartDate: formatDate(prefs.StartDate),
		EndDate:   formatDate(prefs.EndDate),
	})
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "preferences", p, nil)
}

func (h *Handler) preferencesSubmit(c *gin.Context) {
	user := adminUser(c)
	start, end := c.PostForm("start_date"), c.PostForm("end_date")
	update, err := buildUpdate(c.PostForm("buckets"), start, end)
	if err == nil {
		_, err = h.prefs.Save(c.Request.Context(), user.ID, update)
	}
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, preferences.ErrInvalid) {
			status = http.StatusInternalServerError
			h.log.WithField("user_id", user.ID).Errorf("save preferences: %v", err)
		}
		p, ok := h.newPage(c, "Preferences", preferencesData{
			Choices:   preferences.Choices(update.Buckets),
			StartDate: start,
			EndDate:   end,
		})
		if !ok {
			return
		}
		p.Error = err.Error()
		h.pages.render(c, status, "preferences", p, nil)
		return
	}
	if sess := websession.FromContext(c); sess != nil {
		_ = sess.Set(flashSessionKey, "Preferences saved.")
	}
	c.Redirect(http.StatusSeeOther, "/admin/preferences/")
}

type usersData struct {
	Users []models.User
}

func (h *Handler) usersReport(c *gin.Context) {
	if !adminUser(c).HasPerm(usersReportPerm) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	sortKey := c.DefaultQuery("o", "1a")
	column, ascending, ok := tags.ParseSort(sortKey)
	if !ok {
		sortKey, column, ascending = "1a", 1, true
	}
	users, err := h.accounts.ListUsers(c.Request.Context(), column, !ascending)
	if err != nil {
		h.log.Errorf("list users: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	p, ok := h.newPage(c, "Users", usersData{Users: users})
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "users", p, map[string]any{tags.VarSort: sortKey})
}

// lookupModel resolves the path model and checks the change permission.
func (h *Handler) lookupModel(c *gin.Context) (admin.Model, bool) {
	m, ok := h.tags.Registry.Lookup(c.Param("app"), c.Param("model"))
	if !ok || !m.InAdmin {
		c.AbortWithStatus(http.StatusNotFound)
		return admin.Model{}, false
	}
	user := adminUser(c)
	if !user.HasModulePerms(m.App) || !user.HasPerm(m.ChangePerm()) {
		c.AbortWithStatus(http.StatusForbidden)
		return admin.Model{}, false
	}
	return m, true
}

type modelData struct {
	AdminURL string
}

func (h *Handler) modelPage(c *gin.Context) {
	m, ok := h.lookupModel(c)
	if !ok {
		return
	}
	if key := strings.TrimSpace(c.Query("key")); key != "" {
		c.Redirect(http.StatusFound, m.AdminURL()+tags.Quote(key))
		return
	}
	listings := h.tags.Registry.Visible(adminUser(c), m.App)
	title := m.VerboseNamePlural
	for _, l := range listings {
		if l.AdminURL == m.AdminURL() {
			title = l.Name
		}
	}
	p, ok := h.newPage(c, title, modelData{AdminURL: m.AdminURL()})
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "model", p, nil)
}

type objectData struct {
	Model admin.Model
	Key   string
}

func (h *Handler) objectPage(c *gin.Context) {
	m, ok := h.lookupModel(c)
	if !ok {
		return
	}
	key := tags.Unquote(c.Param("key"))
	p, ok := h.newPage(c, key, objectData{Model: m, Key: key})
	if !ok {
		return
	}
	h.pages.render(c, http.StatusOK, "object", p, nil)
}

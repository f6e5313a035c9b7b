package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"planadmin/internal/breadcrumb"
	"planadmin/internal/models"
	"planadmin/internal/tags"
	"planadmin/internal/websession"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "index", "preferences", "users", "model", "object"}

// renderer holds one parsed template set per page. The sets are never executed
// directly: every render clones one and binds the request helpers to it.
type renderer struct {
	lib   *tags.Library
	pages map[string]*template.Template
}

func newRenderer(lib *tags.Library) (*renderer, error) {
	r := &renderer{lib: lib, pages: make(map[string]*template.Template, len(pageNames))}
	funcs := lib.Funcs(tags.Request{})
	funcs["date"] = formatDate
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// page is the data every admin template receives.
type page struct {
	Title string
	User  *models.User
	CSRF  string
	Flash string
	Error string
	Data  any
}

func (r *renderer) render(c *gin.Context, status int, name string, p page, vars map[string]any) {
	base, ok := r.pages[name]
	if !ok {
		c.String(http.StatusInternalServerError, "unknown page %s", name)
		return
	}
	tmpl, err := base.Clone()
	if err != nil {
		c.String(http.StatusInternalServerError, "render failed")
		return
	}

	ctx := tags.NewContext(vars)
	ctx.Set(tags.VarTitle, p.Title)
	req := tags.Request{
		Ctx:  ctx,
		Path: c.Request.URL.RequestURI(),
		User: p.User,
	}
	// A nil *Session must not reach the trail as a non-nil Store.
	if sess := websession.FromContext(c); sess != nil {
		req.Session = breadcrumb.Store(sess)
	}
	tmpl.Funcs(r.lib.Funcs(req))

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", p); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	}
	return ""
}

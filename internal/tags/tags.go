// Package tags is the helper library of the admin templates: the breadcrumb
// trail, the model listing, report headers and object links.
package tags

import (
	"fmt"
	"html"
	"html/template"
	"strconv"

	"planadmin/internal/admin"
	"planadmin/internal/breadcrumb"
	"planadmin/internal/models"
)

// Context variables read by the helpers.
const (
	VarTitle       = "title"
	VarResetCrumbs = "reset_crumbs"
	VarSort        = "sort"
)

// Library holds what the helpers need across requests.
type Library struct {
	Crumbs   *breadcrumb.Manager
	Registry *admin.Registry
	Version  string
}

// Request is the per-render input of the helpers.
type Request struct {
	Ctx     *Context
	Session breadcrumb.Store
	// Path is the full request path including the query string.
	Path string
	User *models.User
}

// Funcs returns the helper functions bound to req. Templates are parsed with
// Funcs(Request{}) and re-bound per render on a clone.
func (l *Library) Funcs(req Request) template.FuncMap {
	if req.Ctx == nil {
		req.Ctx = NewContext(nil)
	}
	return template.FuncMap{
		"crumbs": func() template.HTML {
			return l.RenderCrumbs(req)
		},
		"models": func(app string) []admin.Listing {
			if l.Registry == nil || req.User == nil {
				return []admin.Listing{}
			}
			return l.Registry.Visible(req.User, app)
		},
		"set": func(name string, value any) string {
			if value != nil {
				req.Ctx.Set(name, value)
			}
			return ""
		},
		"get": func(name string) any {
			v, _ := req.Ctx.Get(name)
			return v
		},
		"version": func() string {
			return l.Version
		},
		"reportheader": func(text string, number int) template.HTML {
			sortKey, _ := req.Ctx.String(VarSort)
			return ReportHeader(text, number, sortKey)
		},
		"superlink": Superlink,
	}
}

// RenderCrumbs pushes the current page on the session trail and renders it.
func (l *Library) RenderCrumbs(req Request) template.HTML {
	if l.Crumbs == nil {
		return ""
	}
	page := breadcrumb.Page{Path: req.Path}
	if title, ok := req.Ctx.String(VarTitle); ok && title != "" {
		page.Title = title
		page.HasTitle = true
	}
	page.Reset = req.Ctx.Truthy(VarResetCrumbs)
	return l.Crumbs.Render(req.Session, page)
}

// ReportHeader renders the column header number with a link that sorts on it.
// sortKey is the current sort, "<n>a" or "<n>d". The current column links to
// the opposite direction; other columns and unparsable keys link ascending.
func ReportHeader(text string, number int, sortKey string) template.HTML {
	text = html.EscapeString(text)
	column, ascending, ok := ParseSort(sortKey)
	if ok && column == number {
		if ascending {
			return template.HTML(fmt.Sprintf(`<th class="sorted ascending"><a href="?o=%dd">%s</a></th>`, number, text))
		}
		return template.HTML(fmt.Sprintf(`<th class="sorted descending"><a href="?o=%da">%s</a></th>`, number, text))
	}
	return template.HTML(fmt.Sprintf(`<th><a href="?o=%da">%s</a></th>`, number, text))
}

// ParseSort splits "<n><dir>" into the column number and direction. Any
// direction letter other than "a" is descending; a missing one is invalid.
func ParseSort(key string) (column int, ascending bool, ok bool) {
	i := 0
	for i < len(key) && key[i] >= '0' && key[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(key) {
		return 0, false, false
	}
	column, err := strconv.Atoi(key[:i])
	if err != nil {
		return 0, false, false
	}
	return column, key[i] == 'a', true
}

// Superlink renders value as a link to its admin page in the input app, with
// kind as the css class for the context menu. nil and empty values render
// nothing.
func Superlink(value any, kind string) template.HTML {
	if value == nil {
		return ""
	}
	s := toString(value)
	if s == "" {
		return ""
	}
	href := "/admin/input/" + kind + "/" + Quote(s)
	return template.HTML(fmt.Sprintf(`<a href="%s" class="%s">%s</a>`,
		html.EscapeString(href), html.EscapeString(kind), html.EscapeString(s)))
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

package tags

import (
	"bytes"
	"html/template"
	"testing"

	"planadmin/internal/admin"
	"planadmin/internal/breadcrumb"
	"planadmin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string][]string

func (m mapStore) Strings(key string) ([]string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) SetStrings(key string, values []string) {
	m[key] = values
}

func newLibrary() *Library {
	reg := admin.NewRegistry()
	reg.Register(
		admin.Model{App: "input", Name: "item", VerboseNamePlural: "items", InAdmin: true},
		admin.Model{App: "input", Name: "buffer", VerboseNamePlural: "buffers", InAdmin: true},
	)
	return &Library{
		Crumbs:   breadcrumb.New(breadcrumb.DefaultConfig("/admin/")),
		Registry: reg,
		Version:  "1.2.3",
	}
}

func render(t *testing.T, lib *Library, req Request, text string) string {
	t.Helper()
	base := template.Must(template.New("page").Funcs(lib.Funcs(Request{})).Parse(text))
	tmpl := template.Must(base.Clone()).Funcs(lib.Funcs(req))
	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, nil))
	return buf.String()
}

func TestCrumbsUsesTitleAndReset(t *testing.T) {
	lib := newLibrary()
	store := mapStore{}

	out := render(t, lib, Request{
		Ctx:     NewContext(map[string]any{"title": "Items"}),
		Session: store,
		Path:    "/admin/input/item/",
	}, `{{crumbs}}`)
	assert.Equal(t, `<a href="/admin/">Home</a> > <a href="/admin/input/item/">Items</a>`, out)

	out = render(t, lib, Request{
		Ctx:     NewContext(nil),
		Session: store,
		Path:    "/admin/report/users/",
	}, `{{set "reset_crumbs" "True"}}{{crumbs}}`)
	assert.Equal(t, `<a href="/admin/">Home</a> > <a href="/admin/report/users/">/admin/report/users/</a>`, out)
	assert.Len(t, store[breadcrumb.SessionKey], 2)
}

func TestCrumbsEmptyTitleShowsPath(t *testing.T) {
	lib := newLibrary()
	out := render(t, lib, Request{
		Ctx:     NewContext(map[string]any{"title": ""}),
		Session: mapStore{},
		Path:    "/admin/input/item/",
	}, `{{crumbs}}`)
	assert.Equal(t, `<a href="/admin/">Home</a> > <a href="/admin/input/item/">/admin/input/item/</a>`, out)
}

func TestCrumbsResetFalseString(t *testing.T) {
	lib := newLibrary()
	store := mapStore{breadcrumb.SessionKey: {`<a href="/admin/">Home</a>`, `<a href="/a">A</a>`}}
	out := render(t, lib, Request{
		Ctx:     NewContext(map[string]any{"title": "B", "reset_crumbs": "false"}),
		Session: store,
		Path:    "/b",
	}, `{{crumbs}}`)
	assert.Equal(t, `<a href="/admin/">Home</a> > <a href="/a">A</a> > <a href="/b">B</a>`, out)
}

func TestSetAndGet(t *testing.T) {
	lib := newLibrary()
	ctx := NewContext(nil)
	out := render(t, lib, Request{Ctx: ctx}, `{{set "dir_url" "../"}}[{{get "dir_url"}}]{{set "missing" nil}}{{get "missing"}}`)
	assert.Equal(t, `[../]`, out)
	v, ok := ctx.Get("dir_url")
	assert.True(t, ok)
	assert.Equal(t, "../", v)
	_, ok = ctx.Get("missing")
	assert.False(t, ok)
}

func TestModelsAndVersion(t *testing.T) {
	lib := newLibrary()
	user := &models.User{Permissions: map[string]struct{}{"input.change_item": {}}}
	out := render(t, lib, Request{User: user},
		`{{range models "input"}}<a href="{{.AdminURL}}">{{.Name}}</a>{{end}} v{{version}}`)
	assert.Equal(t, `<a href="/admin/input/item/">Items</a> v1.2.3`, out)

	out = render(t, lib, Request{}, `{{range models "input"}}x{{else}}none{{end}}`)
	assert.Equal(t, "none", out)
}

func TestReportHeader(t *testing.T) {
	tests := []struct {
		name string
		sort string
		want string
	}{
		{"sorted ascending", "1a", `<th class="sorted ascending"><a href="?o=1d">Buffer</a></th>`},
		{"sorted descending", "1d", `<th class="sorted descending"><a href="?o=1a">Buffer</a></th>`},
		{"other column", "2a", `<th><a href="?o=1a">Buffer</a></th>`},
		{"missing", "", `<th><a href="?o=1a">Buffer</a></th>`},
		{"garbled", "x1", `<th><a href="?o=1a">Buffer</a></th>`},
		{"no direction", "1", `<th><a href="?o=1a">Buffer</a></th>`},
		{"multi digit", "11a", `<th><a href="?o=1a">Buffer</a></th>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, template.HTML(tt.want), ReportHeader("Buffer", 1, tt.sort))
		})
	}
	assert.Equal(t, template.HTML(`<th class="sorted descending"><a href="?o=12a">Due</a></th>`), ReportHeader("Due", 12, "12d"))
}

func TestReportHeaderFromContext(t *testing.T) {
	lib := newLibrary()
	out := render(t, lib, Request{Ctx: NewContext(map[string]any{"sort": "2d"})},
		`{{reportheader "Name" 1}}{{reportheader "Date" 2}}`)
	assert.Equal(t, `<th><a href="?o=1a">Name</a></th><th class="sorted descending"><a href="?o=2a">Date</a></th>`, out)
}

func TestSuperlink(t *testing.T) {
	assert.Equal(t, template.HTML(""), Superlink(nil, "item"))
	assert.Equal(t, template.HTML(""), Superlink("", "item"))
	assert.Equal(t,
		template.HTML(`<a href="/admin/input/item/widget" class="item">widget</a>`),
		Superlink("widget", "item"))
	assert.Equal(t,
		template.HTML(`<a href="/admin/input/buffer/a_2Fb_5Fc" class="buffer">a/b_c</a>`),
		Superlink("a/b_c", "buffer"))
	assert.Equal(t,
		template.HTML(`<a href="/admin/input/demand/42" class="demand">42</a>`),
		Superlink(42, "demand"))
	assert.Equal(t,
		template.HTML(`<a href="/admin/input/item/x_3Cy_3E" class="item">x&lt;y&gt;</a>`),
		Superlink("x<y>", "item"))
}

func TestQuoteRoundTrip(t *testing.T) {
	for _, in := range []string{"plain", `a:b/c_d#e?f;g@h&i=j+k$l,m"n<o>p%q\r`, "naïve_", "_zz"} {
		assert.Equal(t, in, Unquote(Quote(in)), in)
	}
	assert.Equal(t, "_3A_2F", Quote(":/"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("True"))
	assert.True(t, Truthy("yes"))
	assert.False(t, Truthy("False"))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(0))
	assert.True(t, Truthy(3))
	assert.False(t, Truthy([]string{}))
}

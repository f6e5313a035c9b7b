// Package breadcrumb keeps the per-session trail of visited admin pages.
//
// Every page render pushes the current page on the trail. When the page is
// already on the trail, everything from its earlier position onwards is
// dropped first, so navigating back to a page collapses the cycle.
package breadcrumb

import (
	"html"
	"html/template"
	"strings"
)

// SessionKey is the session entry the trail is stored under.
const SessionKey = "crumbs"

// Entry is one rendered anchor on the trail. Entries compare by string equality.
type Entry string

// NewEntry builds the anchor for url and title.
func NewEntry(url, title string) Entry {
	return Entry(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(title) + `</a>`)
}

// Config holds the fixed parts of the trail.
type Config struct {
	// Home is the first entry of every fresh trail.
	Home Entry
	// HomeTitle replaces SiteTitle when a page carries the site title.
	HomeTitle string
	// SiteTitle is the title of the admin index page.
	SiteTitle string
	// Separator goes between rendered entries.
	Separator string
}

// DefaultConfig returns the trail settings for an admin site rooted at homeURL.
func DefaultConfig(homeURL string) Config {
	if homeURL == "" {
		homeURL = "/admin/"
	}
	return Config{
		Home:      NewEntry(homeURL, "Home"),
		HomeTitle: "Home",
		SiteTitle: "Site administration",
		Separator: " > ",
	}
}

// Page describes the page being rendered.
type Page struct {
	// Path is the full request path, query string included.
	Path string
	// Title is the page title; only used when HasTitle is set.
	Title    string
	HasTitle bool
	// Reset discards the stored trail before pushing the page.
	Reset bool
}

// Store is the session storage the trail lives in.
type Store interface {
	Strings(key string) ([]string, bool)
	SetStrings(key string, values []string)
}

// Manager applies pages to trails.
type Manager struct {
	cfg Config
}

// New returns a Manager for cfg. Empty fields fall back to DefaultConfig("/admin/").
func New(cfg Config) *Manager {
	def := DefaultConfig("")
	if cfg.Home == "" {
		cfg.Home = def.Home
	}
	if cfg.HomeTitle == "" {
		cfg.HomeTitle = def.HomeTitle
	}
	if cfg.SiteTitle == "" {
		cfg.SiteTitle = def.SiteTitle
	}
	if cfg.Separator == "" {
		cfg.Separator = def.Separator
	}
	return &Manager{cfg: cfg}
}

// Config returns the manager settings.
func (m *Manager) Config() Config {
	return m.cfg
}

// EntryFor returns the entry the page contributes to the trail. A missing or
// empty title falls back to the path.
func (m *Manager) EntryFor(page Page) Entry {
	title := page.Path
	if page.HasTitle && page.Title != "" {
		title = page.Title
	}
	if title == m.cfg.SiteTitle {
		title = m.cfg.HomeTitle
	}
	return NewEntry(page.Path, title)
}

// Next returns the trail after visiting page. A nil trail means no trail was
// stored yet. The input slice is never modified.
func (m *Manager) Next(trail []Entry, page Page) []Entry {
	if trail == nil || page.Reset {
		trail = []Entry{m.cfg.Home}
	}
	current := m.EntryFor(page)

	n := len(trail)
	for i, e := range trail {
		if e == current {
			n = i
			break
		}
	}

	next := make([]Entry, n, n+1)
	copy(next, trail[:n])
	return append(next, current)
}

// Join renders trail with the configured separator.
func (m *Manager) Join(trail []Entry) template.HTML {
	parts := make([]string, len(trail))
	for i, e := range trail {
		parts[i] = string(e)
	}
	return template.HTML(strings.Join(parts, m.cfg.Separator))
}

// Render loads the trail from store, applies page, stores the result and
// returns the rendered trail. A nil store renders as if the session were empty.
func (m *Manager) Render(store Store, page Page) template.HTML {
	var trail []Entry
	if store != nil {
		if raw, ok := store.Strings(SessionKey); ok {
			trail = make([]Entry, len(raw))
			for i, s := range raw {
				trail[i] = Entry(s)
			}
		}
	}

	trail = m.Next(trail, page)

	if store != nil {
		raw := make([]string, len(trail))
		for i, e := range trail {
			raw[i] = string(e)
		}
		store.SetStrings(SessionKey, raw)
	}
	return m.Join(trail)
}

// Package admin keeps the catalogue of models shown in the admin site and
// filters it by user permissions.
package admin

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Model describes one admin-visible model of an app.
type Model struct {
	App               string
	Name              string
	VerboseNamePlural string
	// InAdmin is false for models that exist but have no admin pages.
	InAdmin bool
}

// ChangePerm is the permission required to edit the model, "app.change_name".
func (m Model) ChangePerm() string {
	return m.App + ".change_" + m.Name
}

// AdminURL is the listing page of the model.
func (m Model) AdminURL() string {
	return "/admin/" + m.App + "/" + m.Name + "/"
}

// Listing is one entry of a permission filtered model list.
type Listing struct {
	Name     string
	AdminURL string
}

// PermChecker is satisfied by *models.User.
type PermChecker interface {
	HasModulePerms(app string) bool
	HasPerm(perm string) bool
}

// Registry holds the models per app.
type Registry struct {
	mu     sync.RWMutex
	models map[string][]Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string][]Model)}
}

// Register adds models. Names are lower-cased; a model registered twice
// replaces the earlier entry.
func (r *Registry) Register(models ...Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range models {
		m.App = strings.ToLower(m.App)
		m.Name = strings.ToLower(m.Name)
		list := r.models[m.App]
		replaced := false
		for i := range list {
			if list[i].Name == m.Name {
				list[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, m)
		}
		r.models[m.App] = list
	}
}

// Lookup finds a registered model.
func (r *Registry) Lookup(app, name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models[strings.ToLower(app)] {
		if m.Name == strings.ToLower(name) {
			return m, true
		}
	}
	return Model{}, false
}

// Apps lists the registered app labels in sorted order.
func (r *Registry) Apps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := make([]string, 0, len(r.models))
	for app := range r.models {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Visible lists the models of app the user may change, sorted by display name.
// Nothing is returned unless the user has module permissions on app. A nil
// user sees nothing.
func (r *Registry) Visible(user PermChecker, app string) []Listing {
	out := []Listing{}
	if user == nil || !user.HasModulePerms(app) {
		return out
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models[strings.ToLower(app)] {
		if !m.InAdmin || !user.HasPerm(m.ChangePerm()) {
			continue
		}
		out = append(out, Listing{Name: capfirst(m.VerboseNamePlural), AdminURL: m.AdminURL()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].AdminURL < out[j].AdminURL
	})
	return out
}

func capfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

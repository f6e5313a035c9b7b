package tags

import (
	"html/template"
	"strconv"
	"strings"
)

// Context holds the variables of one page render. Handlers seed it and
// templates read and assign it through get and set.
type Context struct {
	vars map[string]any
}

// NewContext copies vars into a fresh context.
func NewContext(vars map[string]any) *Context {
	c := &Context{vars: make(map[string]any, len(vars))}
	for k, v := range vars {
		c.vars[k] = v
	}
	return c
}

// Set assigns name.
func (c *Context) Set(name string, value any) {
	if c.vars == nil {
		c.vars = make(map[string]any)
	}
	c.vars[name] = value
}

// Get returns the variable and whether it is set.
func (c *Context) Get(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.vars[name]
	return v, ok
}

// String returns the variable as a string, "" when unset.
func (c *Context) String(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case template.HTML:
		return string(s), true
	case interface{ String() string }:
		return s.String(), true
	}
	return toString(v), true
}

// Truthy reports whether the variable is set to a true value.
func (c *Context) Truthy(name string) bool {
	v, ok := c.Get(name)
	return ok && Truthy(v)
}

// Truthy follows template truth for everything but strings. Strings that parse
// as a boolean ("true", "False", "0") use that value; other non-empty strings
// are true.
func Truthy(v any) bool {
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
		return s != ""
	}
	truth, ok := template.IsTrue(v)
	return ok && truth
}

package models

import (
	"strings"
	"time"
)

// User is an admin account together with its granted permissions.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`

	// Permissions holds "app.codename" entries; nil until loaded.
	Permissions map[string]struct{} `json:"-"`
}

// HasPerm reports whether the user holds perm ("app.codename").
func (u *User) HasPerm(perm string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	_, ok := u.Permissions[perm]
	return ok
}

// HasModulePerms reports whether the user holds any permission in app.
func (u *User) HasModulePerms(app string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	prefix := app + "."
	for perm := range u.Permissions {
		if strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

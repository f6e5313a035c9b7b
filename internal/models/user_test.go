package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserPermissions(t *testing.T) {
	u := &User{Permissions: map[string]struct{}{"input.change_buffer": {}}}
	assert.True(t, u.HasPerm("input.change_buffer"))
	assert.False(t, u.HasPerm("input.change_item"))
	assert.True(t, u.HasModulePerms("input"))
	assert.False(t, u.HasModulePerms("output"))
	assert.False(t, u.HasModulePerms("inp"))

	admin := &User{IsSuperuser: true}
	assert.True(t, admin.HasPerm("output.change_problem"))
	assert.True(t, admin.HasModulePerms("output"))

	var anon *User
	assert.False(t, anon.HasPerm("input.change_buffer"))
	assert.False(t, anon.HasModulePerms("input"))
}

func TestBucketValid(t *testing.T) {
	assert.True(t, BucketWeek.Valid())
	assert.False(t, Bucket("hour").Valid())
	assert.False(t, Bucket("").Valid())
}

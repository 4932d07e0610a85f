package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOneTimeCode_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	code := OneTimeCode{ExpiresAt: now.Add(2 * time.Minute)}

	assert.False(t, code.Expired(now))
	assert.False(t, code.Expired(now.Add(119*time.Second)))
	assert.True(t, code.Expired(now.Add(2*time.Minute)), "expiry instant itself is expired")
	assert.True(t, code.Expired(now.Add(3*time.Minute)))
}

func TestUser_HasPassword(t *testing.T) {
	var u User
	assert.False(t, u.HasPassword())

	empty := ""
	u.PasswordHash = &empty
	assert.False(t, u.HasPassword())

	hash := "$2a$10$abc"
	u.PasswordHash = &hash
	assert.True(t, u.HasPassword())
}

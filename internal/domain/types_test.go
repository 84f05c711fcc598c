package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientSession(t *testing.T) {
	a := NewClientSession("agent-a")
	b := NewClientSession("agent-b")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "agent-a", a.UserAgent)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, NewToolNotFoundError("calc"), `tool "calc" not found`)
	assert.EqualError(t, NewSessionNotFoundError("abc"), `session "abc" not found`)
	assert.EqualError(t, NewValidationError("name", "must not be empty"), "validation failed for field name: must not be empty")
}

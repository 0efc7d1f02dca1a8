package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJobHandle(t *testing.T) {
	assert.Equal(t, "H:host:1", newJobHandle("H:host", 1))
	assert.Equal(t, "H:host:42", newJobHandle("H:host", 42))
}

func TestUitoa(t *testing.T) {
	assert.Equal(t, "0", uitoa(0))
	assert.Equal(t, "9", uitoa(9))
	assert.Equal(t, "12345", uitoa(12345))
}

func TestJobClientSubscription(t *testing.T) {
	j := &job{handle: "H:host:1"}
	c1 := &conn{id: 1}
	c2 := &conn{id: 2}

	assert.False(t, j.foreground())

	j.addClient(c1)
	j.addClient(c1) // idempotent
	j.addClient(c2)
	assert.True(t, j.foreground())
	assert.Len(t, j.clients, 2)

	remaining := j.removeClient(c1)
	assert.Equal(t, 1, remaining)

	remaining = j.removeClient(c2)
	assert.Equal(t, 0, remaining)
	assert.False(t, j.foreground())
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobHashDeterministic(t *testing.T) {
	a := jobHash([]byte("H:localhost:1"))
	b := jobHash([]byte("H:localhost:1"))
	assert.Equal(t, a, b)
}

func TestJobHashDiffers(t *testing.T) {
	a := jobHash([]byte("H:localhost:1"))
	b := jobHash([]byte("H:localhost:2"))
	assert.NotEqual(t, a, b)
}

func TestJobHashNeverZero(t *testing.T) {
	assert.NotZero(t, jobHash(nil))
	assert.NotZero(t, jobHash([]byte{}))
	assert.NotZero(t, jobHash([]byte("x")))
}

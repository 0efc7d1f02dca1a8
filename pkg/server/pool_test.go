package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeListReusesPutValues(t *testing.T) {
	created := 0
	p := newFreeList(2, func() *job {
		created++
		return &job{}
	})

	a := p.get()
	assert.Equal(t, 1, created)

	p.put(a)
	b := p.get()
	assert.Same(t, a, b)
	assert.Equal(t, 1, created, "put value should be reused instead of allocating")
}

func TestFreeListDropsBeyondCap(t *testing.T) {
	p := newFreeList(1, func() *job { return &job{} })
	a, b := &job{}, &job{}

	p.put(a)
	p.put(b) // pool is full; this one is dropped, not queued

	got := p.get()
	assert.Same(t, a, got)

	// pool is now empty again; get() allocates fresh rather than
	// returning b, since b was dropped above.
	fresh := p.get()
	assert.NotSame(t, b, fresh)
}

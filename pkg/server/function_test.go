package server

import (
	"testing"
	"time"

	rt "github.com/drawks/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionPopHighestPriorityOrder(t *testing.T) {
	f := newFunction("reverse")
	low := &job{handle: "low", priority: rt.JobLow}
	normal := &job{handle: "normal", priority: rt.JobNormal}
	high := &job{handle: "high", priority: rt.JobHigh}

	f.push(low)
	f.push(normal)
	f.push(high)

	require.Equal(t, high, f.popHighest())
	require.Equal(t, normal, f.popHighest())
	require.Equal(t, low, f.popHighest())
	assert.Nil(t, f.popHighest())
}

func TestFunctionAddRemoveWorker(t *testing.T) {
	f := newFunction("reverse")
	w1 := &conn{id: 1}
	w2 := &conn{id: 2}

	f.addWorker(w1)
	f.addWorker(w1) // idempotent
	f.addWorker(w2)
	assert.Len(t, f.workers, 2)

	f.head = 1
	f.removeWorker(w2)
	assert.Len(t, f.workers, 1)
	assert.Equal(t, 0, f.head, "head resets once it points past the shrunk slice")
}

func TestFunctionReleaseEligible(t *testing.T) {
	f := newFunction("reverse")
	past := &job{handle: "past", epoch: time.Unix(100, 0)}
	future := &job{handle: "future", epoch: time.Unix(1_000_000_000_000, 0)}
	f.pushDeferred(past)
	f.pushDeferred(future)

	released := f.releaseEligible(200)
	require.Len(t, released, 1)
	assert.Equal(t, "past", released[0].handle)
	assert.Len(t, f.deferred, 1)
	assert.Equal(t, "future", f.deferred[0].handle)
	assert.Equal(t, 1, f.queued(rt.JobHigh), "released job keeps its zero-value (HIGH) priority")
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDBQueueAddDoneReplay(t *testing.T) {
	dir := t.TempDir()
	q, err := newLevelDBQueue(dir)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Add("reverse", "u1", []byte("hello"), 1, 0))
	require.NoError(t, q.Add("reverse", "u2", []byte("world"), 0, 1234))

	var replayed []string
	err = q.Replay(func(function, unique string, data []byte, priority byte, when int64) error {
		replayed = append(replayed, function+"/"+unique)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reverse/u1", "reverse/u2"}, replayed)

	require.NoError(t, q.Done("reverse", "u1"))
	require.NoError(t, q.Done("reverse", "u1"), "done on an already-missing row must succeed")

	replayed = nil
	require.NoError(t, q.Replay(func(function, unique string, data []byte, priority byte, when int64) error {
		replayed = append(replayed, function+"/"+unique)
		return nil
	}))
	assert.Equal(t, []string{"reverse/u2"}, replayed)
}

func TestLevelDBValueEncoding(t *testing.T) {
	v := encodeLevelDBValue(2, 1700000000, []byte("payload"))
	priority, when, data, err := decodeLevelDBValue(v)
	require.NoError(t, err)
	assert.Equal(t, byte(2), priority)
	assert.Equal(t, int64(1700000000), when)
	assert.Equal(t, []byte("payload"), data)
}

func TestLevelDBKeySplit(t *testing.T) {
	k := levelDBKey("reverse", "u1")
	fn, unique := splitLevelDBKey(k)
	assert.Equal(t, "reverse", fn)
	assert.Equal(t, "u1", unique)
}

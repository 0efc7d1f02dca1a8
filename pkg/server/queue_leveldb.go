package server

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// levelDBQueue is the default durable Queue adapter, backed by
// github.com/syndtr/goleveldb.
//
// Keys are "<function>\x00<unique>"; values are a fixed 9-byte header
// (1-byte priority, 8-byte big-endian epoch) followed by the payload: one
// row per job.
type levelDBQueue struct {
	db *leveldb.DB
}

func newLevelDBQueue(dir string) (*levelDBQueue, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening leveldb at %s: %v", ErrQueueAdapter, dir, err)
	}
	return &levelDBQueue{db: db}, nil
}

func (q *levelDBQueue) Close() error {
	return q.db.Close()
}

func levelDBKey(function, unique string) []byte {
	key := make([]byte, 0, len(function)+1+len(unique))
	key = append(key, function...)
	key = append(key, 0)
	key = append(key, unique...)
	return key
}

func splitLevelDBKey(key []byte) (function, unique string) {
	i := bytes.IndexByte(key, 0)
	if i < 0 {
		return string(key), ""
	}
	return string(key[:i]), string(key[i+1:])
}

func encodeLevelDBValue(priority byte, when int64, data []byte) []byte {
	buf := make([]byte, 9+len(data))
	buf[0] = priority
	binary.BigEndian.PutUint64(buf[1:9], uint64(when))
	copy(buf[9:], data)
	return buf
}

func decodeLevelDBValue(v []byte) (priority byte, when int64, data []byte, err error) {
	if len(v) < 9 {
		return 0, 0, nil, ErrInvalidPacket
	}
	priority = v[0]
	when = int64(binary.BigEndian.Uint64(v[1:9]))
	data = v[9:]
	return priority, when, data, nil
}

func (q *levelDBQueue) Add(function, unique string, data []byte, priority byte, when int64) error {
	if err := q.db.Put(levelDBKey(function, unique), encodeLevelDBValue(priority, when, data), nil); err != nil {
		return fmt.Errorf("%w: put: %v", ErrQueueAdapter, err)
	}
	return nil
}

func (q *levelDBQueue) Flush() error {
	// goleveldb's Put already goes through its write-ahead log; nothing
	// to force beyond that without a full Compact, which is far more
	// than "flush" is asking for.
	return nil
}

func (q *levelDBQueue) Done(function, unique string) error {
	key := levelDBKey(function, unique)
	if _, err := q.db.Get(key, nil); err != nil {
		if err == leveldb.ErrNotFound {
			// a crash between persisting and deleting a job can leave
			// Done called twice; treat an already-missing row as success.
			return nil
		}
		return fmt.Errorf("%w: get before delete: %v", ErrQueueAdapter, err)
	}
	if err := q.db.Delete(key, nil); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrQueueAdapter, err)
	}
	return nil
}

func (q *levelDBQueue) Replay(add func(function, unique string, data []byte, priority byte, when int64) error) error {
	iter := q.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		function, unique := splitLevelDBKey(iter.Key())
		priority, when, data, err := decodeLevelDBValue(iter.Value())
		if err != nil {
			return fmt.Errorf("%w: replay decode %s/%s: %v", ErrQueueAdapter, function, unique, err)
		}
		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)
		if err := add(function, unique, dataCopy, priority, when); err != nil {
			return fmt.Errorf("%w: replay add %s/%s: %v", ErrQueueAdapter, function, unique, err)
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: replay iterate: %v", ErrQueueAdapter, err)
	}
	return nil
}

func (q *levelDBQueue) SupportsEpoch() bool { return true }

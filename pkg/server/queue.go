package server

// Queue is the durable-store adapter contract. Any backend — LevelDB
// (pkg/server/queue_leveldb.go, the default), SQLite, MySQL, PostgreSQL,
// memcached — implements these four functions. It is only ever called
// from the single model-owning goroutine, so implementations need no
// internal locking against the server itself (though they may still need
// it against their own background compaction, etc).
type Queue interface {
	// Add persists a job so it survives restart. when is the epoch
	// eligibility time for SUBMIT_JOB_EPOCH jobs, or zero for jobs
	// eligible immediately.
	Add(function, unique string, data []byte, priority byte, when int64) error

	// Flush forces any buffered writes to stable storage.
	Flush() error

	// Done removes a persisted job. Must treat an already-missing row as
	// success (idempotent on the miss side, even though Add need not be
	// idempotent), since a crash between persist and delete can retry
	// Done against a row that's already gone.
	Done(function, unique string) error

	// Replay invokes add for every persisted job at startup. add injects
	// the job as if freshly submitted, with jobQueued=true so the replay
	// path does not re-persist it.
	Replay(add func(function, unique string, data []byte, priority byte, when int64) error) error
}

// EpochCapable is implemented by Queue adapters that can store and later
// report an eligibility time distinct from submission time. Adapters that
// can't should simply not implement this interface; SUBMIT_JOB_EPOCH is
// then rejected.
type EpochCapable interface {
	Queue
	SupportsEpoch() bool
}

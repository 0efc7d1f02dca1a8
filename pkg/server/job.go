package server

import "time"

// job is the server-side job record.
//
// Invariant: a job is in exactly one of {function's priority FIFO,
// assigned to a worker, finished-and-freed}. Invariant: if worker != nil
// the job is also in worker.jobs and counted in fn.running.
type job struct {
	handle string
	unique string // literal client-supplied unique, verbatim
	fn     string

	// coalesceKey is the key this job is indexed under in
	// Server.jobsByUnique, and the one a later SUBMIT_JOB looks up to
	// decide whether to coalesce onto this job instead of creating a new
	// one. Empty means this job is never matched by a later submission
	// (plain unique == "", or unique == "-" with an empty payload).
	coalesceKey string

	priority byte // rt.JobHigh/JobNormal/JobLow
	data     []byte

	retries     uint8
	numerator   uint64
	denominator uint64

	background bool
	jobQueued  bool // persisted in the durable store
	ignoreJob  bool

	worker  *conn
	clients []*conn // subscribers watching this job's completion/status

	epoch time.Time // zero unless this is a deferred SUBMIT_JOB_EPOCH job

	handleKey uint32
	uniqueKey uint32
}

func newJobHandle(prefix string, seq uint64) string {
	return prefix + ":" + uitoa(seq)
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// addClient subscribes con to this job's completion/status broadcasts,
// unless it is already subscribed.
func (j *job) addClient(c *conn) {
	for _, existing := range j.clients {
		if existing == c {
			return
		}
	}
	j.clients = append(j.clients, c)
}

// removeClient unsubscribes con and returns how many subscribers remain.
func (j *job) removeClient(c *conn) (remaining int) {
	out := j.clients[:0]
	for _, existing := range j.clients {
		if existing != c {
			out = append(out, existing)
		}
	}
	j.clients = out
	return len(j.clients)
}

// foreground reports whether any client is currently subscribed. A
// background job has none.
func (j *job) foreground() bool {
	return len(j.clients) > 0
}

package server

import "time"

// LogLevel is the severity of a logged message.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogFn is the only logging hook the core depends on. The daemon/CLI owns
// the actual sink.
type LogFn func(level LogLevel, format string, args ...interface{})

// Config holds every daemon-facing knob. ListenAddr, Storage and
// WebAddress are referenced by cmd/server.go's existing flag bindings.
type Config struct {
	// ListenAddr is the binary+text Gearman protocol listen address.
	ListenAddr string
	// Storage is the directory backing the default LevelDB queue adapter.
	Storage string
	// WebAddress is the HTTP admin/metrics listen address. Empty disables it.
	WebAddress string

	// Threads is the number of I/O thread groupings connections are
	// round-robin assigned to at accept time. Values below 1 are treated
	// as 1; every connection still gets its own reader and writer
	// goroutines whatever the count.
	Threads int

	// WorkerWakeup caps how many sleeping workers get a NOOP per job
	// enqueue. 0 means unlimited.
	WorkerWakeup int

	// JobRetries is the worker-disconnect re-queue count at which a job is
	// dropped and WORK_FAIL is broadcast to its subscribers: retries starts
	// at 0 and increments on every disconnect-requeue, and the job fails
	// once retries reaches JobRetries. The default, 0, means unlimited
	// retries — a cap of zero is never checked — matching real Gearman.
	JobRetries uint8

	// RoundRobin selects fair rotation across a worker's capabilities
	// instead of always draining the first runnable function.
	RoundRobin bool

	// Backlog is the TCP listen backlog.
	Backlog int

	// MaxQueueSize is the default per-priority cap applied to newly seen
	// functions before an explicit `maxqueue` admin command overrides it.
	// 0 means unbounded.
	MaxQueueSize int

	MaxFunctionNameSize int
	MaxJobHandleSize    int
	MaxUniqueSize       int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// EnableCron turns on the cron-driven epoch-eligibility ticker
	// (pkg/server/schedule.go).
	EnableCron bool
	// EnableMetrics registers the Prometheus collectors and, if
	// WebAddress is set, serves them at /metrics.
	EnableMetrics bool

	// Log receives every message the core would otherwise drop on the
	// floor. Defaults to a github.com/golang/glog-backed sink.
	Log LogFn

	// Queue is the durable store adapter. If nil and Storage is non-empty,
	// a LevelDB-backed adapter rooted at Storage is used. If nil and
	// Storage is empty, jobs are not persisted.
	Queue Queue
}

const (
	defaultMaxFunctionNameSize = 256
	defaultMaxJobHandleSize    = 64
	defaultMaxUniqueSize       = 256
	defaultReadTimeout         = 10 * time.Minute
	defaultWriteTimeout        = time.Minute
	defaultBacklog             = 256
)

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":4730"
	}
	if c.Backlog <= 0 {
		c.Backlog = defaultBacklog
	}
	if c.MaxFunctionNameSize <= 0 {
		c.MaxFunctionNameSize = defaultMaxFunctionNameSize
	}
	if c.MaxJobHandleSize <= 0 {
		c.MaxJobHandleSize = defaultMaxJobHandleSize
	}
	if c.MaxUniqueSize <= 0 {
		c.MaxUniqueSize = defaultMaxUniqueSize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Log == nil {
		c.Log = defaultLogFn
	}
}

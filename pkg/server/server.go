// Package server implements the Gearman job-queue engine: per-function
// priority queues, job and worker lifecycle, unique-key coalescing,
// worker sleep/wakeup, the connection I/O state machine, the I/O thread
// pool, the persistent-queue adapter contract, and the text admin
// protocol.
package server

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	rt "github.com/drawks/gearhulk/pkg/runtime"
)

// Server is the root entity. Every field below that is not explicitly
// thread-safe (atomic, channel, or its own mutex) is only ever touched
// from the single model-owning goroutine started by Start.
type Server struct {
	cfg        Config
	hostPrefix string
	handleSeq  uint64

	functions    map[string]*function
	jobsByHandle map[string]*job
	jobsByUnique map[string]*job // key: function + "\x00" + job.coalesceKey

	listener net.Listener
	ioThreads []*ioThread
	nextIOThread int

	reqCh      chan *event
	adminCh    chan adminRequest
	shutdownCh chan struct{}
	doneCh     chan struct{}
	wg         sync.WaitGroup

	queue        Queue
	epochQueue   EpochCapable
	queueStartup bool

	metrics *metricsCollector
	cron    *cronTicker
	web     *webServer

	jobPool *freeList[job]

	shutdownGraceful bool
	shutdownNow      bool
	startTime        time.Time
}

// NewServer constructs a Server from cfg. It does not start listening;
// call Start for that.
func NewServer(cfg Config) *Server {
	cfg.setDefaults()
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	s := &Server{
		cfg:          cfg,
		hostPrefix:   "H:" + host,
		functions:    make(map[string]*function),
		jobsByHandle: make(map[string]*job),
		jobsByUnique: make(map[string]*job),
		reqCh:        make(chan *event, rt.QueueSize*8),
		adminCh:      make(chan adminRequest, 8),
		shutdownCh:   make(chan struct{}),
		doneCh:       make(chan struct{}),
		jobPool:      newFreeList(freeJobCap, func() *job { return &job{} }),
	}
	nThreads := cfg.Threads
	if nThreads <= 0 {
		nThreads = 1
	}
	for i := 0; i < nThreads; i++ {
		s.ioThreads = append(s.ioThreads, newIOThread(i))
	}
	s.metrics = newMetricsCollector(cfg.EnableMetrics)
	return s
}

// Start opens the listener, wires the durable queue, replays persisted
// jobs, and runs until Shutdown is called. It returns once the
// server has fully shut down, matching the blocking Start() shape
// cmd/server.go already calls (gearmand.NewServer(cfg).Start()).
func (s *Server) Start() error {
	if err := s.openQueue(); err != nil {
		return err
	}
	if s.queue != nil {
		s.queueStartup = true
		if err := s.queue.Replay(s.replayAdd); err != nil {
			return fmt.Errorf("queue replay failed: %w", err)
		}
		s.queueStartup = false
	}

	ln, err := net.Listen(rt.Network, s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	s.startTime = time.Now()
	s.log(LogInfo, "gearhulk listening on %s", s.cfg.ListenAddr)

	if s.cfg.EnableCron {
		s.cron = newCronTicker(s)
		s.cron.Start()
	}
	if s.cfg.WebAddress != "" {
		s.web = newWebServer(s, s.cfg.WebAddress)
		s.web.Start()
	}

	s.wg.Add(1)
	go s.acceptLoop()

	s.run()
	return nil
}

// Shutdown requests the server stop. graceful=true closes the listener
// immediately and keeps existing connections open until no job remains
// queued or assigned, then closes every connection; it does not wait for
// clients or workers to disconnect on their own. graceful=false drops
// everything and returns immediately regardless of outstanding job state.
func (s *Server) Shutdown(graceful bool) {
	select {
	case <-s.doneCh:
		return
	default:
	}
	if graceful {
		s.adminCh <- adminRequest{kind: adminShutdownGraceful}
	} else {
		s.adminCh <- adminRequest{kind: adminShutdownNow}
	}
	<-s.doneCh
}

func (s *Server) log(level LogLevel, format string, args ...interface{}) {
	s.cfg.Log(level, format, args...)
}

func (s *Server) nextHandle() string {
	s.handleSeq++
	return newJobHandle(s.hostPrefix, s.handleSeq)
}

// acceptLoop is the main accept/control thread. Accepted connections are
// round-robin assigned to an I/O thread, and their reader/writer
// goroutines are started immediately.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return
			default:
				s.log(LogWarn, "accept: %v", err)
				return
			}
		}
		applySocketOptions(raw, s.cfg.Backlog)
		c := newConn(nextConnID(), raw)
		t := s.ioThreads[s.nextIOThread]
		s.nextIOThread = (s.nextIOThread + 1) % len(s.ioThreads)
		t.add(c)

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			c.writeLoop(s.cfg.WriteTimeout)
		}()
		go func() {
			defer s.wg.Done()
			c.readLoop(s.reqCh, s.cfg.ReadTimeout)
		}()
	}
}

func applySocketOptions(raw net.Conn, _ int) {
	tc, ok := raw.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetNoDelay(true)
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(30 * time.Second)
	tc.SetLinger(5)
}

// run is the single model-owning goroutine: the only goroutine that reads
// or writes functions, jobsByHandle, jobsByUnique, or any job/function/conn
// fields once a connection has been handed off by acceptLoop.
func (s *Server) run() {
	defer close(s.doneCh)
	for {
		select {
		case ev := <-s.reqCh:
			if ev.disconnect {
				s.handleDisconnect(ev.c, ev.err)
			} else {
				s.handleEvent(ev.c, ev.pkt)
			}
		case req := <-s.adminCh:
			if s.handleAdminRequest(req) {
				return
			}
		case when := <-s.cronTickChan():
			s.releaseEpochJobs(when)
		}
		if s.shutdownGraceful && s.quiesced() {
			s.doShutdown()
			return
		}
	}
}

func (s *Server) cronTickChan() <-chan int64 {
	if s.cron == nil {
		return nil
	}
	return s.cron.ticks
}

// quiesced reports whether a graceful shutdown may complete: no jobs left
// anywhere in the system, queued or assigned.
func (s *Server) quiesced() bool {
	return len(s.jobsByHandle) == 0
}

type adminKind int

const (
	adminShutdownGraceful adminKind = iota
	adminShutdownNow
	adminStatusSnapshot
)

type adminRequest struct {
	kind    adminKind
	respCh  chan []webStatusFunction
}

// handleAdminRequest returns true once the server should fully stop.
func (s *Server) handleAdminRequest(req adminRequest) bool {
	switch req.kind {
	case adminShutdownGraceful:
		s.shutdownGraceful = true
		s.listener.Close()
		if s.quiesced() {
			s.doShutdown()
			return true
		}
		return false
	case adminShutdownNow:
		s.doShutdown()
		return true
	case adminStatusSnapshot:
		req.respCh <- s.statusSnapshot()
		return false
	}
	return false
}

func (s *Server) statusSnapshot() []webStatusFunction {
	rows := make([]webStatusFunction, 0, len(s.functions))
	for name, f := range s.functions {
		rows = append(rows, webStatusFunction{
			Name:    name,
			Total:   f.jobCount() + f.running,
			Running: f.running,
			Workers: len(f.workers),
		})
	}
	return rows
}

func (s *Server) doShutdown() {
	close(s.shutdownCh)
	if s.listener != nil {
		s.listener.Close()
	}
	for _, t := range s.ioThreads {
		t.mu.Lock()
		for _, c := range t.m {
			c.close(nil)
		}
		t.mu.Unlock()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.web != nil {
		s.web.Stop()
	}
	if s.queue != nil {
		if closer, ok := s.queue.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
	s.log(LogInfo, "gearhulk shut down")
}

// replayAdd is passed to Queue.Replay at startup: it injects a job with
// jobQueued=true so it is not re-persisted.
func (s *Server) replayAdd(function, unique string, data []byte, priority byte, when int64) error {
	fn := s.getOrCreateFunction(function)
	j := s.jobPool.get()
	*j = job{}
	j.handle = s.nextHandle()
	j.unique = unique
	j.coalesceKey = coalesceKeyFor(unique, data)
	j.fn = function
	j.data = data
	j.priority = priority
	j.background = true
	j.jobQueued = true
	s.indexJob(j)
	if when > 0 {
		j.epoch = time.Unix(when, 0)
		fn.pushDeferred(j)
	} else {
		s.enqueueJob(fn, j)
	}
	return nil
}

// getOrCreateFunction returns the named function's registry entry,
// creating it with the configured default per-priority queue cap if this
// is the first time it's been seen.
func (s *Server) getOrCreateFunction(name string) *function {
	f, ok := s.functions[name]
	if !ok {
		f = newFunction(name)
		for p := 0; p < numPriorities; p++ {
			f.maxQueueSize[p] = s.cfg.MaxQueueSize
		}
		s.functions[name] = f
	}
	return f
}

func (s *Server) indexJob(j *job) {
	s.jobsByHandle[j.handle] = j
	j.handleKey = jobHash([]byte(j.handle))
	if j.coalesceKey != "" {
		s.jobsByUnique[j.fn+"\x00"+j.coalesceKey] = j
		j.uniqueKey = jobHash([]byte(j.coalesceKey))
	}
}

func (s *Server) unindexJob(j *job) {
	delete(s.jobsByHandle, j.handle)
	if j.coalesceKey != "" {
		delete(s.jobsByUnique, j.fn+"\x00"+j.coalesceKey)
	}
}

// freeJob releases a finished/ignored job back to the pool.
func (s *Server) freeJob(j *job) {
	s.unindexJob(j)
	s.jobPool.put(j)
}

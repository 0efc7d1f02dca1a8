package server

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// capability is a (worker, function) membership with optional timeout.
type capability struct {
	fn      string
	timeout uint32
}

// conn is the role projection of a single TCP connection. "Connection",
// "Client" and "Worker" collapse into one struct: a connection becomes a
// worker the moment it sends CAN_DO, and a client the moment it submits
// or subscribes to a job. Nothing stops one connection acting as both.
//
// Each connection gets one reader goroutine and one writer goroutine,
// joined by channels to the single model-owning goroutine (Server.run).
// conn itself is only ever mutated from that goroutine once requests
// start flowing through reqCh; readLoop/writeLoop touch only their own
// local state and the net.Conn.
type conn struct {
	id    uint64
	raw   net.Conn
	name  string // set by SET_CLIENT_ID, shown in admin introspection
	codec packetCodec

	outMu  sync.Mutex
	outBuf [][]byte
	outSig chan struct{} // capacity 1, wakes writeLoop when outBuf goes non-empty

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	ioThread *ioThread

	// worker-side state
	caps            map[string]*capability
	capabilityOrder []string // insertion order; rotated by round-robin scheduling
	jobs            []*job
	isSleeping      bool
	isNoopSent      bool
	isAdminText     bool // this connection only ever speaks the text protocol

	// client-side state
	submitted  []*job
	exceptions bool
}

func newConn(id uint64, raw net.Conn) *conn {
	return &conn{
		id:     id,
		raw:    raw,
		outSig: make(chan struct{}, 1),
		closed: make(chan struct{}),
		caps:   make(map[string]*capability),
		codec:  defaultCodec{},
	}
}

func (c *conn) addCapability(fn string, timeout uint32) {
	if _, ok := c.caps[fn]; !ok {
		c.capabilityOrder = append(c.capabilityOrder, fn)
	}
	c.caps[fn] = &capability{fn: fn, timeout: timeout}
}

func (c *conn) removeCapability(fn string) {
	delete(c.caps, fn)
	for i, name := range c.capabilityOrder {
		if name == fn {
			c.capabilityOrder = append(c.capabilityOrder[:i], c.capabilityOrder[i+1:]...)
			break
		}
	}
}

func (c *conn) resetCapabilities() {
	c.caps = make(map[string]*capability)
	c.capabilityOrder = nil
}

func (c *conn) displayName() string {
	if c.name != "" {
		return c.name
	}
	return c.raw.RemoteAddr().String()
}

// send enqueues a raw response frame onto this connection's outbound
// FIFO. The FIFO is an unbounded slice behind outMu, not a fixed-size
// channel, so send never blocks: a stalled peer backpressures only its
// own writeLoop, never the model goroutine that calls send for every
// connection.
func (c *conn) send(b []byte) {
	if c.isClosed() {
		return
	}
	c.outMu.Lock()
	c.outBuf = append(c.outBuf, b)
	c.outMu.Unlock()
	select {
	case c.outSig <- struct{}{}:
	default:
	}
}

// drainOut removes and returns every frame currently queued, or nil if
// the FIFO is empty.
func (c *conn) drainOut() [][]byte {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if len(c.outBuf) == 0 {
		return nil
	}
	b := c.outBuf
	c.outBuf = nil
	return b
}

func (c *conn) close(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closed)
		c.raw.Close()
	})
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound FIFO to the socket. It is the only
// goroutine that writes to c.raw. A blocking write on its own goroutine
// plus a write deadline is enough to bound how long a stalled peer can
// hold a buffer; the runtime handles the retry-on-would-block itself.
// The FIFO itself (outBuf) has no capacity limit, so a stalled peer only
// ever grows this connection's own memory, never blocks send from the
// model goroutine.
func (c *conn) writeLoop(writeTimeout time.Duration) {
	w := bufio.NewWriter(c.raw)
	for {
		batch := c.drainOut()
		if batch == nil {
			select {
			case <-c.outSig:
				continue
			case <-c.closed:
				return
			}
		}
		if writeTimeout > 0 {
			c.raw.SetWriteDeadline(time.Now().Add(writeTimeout))
		}
		for _, b := range batch {
			if _, err := w.Write(b); err != nil {
				c.close(err)
				return
			}
		}
		if err := w.Flush(); err != nil {
			c.close(err)
			return
		}
	}
}

// readLoop decodes packets and hands them to the model goroutine via
// reqCh, one at a time, in the order they arrived on this connection.
func (c *conn) readLoop(reqCh chan<- *event, readTimeout time.Duration) {
	r := bufio.NewReader(c.raw)
	for {
		if readTimeout > 0 {
			c.raw.SetReadDeadline(time.Now().Add(readTimeout))
		}
		pkt, err := c.codec.Decode(r)
		if err != nil {
			reqCh <- &event{c: c, disconnect: true, err: err}
			return
		}
		reqCh <- &event{c: c, pkt: pkt}
	}
}

// event is what flows from connection goroutines to the single
// model-owning goroutine.
type event struct {
	c          *conn
	pkt        *packet
	disconnect bool
	err        error
}

// ioThread is a bookkeeping grouping of connections that new connections
// are round-robin assigned to. The actual read/write work happens on
// per-connection goroutines; ioThread exists so admin introspection and
// shutdown have something concrete to enumerate and Config.Threads has
// something to control the count of.
type ioThread struct {
	id int
	mu sync.Mutex
	m  map[uint64]*conn
}

func newIOThread(id int) *ioThread {
	return &ioThread{id: id, m: make(map[uint64]*conn)}
}

func (t *ioThread) add(c *conn) {
	t.mu.Lock()
	t.m[c.id] = c
	c.ioThread = t
	t.mu.Unlock()
}

func (t *ioThread) remove(c *conn) {
	t.mu.Lock()
	delete(t.m, c.id)
	t.mu.Unlock()
}

func (t *ioThread) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

var connIDSeq uint64

func nextConnID() uint64 {
	return atomic.AddUint64(&connIDSeq, 1)
}

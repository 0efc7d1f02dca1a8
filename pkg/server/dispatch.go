package server

import (
	"encoding/binary"
	"time"

	rt "github.com/drawks/gearhulk/pkg/runtime"
)

// handleEvent is the single entry point the model goroutine uses to react
// to one decoded packet from one connection. Packets on a connection are
// always processed in the order readLoop handed them off.
func (s *Server) handleEvent(c *conn, p *packet) {
	if p.isText {
		reply := s.handleAdminLine(c, p.args)
		if reply != nil {
			c.send(reply)
		}
		return
	}
	switch p.typ {
	case rt.PT_EchoReq:
		c.send(encodeBinary(rt.PT_EchoRes, p.arg(0)))

	case rt.PT_SetClientId:
		c.name = p.argString(0)

	case rt.PT_OptionReq:
		s.handleOptionReq(c, p.argString(0))

	case rt.PT_CanDo:
		s.handleCanDo(c, p.argString(0), 0)
	case rt.PT_CanDoTimeout:
		s.handleCanDo(c, p.argString(0), decodeTimeout(p.arg(1)))
	case rt.PT_CantDo:
		s.handleCantDo(c, p.argString(0))
	case rt.PT_ResetAbilities:
		s.handleResetAbilities(c)

	case rt.PT_PreSleep:
		s.handlePreSleep(c)

	case rt.PT_GrabJob:
		s.handleGrabJob(c, false)
	case rt.PT_GrabJobUniq:
		s.handleGrabJob(c, true)

	case rt.PT_SubmitJob:
		s.handleSubmitJob(c, p, rt.JobNormal, false, false)
	case rt.PT_SubmitJobHigh:
		s.handleSubmitJob(c, p, rt.JobHigh, false, false)
	case rt.PT_SubmitJobLow:
		s.handleSubmitJob(c, p, rt.JobLow, false, false)
	case rt.PT_SubmitJobBg:
		s.handleSubmitJob(c, p, rt.JobNormal, true, false)
	case rt.PT_SubmitJobHighBg:
		s.handleSubmitJob(c, p, rt.JobHigh, true, false)
	case rt.PT_SubmitJobLowBg:
		s.handleSubmitJob(c, p, rt.JobLow, true, false)
	case rt.PT_SubmitJobEpoch:
		s.handleSubmitJob(c, p, rt.JobNormal, true, true)

	case rt.PT_GetStatus:
		s.handleGetStatus(c, p.argString(0))

	case rt.PT_WorkData:
		s.forwardWork(c, rt.PT_WorkData, p.argString(0), p.arg(1))
	case rt.PT_WorkWarning:
		s.forwardWork(c, rt.PT_WorkWarning, p.argString(0), p.arg(1))
	case rt.PT_WorkStatus:
		s.handleWorkStatus(c, p)
	case rt.PT_WorkComplete:
		s.handleWorkTerminal(c, rt.PT_WorkComplete, p.argString(0), p.arg(1))
	case rt.PT_WorkException:
		s.handleWorkException(c, p.argString(0), p.arg(1))
	case rt.PT_WorkFail:
		s.handleWorkTerminal(c, rt.PT_WorkFail, p.argString(0), nil)

	default:
		c.send(errorPacket(ErrUnexpectedCmd))
	}
}

func decodeTimeout(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (s *Server) handleOptionReq(c *conn, name string) {
	switch name {
	case "exceptions":
		c.exceptions = true
		c.send(encodeBinary(rt.PT_OptionRes, []byte(name)))
	default:
		c.send(errorPacket(ErrUnknownOption))
	}
}

func (s *Server) handleCanDo(c *conn, fn string, timeout uint32) {
	if fn == "" || len(fn) > s.cfg.MaxFunctionNameSize {
		c.send(errorPacket(ErrInvalidFuncName))
		return
	}
	c.addCapability(fn, timeout)
	f := s.getOrCreateFunction(fn)
	f.addWorker(c)
}

func (s *Server) handleCantDo(c *conn, fn string) {
	c.removeCapability(fn)
	if f, ok := s.functions[fn]; ok {
		f.removeWorker(c)
	}
}

func (s *Server) handleResetAbilities(c *conn) {
	for _, fn := range c.capabilityOrder {
		if f, ok := s.functions[fn]; ok {
			f.removeWorker(c)
		}
	}
	c.resetCapabilities()
}

// handlePreSleep implements the PRE_SLEEP race: if work is already
// available for one of this worker's capabilities, reply immediately
// with NOOP instead of leaving the worker waiting for the next enqueue's
// wakeup fan-out.
func (s *Server) handlePreSleep(c *conn) {
	c.isSleeping = true
	if idx, _ := s.firstRunnableCapability(c); idx >= 0 {
		c.send(encodeBinary(rt.PT_Noop))
		c.isNoopSent = true
		return
	}
	c.isNoopSent = false
}

func (s *Server) handleGrabJob(c *conn, uniq bool) {
	j := s.grabJob(c)
	if j == nil {
		c.send(encodeBinary(rt.PT_NoJob))
		return
	}
	if uniq {
		c.send(encodeBinary(rt.PT_JobAssignUniq, []byte(j.handle), []byte(j.fn), []byte(j.unique), j.data))
	} else {
		c.send(encodeBinary(rt.PT_JobAssign, []byte(j.handle), []byte(j.fn), j.data))
	}
}

// coalesceKeyFor decides what key (if any) a submission with this unique
// and payload should be matched against in Server.jobsByUnique. It mirrors
// job.c's three-way branch on the raw unique bytes:
//
//   - empty unique: never matched (key=0, server_job=NULL).
//   - unique "-" with an empty payload: also never matched (key=0,
//     server_job=NULL) — it does NOT coalesce with anything, including a
//     second "-"-with-empty-payload submission.
//   - unique "-" with a non-empty payload: content-addressed. Matched
//     against any other job for the same function whose payload is byte-
//     for-byte identical, regardless of what unique string that job was
//     submitted with.
//   - any other non-empty unique: matched by the literal unique string.
//
// The "u\x00"/"d\x00" tags keep the two matching spaces (by-unique vs
// by-payload) from ever colliding with each other.
func coalesceKeyFor(unique string, data []byte) string {
	switch {
	case unique == "":
		return ""
	case unique == "-":
		if len(data) == 0 {
			return ""
		}
		return "d\x00" + string(data)
	default:
		return "u\x00" + unique
	}
}

// handleSubmitJob implements SUBMIT_JOB and all its HIGH/LOW/BG/EPOCH
// variants, including unique-key coalescing and per-function, per-priority
// queue-full admission control.
func (s *Server) handleSubmitJob(c *conn, p *packet, priority byte, background, epoch bool) {
	fn := p.argString(0)
	unique := p.argString(1)
	var data, epochArg []byte
	if epoch {
		epochArg = p.arg(2)
		data = p.arg(3)
	} else {
		data = p.arg(2)
	}

	if fn == "" || len(fn) > s.cfg.MaxFunctionNameSize {
		c.send(errorPacket(ErrInvalidFuncName))
		return
	}
	if len(unique) > s.cfg.MaxUniqueSize {
		c.send(errorPacket(ErrArgTooLarge))
		return
	}

	coalesceKey := coalesceKeyFor(unique, data)

	f := s.getOrCreateFunction(fn)

	if coalesceKey != "" {
		if existing, ok := s.jobsByUnique[fn+"\x00"+coalesceKey]; ok {
			if !background {
				existing.addClient(c)
			}
			c.send(encodeBinary(rt.PT_JobCreated, []byte(existing.handle)))
			return
		}
	}

	if f.maxQueueSize[priority] > 0 && f.queued(priority) >= f.maxQueueSize[priority] {
		c.send(errorPacket(ErrQueueFull))
		return
	}

	j := s.jobPool.get()
	*j = job{}
	j.handle = s.nextHandle()
	j.unique = unique
	j.coalesceKey = coalesceKey
	j.fn = fn
	j.data = data
	j.priority = priority
	j.background = background

	var when int64
	if epoch {
		if s.epochQueue == nil || !s.epochQueue.SupportsEpoch() {
			c.send(errorPacket(ErrEpochUnsupported))
			s.jobPool.put(j)
			return
		}
		when = decodeEpoch(epochArg)
		j.epoch = time.Unix(when, 0)
	}
	if !background {
		j.addClient(c)
	}

	s.indexJob(j)

	if s.queue != nil {
		if err := s.queue.Add(fn, unique, data, priority, when); err != nil {
			s.log(LogError, "queue add %s: %v", j.handle, err)
		} else if err := s.queue.Flush(); err != nil {
			s.log(LogError, "queue flush %s: %v", j.handle, err)
		} else {
			j.jobQueued = true
		}
	}

	c.send(encodeBinary(rt.PT_JobCreated, []byte(j.handle)))
	s.metrics.submitted(fn)

	if epoch && when > 0 {
		f.pushDeferred(j)
		return
	}
	s.enqueueJob(f, j)
}

func decodeEpoch(b []byte) int64 {
	var n int64
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			continue
		}
		n = n*10 + int64(ch-'0')
	}
	return n
}

func (s *Server) handleGetStatus(c *conn, handle string) {
	j, ok := s.jobsByHandle[handle]
	if !ok {
		c.send(encodeBinary(rt.PT_StatusRes,
			[]byte(handle), []byte("0"), []byte("0"), []byte("0"), []byte("0")))
		return
	}
	running := "0"
	if j.worker != nil {
		running = "1"
	}
	c.send(encodeBinary(rt.PT_StatusRes,
		[]byte(handle), []byte("1"), []byte(running),
		[]byte(uitoa(j.numerator)), []byte(uitoa(j.denominator))))
}

func (s *Server) forwardWork(from *conn, pt rt.PT, handle string, data []byte) {
	j, ok := s.jobsByHandle[handle]
	if !ok || j.worker != from {
		from.send(errorPacket(ErrJobNotFound))
		return
	}
	for _, cl := range j.clients {
		cl.send(encodeBinary(pt, []byte(handle), data))
	}
}

func (s *Server) handleWorkStatus(from *conn, p *packet) {
	handle := p.argString(0)
	j, ok := s.jobsByHandle[handle]
	if !ok || j.worker != from {
		from.send(errorPacket(ErrJobNotFound))
		return
	}
	j.numerator = atou(p.arg(1))
	j.denominator = atou(p.arg(2))
	for _, cl := range j.clients {
		cl.send(encodeBinary(rt.PT_WorkStatus, []byte(handle), p.arg(1), p.arg(2)))
	}
}

func (s *Server) handleWorkException(from *conn, handle string, data []byte) {
	j, ok := s.jobsByHandle[handle]
	if !ok || j.worker != from {
		from.send(errorPacket(ErrJobNotFound))
		return
	}
	for _, cl := range j.clients {
		if cl.exceptions {
			cl.send(encodeBinary(rt.PT_WorkException, []byte(handle), data))
		}
	}
}

// handleWorkTerminal implements WORK_COMPLETE and WORK_FAIL: broadcast to
// subscribers, detach from the worker, release the durable record and the
// job object.
func (s *Server) handleWorkTerminal(from *conn, pt rt.PT, handle string, data []byte) {
	j, ok := s.jobsByHandle[handle]
	if !ok || j.worker != from {
		from.send(errorPacket(ErrJobNotFound))
		return
	}
	for _, cl := range j.clients {
		if data != nil {
			cl.send(encodeBinary(pt, []byte(handle), data))
		} else {
			cl.send(encodeBinary(pt, []byte(handle)))
		}
	}
	if pt == rt.PT_WorkFail {
		s.metrics.failed(j.fn)
	} else {
		s.metrics.completed(j.fn)
	}
	s.finishJob(from, j)
}

func (s *Server) finishJob(w *conn, j *job) {
	removeJobFromWorker(w, j)
	if f, ok := s.functions[j.fn]; ok {
		f.running--
	}
	if s.queue != nil && j.jobQueued {
		if err := s.queue.Done(j.fn, j.unique); err != nil {
			s.log(LogError, "queue done %s: %v", j.handle, err)
		}
	}
	s.freeJob(j)
}

func removeJobFromWorker(w *conn, j *job) {
	out := w.jobs[:0]
	for _, wj := range w.jobs {
		if wj != j {
			out = append(out, wj)
		}
	}
	w.jobs = out
}

func atou(b []byte) uint64 {
	var n uint64
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			continue
		}
		n = n*10 + uint64(ch-'0')
	}
	return n
}

// handleDisconnect implements worker-disconnect requeue-with-retry
// (jobs assigned to this worker are requeued up to JobRetries times,
// then dropped with WORK_FAIL broadcast to subscribers) and client
// disconnect (unsubscribe from every job it was watching, without
// touching the job itself).
func (s *Server) handleDisconnect(c *conn, err error) {
	for _, fn := range c.capabilityOrder {
		if f, ok := s.functions[fn]; ok {
			f.removeWorker(c)
		}
	}
	for _, j := range append([]*job(nil), c.jobs...) {
		s.requeueOrFail(c, j)
	}
	for _, j := range s.jobsByHandle {
		j.removeClient(c)
	}
	if c.ioThread != nil {
		c.ioThread.remove(c)
	}
	c.close(err)
}

// requeueOrFail re-queues a job whose worker just disconnected, counting
// retries up from zero the way job.c's gearman_server_job_queue does: a
// disconnect increments retries first, then drops the job (WORK_FAIL to
// every subscriber) only once retries reaches cfg.JobRetries. JobRetries
// of 0 means unlimited retries, matching real Gearman's default — a cap of
// zero is never checked.
func (s *Server) requeueOrFail(w *conn, j *job) {
	removeJobFromWorker(w, j)
	j.worker = nil
	if f, ok := s.functions[j.fn]; ok {
		f.running--
	}
	j.retries++
	if s.cfg.JobRetries > 0 && j.retries == s.cfg.JobRetries {
		for _, cl := range j.clients {
			cl.send(encodeBinary(rt.PT_WorkFail, []byte(j.handle)))
		}
		s.metrics.failed(j.fn)
		s.finishJobNoWorker(j)
		return
	}
	if f, ok := s.functions[j.fn]; ok {
		s.enqueueJob(f, j)
	}
}

func (s *Server) finishJobNoWorker(j *job) {
	if s.queue != nil && j.jobQueued {
		if err := s.queue.Done(j.fn, j.unique); err != nil {
			s.log(LogError, "queue done %s: %v", j.handle, err)
		}
	}
	s.freeJob(j)
}

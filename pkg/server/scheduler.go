package server

import rt "github.com/drawks/gearhulk/pkg/runtime"

// wakeWorkers walks fn's circular worker list, sending NOOP to sleeping
// workers that haven't already been woken, stopping after workerWakeup
// notifications (0 = unlimited), and leaving the head rotated past the
// last one notified so the next enqueue fans out to different workers.
func (s *Server) wakeWorkers(fn *function) {
	if len(fn.workers) == 0 {
		return
	}
	notified := 0
	n := len(fn.workers)
	start := fn.head
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		w := fn.workers[idx]
		if w.isSleeping && !w.isNoopSent {
			w.send(encodeBinary(rt.PT_Noop))
			w.isNoopSent = true
			notified++
			fn.head = (idx + 1) % n
			if s.cfg.WorkerWakeup > 0 && notified >= s.cfg.WorkerWakeup {
				break
			}
		}
	}
}

// enqueueJob appends j to its function's FIFO and fans out wakeups.
// Callers run on the single model goroutine, so no locking is needed.
func (s *Server) enqueueJob(fn *function, j *job) {
	s.wakeWorkers(fn)
	fn.push(j)
}

// firstRunnableCapability finds the first capability of w whose function
// has queued work.
func (s *Server) firstRunnableCapability(w *conn) (capIdx int, fn *function) {
	names := w.capabilityOrder
	for i, name := range names {
		f, ok := s.functions[name]
		if ok && f.jobCount() > 0 {
			return i, f
		}
	}
	return -1, nil
}

// grabJob implements the GRAB_JOB / GRAB_JOB_UNIQ assignment decision. It
// returns the job assigned to w, or nil if none is runnable right now.
func (s *Server) grabJob(w *conn) *job {
	w.isSleeping = false
	w.isNoopSent = false

	idx, fn := s.firstRunnableCapability(w)
	if fn == nil {
		return nil
	}
	if s.cfg.RoundRobin {
		// Rotate this capability to the end so the next GRAB picks a
		// different function first.
		names := w.capabilityOrder
		name := names[idx]
		copy(names[idx:], names[idx+1:])
		names[len(names)-1] = name
	}

	for {
		j := fn.popHighest()
		if j == nil {
			return nil
		}
		if j.ignoreJob {
			s.freeJob(j)
			continue
		}
		j.worker = w
		fn.running++
		w.jobs = append(w.jobs, j)
		return j
	}
}

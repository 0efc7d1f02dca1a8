package server

import (
	"time"

	cron "gopkg.in/robfig/cron.v2"
)

// cronTicker drives epoch-job eligibility checks off a cron.v2 schedule
// instead of a bespoke timer goroutine. It runs no other periodic work.
type cronTicker struct {
	s     *Server
	cron  *cron.Cron
	ticks chan int64
}

func newCronTicker(s *Server) *cronTicker {
	return &cronTicker{s: s, cron: cron.New(), ticks: make(chan int64, 1)}
}

func (t *cronTicker) Start() {
	t.cron.AddFunc("@every 1s", func() {
		select {
		case t.ticks <- time.Now().Unix():
		default:
			// a tick is already pending; the model goroutine will catch
			// up and this one second's worth of newly-eligible jobs waits
			// for the next tick.
		}
	})
	t.cron.Start()
}

func (t *cronTicker) Stop() {
	t.cron.Stop()
}

// releaseEpochJobs moves every deferred SUBMIT_JOB_EPOCH job across all
// functions whose eligibility time has passed into its priority FIFO and
// fans out worker wakeups for each one, exactly as an immediately-eligible
// submission would.
func (s *Server) releaseEpochJobs(now int64) {
	for _, f := range s.functions {
		for range f.releaseEligible(now) {
			s.wakeWorkers(f)
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/appscode/pat"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// webServer is the HTTP admin/monitoring surface, routed with the
// github.com/appscode/pat pattern matcher.
type webServer struct {
	s    *Server
	addr string
	srv  *http.Server
}

func newWebServer(s *Server, addr string) *webServer {
	return &webServer{s: s, addr: addr}
}

func (w *webServer) Start() {
	mux := pat.New()
	mux.Get("/status", http.HandlerFunc(w.handleStatus))
	if w.s.cfg.EnableMetrics {
		mux.Get("/metrics", promhttp.Handler())
	}
	w.srv = &http.Server{Addr: w.addr, Handler: mux}
	go func() {
		if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.s.log(LogError, "web server: %v", err)
		}
	}()
}

func (w *webServer) Stop() {
	if w.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.srv.Shutdown(ctx)
}

// webStatusFunction is one row of the JSON status payload, one per
// registered function.
type webStatusFunction struct {
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Running int    `json:"running"`
	Workers int    `json:"workers"`
}

// handleStatus runs on the HTTP server's own request goroutines, not the
// model goroutine, so it asks for a point-in-time snapshot through
// adminCh/a response channel instead of touching Server fields directly.
func (w *webServer) handleStatus(rw http.ResponseWriter, r *http.Request) {
	respCh := make(chan []webStatusFunction, 1)
	w.s.adminCh <- adminRequest{kind: adminStatusSnapshot, respCh: respCh}
	rows := <-respCh
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(rows)
}

// Package kujo serves the controller over HTTP: event streams, operator input, the journal and
// metrics.
package kujo

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rendo/ctl"
	"nyiyui.ca/hato/rendo/journal"
	"nyiyui.ca/hato/rendo/notify"
)

const (
	StreamData     = "data"
	StreamState    = "state"
	StreamFeedback = "feedback"
)

const (
	maxInput        = 4096
	defaultJournal  = 100
	forwardBuffered = 16
)

type Server struct {
	c    *ctl.Controller
	j    *journal.Journal
	s    *sse.Server
	mux  *http.ServeMux
	done chan struct{}
}

// NewServer starts forwarding c's events. j may be nil.
func NewServer(c *ctl.Controller, j *journal.Journal) *Server {
	s := &Server{
		c:    c,
		j:    j,
		s:    sse.New(),
		mux:  http.NewServeMux(),
		done: make(chan struct{}),
	}
	s.s.AutoReplay = false
	s.mux.HandleFunc("/events", s.s.ServeHTTP)
	s.mux.HandleFunc("/input", s.handleInput)
	s.mux.HandleFunc("/state", s.handleState)
	s.mux.HandleFunc("/data", s.handleData)
	s.mux.HandleFunc("/journal", s.handleJournal)
	s.mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	s.s.CreateStream(StreamData)
	s.s.CreateStream(StreamState)
	s.s.CreateStream(StreamFeedback)
	forward(s, StreamData, c.DataMux)
	forward(s, StreamState, c.StateMux)
	forward(s, StreamFeedback, c.FeedbackMux)
	return s
}

// forward publishes every event of m as JSON on stream until the Server is closed.
func forward[E any](s *Server, stream string, m *notify.Multiplexer[E]) {
	ch := make(chan E, forwardBuffered)
	m.Subscribe("kujo "+stream, ch)
	go func() {
		defer m.Unsubscribe(ch)
		for {
			select {
			case e := <-ch:
				data, err := json.Marshal(e)
				if err != nil {
					zap.S().Errorw("kujo: marshal json", "stream", stream, "err", err)
					continue
				}
				s.s.TryPublish(stream, &sse.Event{
					Data: data,
				})
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops forwarding and disconnects every event stream.
func (s *Server) Close() {
	close(s.done)
	s.s.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("kujo: write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleInput feeds the request body to the dispatch loop as keystrokes.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInput))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fb, err := s.c.Input(r.Context(), string(body))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if fb == nil {
		fb = []ctl.Feedback{}
	}
	writeJSON(w, http.StatusOK, fb)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.c.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	d, ok := s.c.DataMux.Current()
	if !ok {
		http.Error(w, "no station loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleJournal returns the newest entries first; ?limit=N (default 100, 0 for all).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.j == nil {
		http.Error(w, "no journal", http.StatusNotFound)
		return
	}
	limit := defaultJournal
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.j.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Package server exposes the newsletter control surface over HTTP: a
// server-rendered dashboard, the JSON status endpoint the countdown
// reconciler polls, and start/stop controls for the scheduler.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"Newsletter-Bot/internal/mail"
	"Newsletter-Bot/internal/scheduler"
	"Newsletter-Bot/internal/status"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Server wires HTTP routes to the scheduler.
type Server struct {
	appCtx    context.Context
	scheduler *scheduler.Scheduler
	tracker   *status.Tracker
	router    chi.Router
}

// startRequest is the body of POST /api/start.
type startRequest struct {
	Topic     string `json:"topic"`
	Recipient string `json:"recipient"`
}

// apiError is the JSON error envelope.
type apiError struct {
	Error string `json:"error"`
}

// New creates the HTTP server. appCtx outlives individual requests and
// parents the scheduler's generation loops; request contexts would cancel
// the loop as soon as the response is written.
func New(appCtx context.Context, sched *scheduler.Scheduler, tracker *status.Tracker) *Server {
	s := &Server{
		appCtx:    appCtx,
		scheduler: sched,
		tracker:   tracker,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleIndex renders the dashboard with the current snapshot embedded,
// so the page shows a countdown immediately without waiting for a poll.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.scheduler.Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderIndex(w, snap); err != nil {
		log.WithError(err).Error("Failed to render dashboard")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the authoritative scheduler snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

// handleHistory returns recent newsletter runs.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeJSON(w, http.StatusOK, []status.RunRecord{})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.RunHistory())
}

// handleStart begins periodic generation for a topic/recipient pair.
// Accepts JSON or form-encoded bodies.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "topic is required"})
		return
	}
	if err := mail.ValidateAddress(req.Recipient); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "recipient is not a valid email address"})
		return
	}

	// The generation loop must survive this request.
	if err := s.scheduler.Start(s.appCtx, req.Topic, req.Recipient); err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	log.WithFields(log.Fields{
		"topic":     req.Topic,
		"recipient": req.Recipient,
	}).Info("Newsletter schedule started via API")

	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

// handleStop halts the current schedule. Stopping an idle scheduler is
// not an error.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	log.Info("Newsletter schedule stopped via API")
	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

// decodeStartRequest reads the start parameters from a JSON or form body.
func decodeStartRequest(r *http.Request) (startRequest, error) {
	var req startRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64*1024)).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Topic = r.PostFormValue("topic")
	req.Recipient = r.PostFormValue("recipient")
	return req, nil
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode JSON response")
	}
}

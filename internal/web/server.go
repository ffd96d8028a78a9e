// Package web provides the HTTP status page, JSON status, metrics and the
// command endpoints for the irrigation controller.
package web

import (
	"context"
	"encoding/json"
	"mime"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/status"
)

// Submitter queues a command for the run loop. It returns false when the
// queue is full.
type Submitter func(logic.Command) bool

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	submit     Submitter
}

// New creates a Server that reads state from the given tracker. submit and
// metrics may be nil, which disables the command and metrics endpoints.
func New(addr string, tracker *status.Tracker, submit Submitter, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, submit: submit}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if submit != nil {
		r.HandleFunc("/api/{command:mode|threshold|pump}/{value}", s.handleCommand).Methods(http.MethodPost)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// CommandResponse is the body returned by the command endpoints.
type CommandResponse struct {
	Accepted bool   `json:"accepted"`
	Command  string `json:"command,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cmd, err := mqtt.ParseCommand(vars["command"], []byte(vars["value"]))
	if err != nil {
		writeCommandResponse(w, http.StatusBadRequest, CommandResponse{Error: err.Error()})
		return
	}
	if !s.submit(cmd) {
		writeCommandResponse(w, http.StatusServiceUnavailable, CommandResponse{Command: string(cmd.Type), Error: "command queue full"})
		return
	}
	// Buttons on the status page go back to it.
	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	// Applied on the next control step; the outcome shows up in /index.json.
	writeCommandResponse(w, http.StatusAccepted, CommandResponse{Accepted: true, Command: string(cmd.Type)})
}

func isFormPost(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/x-www-form-urlencoded"
}

func writeCommandResponse(w http.ResponseWriter, code int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

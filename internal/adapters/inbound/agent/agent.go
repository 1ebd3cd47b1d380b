// Package agent serves a build node's workspace to a remote issuegate
// controller over HTTP. The agent is read-only and never exposes anything
// outside its roots.
package agent

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/domain"
)

// RequestObserver counts served requests.
type RequestObserver interface {
	ObserveAgentRequest(op string, code int)
}

// Options configures a Server.
type Options struct {
	Node  string
	Roots []string
	// Token enables bearer authentication when set.
	Token   string
	Metrics RequestObserver
	// MetricsHandler is mounted unauthenticated at /metrics when set.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// Server answers the workspace requests of a Remote workspace. Paths
// outside the roots, including those reached through symbolic links, are
// reported as missing.
type Server struct {
	ws    *workspace.Confined
	opts  Options
	roots []string
}

func New(ws domain.Workspace, opts Options) *Server {
	roots := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		roots = append(roots, cleanPath(r))
	}
	return &Server{ws: workspace.Confine(ws, roots...), opts: opts, roots: roots}
}

// Handler returns the agent's HTTP handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/roots", s.observe("roots", s.handleRoots))
	api.HandleFunc("GET /v1/stat", s.observe("stat", s.handleStat))
	api.HandleFunc("GET /v1/file", s.observe("file", s.handleFile))
	api.HandleFunc("GET /v1/dir", s.observe("dir", s.handleDir))

	mux := http.NewServeMux()
	mux.Handle("/v1/", s.authMiddleware(api))
	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}
	return mux
}

func (s *Server) handleRoots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, workspace.Roots{Node: s.opts.Node, Roots: s.roots})
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requestPath(w, r)
	if !ok {
		return
	}
	st, err := s.ws.Stat(r.Context(), p)
	if err != nil {
		s.fail(w, "stat", p, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requestPath(w, r)
	if !ok {
		return
	}
	content, err := s.ws.ReadFile(r.Context(), p)
	if err != nil {
		s.fail(w, "file", p, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (s *Server) handleDir(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requestPath(w, r)
	if !ok {
		return
	}
	entries, err := s.ws.ReadDir(r.Context(), p)
	if err != nil {
		s.fail(w, "dir", p, err)
		return
	}
	if entries == nil {
		entries = []domain.DirEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) requestPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		sendJSONError(w, http.StatusBadRequest, "missing path parameter")
		return "", false
	}
	return cleanPath(raw), true
}

func (s *Server) fail(w http.ResponseWriter, op, p string, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, fs.ErrPermission):
		sendJSONError(w, http.StatusForbidden, "permission denied")
	default:
		s.opts.Logger.Warn().Str("op", op).Str("path", p).Err(err).Msg("Workspace request failed")
		sendJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// authMiddleware validates the bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.opts.Token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || scheme != "Bearer" || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
			s.opts.Logger.Warn().Str("remote_addr", r.RemoteAddr).Str("path", r.URL.Path).Msg("Unauthorized agent request")
			sendJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(op string, next http.HandlerFunc) http.HandlerFunc {
	if s.opts.Metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		s.opts.Metrics.ObserveAgentRequest(op, sw.code)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// cleanPath converts separators and removes dot segments.
func cleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Package httpapi exposes the analysis pipeline and the trend to CI servers.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

const maxRequestBody = 1 << 20

// Pipeline runs the analysis of one build.
type Pipeline interface {
	Run(ctx context.Context, bc application.BuildContext) (*domain.AnalysisResult, error)
}

// JobLister lists the jobs with at least one attached result.
type JobLister interface {
	Jobs(ctx context.Context) ([]string, error)
}

// buildDeleter is implemented by content stores that can drop a build's copies.
type buildDeleter interface {
	DeleteBuild(ctx context.Context, build domain.BuildRef) error
}

// Options wires the collaborators of a Server.
type Options struct {
	Pipeline Pipeline
	Trend    domain.TrendStore
	Content  domain.ContentStore
	// Jobs enables GET /api/v1/jobs. Optional.
	Jobs JobLister
	// Config is used for builds that do not send their own.
	Config         domain.ProjectConfig
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// Server is the controller API. Builds of different jobs run concurrently.
// Identical concurrent requests for the same build share one pipeline run;
// a different request for a build that is still running is a conflict.
type Server struct {
	opts Options

	mu       sync.Mutex
	inflight map[string]*recording
}

func New(opts Options) *Server {
	return &Server{opts: opts, inflight: map[string]*recording{}}
}

// recording is a pipeline run shared by the requests that started or
// joined it. done is closed once result and err are set.
type recording struct {
	digest string
	done   chan struct{}
	result *domain.AnalysisResult
	err    error
}

// AgentRef points at a workspace agent.
type AgentRef struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// RecordRequest is the body of POST /api/v1/jobs/{job}/builds.
type RecordRequest struct {
	Number int                   `json:"number"`
	Roots  []string              `json:"roots,omitempty"`
	Agent  *AgentRef             `json:"agent,omitempty"`
	Config *domain.ProjectConfig `json:"config,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs", s.handleJobs)
	mux.HandleFunc("POST /api/v1/jobs/{job}/builds", s.handleRecord)
	mux.HandleFunc("GET /api/v1/jobs/{job}", s.handleJob)
	mux.HandleFunc("GET /api/v1/jobs/{job}/trend", s.handleTrend)
	mux.HandleFunc("GET /api/v1/jobs/{job}/builds/{number}", s.handleBuild)
	mux.HandleFunc("DELETE /api/v1/jobs/{job}/builds/{number}", s.handleDelete)
	mux.HandleFunc("GET /api/v1/jobs/{job}/builds/{number}/source/{fingerprint}", s.handleSource)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}
	return mux
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Number <= 0 {
		sendJSONError(w, http.StatusBadRequest, "number must be positive")
		return
	}

	bc := application.BuildContext{
		Build:  domain.BuildRef{Job: r.PathValue("job"), Number: req.Number},
		Config: s.opts.Config,
	}
	if req.Config != nil {
		bc.Config = *req.Config
	}
	switch {
	case req.Agent != nil && req.Agent.URL != "":
		remote := workspace.NewRemote(req.Agent.URL, workspace.WithToken(req.Agent.Token))
		bc.Workspace = workspace.NewRemoteProvider(remote)
	case len(req.Roots) > 0:
		bc.Workspace = workspace.NewStaticProvider(workspace.NewLocal(), req.Roots...)
		bc.CommitPath = req.Roots[0]
	default:
		sendJSONError(w, http.StatusBadRequest, "either roots or agent is required")
		return
	}

	digest, err := requestDigest(req)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := s.join(r.Context(), bc, digest)
	if !ok {
		sendJSONError(w, http.StatusConflict, fmt.Sprintf("build %s is already being recorded with a different request", bc.Build))
		return
	}

	select {
	case <-rec.done:
	case <-r.Context().Done():
		s.opts.Logger.Debug().Str("build", bc.Build.String()).Msg("Client left, build keeps running")
		sendJSONError(w, http.StatusServiceUnavailable, r.Context().Err().Error())
		return
	}
	if err := rec.err; err != nil {
		var pe *domain.PipelineError
		switch {
		case errors.As(err, &pe):
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": pe.Error(), "stage": pe.Stage})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		default:
			sendJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rec.result)
}

// join returns the running recording of bc's build or starts one. The run
// does not depend on the request that started it: it finishes and attaches
// its result even if every client disconnects.
func (s *Server) join(ctx context.Context, bc application.BuildContext, digest string) (*recording, bool) {
	key := bc.Build.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.inflight[key]; ok {
		if rec.digest != digest {
			return nil, false
		}
		s.opts.Logger.Debug().Str("build", key).Msg("Joined running build")
		return rec, true
	}

	rec := &recording{digest: digest, done: make(chan struct{})}
	s.inflight[key] = rec
	runCtx := context.WithoutCancel(ctx)
	go func() {
		rec.result, rec.err = s.opts.Pipeline.Run(runCtx, bc)

		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		close(rec.done)
	}()
	return rec, true
}

// requestDigest identifies the content of a record request.
func requestDigest(req RecordRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.opts.Jobs == nil {
		sendJSONError(w, http.StatusNotImplemented, "job listing is not available")
		return
	}
	jobs, err := s.opts.Jobs.Jobs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if jobs == nil {
		jobs = []string{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")
	action, err := domain.NewJobAction(job, s.opts.Trend).LastAction(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if action == nil {
		sendJSONError(w, http.StatusNotFound, fmt.Sprintf("no results for job %s", job))
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	actions, err := domain.NewJobAction(r.PathValue("job"), s.opts.Trend).Trend(r.Context(), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	summaries := make([]domain.ActionSummary, 0, len(actions))
	for _, a := range actions {
		summaries = append(summaries, a.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	build, ok := buildRef(w, r)
	if !ok {
		return
	}
	action, err := s.opts.Trend.Action(r.Context(), build)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if action == nil {
		sendJSONError(w, http.StatusNotFound, fmt.Sprintf("no result for %s", build))
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// handleDelete drops the result of a build and, if the content store
// supports it, its affected-file copies.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	build, ok := buildRef(w, r)
	if !ok {
		return
	}
	if err := s.opts.Trend.DeleteBuild(r.Context(), build); err != nil {
		s.internalError(w, err)
		return
	}
	if d, ok := s.opts.Content.(buildDeleter); ok {
		if err := d.DeleteBuild(r.Context(), build); err != nil {
			s.internalError(w, err)
			return
		}
	}
	s.opts.Logger.Info().Str("build", build.String()).Msg("Build deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	build, ok := buildRef(w, r)
	if !ok {
		return
	}
	key := domain.ContentKey{Build: build, Fingerprint: r.PathValue("fingerprint")}
	content, err := s.opts.Content.Get(r.Context(), key)
	if errors.Is(err, domain.ErrContentNotFound) {
		sendJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.opts.Logger.Error().Err(err).Msg("Request failed")
	sendJSONError(w, http.StatusInternalServerError, err.Error())
}

func buildRef(w http.ResponseWriter, r *http.Request) (domain.BuildRef, bool) {
	n, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || n <= 0 {
		sendJSONError(w, http.StatusBadRequest, "build number must be a positive integer")
		return domain.BuildRef{}, false
	}
	return domain.BuildRef{Job: r.PathValue("job"), Number: n}, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

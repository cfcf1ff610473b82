package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/metrics"
	healthuc "github.com/kailas-cloud/esre-console/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Server implements the console HTTP API.
type Server struct {
	projects      ProjectService
	judgements    JudgementService
	judge         JudgeService
	usage         UsageService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates a new Server. judge may be nil when no AI judge is configured.
func NewServer(
	projects ProjectService,
	judgements JudgementService,
	judge JudgeService,
	usage UsageService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		projects:      projects,
		judgements:    judgements,
		judge:         judge,
		usage:         usage,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Mount registers every console route on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/api/judge/usage", s.JudgeUsage)

	r.Route("/api/projects", func(r gochi.Router) {
		r.Get("/", s.ListProjects)
		r.Post("/", s.CreateProject)

		r.Route("/{project}", func(r gochi.Router) {
			r.Get("/", s.GetProject)
			r.Put("/", s.UpdateProject)
			r.Delete("/", s.DeleteProject)
			r.Get("/context", s.GetContext)

			r.Route("/scenarios", func(r gochi.Router) {
				mountRecords(s, r, s.projects.Scenarios(), "scenario")
				r.Route("/{scenario}/judgements", func(r gochi.Router) {
					r.Post("/_search", s.SearchJudgements)
					r.Post("/_ai", s.RunJudge)
					r.Patch("/{index}/{doc}", s.ChangeRating)
					r.Post("/{index}/{doc}", s.CommitRating)
					r.Delete("/{index}/{doc}", s.ClearRating)
				})
			})
			r.Route("/strategies", func(r gochi.Router) {
				mountRecords(s, r, s.projects.Strategies(), "id")
			})
			r.Route("/displays", func(r gochi.Router) {
				mountRecords(s, r, s.projects.Displays(), "id")
			})
			r.Route("/evaluations", func(r gochi.Router) {
				r.Post("/_run", s.RunEvaluation)
				mountRecords(s, r, s.projects.Evaluations(), "id")
			})
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

// ListProjects handles GET /api/projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	page, err := s.projects.ListProjects(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateProject handles POST /api/projects.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var body domproject.Project
	if !s.decode(w, r, &body) {
		return
	}
	p, err := s.projects.CreateProject(r.Context(), body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{project}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.GetProject(r.Context(), param(r, "project"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/projects/{project}.
func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var body domproject.Project
	if !s.decode(w, r, &body) {
		return
	}
	id := param(r, "project")
	p, err := s.projects.UpdateProject(r.Context(), id, body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	// The rating scale may have changed.
	s.judgements.ForgetProject(id)
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{project}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := param(r, "project")
	if err := s.projects.DeleteProject(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.judgements.ForgetProject(id)
	w.WriteHeader(http.StatusNoContent)
}

// GetContext handles GET /api/projects/{project}/context.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request) {
	pc, err := s.projects.Context(r.Context(), param(r, "project"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{
		Project:   pc.Project,
		Displays:  pc.Displays.Map(),
		Scenarios: pc.Scenarios,
	})
}

// RunEvaluation handles POST /api/projects/{project}/evaluations/_run.
func (s *Server) RunEvaluation(w http.ResponseWriter, r *http.Request) {
	var body domproject.RunRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, err := s.projects.Run(r.Context(), param(r, "project"), body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"_id": id})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// decodeOptional is decode for bodies that may be empty.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// param returns an unescaped URL parameter.
func param(r *http.Request, name string) string {
	raw := gochi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

type contextResponse struct {
	Project   domproject.Project         `json:"project"`
	Displays  map[string]display.Display `json:"displays"`
	Scenarios []domproject.Scenario      `json:"scenarios"`
}

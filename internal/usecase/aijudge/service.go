package aijudge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/esre-console/internal/domain"
	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domjudgement "github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// Request selects the documents to rate.
type Request struct {
	ProjectID  string
	ScenarioID string
	Params     query.Params
	// Overwrite re-rates documents that already carry a rating. Human
	// ratings are never overwritten.
	Overwrite bool
}

// Status is the per-document outcome of a run.
type Status string

// Per-document outcomes.
const (
	StatusRated     Status = "rated"
	StatusSkipped   Status = "skipped"
	StatusNoDisplay Status = "no_display"
	StatusFailed    Status = "failed"
)

// DocResult reports what happened to one document.
type DocResult struct {
	Index  string `json:"index"`
	DocID  string `json:"doc_id"`
	Status Status `json:"status"`
	Rating *int   `json:"rating,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Model   string         `json:"model"`
	Counts  map[Status]int `json:"counts"`
	Results []DocResult    `json:"results"`
}

// Options tune throughput.
type Options struct {
	RatePerSec  float64
	Burst       int
	Concurrency int
	// Budget is optional.
	Budget Budget
	// Ratings routes writes through the interactive rating controllers;
	// nil writes straight to the backend.
	Ratings Ratings
}

// Service rates judgement candidates with a model judge.
type Service struct {
	judge     Judge
	backend   Backend
	projects  Projects
	scenarios Scenarios
	displays  Displays
	limiter   *rate.Limiter
	workers   int
	budget    Budget
	ratings   Ratings
	logger    *zap.Logger
}

// New creates an AI judge service. judge may be nil, in which case Run
// returns domain.ErrJudgeDisabled.
func New(
	judge Judge,
	backend Backend,
	projects Projects,
	scenarios Scenarios,
	displays Displays,
	opts Options,
	logger *zap.Logger,
) *Service {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		judge:     judge,
		backend:   backend,
		projects:  projects,
		scenarios: scenarios,
		displays:  displays,
		limiter:   rate.NewLimiter(limit, burst),
		workers:   workers,
		budget:    opts.Budget,
		ratings:   opts.Ratings,
		logger:    logger,
	}
}

// Enabled reports whether a judge is configured.
func (s *Service) Enabled() bool { return s.judge != nil }

// Run rates every hit of one judgement search page. Per-document failures
// are reported, not returned; only setup failures abort the run.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	if s.judge == nil {
		return Report{}, domain.ErrJudgeDisabled
	}
	if req.ProjectID == "" {
		return Report{}, domain.Validationf("project id is required")
	}
	if req.ScenarioID == "" {
		return Report{}, domain.Validationf("scenario id is required")
	}
	if s.budget != nil {
		if err := s.budget.Check(ctx); err != nil {
			return Report{}, err
		}
	}

	var (
		proj domproject.Project
		sc   domproject.Scenario
		set  *domdisplay.Set
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		proj, err = s.projects.GetProject(gctx, req.ProjectID)
		return err
	})
	g.Go(func() (err error) {
		sc, err = s.scenarios.Get(gctx, req.ProjectID, req.ScenarioID)
		return err
	})
	g.Go(func() (err error) {
		set, err = s.displays.Get(gctx, req.ProjectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("load project context: %w", err)
	}

	params := req.Params
	if params.IndexPattern == "" {
		params.IndexPattern = proj.IndexPattern
	}
	if !req.Overwrite {
		params = params.WithFilter(query.FilterUnrated)
	}
	if err := params.Validate(); err != nil {
		return Report{}, err
	}

	res, err := s.backend.SearchJudgements(ctx, req.ProjectID, req.ScenarioID, params.Request(set.SourceIncludes()))
	if err != nil {
		return Report{}, fmt.Errorf("search judgements: %w", err)
	}

	results := make([]DocResult, len(res.Hits))
	intent := Intent(sc)
	scale := proj.Scale()

	work, wctx := errgroup.WithContext(ctx)
	work.SetLimit(s.workers)
	for i := range res.Hits {
		h := res.Hits[i]
		work.Go(func() error {
			results[i] = s.rateOne(wctx, req, h, set, intent, scale)
			// Only a dead context stops the run.
			return wctx.Err()
		})
	}
	if err := work.Wait(); err != nil {
		return Report{}, fmt.Errorf("judge run: %w", err)
	}

	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	s.logger.Info("ai judge run finished",
		zap.String("project", req.ProjectID),
		zap.String("scenario", req.ScenarioID),
		zap.String("model", s.judge.Model()),
		zap.Int("rated", counts[StatusRated]),
		zap.Int("failed", counts[StatusFailed]),
	)
	return Report{Model: s.judge.Model(), Counts: counts, Results: results}, nil
}

func (s *Service) rateOne(
	ctx context.Context,
	req Request,
	h domjudgement.Hit,
	set *domdisplay.Set,
	intent string,
	scale rating.Scale,
) DocResult {
	out := DocResult{Index: h.Doc.Index(), DocID: h.Doc.ID()}

	if h.Rating.IsSet() && (!req.Overwrite || !h.ByAI()) {
		out.Status = StatusSkipped
		return out
	}

	rendered, err := set.Render(&h.Doc)
	if err != nil {
		out.Status = StatusNoDisplay
		return out
	}

	if err := s.limiter.Wait(ctx); err != nil {
		out.Status, out.Error = StatusFailed, err.Error()
		return out
	}
	if s.budget != nil {
		if err := s.budget.Check(ctx); err != nil {
			out.Status, out.Error = StatusFailed, err.Error()
			return out
		}
	}

	v, err := s.judge.Rate(ctx, domjudgement.Prompt{Intent: intent, Document: rendered, Scale: scale})
	if err != nil {
		s.logger.Warn("ai judge rating failed",
			zap.String("index", out.Index),
			zap.String("doc_id", out.DocID),
			zap.Error(err),
		)
		out.Status, out.Error = StatusFailed, err.Error()
		return out
	}
	if s.budget != nil {
		s.budget.Record(int64(v.PromptTokens + v.CompletionTokens))
	}

	key := rating.Key{Project: req.ProjectID, Scenario: req.ScenarioID, Index: out.Index, DocID: out.DocID}
	j := domjudgement.New(key, v.Rating, domjudgement.AIAuthor(s.judge.Model()))
	outcome, err := s.write(ctx, key, j)
	if err != nil {
		out.Status, out.Error = StatusFailed, err.Error()
		return out
	}
	if outcome == rating.OutcomeSkipped {
		out.Status = StatusSkipped
		return out
	}

	n := v.Rating
	out.Status, out.Rating, out.Reason = StatusRated, &n, v.Reason
	return out
}

// write upserts j, through the rating controllers when they are wired.
func (s *Service) write(ctx context.Context, key rating.Key, j domjudgement.Judgement) (rating.Outcome, error) {
	upsert := func(ctx context.Context) error {
		return s.backend.UpsertJudgement(ctx, key.Project, j)
	}
	if s.ratings == nil {
		if err := upsert(ctx); err != nil {
			return rating.OutcomeFailed, err
		}
		return rating.OutcomeCommitted, nil
	}
	return s.ratings.Apply(ctx, key, j.Rating, upsert)
}

// Intent describes a scenario for the judge: its name and its parameter
// values in key order.
func Intent(sc domproject.Scenario) string {
	var b strings.Builder
	b.WriteString(sc.Name)
	keys := make([]string, 0, len(sc.Values))
	for k := range sc.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, sc.Values[k])
	}
	return b.String()
}

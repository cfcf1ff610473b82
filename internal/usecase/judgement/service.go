package judgement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/esre-console/internal/domain"
	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domjudgement "github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// DefaultMaxControllers bounds the number of tracked documents before settled ones are dropped.
const DefaultMaxControllers = 50000

// SearchRequest selects judgement candidates for one scenario.
type SearchRequest struct {
	ProjectID  string
	ScenarioID string
	Params     query.Params
}

// HitView is a search hit with its rendered display and live rating state.
type HitView struct {
	Hit      domjudgement.Hit
	Rendered string
	// HasDisplay is false when no display pattern matches the hit's index.
	HasDisplay bool
	Rating     rating.Snapshot
}

// SearchResult is one page of judgement candidates.
type SearchResult struct {
	Hits       []HitView
	Total      int
	TotalLabel string
	Filter     query.Filter
	Sort       query.Sort
}

// Service runs judgement searches and drives per-document rating controllers.
type Service struct {
	backend  Backend
	projects Projects
	displays Displays
	writes   *prometheus.CounterVec
	logger   *zap.Logger
	reg      *registry

	mu     sync.Mutex
	scales map[string]rating.Scale
}

// New creates a judgement service.
// writes is a counter vec with labels "action" and "outcome", passed explicitly; may be nil.
func New(
	backend Backend,
	projects Projects,
	displays Displays,
	writes *prometheus.CounterVec,
	logger *zap.Logger,
) *Service {
	s := &Service{
		backend:  backend,
		projects: projects,
		displays: displays,
		writes:   writes,
		logger:   logger,
		scales:   make(map[string]rating.Scale),
	}
	s.reg = newRegistry(backend, rating.NotifierFunc(s.notify), DefaultMaxControllers)
	return s
}

// Search loads the project and display set, queries the backend and
// seeds a rating controller for every hit.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.ProjectID == "" {
		return SearchResult{}, domain.Validationf("project id is required")
	}
	if req.ScenarioID == "" {
		return SearchResult{}, domain.Validationf("scenario id is required")
	}
	// An empty index pattern falls back to the project's own.
	check := req.Params
	if check.IndexPattern == "" {
		check.IndexPattern = "*"
	}
	if err := check.Validate(); err != nil {
		return SearchResult{}, err
	}

	var (
		proj domproject.Project
		set  *domdisplay.Set
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.projects.GetProject(gctx, req.ProjectID)
		proj = p
		return err
	})
	g.Go(func() error {
		ds, err := s.displays.Get(gctx, req.ProjectID)
		set = ds
		return err
	})
	if err := g.Wait(); err != nil {
		return SearchResult{}, fmt.Errorf("load project context: %w", err)
	}
	s.rememberScale(req.ProjectID, proj.Scale())

	params := req.Params
	if params.IndexPattern == "" {
		params.IndexPattern = proj.IndexPattern
	}

	res, err := s.backend.SearchJudgements(ctx, req.ProjectID, req.ScenarioID, params.Request(set.SourceIncludes()))
	if err != nil {
		return SearchResult{}, fmt.Errorf("search judgements: %w", err)
	}

	hits := make([]HitView, 0, len(res.Hits))
	for _, h := range res.Hits {
		key := rating.Key{
			Project:  req.ProjectID,
			Scenario: req.ScenarioID,
			Index:    h.Doc.Index(),
			DocID:    h.Doc.ID(),
		}
		ctrl, release := s.reg.seed(key, h.Rating)
		view := HitView{Hit: h, Rating: ctrl.Snapshot()}
		release()

		rendered, err := set.Render(&h.Doc)
		switch {
		case err == nil:
			view.Rendered, view.HasDisplay = rendered, true
		case errors.Is(err, domain.ErrNoDisplay):
		default:
			return SearchResult{}, fmt.Errorf("render hit %s: %w", key, err)
		}
		hits = append(hits, view)
	}

	return SearchResult{
		Hits:       hits,
		Total:      res.Total,
		TotalLabel: query.FormatTotal(res.Total),
		Filter:     params.Filter(),
		Sort:       params.Sort(),
	}, nil
}

// Change moves the displayed rating of a document without writing it.
func (s *Service) Change(ctx context.Context, key rating.Key, n int) (rating.Snapshot, error) {
	if err := s.checkRating(ctx, key, n); err != nil {
		return rating.Snapshot{}, err
	}
	ctrl, release := s.reg.get(key)
	defer release()
	ctrl.Change(n)
	return ctrl.Snapshot(), nil
}

// Commit writes the displayed rating of a document. When n is non-nil the
// displayed value is first moved to *n. The write outlives ctx cancellation
// so that a disconnecting client cannot strand the controller.
func (s *Service) Commit(ctx context.Context, key rating.Key, n *int) (rating.Outcome, rating.Snapshot, error) {
	if err := key.Validate(); err != nil {
		return "", rating.Snapshot{}, err
	}
	ctrl, release := s.reg.get(key)
	defer release()
	if n != nil {
		if err := s.checkRating(ctx, key, *n); err != nil {
			return "", rating.Snapshot{}, err
		}
		ctrl.Change(*n)
	}

	outcome, err := ctrl.Commit(context.WithoutCancel(ctx))
	s.countWrite("commit", outcome)
	return outcome, ctrl.Snapshot(), err
}

// Clear removes the rating of a document.
func (s *Service) Clear(ctx context.Context, key rating.Key) (rating.Outcome, rating.Snapshot, error) {
	if err := key.Validate(); err != nil {
		return "", rating.Snapshot{}, err
	}
	ctrl, release := s.reg.get(key)
	defer release()

	outcome, err := ctrl.Clear(context.WithoutCancel(ctx))
	s.countWrite("clear", outcome)
	return outcome, ctrl.Snapshot(), err
}

// Apply runs an automated rating write through the document's controller,
// so it is serialized with human writes. A document a person is editing
// is left alone and reported as OutcomeSkipped.
func (s *Service) Apply(
	ctx context.Context,
	key rating.Key,
	n int,
	write func(ctx context.Context) error,
) (rating.Outcome, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	ctrl, release := s.reg.get(key)
	defer release()

	outcome, err := ctrl.Apply(context.WithoutCancel(ctx), n, write)
	s.countWrite("apply", outcome)
	return outcome, err
}

// Snapshot returns the rating state of a tracked document.
func (s *Service) Snapshot(key rating.Key) (rating.Snapshot, error) {
	ctrl, ok := s.reg.lookup(key)
	if !ok {
		return rating.Snapshot{}, fmt.Errorf("rating %s: %w", key, domain.ErrNotFound)
	}
	return ctrl.Snapshot(), nil
}

// Scale returns the rating scale of a project.
func (s *Service) Scale(ctx context.Context, projectID string) (rating.Scale, error) {
	s.mu.Lock()
	sc, ok := s.scales[projectID]
	s.mu.Unlock()
	if ok {
		return sc, nil
	}

	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return rating.Scale{}, fmt.Errorf("load project: %w", err)
	}
	sc = p.Scale()
	s.rememberScale(projectID, sc)
	return sc, nil
}

// ForgetProject drops the cached scale of a project after it changes.
func (s *Service) ForgetProject(projectID string) {
	s.mu.Lock()
	delete(s.scales, projectID)
	s.mu.Unlock()
}

func (s *Service) checkRating(ctx context.Context, key rating.Key, n int) error {
	if err := key.Validate(); err != nil {
		return err
	}
	sc, err := s.Scale(ctx, key.Project)
	if err != nil {
		return err
	}
	if err := sc.Check(n); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func (s *Service) rememberScale(projectID string, sc rating.Scale) {
	s.mu.Lock()
	s.scales[projectID] = sc
	s.mu.Unlock()
}

func (s *Service) countWrite(action string, outcome rating.Outcome) {
	if s.writes != nil && outcome != "" {
		s.writes.WithLabelValues(action, string(outcome)).Inc()
	}
}

// notify logs a failed rating write after its rollback.
func (s *Service) notify(n rating.Notification) {
	s.logger.Warn("rating write failed",
		zap.String("key", n.Key.String()),
		zap.String("op", string(n.Op)),
		zap.Stringer("attempted", n.Attempted),
		zap.Stringer("rolled_back_to", n.RolledBack),
		zap.Error(n.Err),
	)
}

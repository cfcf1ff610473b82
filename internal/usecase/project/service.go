package project

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
)

// Context is everything the judgement view needs about a project.
type Context struct {
	Project   domproject.Project
	Displays  *domdisplay.Set
	Scenarios []domproject.Scenario
}

// Service handles project CRUD, project-scoped records and evaluation runs.
type Service struct {
	projects Records[domproject.Project]
	runner   Runner
	displays DisplayCache

	scenarios   *Resource[domproject.Scenario]
	strategies  *Resource[domproject.Strategy]
	displayRecs *Resource[domdisplay.Display]
	evaluations *Resource[domproject.Evaluation]
}

// New creates a project service.
func New(b Backend, displays DisplayCache) *Service {
	s := &Service{projects: b.Projects, runner: b.Runner, displays: displays}

	s.scenarios = &Resource[domproject.Scenario]{
		name: "scenarios",
		open: b.Scenarios,
		validate: func(ctx context.Context, projectID string, sc *domproject.Scenario) error {
			p, err := s.GetProject(ctx, projectID)
			if err != nil {
				return err
			}
			return sc.Validate(&p)
		},
		stamp: func(sc *domproject.Scenario, projectID, id string) {
			sc.ProjectID = projectID
			if id != "" {
				sc.ID = id
			}
		},
	}
	s.strategies = &Resource[domproject.Strategy]{
		name: "strategies",
		open: b.Strategies,
		validate: func(_ context.Context, _ string, st *domproject.Strategy) error {
			return st.Validate()
		},
		stamp: func(st *domproject.Strategy, projectID, id string) {
			st.ProjectID = projectID
			if id != "" {
				st.ID = id
			}
		},
	}
	s.displayRecs = &Resource[domdisplay.Display]{
		name: "displays",
		open: b.Displays,
		validate: func(_ context.Context, _ string, d *domdisplay.Display) error {
			return d.Validate()
		},
		stamp: func(d *domdisplay.Display, projectID, id string) {
			d.ProjectID = projectID
			if id != "" {
				d.ID = id
			}
		},
		changed: displays.Invalidate,
	}
	s.evaluations = &Resource[domproject.Evaluation]{
		name: "evaluations",
		open: b.Evaluations,
		stamp: func(e *domproject.Evaluation, projectID, id string) {
			e.ProjectID = projectID
			if id != "" {
				e.ID = id
			}
		},
	}
	return s
}

// Scenarios returns the scenario resource.
func (s *Service) Scenarios() *Resource[domproject.Scenario] { return s.scenarios }

// Strategies returns the strategy resource.
func (s *Service) Strategies() *Resource[domproject.Strategy] { return s.strategies }

// Displays returns the display resource. Writes invalidate the display cache.
func (s *Service) Displays() *Resource[domdisplay.Display] { return s.displayRecs }

// Evaluations returns the evaluation resource.
func (s *Service) Evaluations() *Resource[domproject.Evaluation] { return s.evaluations }

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) (domproject.Page[domproject.Project], error) {
	page, err := s.projects.List(ctx)
	if err != nil {
		return domproject.Page[domproject.Project]{}, fmt.Errorf("list projects: %w", err)
	}
	return page, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id string) (domproject.Project, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return domproject.Project{}, fmt.Errorf("get project %q: %w", id, err)
	}
	return p, nil
}

// CreateProject validates and stores a new project.
func (s *Service) CreateProject(ctx context.Context, p domproject.Project) (domproject.Project, error) {
	if err := p.Validate(); err != nil {
		return domproject.Project{}, err
	}
	p.ID = ""
	id, err := s.projects.Create(ctx, p)
	if err != nil {
		return domproject.Project{}, fmt.Errorf("create project: %w", err)
	}
	p.ID = id
	return p, nil
}

// UpdateProject validates and replaces a project.
func (s *Service) UpdateProject(ctx context.Context, id string, p domproject.Project) (domproject.Project, error) {
	if err := p.Validate(); err != nil {
		return domproject.Project{}, err
	}
	p.ID = id
	if err := s.projects.Update(ctx, id, p); err != nil {
		return domproject.Project{}, fmt.Errorf("update project %q: %w", id, err)
	}
	return p, nil
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project %q: %w", id, err)
	}
	s.displays.Invalidate(ctx, id)
	return nil
}

// Context loads the project, its display set and its scenarios concurrently.
func (s *Service) Context(ctx context.Context, projectID string) (Context, error) {
	var out Context
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.GetProject(gctx, projectID)
		out.Project = p
		return err
	})
	g.Go(func() error {
		set, err := s.displays.Get(gctx, projectID)
		if err != nil {
			return fmt.Errorf("load displays: %w", err)
		}
		out.Displays = set
		return nil
	})
	g.Go(func() error {
		page, err := s.scenarios.List(gctx, projectID)
		out.Scenarios = page.Items
		return err
	})

	if err := g.Wait(); err != nil {
		return Context{}, err
	}
	return out, nil
}

// Run validates a run request and starts an evaluation, returning its id.
func (s *Service) Run(ctx context.Context, projectID string, req domproject.RunRequest) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}
	id, err := s.runner.RunEvaluation(ctx, projectID, req)
	if err != nil {
		return "", fmt.Errorf("run evaluation: %w", err)
	}
	return id, nil
}

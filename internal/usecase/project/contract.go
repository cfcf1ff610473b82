package project

import (
	"context"

	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
)

// Records is backend CRUD over one record type.
type Records[T any] interface {
	List(ctx context.Context) (domproject.Page[T], error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (string, error)
	Update(ctx context.Context, id string, item T) error
	Delete(ctx context.Context, id string) error
}

// Scoped opens the records of one project.
type Scoped[T any] func(projectID string) Records[T]

// Runner starts evaluation runs.
type Runner interface {
	RunEvaluation(ctx context.Context, projectID string, req domproject.RunRequest) (string, error)
}

// DisplayCache serves and invalidates compiled display sets.
type DisplayCache interface {
	Get(ctx context.Context, projectID string) (*domdisplay.Set, error)
	Invalidate(ctx context.Context, projectID string)
}

// Backend bundles the record stores the service needs.
type Backend struct {
	Projects    Records[domproject.Project]
	Scenarios   Scoped[domproject.Scenario]
	Strategies  Scoped[domproject.Strategy]
	Displays    Scoped[domdisplay.Display]
	Evaluations Scoped[domproject.Evaluation]
	Runner      Runner
}

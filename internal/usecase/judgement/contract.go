package judgement

import (
	"context"

	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domjudgement "github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// Backend runs judgement searches and persists ratings.
type Backend interface {
	rating.Store
	SearchJudgements(ctx context.Context, projectID, scenarioID string, req query.Request) (domjudgement.Result, error)
}

// Projects resolves project records.
type Projects interface {
	GetProject(ctx context.Context, id string) (domproject.Project, error)
}

// Displays resolves compiled display sets.
type Displays interface {
	Get(ctx context.Context, projectID string) (*domdisplay.Set, error)
}

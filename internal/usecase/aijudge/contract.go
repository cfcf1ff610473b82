package aijudge

import (
	"context"

	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domjudgement "github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// Judge rates a rendered document against a search intent.
type Judge interface {
	Model() string
	Rate(ctx context.Context, p domjudgement.Prompt) (domjudgement.Verdict, error)
}

// Backend searches judgement candidates and writes ratings.
type Backend interface {
	SearchJudgements(ctx context.Context, projectID, scenarioID string, req query.Request) (domjudgement.Result, error)
	UpsertJudgement(ctx context.Context, projectID string, j domjudgement.Judgement) error
}

// Projects resolves project records.
type Projects interface {
	GetProject(ctx context.Context, id string) (domproject.Project, error)
}

// Scenarios resolves scenario records.
type Scenarios interface {
	Get(ctx context.Context, projectID, id string) (domproject.Scenario, error)
}

// Displays resolves compiled display sets.
type Displays interface {
	Get(ctx context.Context, projectID string) (*domdisplay.Set, error)
}

// Budget gates judge requests by token consumption.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Ratings serializes rating writes per document with interactive edits.
type Ratings interface {
	Apply(ctx context.Context, key rating.Key, n int, write func(ctx context.Context) error) (rating.Outcome, error)
}

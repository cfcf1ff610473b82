package chi

import (
	"context"

	"github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
	domusage "github.com/kailas-cloud/esre-console/internal/domain/usage"
	aijudgeuc "github.com/kailas-cloud/esre-console/internal/usecase/aijudge"
	healthuc "github.com/kailas-cloud/esre-console/internal/usecase/health"
	judgementuc "github.com/kailas-cloud/esre-console/internal/usecase/judgement"
	projectuc "github.com/kailas-cloud/esre-console/internal/usecase/project"
)

// ProjectService serves projects and their scoped records.
type ProjectService interface {
	ListProjects(ctx context.Context) (domproject.Page[domproject.Project], error)
	GetProject(ctx context.Context, id string) (domproject.Project, error)
	CreateProject(ctx context.Context, p domproject.Project) (domproject.Project, error)
	UpdateProject(ctx context.Context, id string, p domproject.Project) (domproject.Project, error)
	DeleteProject(ctx context.Context, id string) error
	Context(ctx context.Context, projectID string) (projectuc.Context, error)
	Run(ctx context.Context, projectID string, req domproject.RunRequest) (string, error)

	Scenarios() *projectuc.Resource[domproject.Scenario]
	Strategies() *projectuc.Resource[domproject.Strategy]
	Displays() *projectuc.Resource[display.Display]
	Evaluations() *projectuc.Resource[domproject.Evaluation]
}

// JudgementService serves judgement search and rating writes.
type JudgementService interface {
	Search(ctx context.Context, req judgementuc.SearchRequest) (judgementuc.SearchResult, error)
	Change(ctx context.Context, key rating.Key, n int) (rating.Snapshot, error)
	Commit(ctx context.Context, key rating.Key, n *int) (rating.Outcome, rating.Snapshot, error)
	Clear(ctx context.Context, key rating.Key) (rating.Outcome, rating.Snapshot, error)
	ForgetProject(projectID string)
}

// JudgeService runs the AI judge over a judgement search.
type JudgeService interface {
	Enabled() bool
	Run(ctx context.Context, req aijudgeuc.Request) (aijudgeuc.Report, error)
}

// UsageService reports AI judge token usage.
type UsageService interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

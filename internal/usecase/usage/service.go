package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/esre-console/internal/domain/usage"
)

// Service handles judge usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil when no judge is configured.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds the usage report of the current period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	start, end := period.Bounds(s.now())
	r := domusage.Report{Period: period, PeriodStart: start, PeriodEnd: end}
	if s.br == nil {
		r.Budget = domusage.NewBudget(0, 0, end)
		return r
	}

	r.Model = s.br.Model()
	r.Tokens, r.Requests = s.br.Used(period)
	r.Budget = domusage.NewBudget(s.br.Limit(period), r.Tokens, end)
	return r
}

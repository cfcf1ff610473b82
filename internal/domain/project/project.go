// Package project holds the CRUD records of the evaluation backend.
package project

import (
	"time"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// Project groups scenarios, strategies, displays and evaluations that
// share a rating scale and index scope.
type Project struct {
	ID           string        `json:"_id,omitempty"`
	Name         string        `json:"name"`
	IndexPattern string        `json:"index_pattern"`
	RatingScale  *rating.Scale `json:"rating_scale,omitempty"`
	Params       []string      `json:"params,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
}

// Scale returns the declared rating scale or rating.DefaultScale.
func (p *Project) Scale() rating.Scale {
	if p.RatingScale == nil {
		return rating.DefaultScale
	}
	return *p.RatingScale
}

// Validate checks that the project can be stored.
func (p *Project) Validate() error {
	if p.Name == "" {
		return domain.Validationf("project name is required")
	}
	if p.IndexPattern == "" {
		return domain.Validationf("project index_pattern is required")
	}
	if p.RatingScale != nil {
		if err := p.RatingScale.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Scenario is a named parameter set representing a search intent.
type Scenario struct {
	ID        string            `json:"_id,omitempty"`
	ProjectID string            `json:"project_id,omitempty"`
	Name      string            `json:"name"`
	Values    map[string]string `json:"values,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
}

// Validate checks the scenario against its project's parameter names.
func (s *Scenario) Validate(p *Project) error {
	if s.Name == "" {
		return domain.Validationf("scenario name is required")
	}
	if p == nil {
		return nil
	}
	for _, param := range p.Params {
		if _, ok := s.Values[param]; !ok {
			return domain.Validationf("scenario is missing value for param %q", param)
		}
	}
	return nil
}

// Strategy is a parameterized search query evaluated against scenarios.
type Strategy struct {
	ID        string         `json:"_id,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
	Name      string         `json:"name"`
	Template  StrategySource `json:"template"`
	Tags      []string       `json:"tags,omitempty"`
}

// StrategySource is the mustache query body of a strategy.
type StrategySource struct {
	Source string `json:"source"`
}

// Validate checks that the strategy can be stored.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return domain.Validationf("strategy name is required")
	}
	if s.Template.Source == "" {
		return domain.Validationf("strategy template.source is required")
	}
	return nil
}

// Evaluation is the record of a batch scoring run.
type Evaluation struct {
	ID         string                        `json:"_id,omitempty"`
	ProjectID  string                        `json:"project_id,omitempty"`
	Status     string                        `json:"status,omitempty"`
	Strategies []string                      `json:"strategies,omitempty"`
	Scenarios  []string                      `json:"scenarios,omitempty"`
	Metrics    []Metric                      `json:"metrics,omitempty"`
	K          int                           `json:"k,omitempty"`
	Timestamp  *time.Time                    `json:"@timestamp,omitempty"`
	Summary    map[string]map[Metric]float64 `json:"summary,omitempty"`
	Runtime    map[string]any                `json:"runtime,omitempty"`
}

// Metric names a relevance metric computed by the backend.
type Metric string

// Supported metrics.
const (
	MetricNDCG      Metric = "ndcg"
	MetricPrecision Metric = "precision"
	MetricRecall    Metric = "recall"
	MetricMRR       Metric = "mrr"
)

// IsValid checks if the metric is supported.
func (m Metric) IsValid() bool {
	switch m {
	case MetricNDCG, MetricPrecision, MetricRecall, MetricMRR:
		return true
	}
	return false
}

// DefaultK is the rank cutoff used when a run does not set one.
const DefaultK = 10

// RunRequest starts an evaluation run.
type RunRequest struct {
	Strategies []string `json:"strategies"`
	Scenarios  []string `json:"scenarios"`
	Metrics    []Metric `json:"metrics"`
	K          int      `json:"k"`
}

// Normalize fills defaults and validates the run request.
func (r *RunRequest) Normalize() error {
	if len(r.Strategies) == 0 {
		return domain.Validationf("at least one strategy is required")
	}
	if len(r.Scenarios) == 0 {
		return domain.Validationf("at least one scenario is required")
	}
	if len(r.Metrics) == 0 {
		r.Metrics = []Metric{MetricNDCG, MetricPrecision, MetricRecall}
	}
	for _, m := range r.Metrics {
		if !m.IsValid() {
			return domain.Validationf("unknown metric %q", m)
		}
	}
	if r.K <= 0 {
		r.K = DefaultK
	}
	return nil
}

// Page is one listing of backend records with the backend's total count.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

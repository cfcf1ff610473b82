package project

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

func TestProject_Scale(t *testing.T) {
	p := Project{}
	if p.Scale() != rating.DefaultScale {
		t.Errorf("Scale = %+v, want default", p.Scale())
	}
	p.RatingScale = &rating.Scale{Min: 1, Max: 5}
	if p.Scale() != (rating.Scale{Min: 1, Max: 5}) {
		t.Errorf("Scale = %+v", p.Scale())
	}
}

func TestProject_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Project
		wantErr bool
	}{
		{"valid", Project{Name: "shop", IndexPattern: "products-*"}, false},
		{"no name", Project{IndexPattern: "products-*"}, true},
		{"no pattern", Project{Name: "shop"}, true},
		{"bad scale", Project{Name: "s", IndexPattern: "p", RatingScale: &rating.Scale{Min: 4, Max: 0}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestScenario_ValidateParams(t *testing.T) {
	p := &Project{Params: []string{"query"}}

	s := Scenario{Name: "lamps", Values: map[string]string{"query": "lamp"}}
	if err := s.Validate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := Scenario{Name: "lamps"}
	if err := missing.Validate(p); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Validate = %v, want ErrValidation", err)
	}
}

func TestStrategy_Validate(t *testing.T) {
	s := Strategy{Name: "bm25"}
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty template")
	}
	s.Template.Source = `{"query":{"match":{"title":"{{query}}"}}}`
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunRequest_Normalize(t *testing.T) {
	r := RunRequest{Strategies: []string{"s1"}, Scenarios: []string{"c1"}}
	if err := r.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.K != DefaultK {
		t.Errorf("K = %d", r.K)
	}
	if len(r.Metrics) != 3 {
		t.Errorf("Metrics = %v", r.Metrics)
	}

	bad := RunRequest{Strategies: []string{"s1"}, Scenarios: []string{"c1"}, Metrics: []Metric{"f1"}}
	if err := bad.Normalize(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Normalize = %v", err)
	}

	empty := RunRequest{}
	if err := empty.Normalize(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Normalize = %v", err)
	}
}

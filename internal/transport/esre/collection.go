package esre

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kailas-cloud/esre-console/internal/domain/display"
	"github.com/kailas-cloud/esre-console/internal/domain/project"
)

// Kinds of project-scoped records.
const (
	KindScenarios   = "scenarios"
	KindStrategies  = "strategies"
	KindDisplays    = "displays"
	KindEvaluations = "evaluations"
)

type hitsEnvelope[H any] struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []H `json:"hits"`
	} `json:"hits"`
}

type sourceHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type writeResponse struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
}

// Collection is CRUD over one backend record type.
type Collection[T any] struct {
	c      *Client
	name   string
	path   string
	scope  error
	withID func(T, string) T
}

func (col *Collection[T]) op(action string) string { return col.name + "." + action }

// List returns every record of the collection.
func (col *Collection[T]) List(ctx context.Context) (project.Page[T], error) {
	if col.scope != nil {
		return project.Page[T]{}, col.scope
	}
	var env hitsEnvelope[sourceHit]
	if err := col.c.do(ctx, col.op("list"), http.MethodGet, col.path, nil, nil, &env); err != nil {
		return project.Page[T]{}, err
	}
	items := make([]T, 0, len(env.Hits.Hits))
	for _, h := range env.Hits.Hits {
		item, err := col.decode(h)
		if err != nil {
			return project.Page[T]{}, &TransportError{Op: col.op("list"), Err: err}
		}
		items = append(items, item)
	}
	return project.Page[T]{Items: items, Total: env.Hits.Total.Value}, nil
}

// Get returns one record by id.
func (col *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := col.check(id); err != nil {
		return zero, err
	}
	var h sourceHit
	if err := col.c.do(ctx, col.op("get"), http.MethodGet, col.path+"/"+segment(id), nil, nil, &h); err != nil {
		return zero, err
	}
	if h.ID == "" {
		h.ID = id
	}
	item, err := col.decode(h)
	if err != nil {
		return zero, &TransportError{Op: col.op("get"), Err: err}
	}
	return item, nil
}

// Create stores a new record and returns its backend-assigned id.
func (col *Collection[T]) Create(ctx context.Context, item T) (string, error) {
	if col.scope != nil {
		return "", col.scope
	}
	var resp writeResponse
	if err := col.c.do(ctx, col.op("create"), http.MethodPost, col.path, nil, item, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Update replaces the record with the given id.
func (col *Collection[T]) Update(ctx context.Context, id string, item T) error {
	if err := col.check(id); err != nil {
		return err
	}
	return col.c.do(ctx, col.op("update"), http.MethodPut, col.path+"/"+segment(id), nil, item, nil)
}

// Delete removes the record with the given id.
func (col *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := col.check(id); err != nil {
		return err
	}
	return col.c.do(ctx, col.op("delete"), http.MethodDelete, col.path+"/"+segment(id), nil, nil, nil)
}

func (col *Collection[T]) check(id string) error {
	if col.scope != nil {
		return col.scope
	}
	return require(col.name+" id", id)
}

func (col *Collection[T]) decode(h sourceHit) (T, error) {
	var item T
	if len(h.Source) > 0 {
		if err := json.Unmarshal(h.Source, &item); err != nil {
			return item, err
		}
	}
	return col.withID(item, h.ID), nil
}

// Projects returns the project collection.
func (c *Client) Projects() *Collection[project.Project] {
	return &Collection[project.Project]{
		c:    c,
		name: "projects",
		path: "/api/projects",
		withID: func(p project.Project, id string) project.Project {
			p.ID = id
			return p
		},
	}
}

// Scenarios returns the scenario collection of a project.
func (c *Client) Scenarios(projectID string) *Collection[project.Scenario] {
	return scoped(c, projectID, KindScenarios, func(s project.Scenario, id string) project.Scenario {
		s.ID, s.ProjectID = id, projectID
		return s
	})
}

// Strategies returns the strategy collection of a project.
func (c *Client) Strategies(projectID string) *Collection[project.Strategy] {
	return scoped(c, projectID, KindStrategies, func(s project.Strategy, id string) project.Strategy {
		s.ID, s.ProjectID = id, projectID
		return s
	})
}

// Displays returns the display collection of a project.
func (c *Client) Displays(projectID string) *Collection[display.Display] {
	return scoped(c, projectID, KindDisplays, func(d display.Display, id string) display.Display {
		d.ID, d.ProjectID = id, projectID
		return d
	})
}

// Evaluations returns the evaluation collection of a project.
func (c *Client) Evaluations(projectID string) *Collection[project.Evaluation] {
	return scoped(c, projectID, KindEvaluations, func(e project.Evaluation, id string) project.Evaluation {
		e.ID, e.ProjectID = id, projectID
		return e
	})
}

func scoped[T any](c *Client, projectID, kind string, withID func(T, string) T) *Collection[T] {
	return &Collection[T]{
		c:      c,
		name:   kind,
		path:   projectPath(projectID) + "/" + kind,
		scope:  require("project id", projectID),
		withID: withID,
	}
}

func projectPath(projectID string) string {
	return "/api/projects/" + segment(projectID)
}

// ListDisplays returns all displays configured for a project.
func (c *Client) ListDisplays(ctx context.Context, projectID string) ([]display.Display, error) {
	list, err := c.Displays(projectID).List(ctx)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

package project

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/esre-console/internal/domain"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
)

// Resource is CRUD over one project-scoped record kind.
type Resource[T any] struct {
	name     string
	open     Scoped[T]
	validate func(ctx context.Context, projectID string, item *T) error
	stamp    func(item *T, projectID, id string)
	changed  func(ctx context.Context, projectID string)
}

// Name returns the plural record kind, e.g. "scenarios".
func (r *Resource[T]) Name() string { return r.name }

// List returns all records of a project.
func (r *Resource[T]) List(ctx context.Context, projectID string) (domproject.Page[T], error) {
	if projectID == "" {
		return domproject.Page[T]{}, domain.Validationf("project id is required")
	}
	page, err := r.open(projectID).List(ctx)
	if err != nil {
		return domproject.Page[T]{}, fmt.Errorf("list %s: %w", r.name, err)
	}
	return page, nil
}

// Get returns one record.
func (r *Resource[T]) Get(ctx context.Context, projectID, id string) (T, error) {
	var zero T
	if projectID == "" {
		return zero, domain.Validationf("project id is required")
	}
	item, err := r.open(projectID).Get(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("get %s %q: %w", r.name, id, err)
	}
	return item, nil
}

// Create validates and stores a new record, returning it with its id.
func (r *Resource[T]) Create(ctx context.Context, projectID string, item T) (T, error) {
	var zero T
	if err := r.check(ctx, projectID, &item); err != nil {
		return zero, err
	}
	r.stamp(&item, projectID, "")
	id, err := r.open(projectID).Create(ctx, item)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", r.name, err)
	}
	r.stamp(&item, projectID, id)
	r.notify(ctx, projectID)
	return item, nil
}

// Update validates and replaces a record.
func (r *Resource[T]) Update(ctx context.Context, projectID, id string, item T) (T, error) {
	var zero T
	if err := r.check(ctx, projectID, &item); err != nil {
		return zero, err
	}
	r.stamp(&item, projectID, id)
	if err := r.open(projectID).Update(ctx, id, item); err != nil {
		return zero, fmt.Errorf("update %s %q: %w", r.name, id, err)
	}
	r.notify(ctx, projectID)
	return item, nil
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, projectID, id string) error {
	if projectID == "" {
		return domain.Validationf("project id is required")
	}
	if err := r.open(projectID).Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s %q: %w", r.name, id, err)
	}
	r.notify(ctx, projectID)
	return nil
}

func (r *Resource[T]) check(ctx context.Context, projectID string, item *T) error {
	if projectID == "" {
		return domain.Validationf("project id is required")
	}
	if r.validate == nil {
		return nil
	}
	return r.validate(ctx, projectID, item)
}

func (r *Resource[T]) notify(ctx context.Context, projectID string) {
	if r.changed != nil {
		r.changed(ctx, projectID)
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

// Store hands out units of work that run inside database transactions.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Projects() projects.UnitOfWork {
	return projectUnitOfWork{db: s.db}
}

func (s *Store) Requests() requests.UnitOfWork {
	return requestUnitOfWork{db: s.db}
}

type projectUnitOfWork struct {
	db *gorm.DB
}

func (u projectUnitOfWork) Do(ctx context.Context, fn func(context.Context, projects.Repository) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &projectRepo{db: tx})
	})
}

func (u projectUnitOfWork) View(ctx context.Context, fn func(context.Context, projects.Repository) error) error {
	return fn(ctx, &projectRepo{db: u.db.WithContext(ctx)})
}

type requestUnitOfWork struct {
	db *gorm.DB
}

func (u requestUnitOfWork) Do(ctx context.Context, fn func(context.Context, requests.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, repositories(tx))
	})
}

func (u requestUnitOfWork) View(ctx context.Context, fn func(context.Context, requests.Repositories) error) error {
	return fn(ctx, repositories(u.db.WithContext(ctx)))
}

func repositories(db *gorm.DB) requests.Repositories {
	return requests.Repositories{
		Requests: &requestRepo{db: db},
		Projects: &projectRepo{db: db},
	}
}

// notFound maps gorm's sentinel onto the domain one.
func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, workflow.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

// versionConflict explains why a version-checked update touched no rows.
func versionConflict(db *gorm.DB, model any, entity workflow.EntityType, id string, expected int) error {
	var actual int
	err := db.Model(model).Select("version").Where("id = ?", id).Scan(&actual).Error
	if err != nil {
		return fmt.Errorf("failed to read %s version: %w", entity, err)
	}
	if actual == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, workflow.ErrNotFound)
	}
	return &workflow.ConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

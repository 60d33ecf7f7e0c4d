// Package audit records who moved which entity where.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"simflow/portal-backend/internal/events"
)

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

var _ events.Auditor = (*Service)(nil)

// Record appends one audit entry.
func (s *Service) Record(ctx context.Context, e events.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}
	entry := &Entry{
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		Details:    datatypes.JSON(details),
		CreatedAt:  e.Timestamp,
	}
	return s.repo.Create(ctx, entry)
}

// MaxPage caps the page number so the offset stays well inside an int.
const MaxPage = 1_000_000

// List returns one page of the trail, newest first.
func (s *Service) List(ctx context.Context, filters Filters, page, limit int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	filters.Limit = limit
	filters.Offset = (page - 1) * limit

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Entries:    entries,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

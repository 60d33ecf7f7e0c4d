// Package reports serves the dashboard summary and project ledger exports.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/reports/dashboard"
	"simflow/portal-backend/internal/reports/export"
	"simflow/portal-backend/internal/workflow"
	"simflow/portal-backend/pkg/storage"
)

// LedgerSource is the slice of projects.Service exports read from.
type LedgerSource interface {
	GetProject(ctx context.Context, id string) (*projects.Project, error)
	GetLedger(ctx context.Context, projectID string) ([]*projects.HourTransaction, error)
}

// Service handles business logic for reporting
type Service struct {
	ledger    LedgerSource
	dashboard *dashboard.Aggregator
	store     storage.S3Client
	exports   ExportConfig
	auditor   events.Auditor
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithObjectStore uploads exports to the configured bucket instead of
// returning them inline.
func WithObjectStore(store storage.S3Client, cfg ExportConfig) Option {
	return func(s *Service) {
		s.store = store
		s.exports = cfg
	}
}

// WithAuditor records every export in the audit trail.
func WithAuditor(a events.Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// NewService creates a new reports service
func NewService(ledger LedgerSource, agg *dashboard.Aggregator, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		ledger:    ledger,
		dashboard: agg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exports.PresignTTL <= 0 {
		s.exports.PresignTTL = time.Hour
	}
	return s
}

func (s *Service) Dashboard(ctx context.Context, actor workflow.Actor) (*dashboard.Summary, error) {
	return s.dashboard.Summary(ctx, actor)
}

// InvalidateDashboard drops cached summaries after bulk changes.
func (s *Service) InvalidateDashboard() {
	s.dashboard.Invalidate()
}

// ExportLedger renders a project's hour ledger in the requested format.
func (s *Service) ExportLedger(ctx context.Context, actor workflow.Actor, projectID string, format export.Format) (*ExportResult, error) {
	p, err := s.ledger.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.GetLedger(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	table := LedgerTable(p, txs, now)
	var buf bytes.Buffer
	if err := export.Render(format, table, &buf); err != nil {
		return nil, fmt.Errorf("failed to render ledger: %w", err)
	}

	result := &ExportResult{
		FileName:    fmt.Sprintf("%s-ledger-%s%s", p.Code, now.Format("20060102-150405"), format.Extension()),
		Format:      format,
		ContentType: format.ContentType(),
		Rows:        len(txs),
	}

	if s.store != nil && s.exports.Bucket != "" {
		result.Key = path.Join(strings.TrimSuffix(s.exports.Prefix, "/"), "ledgers", p.ID, result.FileName)
		if err := s.store.Upload(ctx, s.exports.Bucket, result.Key, bytes.NewReader(buf.Bytes())); err != nil {
			return nil, err
		}
		url, err := s.store.GetPresignedURL(ctx, s.exports.Bucket, result.Key, s.exports.PresignTTL)
		if err != nil {
			return nil, err
		}
		expires := now.Add(s.exports.PresignTTL)
		result.URL = url
		result.ExpiresAt = &expires
	} else {
		result.Data = buf.Bytes()
	}

	s.logger.Info("ledger exported",
		zap.String("project_id", p.ID),
		zap.String("format", string(format)),
		zap.Int("rows", result.Rows),
		zap.Bool("stored", result.Stored()),
		zap.String("actor_id", actor.ID))

	if s.auditor != nil {
		entry := events.AuditEntry{
			ActorID:    actor.ID,
			Action:     "export_ledger",
			EntityType: workflow.EntityProject,
			EntityID:   p.ID,
			Details:    map[string]any{"format": string(format), "rows": result.Rows, "key": result.Key},
			Timestamp:  now,
		}
		if err := s.auditor.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to audit ledger export", zap.String("project_id", p.ID), zap.Error(err))
		}
	}
	return result, nil
}

// LedgerTable lays out ledger rows oldest first.
func LedgerTable(p *projects.Project, txs []*projects.HourTransaction, now time.Time) export.Table {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []any{
			tx.CreatedAt,
			string(tx.Type),
			tx.Hours,
			tx.BalanceBefore,
			tx.BalanceAfter,
			tx.TotalBefore,
			tx.TotalAfter,
			tx.RequestID,
			tx.ActorID,
			tx.Note,
		})
	}
	return export.Table{
		Title: fmt.Sprintf("%s hour ledger", p.Code),
		Subtitle: fmt.Sprintf("%s: %.2f of %.2f hours used, as of %s",
			p.Name, p.UsedHours, p.TotalHours, now.Format("2006-01-02")),
		Columns: ledgerColumns,
		Rows:    rows,
	}
}

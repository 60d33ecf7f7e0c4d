package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"simflow/portal-backend/internal/workflow"
)

type Repository interface {
	// GetNotifications returns workflow.ErrNotFound when the user never saved.
	GetNotifications(ctx context.Context, userID string) (*NotificationPreferences, error)
	SaveNotifications(ctx context.Context, prefs *NotificationPreferences) error
}

// GormRepository stores preferences in PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetNotifications(ctx context.Context, userID string) (*NotificationPreferences, error) {
	var prefs NotificationPreferences
	err := r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("preferences for %s: %w", userID, workflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &prefs, nil
}

func (r *GormRepository) SaveNotifications(ctx context.Context, prefs *NotificationPreferences) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channels", "muted_types", "updated_at"}),
	}).Create(prefs).Error
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// MemoryRepository keeps preferences in process.
type MemoryRepository struct {
	mu    sync.RWMutex
	prefs map[string]NotificationPreferences
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prefs: make(map[string]NotificationPreferences)}
}

func (r *MemoryRepository) GetNotifications(_ context.Context, userID string) (*NotificationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, fmt.Errorf("preferences for %s: %w", userID, workflow.ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryRepository) SaveNotifications(_ context.Context, prefs *NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.prefs[prefs.UserID]; ok {
		prefs.CreatedAt = existing.CreatedAt
	} else if prefs.CreatedAt.IsZero() {
		prefs.CreatedAt = time.Now().UTC()
	}
	r.prefs[prefs.UserID] = *prefs
	return nil
}

package notifications

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"gorm.io/gorm"

	"simflow/portal-backend/internal/workflow"
)

// Repository stores in-app notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, filter ListFilter) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead returns workflow.ErrNotFound when id does not belong to userID.
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// GormRepository is the PostgreSQL notification store.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, n *Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, userID string, filter ListFilter) ([]Notification, error) {
	var out []Notification
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get user notifications: %w", err)
	}
	return out, nil
}

func (r *GormRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *GormRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	var n Notification
	err := r.db.WithContext(ctx).Select("id", "read_at").
		Where("id = ? AND user_id = ?", id, userID).
		Take(&n).Error
	if err == gorm.ErrRecordNotFound {
		return fmt.Errorf("notification %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if n.ReadAt != nil {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"read_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	return nil
}

func (r *GormRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Updates(map[string]interface{}{"read_at": at})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MemoryRepository keeps notifications in process.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows []Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *n)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, userID string, filter ListFilter) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Notification{}
	for _, n := range slices.Backward(r.rows) {
		if n.UserID != userID || (filter.UnreadOnly && n.IsRead()) {
			continue
		}
		out = append(out, n)
	}
	slices.SortStableFunc(out, func(a, b Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.rows {
		if n.UserID == userID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			if r.rows[i].ReadAt == nil {
				r.rows[i].ReadAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, workflow.ErrNotFound)
}

func (r *MemoryRepository) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for i := range r.rows {
		if r.rows[i].UserID == userID && r.rows[i].ReadAt == nil {
			r.rows[i].ReadAt = &at
			updated++
		}
	}
	return updated, nil
}

package lobby

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, room *Room) error
	FindByID(ctx context.Context, id uuid.UUID) (*Room, error)
	FindBySlug(ctx context.Context, slug string) (*Room, error)
	ReplaceState(ctx context.Context, id uuid.UUID, state []byte, snapshot json.RawMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
	AppendLog(ctx context.Context, entry *AuditLog) error
	ListLogs(ctx context.Context, roomID uuid.UUID, limit int) ([]AuditLog, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new room repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, room *Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	if room.ContentSnapshot == nil {
		room.ContentSnapshot = json.RawMessage(`{"pages":{}}`)
	}
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RepositoryImpl) FindBySlug(ctx context.Context, slug string) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).First(&room, "slug = ?", slug).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ReplaceState swaps the binary state and the derived snapshot in one
// UPDATE so the two columns can never drift apart.
func (r *RepositoryImpl) ReplaceState(ctx context.Context, id uuid.UUID, state []byte, snapshot json.RawMessage) error {
	res := r.db.WithContext(ctx).Model(&Room{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"yjs_state":        state,
			"content_snapshot": snapshot,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	// audit logs go with the room via the cascade constraint
	res := r.db.WithContext(ctx).Delete(&Room{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RepositoryImpl) AppendLog(ctx context.Context, entry *AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *RepositoryImpl) ListLogs(ctx context.Context, roomID uuid.UUID, limit int) ([]AuditLog, error) {
	var logs []AuditLog
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

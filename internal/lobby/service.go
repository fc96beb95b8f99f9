package lobby

import (
	"context"
	"encoding/json"
	defError "errors"

	"github.com/YF-George/lobbysync/internal/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxLogEntries = 200

type Service interface {
	CreateRoom(ctx context.Context, ownerID, ownerName, title string) (*Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (*Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID, requesterID string) error
	LoadState(ctx context.Context, id uuid.UUID) ([]byte, error)
	RecordAction(ctx context.Context, roomID uuid.UUID, userID, userName, action string, detail any) error
	ListLogs(ctx context.Context, roomID uuid.UUID) ([]AuditLog, error)
}

type DefaultService struct {
	repository Repository
}

func NewService(repository Repository) Service {
	return &DefaultService{repository: repository}
}

func (s *DefaultService) CreateRoom(ctx context.Context, ownerID, ownerName, title string) (*Room, error) {
	if title == "" {
		return nil, errors.BadRequest("Title cannot be empty", nil)
	}

	id := uuid.New()
	room := &Room{
		ID:      id,
		Slug:    id.String()[:8],
		Title:   title,
		OwnerID: ownerID,
	}
	if err := s.repository.Create(ctx, room); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("Room already exists", err)
		}
		return nil, err
	}

	// creation is itself the first audit entry
	_ = s.RecordAction(ctx, room.ID, ownerID, ownerName, "room_created", map[string]string{"title": title})

	return room, nil
}

func (s *DefaultService) GetRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	room, err := s.repository.FindBySlug(ctx, slug)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Room not found", err)
		}
		return nil, err
	}
	return room, nil
}

func (s *DefaultService) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Room not found", err)
		}
		return nil, err
	}
	return room, nil
}

func (s *DefaultService) DeleteRoom(ctx context.Context, id uuid.UUID, requesterID string) error {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.OwnerID != requesterID {
		return errors.Forbidden("Only the owner can delete a room!", nil)
	}
	return s.repository.Delete(ctx, id)
}

// LoadState returns the durable binary state for rehydration, nil when
// the room has never been persisted.
func (s *DefaultService) LoadState(ctx context.Context, id uuid.UUID) ([]byte, error) {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	return room.YjsState, nil
}

func (s *DefaultService) RecordAction(ctx context.Context, roomID uuid.UUID, userID, userName, action string, detail any) error {
	var raw json.RawMessage
	if detail != nil {
		buf, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		raw = buf
	}
	return s.repository.AppendLog(ctx, &AuditLog{
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
		Action:   action,
		Detail:   raw,
	})
}

func (s *DefaultService) ListLogs(ctx context.Context, roomID uuid.UUID) ([]AuditLog, error) {
	return s.repository.ListLogs(ctx, roomID, maxLogEntries)
}

package lobby

import (
	"context"
	"encoding/json"
	"testing"

	apiError "github.com/YF-George/lobbysync/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, room *Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Room), args.Error(1)
}

func (m *MockRepository) FindBySlug(ctx context.Context, slug string) (*Room, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Room), args.Error(1)
}

func (m *MockRepository) ReplaceState(ctx context.Context, id uuid.UUID, state []byte, snapshot json.RawMessage) error {
	args := m.Called(ctx, id, state, snapshot)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) AppendLog(ctx context.Context, entry *AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) ListLogs(ctx context.Context, roomID uuid.UUID, limit int) ([]AuditLog, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AuditLog), args.Error(1)
}

func TestCreateRoom_GeneratesSlugAndAuditEntry(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *Room) bool {
		return r.Title == "Valtan HM" && r.OwnerID == "u1" &&
			r.Slug == r.ID.String()[:8]
	})).Return(nil)
	repo.On("AppendLog", mock.Anything, mock.MatchedBy(func(e *AuditLog) bool {
		return e.Action == "room_created" && e.UserName == "Hana"
	})).Return(nil)

	room, err := service.CreateRoom(context.Background(), "u1", "Hana", "Valtan HM")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, room.ID)
	repo.AssertExpectations(t)
}

func TestCreateRoom_EmptyTitle(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	_, err := service.CreateRoom(context.Background(), "u1", "Hana", "")

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetRoomBySlug_NotFound(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	repo.On("FindBySlug", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)

	_, err := service.GetRoomBySlug(context.Background(), "ghost")

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestDeleteRoom_OwnerOnly(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	roomID := uuid.New()
	repo.On("FindByID", mock.Anything, roomID).
		Return(&Room{ID: roomID, OwnerID: "owner"}, nil)

	err := service.DeleteRoom(context.Background(), roomID, "someone-else")

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteRoom_Success(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	roomID := uuid.New()
	repo.On("FindByID", mock.Anything, roomID).
		Return(&Room{ID: roomID, OwnerID: "owner"}, nil)
	repo.On("Delete", mock.Anything, roomID).Return(nil)

	err := service.DeleteRoom(context.Background(), roomID, "owner")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLoadState_ReturnsBinaryState(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	roomID := uuid.New()
	repo.On("FindByID", mock.Anything, roomID).
		Return(&Room{ID: roomID, YjsState: []byte{1, 2, 3}}, nil)

	state, err := service.LoadState(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, state)
}

func TestRecordAction_MarshalsDetail(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo)

	roomID := uuid.New()
	repo.On("AppendLog", mock.Anything, mock.MatchedBy(func(e *AuditLog) bool {
		return e.RoomID == roomID && e.Action == "joined" &&
			string(e.Detail) == `{"tab":2}`
	})).Return(nil)

	err := service.RecordAction(context.Background(), roomID, "u1", "Hana", "joined", map[string]int{"tab": 2})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

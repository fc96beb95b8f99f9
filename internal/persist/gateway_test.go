package persist

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/YF-George/lobbysync/internal/crdt"
	apiError "github.com/YF-George/lobbysync/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReplaceState(ctx context.Context, id uuid.UUID, state []byte, snapshot json.RawMessage) error {
	args := m.Called(ctx, id, state, snapshot)
	return args.Error(0)
}

func encodedState(t *testing.T) []byte {
	doc := crdt.NewWithReplica(1)
	_, err := doc.AddSlot(1, crdt.Slot{Name: "tank", Role: "Support", GearScore: 1580})
	require.NoError(t, err)
	_, err = doc.AddSlot(5, crdt.Slot{Name: "dps", Role: "DPS", GearScore: 1600})
	require.NoError(t, err)
	return doc.EncodeStateAsUpdate()
}

func TestPersist_Success(t *testing.T) {
	store := new(MockStore)
	gateway := NewGateway(store, 0)
	roomID := uuid.New()
	state := encodedState(t)

	store.On("ReplaceState", mock.Anything, roomID, state, mock.MatchedBy(func(snapshot json.RawMessage) bool {
		var out snapshotDoc
		if err := json.Unmarshal(snapshot, &out); err != nil {
			return false
		}
		return len(out.Pages["1"]) == 1 && out.Pages["1"][0].Name == "tank" &&
			len(out.Pages["5"]) == 1 && len(out.Pages["2"]) == 0
	})).Return(nil)

	err := gateway.Persist(context.Background(), roomID, state)
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestPersist_NilRoomID(t *testing.T) {
	store := new(MockStore)
	gateway := NewGateway(store, 0)

	err := gateway.Persist(context.Background(), uuid.Nil, encodedState(t))

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	store.AssertNotCalled(t, "ReplaceState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPersist_OversizedState(t *testing.T) {
	store := new(MockStore)
	gateway := NewGateway(store, 0)

	err := gateway.Persist(context.Background(), uuid.New(), make([]byte, MaxStateBytes+1))

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 413, apiErr.Status)
	store.AssertNotCalled(t, "ReplaceState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// The cap is configuration, not a constant: a tighter limit is
// enforced as given.
func TestPersist_ConfiguredSizeCap(t *testing.T) {
	store := new(MockStore)
	gateway := NewGateway(store, 16)

	err := gateway.Persist(context.Background(), uuid.New(), make([]byte, 17))

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 413, apiErr.Status)
	store.AssertNotCalled(t, "ReplaceState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPersist_UndecodableState(t *testing.T) {
	store := new(MockStore)
	gateway := NewGateway(store, 0)

	err := gateway.Persist(context.Background(), uuid.New(), []byte("garbage"))

	var apiErr *apiError.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	store.AssertNotCalled(t, "ReplaceState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectSnapshot_AlwaysRederivable(t *testing.T) {
	state := encodedState(t)

	first, err := ProjectSnapshot(state)
	require.NoError(t, err)
	second, err := ProjectSnapshot(state)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

type mockRoomRepo struct {
	rooms     map[string]*models.Room
	createErr error
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[string]*models.Room)}
}

func (m *mockRoomRepo) List(ctx context.Context) ([]models.Room, error) {
	var result []models.Room
	for _, room := range m.rooms {
		result = append(result, *room)
	}
	return result, nil
}

func (m *mockRoomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *room
	return &cp, nil
}

func (m *mockRoomRepo) Create(ctx context.Context, room *models.Room) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *mockRoomRepo) Update(ctx context.Context, room *models.Room) error {
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *mockRoomRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.rooms[id]; !ok {
		return false, nil
	}
	delete(m.rooms, id)
	return true, nil
}

func TestRoomCreateStoresNumericRoomNumber(t *testing.T) {
	repo := newMockRoomRepo()
	svc := NewRoomService(repo, nil, nil)

	room, err := svc.Create(context.Background(), RoomRequest{Name: "Physics Lab", Number: 214})
	require.NoError(t, err)

	assert.Equal(t, "Physics Lab", room.Name)
	assert.Equal(t, 214, room.Number)
	require.Contains(t, repo.rooms, room.ID)
	assert.Equal(t, 214, repo.rooms[room.ID].Number)
}

func TestRoomCreateRejectsNonPositiveNumber(t *testing.T) {
	svc := NewRoomService(newMockRoomRepo(), nil, nil)

	_, err := svc.Create(context.Background(), RoomRequest{Name: "Physics Lab", Number: 0})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRoomCreateDuplicateMapsToConflict(t *testing.T) {
	repo := newMockRoomRepo()
	repo.createErr = &pq.Error{Code: "23505", Constraint: "rooms_number_unique"}
	svc := NewRoomService(repo, nil, nil)

	_, err := svc.Create(context.Background(), RoomRequest{Name: "Physics Lab", Number: 214})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRoomUpdateChangesNumber(t *testing.T) {
	repo := newMockRoomRepo()
	svc := NewRoomService(repo, nil, nil)

	room, err := svc.Create(context.Background(), RoomRequest{Name: "Physics Lab", Number: 214})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), room.ID, RoomRequest{Name: "Physics Lab", Number: 215})
	require.NoError(t, err)
	assert.Equal(t, 215, updated.Number)
}

func TestRoomDeleteMissingIsNotFound(t *testing.T) {
	svc := NewRoomService(newMockRoomRepo(), nil, nil)

	err := svc.Delete(context.Background(), "no-such-room")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

type roomInventoryStub struct {
	rooms []models.Room
	err   error
}

func (s *roomInventoryStub) List(ctx context.Context) ([]models.Room, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Room, len(s.rooms))
	copy(out, s.rooms)
	return out, nil
}

func (s *roomInventoryStub) FindByNumber(ctx context.Context, roomNumber string) (*models.Room, error) {
	for _, r := range s.rooms {
		if r.RoomNumber == roomNumber {
			room := r
			return &room, nil
		}
	}
	return nil, sql.ErrNoRows
}

type bookingStub struct {
	bySlot map[string][]models.RoomBooking
	calls  []string
}

func (s *bookingStub) ListPublishedBookings(ctx context.Context, examDate time.Time, session models.Session) ([]models.RoomBooking, error) {
	key := examDate.Format(dto.DateLayout) + "/" + string(session)
	s.calls = append(s.calls, key)
	return s.bySlot[key], nil
}

func newAvailabilityFixture() (*RoomAvailabilityService, *bookingStub) {
	inventory := &roomInventoryStub{rooms: []models.Room{
		{RoomNumber: "201", Capacity: 30, IsAvailable: true},
		{RoomNumber: "101", Capacity: 30, IsAvailable: true},
		{RoomNumber: "Lab-A", Capacity: 20, IsAvailable: true},
		{RoomNumber: "11", Capacity: 25, IsAvailable: true},
		{RoomNumber: "301", Capacity: 40, IsAvailable: false},
	}}
	bookings := &bookingStub{bySlot: map[string][]models.RoomBooking{
		"2025-01-06/FN": {{ExamID: "exam-1", RoomNumber: "101"}, {ExamID: "exam-2", RoomNumber: "201"}},
	}}
	return NewRoomAvailabilityService(inventory, bookings, nil, nil), bookings
}

func TestRoomAvailabilityIsRoomAvailable(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()
	mon := mkDate(2025, time.January, 6)

	free, err := svc.IsRoomAvailable(ctx, "101", mon, models.SessionFN, "")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsRoomAvailable(ctx, "101", mon, models.SessionFN, "exam-1")
	require.NoError(t, err)
	assert.True(t, free, "re-allocating the same exam ignores its own booking")

	free, err = svc.IsRoomAvailable(ctx, "101", mon, models.SessionAN, "")
	require.NoError(t, err)
	assert.True(t, free, "afternoon is independent of forenoon")
}

func TestRoomAvailabilityGetAvailableRooms(t *testing.T) {
	svc, bookings := newAvailabilityFixture()

	rooms, err := svc.GetAvailableRooms(context.Background(), time.Date(2025, time.January, 6, 9, 30, 0, 0, time.UTC), models.SessionFN, "")
	require.NoError(t, err)

	numbers := make([]string, 0, len(rooms))
	for _, r := range rooms {
		numbers = append(numbers, r.RoomNumber)
	}
	assert.Equal(t, []string{"11", "Lab-A"}, numbers)
	assert.Equal(t, []string{"2025-01-06/FN"}, bookings.calls)

	rooms, err = svc.GetAvailableRooms(context.Background(), mkDate(2025, time.January, 6), models.SessionAN, "")
	require.NoError(t, err)
	assert.Len(t, rooms, 4)
	assert.Equal(t, "11", rooms[0].RoomNumber)
	assert.Equal(t, "101", rooms[1].RoomNumber)
	assert.Equal(t, "201", rooms[2].RoomNumber)
}

func TestRoomAvailabilityListAvailableValidates(t *testing.T) {
	svc, _ := newAvailabilityFixture()

	_, err := svc.ListAvailable(context.Background(), dto.AvailableRoomsQuery{Date: "06-01-2025", Session: "FN"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ListAvailable(context.Background(), dto.AvailableRoomsQuery{Date: "2025-01-06", Session: "EV"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	rooms, err := svc.ListAvailable(context.Background(), dto.AvailableRoomsQuery{Date: "2025-01-06", Session: "FN", ExcludeExamID: "exam-2"})
	require.NoError(t, err)
	assert.Len(t, rooms, 3)
}

func TestRoomAvailabilityInventoryFailure(t *testing.T) {
	svc := NewRoomAvailabilityService(&roomInventoryStub{err: errors.New("db down")}, &bookingStub{}, nil, nil)
	_, err := svc.GetAvailableRooms(context.Background(), mkDate(2025, time.January, 6), models.SessionFN, "")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestRoomNumberLess(t *testing.T) {
	assert.True(t, roomNumberLess("9", "10"))
	assert.False(t, roomNumberLess("10", "9"))
	assert.True(t, roomNumberLess("10", "9A"))
	assert.True(t, roomNumberLess("A1", "B1"))
}

func TestSortRoomsMixedNumberingIsStable(t *testing.T) {
	numbers := func(rooms []models.Room) []string {
		out := make([]string, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.RoomNumber)
		}
		return out
	}
	orders := [][]string{
		{"10", "1A", "9", "LAB", "2"},
		{"9", "10", "1A", "2", "LAB"},
		{"LAB", "1A", "2", "10", "9"},
	}
	for _, order := range orders {
		rooms := make([]models.Room, 0, len(order))
		for _, n := range order {
			rooms = append(rooms, models.Room{RoomNumber: n})
		}
		sortRooms(rooms)
		assert.Equal(t, []string{"2", "9", "10", "1A", "LAB"}, numbers(rooms))
	}
	assert.True(t, roomNumberLess("10", "1A"))
	assert.False(t, roomNumberLess("1A", "9"))
}

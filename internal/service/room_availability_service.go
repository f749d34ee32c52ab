package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

type roomInventory interface {
	List(ctx context.Context) ([]models.Room, error)
	FindByNumber(ctx context.Context, roomNumber string) (*models.Room, error)
}

type roomBookingReader interface {
	ListPublishedBookings(ctx context.Context, examDate time.Time, session models.Session) ([]models.RoomBooking, error)
}

// RoomAvailabilityService answers whether rooms are free for a date and session.
type RoomAvailabilityService struct {
	rooms     roomInventory
	bookings  roomBookingReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomAvailabilityService constructs the availability checker.
func NewRoomAvailabilityService(rooms roomInventory, bookings roomBookingReader, validate *validator.Validate, logger *zap.Logger) *RoomAvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomAvailabilityService{rooms: rooms, bookings: bookings, validator: validate, logger: logger}
}

// IsRoomAvailable reports false when another exam has a published seating in the
// room on the same date and session. excludeExamID ignores the exam being re-allocated.
func (s *RoomAvailabilityService) IsRoomAvailable(ctx context.Context, roomNumber string, examDate time.Time, session models.Session, excludeExamID string) (bool, error) {
	booked, err := s.bookedRooms(ctx, examDate, session, excludeExamID)
	if err != nil {
		return false, err
	}
	_, taken := booked[roomNumber]
	return !taken, nil
}

// GetAvailableRooms returns rooms flagged available that are not booked, ordered by room number.
func (s *RoomAvailabilityService) GetAvailableRooms(ctx context.Context, examDate time.Time, session models.Session, excludeExamID string) ([]models.Room, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rooms")
	}
	booked, err := s.bookedRooms(ctx, examDate, session, excludeExamID)
	if err != nil {
		return nil, err
	}

	available := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if !room.IsAvailable {
			continue
		}
		if _, taken := booked[room.RoomNumber]; taken {
			continue
		}
		available = append(available, room)
	}
	sortRooms(available)
	return available, nil
}

// ListAvailable validates a query and returns the free rooms.
func (s *RoomAvailabilityService) ListAvailable(ctx context.Context, query dto.AvailableRoomsQuery) ([]models.Room, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room availability query")
	}
	examDate, err := time.Parse(dto.DateLayout, query.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	return s.GetAvailableRooms(ctx, examDate, models.Session(query.Session), query.ExcludeExamID)
}

func (s *RoomAvailabilityService) bookedRooms(ctx context.Context, examDate time.Time, session models.Session, excludeExamID string) (map[string]struct{}, error) {
	bookings, err := s.bookings.ListPublishedBookings(ctx, calendarDay(examDate), session)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load published seatings")
	}
	booked := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if excludeExamID != "" && b.ExamID == excludeExamID {
			continue
		}
		booked[b.RoomNumber] = struct{}{}
	}
	return booked, nil
}

// sortRooms orders rooms by number: integer numbers first in numeric order, then
// the rest lexically.
func sortRooms(rooms []models.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return roomNumberLess(rooms[i].RoomNumber, rooms[j].RoomNumber)
	})
}

func roomNumberLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	aNumeric, bNumeric := aErr == nil, bErr == nil
	switch {
	case aNumeric && bNumeric && ai != bi:
		return ai < bi
	case aNumeric != bNumeric:
		return aNumeric
	default:
		return a < b
	}
}

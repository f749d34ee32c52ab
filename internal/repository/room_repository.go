package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

const roomColumns = "id, room_number, capacity, floor, building, is_available"

// RoomRepository reads the examination hall inventory.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns every room.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY room_number ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByNumber fetches a room by its number. Returns sql.ErrNoRows when missing.
func (r *RoomRepository) FindByNumber(ctx context.Context, roomNumber string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE room_number = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, roomNumber); err != nil {
		return nil, err
	}
	return &room, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// SeatingRepository persists seat assignments per exam.
type SeatingRepository struct {
	db *sqlx.DB
}

// NewSeatingRepository constructs a SeatingRepository.
func NewSeatingRepository(db *sqlx.DB) *SeatingRepository {
	return &SeatingRepository{db: db}
}

func (r *SeatingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListPublishedBookings returns the rooms held by exams with a published seating on a date and session.
func (r *SeatingRepository) ListPublishedBookings(ctx context.Context, examDate time.Time, session models.Session) ([]models.RoomBooking, error) {
	const query = `SELECT DISTINCT s.exam_id, s.room_number
FROM seatings s
JOIN exams e ON e.id = s.exam_id
WHERE e.exam_date = $1 AND e.session = $2 AND e.seating_published = TRUE
ORDER BY s.room_number ASC`
	var bookings []models.RoomBooking
	if err := r.db.SelectContext(ctx, &bookings, query, examDate, session); err != nil {
		return nil, fmt.Errorf("list published bookings: %w", err)
	}
	return bookings, nil
}

// ReplaceForExam deletes the exam's previous seating and inserts the new rows.
// Callers pass a transaction so the swap is atomic.
func (r *SeatingRepository) ReplaceForExam(ctx context.Context, exec sqlx.ExtContext, examID string, rows []models.SeatAssignment) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM seatings WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete previous seating: %w", err)
	}

	const query = `
INSERT INTO seatings (id, exam_id, student_id, register_number, room_number, seat_number, bench_number, floor, building, department, created_at)
VALUES (:id, :exam_id, :student_id, :register_number, :room_number, :seat_number, :bench_number, :floor, :building, :department, :created_at)`

	now := time.Now().UTC()
	for i := range rows {
		row := &rows[i]
		row.ExamID = examID
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert seat %s/%s: %w", row.RoomNumber, row.SeatNumber, err)
		}
	}
	return nil
}

// ListByExam returns the exam's seating ordered by room and seat.
func (r *SeatingRepository) ListByExam(ctx context.Context, examID string) ([]models.SeatAssignment, error) {
	const query = `SELECT id, exam_id, student_id, register_number, room_number, seat_number, bench_number, floor, building, department, created_at
FROM seatings WHERE exam_id = $1 ORDER BY room_number ASC, bench_number ASC NULLS FIRST, LENGTH(seat_number) ASC, seat_number ASC`
	var rows []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("list seating: %w", err)
	}
	return rows, nil
}

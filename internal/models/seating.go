package models

import "time"

// SeatAssignment places one student in a room for one exam.
type SeatAssignment struct {
	ID             string    `db:"id" json:"id"`
	ExamID         string    `db:"exam_id" json:"examId"`
	StudentID      string    `db:"student_id" json:"studentId"`
	RegisterNumber string    `db:"register_number" json:"registerNumber"`
	RoomNumber     string    `db:"room_number" json:"roomNumber"`
	SeatNumber     string    `db:"seat_number" json:"seatNumber"`
	BenchNumber    *int      `db:"bench_number" json:"benchNumber,omitempty"`
	Floor          string    `db:"floor" json:"floor"`
	Building       string    `db:"building" json:"building"`
	Department     string    `db:"department" json:"department"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// RoomOccupancy reports how one room was filled.
type RoomOccupancy struct {
	RoomNumber  string `json:"roomNumber"`
	Capacity    int    `json:"capacity"`
	Occupied    int    `json:"occupied"`
	Departments int    `json:"departments"`
}

// SeatingSummary aggregates one allocation run.
type SeatingSummary struct {
	TotalStudents  int             `json:"totalStudents"`
	TotalAllocated int             `json:"totalAllocated"`
	Unallocated    int             `json:"unallocated"`
	RoomsUsed      int             `json:"roomsUsed"`
	Departments    int             `json:"departments"`
	BenchesUsed    int             `json:"benchesUsed,omitempty"`
	Rooms          []RoomOccupancy `json:"rooms"`
}

// SeatingResult is the outcome of an allocation run.
type SeatingResult struct {
	Assignments []SeatAssignment `json:"assignments"`
	Summary     SeatingSummary   `json:"summary"`
}

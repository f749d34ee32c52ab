package models

// Room is an examination hall. Capacity counts seats for Semester exams and
// two-seat benches for Internal exams.
type Room struct {
	ID          string `db:"id" json:"id"`
	RoomNumber  string `db:"room_number" json:"roomNumber"`
	Capacity    int    `db:"capacity" json:"capacity"`
	Floor       string `db:"floor" json:"floor"`
	Building    string `db:"building" json:"building"`
	IsAvailable bool   `db:"is_available" json:"isAvailable"`
}

// RoomBooking records a room held by an exam with a published seating.
type RoomBooking struct {
	ExamID     string `db:"exam_id" json:"examId"`
	RoomNumber string `db:"room_number" json:"roomNumber"`
}

package models

// Student represents a learner eligible to sit exams.
type Student struct {
	ID             string `db:"id" json:"id"`
	RegisterNumber string `db:"register_number" json:"registerNumber"`
	FullName       string `db:"full_name" json:"fullName"`
	Department     string `db:"department" json:"department"`
	Year           int    `db:"year" json:"year"`
	Active         bool   `db:"active" json:"active"`
}

// RosterFilter selects the students sitting one exam. Zero values are ignored.
type RosterFilter struct {
	Department string
	Year       int
}

package models

// SubjectType drives how strict the gap rule is when scheduling a subject.
type SubjectType string

const (
	SubjectTypeHeavy    SubjectType = "HEAVY"
	SubjectTypeNonMajor SubjectType = "NONMAJOR"
)

// Valid reports whether the subject type is a known classification.
func (t SubjectType) Valid() bool {
	return t == SubjectTypeHeavy || t == SubjectTypeNonMajor
}

// Subject represents an examinable subject in the catalog.
type Subject struct {
	ID          string      `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	Department  string      `db:"department" json:"department"`
	Year        int         `db:"year" json:"year"`
	SubjectType SubjectType `db:"subject_type" json:"subjectType"`
}

// SubjectCatalogFilter narrows the catalog for one scheduling run.
type SubjectCatalogFilter struct {
	Year        int
	Departments []string
}

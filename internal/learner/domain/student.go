package domain

import (
	"time"

	"github.com/google/uuid"
)

// Student is a minor's account, created when a parental consent is verified.
type Student struct {
	ID                 uuid.UUID
	ParentID           uuid.UUID
	ConsentID          uuid.UUID
	FirstName          string
	LastName           string
	BirthDate          *time.Time
	Age                int
	GradeLevel         string
	CompletionRate     *float64
	PostalCode         *string
	Metadata           Metadata
	LastActivityAt     time.Time
	InactivityWarnedAt *time.Time
	AnonymizedAt       *time.Time
	ArchivedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the student still holds personal data.
func (s *Student) Active() bool {
	return s.AnonymizedAt == nil && s.ArchivedAt == nil
}

var gradeByAge = map[int]string{
	3:  "PS",
	4:  "MS",
	5:  "GS",
	6:  "CP",
	7:  "CE1",
	8:  "CE2",
	9:  "CM1",
	10: "CM2",
	11: "6EME",
	12: "5EME",
	13: "4EME",
	14: "3EME",
	15: "2NDE",
	16: "1ERE",
	17: "TERMINALE",
}

// Accepted child ages.
const (
	MinChildAge = 3
	MaxChildAge = 17
)

// GradeForAge returns the school grade for a child's age.
func GradeForAge(age int) (string, bool) {
	grade, ok := gradeByAge[age]
	return grade, ok
}

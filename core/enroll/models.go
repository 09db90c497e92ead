package enroll

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Enrollment is one ledger entry per (student, course) pair.
// The course fields are a snapshot taken at enrollment time, a receipt;
// they are deliberately not kept in sync with later course edits.
type Enrollment struct {
	ID               string    `json:"id"`
	CourseID         string    `json:"courseId"`
	StudentID        string    `json:"studentId"`
	StudentName      string    `json:"studentName"`
	StudentEmail     string    `json:"studentEmail"`
	CourseTitle      string    `json:"courseTitle"`
	CourseInstructor string    `json:"courseInstructor"`
	CoursePrice      float64   `json:"coursePrice"`
	CourseDuration   string    `json:"courseDuration"`
	Status           Status    `json:"status"`
	EnrolledAt       time.Time `json:"enrolledAt"` // UTC
}

// NewEnrollment is the enroll request payload; the student comes from the request context.
type NewEnrollment struct {
	CourseID string `json:"courseId" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}

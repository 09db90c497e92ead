package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	InstructorID string    `json:"instructorId"`
	Instructor   string    `json:"instructor"`
	Price        float64   `json:"price"`
	Duration     string    `json:"duration"`
	// StudentCount is a denormalized cache of active enrollments;
	// it is only ever written together with the enrollment records (see core/enroll).
	StudentCount int       `json:"studentCount"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

// NewCourse contains information needed to publish a new Course.
type NewCourse struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Duration    string  `json:"duration" validate:"required"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Duration = core.CleanString(nc.Duration)
	return validate.Struct(nc)
}

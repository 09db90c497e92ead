package enroll

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrNotOwner        = errors.New("enrollment belongs to another student")
)

type (
	Filter struct {
		CourseID  string
		StudentID string
	}

	// Repository owns the ledger invariant: CreateEnrollment and DeleteEnrollment
	// must apply the record write and the course counter update atomically.
	Repository interface {
		// CreateEnrollment inserts enr and increments the course's student count
		// in one transaction. Returns ErrAlreadyEnrolled if an active entry for
		// (StudentID, CourseID) exists, course.ErrNotFound if the course is gone.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		// DeleteEnrollment removes the entry and decrements the course's student
		// count, floored at 0, in one transaction.
		DeleteEnrollment(ctx context.Context, id string) error
		FilterEnrollments(ctx context.Context, filter Filter) ([]Enrollment, error)
	}

	Service interface {
		Enroll(ctx context.Context, student user.User, courseID string) (Enrollment, error)
		Unenroll(ctx context.Context, id, requestingStudentID string) error
		GetByID(ctx context.Context, id string) (Enrollment, error)
		ForStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		ForCourse(ctx context.Context, courseID string) ([]Enrollment, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		mailSvc   core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseSvc course.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:      repo,
		courseSvc: courseSvc,
		mailSvc:   mailSvc,
	}
}

func (svc *service) Enroll(ctx context.Context, student user.User, courseID string) (Enrollment, error) {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	enr := Enrollment{
		CourseID:         crs.ID,
		StudentID:        student.ID,
		StudentName:      student.FullName(),
		StudentEmail:     student.Email,
		CourseTitle:      crs.Title,
		CourseInstructor: crs.Instructor,
		CoursePrice:      crs.Price,
		CourseDuration:   crs.Duration,
		Status:           StatusActive,
		EnrolledAt:       time.Now().UTC(),
	}
	if enr, err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
		return Enrollment{}, err
	}

	svc.sendReceiptMail(enr)
	return enr, nil
}

func (svc *service) Unenroll(ctx context.Context, id, requestingStudentID string) error {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return err
	}
	if enr.StudentID != requestingStudentID {
		return ErrNotOwner
	}
	return svc.repo.DeleteEnrollment(ctx, enr.ID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollmentByID(ctx, id)
}

func (svc *service) ForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.FilterEnrollments(ctx, Filter{StudentID: studentID})
}

func (svc *service) ForCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	return svc.repo.FilterEnrollments(ctx, Filter{CourseID: courseID})
}

func (svc *service) sendReceiptMail(enr Enrollment) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: enr.StudentName, Address: enr.StudentEmail}},
		Subject: "Enrollment Confirmation",
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\nYou are enrolled in %q (%s) for %.2f. Enjoy the course!\r\n",
			enr.StudentName, enr.CourseTitle, enr.CourseDuration, enr.CoursePrice,
		),
	})
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/enroll"
)

type enrollmentRow struct {
	ID               string    `db:"id"`
	CourseID         string    `db:"course_id"`
	StudentID        string    `db:"student_id"`
	StudentName      string    `db:"student_name"`
	StudentEmail     string    `db:"student_email"`
	CourseTitle      string    `db:"course_title"`
	CourseInstructor string    `db:"course_instructor"`
	CoursePrice      float64   `db:"course_price"`
	CourseDuration   string    `db:"course_duration"`
	Status           string    `db:"status"`
	EnrolledAt       time.Time `db:"enrolled_at"`
}

func (r enrollmentRow) unmap() enroll.Enrollment {
	return enroll.Enrollment{
		ID:               r.ID,
		CourseID:         r.CourseID,
		StudentID:        r.StudentID,
		StudentName:      r.StudentName,
		StudentEmail:     r.StudentEmail,
		CourseTitle:      r.CourseTitle,
		CourseInstructor: r.CourseInstructor,
		CoursePrice:      r.CoursePrice,
		CourseDuration:   r.CourseDuration,
		Status:           enroll.Status(r.Status),
		EnrolledAt:       r.EnrolledAt,
	}
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enroll.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// CreateEnrollment inserts the ledger entry and bumps the course counter in a
// single transaction; the course row is locked first so concurrent enrolls on
// the same course serialize and the counter cannot drift.
func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enroll.Enrollment) (enroll.Enrollment, error) {
	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// lock the course row for the counter update
	var locked bool
	err = tx.GetContext(ctx, &locked, "SELECT true FROM course WHERE id = $1 FOR UPDATE", enr.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return enroll.Enrollment{}, course.ErrNotFound
		}
		return enroll.Enrollment{}, errors.Wrap(err, "locking course")
	}

	var dup bool
	err = tx.GetContext(ctx, &dup,
		"SELECT EXISTS (SELECT 1 FROM enrollment WHERE student_id = $1 AND course_id = $2 AND status = 'active')",
		enr.StudentID, enr.CourseID)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "checking active enrollment")
	}
	if dup {
		return enroll.Enrollment{}, enroll.ErrAlreadyEnrolled
	}

	query, args, err := psql.Insert("enrollment").
		Columns("id", "course_id", "student_id", "student_name", "student_email",
			"course_title", "course_instructor", "course_price", "course_duration", "status", "enrolled_at").
		Values(enr.ID, enr.CourseID, enr.StudentID, enr.StudentName, enr.StudentEmail,
			enr.CourseTitle, enr.CourseInstructor, enr.CoursePrice, enr.CourseDuration, string(enr.Status), enr.EnrolledAt.UTC()).
		ToSql()
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "building insert query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		// partial unique index backstop
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return enroll.Enrollment{}, enroll.ErrAlreadyEnrolled
		}
		return enroll.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE course SET student_count = student_count + 1, updated_at = now() WHERE id = $1", enr.CourseID)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "incrementing student count")
	}

	if err = tx.Commit(); err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "committing transaction")
	}
	return enr, nil
}

func (repo enrollmentRepository) GetEnrollmentByID(ctx context.Context, id string) (enroll.Enrollment, error) {
	query, args, err := psql.Select("*").From("enrollment").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "building get query")
	}
	var row enrollmentRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return enroll.Enrollment{}, enroll.ErrNotFound
		}
		return enroll.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.unmap(), nil
}

// DeleteEnrollment removes the entry and decrements the course counter,
// floored at 0, in a single transaction.
func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row enrollmentRow
	err = tx.GetContext(ctx, &row, "SELECT * FROM enrollment WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return enroll.ErrNotFound
		}
		return errors.Wrap(err, "locking enrollment")
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM enrollment WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}

	if row.Status == string(enroll.StatusActive) {
		_, err = tx.ExecContext(ctx,
			"UPDATE course SET student_count = GREATEST(student_count - 1, 0), updated_at = now() WHERE id = $1",
			row.CourseID)
		if err != nil {
			return errors.Wrap(err, "decrementing student count")
		}
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo enrollmentRepository) FilterEnrollments(ctx context.Context, filter enroll.Filter) ([]enroll.Enrollment, error) {
	q := psql.Select("*").From("enrollment").OrderBy("enrolled_at DESC")
	if filter.CourseID != "" {
		q = q.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"student_id": filter.StudentID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []enrollmentRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrs := make([]enroll.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.unmap())
	}
	return enrs, nil
}

package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/enroll"
)

type enrollmentRepository struct {
	db       *enrollmentTable
	courseDB *courseTable
}

var _ enroll.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enroll.Repository {
	return &enrollmentRepository{db: db.enrollment, courseDB: db.course}
}

func (repo *enrollmentRepository) query() []enroll.Enrollment {
	enrs := make([]enroll.Enrollment, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		enrs = append(enrs, *e)
	}
	return enrs
}

// CreateEnrollment holds both table locks so the duplicate check, the insert
// and the counter increment are one atomic step; mirrors the SQL transaction.
func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, enr enroll.Enrollment) (enroll.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	crs, ok := repo.courseDB.table[enr.CourseID]
	if !ok {
		return enroll.Enrollment{}, course.ErrNotFound
	}

	for _, e := range repo.query() {
		if e.StudentID == enr.StudentID && e.CourseID == enr.CourseID && e.Status == enroll.StatusActive {
			return enroll.Enrollment{}, enroll.ErrAlreadyEnrolled
		}
	}

	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	repo.db.table[enr.ID] = &enr
	crs.StudentCount++
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollmentByID(_ context.Context, id string) (enroll.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.table[id]; ok {
		return *enr, nil
	}
	return enroll.Enrollment{}, enroll.ErrNotFound
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	enr, ok := repo.db.table[id]
	if !ok {
		return enroll.ErrNotFound
	}
	delete(repo.db.table, id)

	if enr.Status == enroll.StatusActive {
		if crs, ok := repo.courseDB.table[enr.CourseID]; ok && crs.StudentCount > 0 {
			crs.StudentCount--
		}
	}
	return nil
}

func (repo *enrollmentRepository) FilterEnrollments(_ context.Context, filter enroll.Filter) ([]enroll.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrs := make([]enroll.Enrollment, 0)
	for _, e := range repo.query() {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		enrs = append(enrs, e)
	}
	return enrs, nil
}

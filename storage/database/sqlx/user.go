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

	"github.com/trezcool/shule/core/user"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

type userRow struct {
	ID             string       `db:"id"`
	Role           string       `db:"role"`
	FirstName      string       `db:"first_name"`
	LastName       string       `db:"last_name"`
	Email          string       `db:"email"`
	Specialization string       `db:"specialization"`
	IsSuper        bool         `db:"is_super"`
	PasswordHash   []byte       `db:"password_hash"`
	ResetCodeHash  []byte       `db:"reset_code_hash"`
	ResetCodeExp   sql.NullTime `db:"reset_code_exp"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r userRow) unmap() user.User {
	role := user.Role(r.Role)
	if r.IsSuper {
		role = user.RoleSuperAdmin
	}
	usr := user.User{
		ID:             r.ID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Role:           role,
		Specialization: r.Specialization,
		PasswordHash:   r.PasswordHash,
		ResetCodeHash:  r.ResetCodeHash,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ResetCodeExp.Valid {
		usr.ResetCodeExp = r.ResetCodeExp.Time
	}
	return usr
}

func mapUser(usr user.User) userRow {
	row := userRow{
		ID:             usr.ID,
		Role:           string(usr.Role.AuthRole()),
		FirstName:      usr.FirstName,
		LastName:       usr.LastName,
		Email:          usr.Email,
		Specialization: usr.Specialization,
		IsSuper:        usr.Role == user.RoleSuperAdmin,
		PasswordHash:   usr.PasswordHash,
		ResetCodeHash:  usr.ResetCodeHash,
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
	}
	if !usr.ResetCodeExp.IsZero() {
		row.ResetCodeExp = sql.NullTime{Time: usr.ResetCodeExp.UTC(), Valid: true}
	}
	return row
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, role user.Role, email string, excludedUsers ...user.User) error {
	q := psql.Select("COUNT(*)").
		From("identity").
		Where(sq.Eq{"role": string(role.AuthRole())}).
		Where("lower(email) = lower(?)", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := mapUser(usr)

	query, args, err := psql.Insert("identity").
		Columns("id", "role", "first_name", "last_name", "email", "specialization",
			"is_super", "password_hash", "reset_code_hash", "reset_code_exp", "created_at", "updated_at").
		Values(row.ID, row.Role, row.FirstName, row.LastName, row.Email, row.Specialization,
			row.IsSuper, row.PasswordHash, row.ResetCodeHash, row.ResetCodeExp, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building insert query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := psql.Select("*").From("identity").Where(sq.Eq{"role": string(filter.Role.AuthRole())})
	if filter.ID != "" {
		q = q.Where(sq.Eq{"id": filter.ID})
	}
	if filter.Email != "" {
		q = q.Where("lower(email) = lower(?)", filter.Email)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building get query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.unmap(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := mapUser(usr)

	query, args, err := psql.Update("identity").
		Set("first_name", row.FirstName).
		Set("last_name", row.LastName).
		Set("email", row.Email).
		Set("specialization", row.Specialization).
		Set("is_super", row.IsSuper).
		Set("password_hash", row.PasswordHash).
		Set("reset_code_hash", row.ResetCodeHash).
		Set("reset_code_exp", row.ResetCodeExp).
		Set("updated_at", row.UpdatedAt).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building update query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	existing, err := repo.GetUser(ctx, user.GetFilter{Role: usr.Role, Email: usr.Email})
	if err != nil {
		if err == user.ErrNotFound {
			return repo.CreateUser(ctx, usr)
		}
		return user.User{}, err
	}
	usr.ID = existing.ID
	usr.CreatedAt = existing.CreatedAt
	return repo.UpdateUser(ctx, usr)
}

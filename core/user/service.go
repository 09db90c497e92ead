package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
)

type (
	// GetFilter narrows identity lookups. Role is always required:
	// each role is its own collection and emails are only unique within one.
	GetFilter struct {
		Role  Role
		ID    string
		Email string
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, role Role, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		CheckEmailUniqueness(role Role, email string) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, role Role, email, pwd string) (User, error)
		GetByID(ctx context.Context, role Role, id string) (User, error)
		GetByEmail(ctx context.Context, role Role, email string) (User, error)
		RequestPasswordReset(ctx context.Context, role Role, email string) error
		VerifyResetCode(ctx context.Context, role Role, email, code string) (bool, error)
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) CheckEmailUniqueness(role Role, email string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), role, email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		Email:          nu.Email,
		Role:           nu.Role,
		Specialization: nu.Specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

// Authenticate verifies the presented credentials against the role's collection.
// An unknown email and a wrong password both yield ErrInvalidCredentials:
// the caller must not be able to tell which is the case.
func (svc *service) Authenticate(ctx context.Context, role Role, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, role, email)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, role Role, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Role: role.AuthRole(), ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, role Role, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Role: role.AuthRole(), Email: core.CleanString(email, true /* lower */)})
}

// RequestPasswordReset issues a short-lived one-time code and mails it out.
// ErrNotFound is returned for an unknown email; the API layer swallows it so
// the response never reveals whether the address is registered.
func (svc *service) RequestPasswordReset(ctx context.Context, role Role, email string) error {
	usr, err := svc.GetByEmail(ctx, role, email)
	if err != nil {
		return err
	}

	code, err := makeResetCode()
	if err != nil {
		return err
	}
	usr.SetResetCode(code, svc.conf.PasswordResetTimeoutDelta)
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return err
	}

	svc.sendPasswordResetMail(usr, code)
	return nil
}

// VerifyResetCode checks a code without consuming it; clients use it for early validation.
func (svc *service) VerifyResetCode(ctx context.Context, role Role, email, code string) (bool, error) {
	usr, err := svc.GetByEmail(ctx, role, email)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return usr.CheckResetCode(code) == nil, nil
}

// ResetPassword consumes a valid code and sets the new password.
// A wrong, expired or already-cleared code all yield ErrInvalidResetCode;
// the specific cause is only logged server-side.
func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.GetByEmail(ctx, rp.UserType, rp.Email)
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalidResetCode
		}
		return err
	}
	if err = usr.CheckResetCode(rp.ResetCode); err != nil {
		svc.logger.Info(fmt.Sprintf("password reset rejected for %s (%s): %v", usr.Email, usr.Role, err))
		return ErrInvalidResetCode
	}

	if err = usr.SetPassword(rp.NewPassword); err != nil {
		return err
	}
	usr.ClearResetCode()
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject: "Welcome aboard!",
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\nYour %s account has been created. Happy learning!\r\n",
			usr.FirstName, svc.conf.AppName,
		),
	})
}

func (svc *service) sendPasswordResetMail(usr User, code string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject: "Password Reset Code",
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\nYour password reset code is %s. It expires in %d minutes.\r\n"+
				"If you did not request it, you can safely ignore this email.\r\n",
			usr.FirstName, code, int(svc.conf.PasswordResetTimeoutDelta.Minutes()),
		),
	})
}

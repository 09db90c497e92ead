package user

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Role discriminates the identity collections. It is a closed set;
// handlers never branch on raw strings, they go through the predicates below.
type Role string

const (
	RoleStudent    Role = "student"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var AllRoles = []Role{RoleStudent, RoleStaff, RoleAdmin, RoleSuperAdmin}

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) IsAdmin() bool   { return r == RoleAdmin || r == RoleSuperAdmin }
func (r Role) IsStaff() bool   { return r == RoleStaff }
func (r Role) IsStudent() bool { return r == RoleStudent }

// AuthRole resolves the collection a Role authenticates against:
// superadmins live in the admin collection.
func (r Role) AuthRole() Role {
	if r == RoleSuperAdmin {
		return RoleAdmin
	}
	return r
}

type User struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	Specialization string    `json:"specialization,omitempty"` // staff only
	PasswordHash   []byte    `json:"-"`
	ResetCodeHash  []byte    `json:"-"`
	ResetCodeExp   time.Time `json:"-"`
	CreatedAt      time.Time `json:"createdAt"` // UTC
	UpdatedAt      time.Time `json:"updatedAt"` // UTC
}

// SetPassword irreversibly hashes pwd onto the user. The plaintext is never retained.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) FullName() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

// NewUser contains information needed to register a new identity.
type NewUser struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,pwdnotallnum"`
	AcceptTerms    bool   `json:"acceptTerms" validate:"required"`
	Specialization string `json:"specialization"`

	Role Role `json:"-"` // set by the route, never bound from the request
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Specialization = core.CleanString(nu.Specialization)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Role, nu.Email)
}

// ResetUserPassword confirms a password reset with a previously emailed code.
type ResetUserPassword struct {
	Email       string `json:"email" validate:"required,email"`
	ResetCode   string `json:"resetCode" validate:"required,len=6"`
	NewPassword string `json:"newPassword" validate:"required,min=8,pwdnotallnum"`
	UserType    Role   `json:"userType" validate:"required,role"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	rp.ResetCode = core.CleanString(rp.ResetCode)
	return validate.Struct(rp)
}

var (
	roleTag  = "role"
	roleText = "invalid user type"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"
)

// InitValidators registers the user package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(pwdNotAllNumTag, pwdNotAllNumValidation)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
}

func roleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}

func pwdNotAllNumValidation(fl validator.FieldLevel) bool {
	for _, c := range fl.Field().String() {
		if c < '0' || c > '9' {
			return true
		}
	}
	return false
}

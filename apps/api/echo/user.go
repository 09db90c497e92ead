package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type authApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, svc user.Service, validate *validator.Validate) {
	api := authApi{
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/auth")

	// TODO: rate limit `/forgot-password` & `/reset-password`
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/staff/signup", api.staffSignup)
	ag.POST("/staff/login", api.staffLogin)
	ag.POST("/admin/login", api.adminLogin)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/reset-password", api.resetPassword)
	ag.POST("/verify-reset-code", api.verifyResetCode)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	return api.register(ctx, user.RoleStudent)
}

func (api *authApi) staffSignup(ctx echo.Context) error {
	return api.register(ctx, user.RoleStaff)
}

func (api *authApi) register(ctx echo.Context, role user.Role) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Role = role
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}
	if role.IsStaff() && data.Specialization == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "specialization", Error: "this field is required"})
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusCreated, newAuthResponse(usr, token))
}

func (api *authApi) login(ctx echo.Context) error {
	return api.loginAs(ctx, user.RoleStudent)
}

func (api *authApi) staffLogin(ctx echo.Context) error {
	return api.loginAs(ctx, user.RoleStaff)
}

func (api *authApi) adminLogin(ctx echo.Context) error {
	return api.loginAs(ctx, user.RoleAdmin)
}

func (api *authApi) loginAs(ctx echo.Context, role user.Role) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, token, err := authenticate(ctx, role, data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newAuthResponse(usr, token))
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data ForgotPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ForgotPasswordRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.UserType, data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "If the email address supplied is associated with an account on this system, " +
			"an email with a password reset code will arrive in your inbox shortly.",
	})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Password has been reset with the new password."})
}

func (api *authApi) verifyResetCode(ctx echo.Context) error {
	var data VerifyResetCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyResetCodeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	valid, err := api.svc.VerifyResetCode(ctx.Request().Context(), data.UserType, data.Email, data.ResetCode)
	if err != nil {
		return errors.Wrap(err, "verifying reset code")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"valid": valid})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	ForgotPasswordRequest struct {
		Email    string    `json:"email" validate:"required,email"`
		UserType user.Role `json:"userType" validate:"required,role"`
	}

	VerifyResetCodeRequest struct {
		Email     string    `json:"email" validate:"required,email"`
		ResetCode string    `json:"resetCode" validate:"required,len=6"`
		UserType  user.Role `json:"userType" validate:"required,role"`
	}

	AuthResponse struct {
		ID        string    `json:"id"`
		FirstName string    `json:"firstName"`
		LastName  string    `json:"lastName"`
		Email     string    `json:"email"`
		Role      user.Role `json:"role"`
		Token     string    `json:"token"`
	}
)

func newAuthResponse(usr user.User, token string) AuthResponse {
	return AuthResponse{
		ID:        usr.ID,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Email:     usr.Email,
		Role:      usr.Role,
		Token:     token,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (fr *ForgotPasswordRequest) Validate(validate *validator.Validate) error {
	fr.Email = core.CleanString(fr.Email, true /* lower */)
	return validate.Struct(fr)
}

func (vr *VerifyResetCodeRequest) Validate(validate *validator.Validate) error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.ResetCode = core.CleanString(vr.ResetCode)
	return validate.Struct(vr)
}

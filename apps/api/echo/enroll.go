package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/enroll"
)

type enrollmentApi struct {
	svc      enroll.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, guard echo.MiddlewareFunc, svc enroll.Service, validate *validator.Validate) {
	api := enrollmentApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/enrollments", guard)

	eg.POST("", api.enroll, studentMiddleware())
	eg.GET("/my-enrollments", api.myEnrollments, studentMiddleware())
	eg.GET("/course/:courseId", api.courseEnrollments, staffOrAdminMiddleware())
	eg.DELETE("/:id", api.unenroll, studentMiddleware())
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enroll.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), usr, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) myEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	enrs, err := api.svc.ForStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) courseEnrollments(ctx echo.Context) error {
	enrs, err := api.svc.ForCourse(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) unenroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(ctx.Request().Context(), ctx.Param("id"), usr.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Enrollment cancelled."})
}

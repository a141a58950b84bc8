package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

type sessionApi struct {
	usrSvc   user.Service
	svc      session.Service
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc session.Service,
	validate *validator.Validate,
) {
	api := sessionApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.create, adminMiddleware())
	sg.GET("", api.query)
	sg.GET("/active", api.retrieveActive)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.POST("/:id/activate", api.activate, adminMiddleware())
	sg.POST("/:id/enrollments", api.enroll, adminMiddleware())
	sg.GET("/:id/enrollments", api.queryEnrollments, adminMiddleware())

	eg := g.Group("/enrollments", jwt)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PUT("/:id/supervisors", api.assignSupervisor, adminMiddleware())
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	sessions, err := api.svc.QuerySessions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieveActive(ctx echo.Context) error {
	sess, err := api.svc.GetActiveSession(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding active session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.GetSessionByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding session by ID")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.UpdateSession(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) activate(ctx echo.Context) error {
	var data ActivateSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivateSessionRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	sess, err := api.svc.ActivateSession(ctx.Request().Context(), ctx.Param("id"), *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "activating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) enroll(ctx echo.Context) error {
	var data session.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	data.SessionID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *sessionApi) queryEnrollments(ctx echo.Context) error {
	enrollments, err := api.svc.QueryEnrollmentsBySession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []session.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *sessionApi) retrieveEnrollment(ctx echo.Context) error {
	enr, err := api.svc.GetEnrollmentByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding enrollment by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !canViewEnrollment(ctxUsr, enr) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *sessionApi) assignSupervisor(ctx echo.Context) error {
	var data session.AssignSupervisor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignSupervisor")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.AssignSupervisor(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning supervisor")
	}
	return ctx.JSON(http.StatusOK, enr)
}

// canViewEnrollment allows the enrolled student, their assigned supervisors
// and admins.
func canViewEnrollment(usr user.User, enr session.Enrollment) bool {
	if usr.IsAdmin() || usr.ID == enr.StudentID {
		return true
	}
	return (enr.IndustrySupervisorID.Valid && enr.IndustrySupervisorID.String == usr.ID) ||
		(enr.SchoolSupervisorID.Valid && enr.SchoolSupervisorID.String == usr.ID)
}

type ActivateSessionRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/user"
)

type logbookApi struct {
	usrSvc   user.Service
	svc      logbook.Service
	validate *validator.Validate
}

func registerLogbookAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc logbook.Service,
	validate *validator.Validate,
) {
	api := logbookApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/logbook", jwt)
	lg.GET("/supervisor-dashboard", api.supervisorDashboard, supervisorMiddleware())
	lg.GET("/:sessionID/students/:studentID/weeks", api.queryWeeks)
	lg.GET("/:sessionID/students/:studentID/weeks/:week", api.retrieveWeek)
	lg.GET("/:sessionID/students/:studentID/dashboard", api.studentDashboard)
	lg.POST("/:sessionID/export", api.export)

	eg := lg.Group("/entries/:entryID")
	eg.GET("", api.retrieveEntry)
	eg.POST("/days", api.saveDay)
	eg.DELETE("/days/:day", api.clearDay)
	eg.POST("/lock", api.lock, supervisorMiddleware())
	eg.POST("/unlock", api.unlock, supervisorMiddleware())
	eg.POST("/review-request", api.requestReview)
	eg.GET("/comments", api.queryComments)
	eg.POST("/comments", api.addComment, supervisorMiddleware())
	eg.GET("/diagrams", api.queryDiagrams)
	eg.POST("/diagrams", api.attachDiagram)
	eg.DELETE("/diagrams/:diagramID", api.removeDiagram)

	lg.POST("/reviews/:requestID/mark-reviewed", api.markReviewed, supervisorMiddleware())
}

// Handlers

func (api *logbookApi) retrieveWeek(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	week, err := strconv.Atoi(ctx.Param("week"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "week_number", Error: "must be a number"})
	}

	entry, err := api.svc.GetOrCreateEntry(
		ctx.Request().Context(), actor, ctx.Param("studentID"), ctx.Param("sessionID"), week)
	if err != nil {
		return errors.Wrap(err, "getting weekly entry")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) queryWeeks(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entries, err := api.svc.QueryEntries(
		ctx.Request().Context(), actor, ctx.Param("studentID"), ctx.Param("sessionID"))
	if err != nil {
		return errors.Wrap(err, "querying weekly entries")
	}
	if entries == nil {
		entries = []logbook.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *logbookApi) retrieveEntry(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entry, err := api.svc.GetEntryByID(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "finding weekly entry by ID")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) saveDay(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data logbook.UpsertDay
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertDay")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.SaveDay(ctx.Request().Context(), actor, ctx.Param("entryID"), data)
	if err != nil {
		return errors.Wrap(err, "saving day")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) clearDay(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	day, err := logbook.ParseDay(ctx.Param("day"))
	if err != nil {
		return err
	}

	entry, err := api.svc.ClearDay(ctx.Request().Context(), actor, ctx.Param("entryID"), day)
	if err != nil {
		return errors.Wrap(err, "clearing day")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) lock(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entry, err := api.svc.Lock(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "locking week")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) unlock(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entry, err := api.svc.Unlock(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "unlocking week")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *logbookApi) requestReview(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rr, err := api.svc.RequestReview(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "requesting review")
	}
	return ctx.JSON(http.StatusCreated, rr)
}

func (api *logbookApi) markReviewed(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rr, err := api.svc.MarkReviewed(ctx.Request().Context(), actor, ctx.Param("requestID"))
	if err != nil {
		return errors.Wrap(err, "marking review request reviewed")
	}
	return ctx.JSON(http.StatusOK, rr)
}

func (api *logbookApi) addComment(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data logbook.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	comment, err := api.svc.AddComment(ctx.Request().Context(), actor, ctx.Param("entryID"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, comment)
}

func (api *logbookApi) queryComments(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	comments, err := api.svc.QueryComments(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []logbook.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *logbookApi) attachDiagram(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	data := logbook.NewDiagram{
		FileName: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Caption:  ctx.FormValue("caption"),
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = file.Close() }()

	diagram, err := api.svc.AttachDiagram(ctx.Request().Context(), actor, ctx.Param("entryID"), data, file)
	if err != nil {
		return errors.Wrap(err, "attaching diagram")
	}
	return ctx.JSON(http.StatusCreated, diagram)
}

func (api *logbookApi) queryDiagrams(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	diagrams, err := api.svc.QueryDiagrams(ctx.Request().Context(), actor, ctx.Param("entryID"))
	if err != nil {
		return errors.Wrap(err, "querying diagrams")
	}
	if diagrams == nil {
		diagrams = []logbook.Diagram{}
	}
	return ctx.JSON(http.StatusOK, diagrams)
}

func (api *logbookApi) removeDiagram(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	err = api.svc.RemoveDiagram(ctx.Request().Context(), actor, ctx.Param("entryID"), ctx.Param("diagramID"))
	if err != nil {
		return errors.Wrap(err, "removing diagram")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *logbookApi) export(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	studentID := ctx.QueryParam("student_id")
	if studentID == "" {
		studentID = actor.ID
	}

	err = api.svc.RequestExport(ctx.Request().Context(), actor, studentID, ctx.Param("sessionID"))
	if err != nil {
		return errors.Wrap(err, "requesting export")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{
		Success: "Export queued. A download link will be emailed to the student when it is ready.",
	})
}

func (api *logbookApi) studentDashboard(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	dash, err := api.svc.StudentDashboard(
		ctx.Request().Context(), actor, ctx.Param("studentID"), ctx.Param("sessionID"))
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *logbookApi) supervisorDashboard(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	dash, err := api.svc.SupervisorDashboard(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "building supervisor dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

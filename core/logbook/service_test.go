package logbook_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
	emailsvc "github.com/siwesng/slims/services/email"
	filesvc "github.com/siwesng/slims/services/filestore"
	queuesvc "github.com/siwesng/slims/services/queue"
	dummydb "github.com/siwesng/slims/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fixtures struct {
	svc     logbook.Service
	sessSvc session.Service
	repo    logbook.Repository
	queue   *queuesvc.QueueMock
	files   *filesvc.MemoryStorage

	student     user.User
	otherStud   user.User
	industrySup user.User
	schoolSup   user.User
	admin       user.User
	sess        session.Session
	enr         session.Enrollment
}

func setup(t *testing.T) fixtures {
	t.Helper()
	ctx := context.Background()

	conf := &core.Config{
		AppName: "SLIMS",
		Logbook: core.LogbookConfig{ReviewRequestTTL: 14 * 24 * time.Hour},
		Media:   core.MediaConfig{ExportTTL: 24 * time.Hour},
	}
	db, err := dummydb.Open()
	require.NoError(t, err)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(conf, usrRepo, mailSvc)
	sessSvc := session.NewService(dummydb.NewSessionRepository(db), usrSvc)
	lbRepo := dummydb.NewLogbookRepository(db)
	queue := queuesvc.NewQueueMock()
	files := filesvc.NewMemoryStorage()
	svc := logbook.NewService(conf, lbRepo, sessSvc, usrSvc, mailSvc, queue, files, nopLogger{})

	newUser := func(name string, roles ...string) user.User {
		isActive := true
		now := time.Now().UTC()
		usr, err := usrRepo.CreateUser(ctx, user.User{
			Name:      name,
			Username:  strings.ToLower(name),
			Email:     strings.ToLower(name) + "@test.test",
			IsActive:  &isActive,
			Roles:     roles,
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
		return usr
	}

	fx := fixtures{
		svc:         svc,
		sessSvc:     sessSvc,
		repo:        lbRepo,
		queue:       queue,
		files:       files,
		student:     newUser("Amina", user.RoleStudent),
		otherStud:   newUser("Bayo", user.RoleStudent),
		industrySup: newUser("Chidi", user.RoleSupervisorIndustry),
		schoolSup:   newUser("Dara", user.RoleSupervisorSchool),
		admin:       newUser("Efe", user.RoleAdmin),
	}

	fx.sess, err = sessSvc.CreateSession(ctx, session.NewSession{
		Name:       "2025/2026",
		StartDate:  time.Now().UTC().AddDate(0, 0, -7), // week 2
		TotalWeeks: 24,
	})
	require.NoError(t, err)

	fx.enr, err = sessSvc.Enroll(ctx, session.NewEnrollment{
		SessionID:   fx.sess.ID,
		StudentID:   fx.student.ID,
		CompanyName: "Acme Engineering Ltd",
	})
	require.NoError(t, err)
	fx.enr, err = sessSvc.AssignSupervisor(ctx, fx.enr.ID, session.AssignSupervisor{
		SupervisorID: fx.industrySup.ID,
		Role:         user.RoleSupervisorIndustry,
	})
	require.NoError(t, err)
	fx.enr, err = sessSvc.AssignSupervisor(ctx, fx.enr.ID, session.AssignSupervisor{
		SupervisorID: fx.schoolSup.ID,
		Role:         user.RoleSupervisorSchool,
	})
	require.NoError(t, err)
	return fx
}

func (fx fixtures) entry(t *testing.T, week int) logbook.Entry {
	t.Helper()
	e, err := fx.svc.GetOrCreateEntry(context.Background(), fx.student, fx.student.ID, fx.sess.ID, week)
	require.NoError(t, err)
	return e
}

func (fx fixtures) filledEntry(t *testing.T, week int) logbook.Entry {
	t.Helper()
	e := fx.entry(t, week)
	e, err := fx.svc.SaveDay(context.Background(), fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayMonday),
		Content: "Calibrated the flow meters",
	})
	require.NoError(t, err)
	return e
}

func TestGetOrCreateEntry(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	e := fx.entry(t, 1)
	assert.Equal(t, 1, e.WeekNumber)
	assert.False(t, e.IsLocked)

	// same week resolves to the same row
	again := fx.entry(t, 1)
	assert.Equal(t, e.ID, again.ID)

	// supervisors can view but never create
	_, err := fx.svc.GetOrCreateEntry(ctx, fx.industrySup, fx.student.ID, fx.sess.ID, 2)
	assert.Equal(t, logbook.ErrNotFound, err)

	// week bounds
	_, err = fx.svc.GetOrCreateEntry(ctx, fx.student, fx.student.ID, fx.sess.ID, 0)
	assert.Error(t, err)
	_, err = fx.svc.GetOrCreateEntry(ctx, fx.student, fx.student.ID, fx.sess.ID, 25)
	assert.Error(t, err)

	// other students have no business here
	_, err = fx.svc.GetOrCreateEntry(ctx, fx.otherStud, fx.student.ID, fx.sess.ID, 1)
	assert.Error(t, err)
}

func TestSaveDay(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.entry(t, 1)

	e, err := fx.svc.SaveDay(ctx, fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayTuesday),
		Content: "Shadowed the maintenance team",
	})
	require.NoError(t, err)
	assert.Equal(t, "Shadowed the maintenance team", e.Tuesday)

	// saving overwrites
	e, err = fx.svc.SaveDay(ctx, fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayTuesday),
		Content: "Serviced pump B",
	})
	require.NoError(t, err)
	assert.Equal(t, "Serviced pump B", e.Tuesday)

	// supervisors cannot write content
	_, err = fx.svc.SaveDay(ctx, fx.industrySup, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayMonday),
		Content: "nope",
	})
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	// locked week rejects writes
	_, err = fx.svc.Lock(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	_, err = fx.svc.SaveDay(ctx, fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayWednesday),
		Content: "too late",
	})
	assert.Equal(t, logbook.ErrWeekLocked, err)

	// and deletes
	_, err = fx.svc.ClearDay(ctx, fx.student, e.ID, logbook.DayTuesday)
	assert.Equal(t, logbook.ErrWeekLocked, err)
}

func TestLockUnlock(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.filledEntry(t, 1)

	// students cannot lock
	_, err := fx.svc.Lock(ctx, fx.student, e.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	e, err = fx.svc.Lock(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	assert.True(t, e.IsLocked)
	assert.Equal(t, logbook.LockedByIndustrySupervisor, e.LockedBy.String)
	assert.True(t, e.LockedAt.Valid)

	// re-locking is a no-op
	again, err := fx.svc.Lock(ctx, fx.schoolSup, e.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.LockedByIndustrySupervisor, again.LockedBy.String)

	// a school supervisor cannot release an industry lock
	_, err = fx.svc.Unlock(ctx, fx.schoolSup, e.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	e, err = fx.svc.Unlock(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	assert.False(t, e.IsLocked)
	assert.False(t, e.LockedBy.Valid)
	assert.False(t, e.LockedAt.Valid)

	// unlocking an unlocked week is a no-op
	_, err = fx.svc.Unlock(ctx, fx.industrySup, e.ID)
	assert.NoError(t, err)

	// admin locks are MANUAL and admin-only to release
	e, err = fx.svc.Lock(ctx, fx.admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.LockedByManual, e.LockedBy.String)
	_, err = fx.svc.Unlock(ctx, fx.industrySup, e.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)
	e, err = fx.svc.Unlock(ctx, fx.admin, e.ID)
	require.NoError(t, err)
	assert.False(t, e.IsLocked)
}

func TestRequestReview(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// an empty week cannot be reviewed
	empty := fx.entry(t, 2)
	_, err := fx.svc.RequestReview(ctx, fx.student, empty.ID)
	assert.Error(t, err)

	e := fx.filledEntry(t, 1)
	rr, err := fx.svc.RequestReview(ctx, fx.student, e.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.ReviewPending, rr.Status)
	assert.Equal(t, fx.industrySup.ID, rr.IndustrySupervisorID)

	// one active request per week
	_, err = fx.svc.RequestReview(ctx, fx.student, e.ID)
	assert.Equal(t, logbook.ErrDuplicateReviewRequest, err)

	// supervisors cannot request reviews
	_, err = fx.svc.RequestReview(ctx, fx.industrySup, e.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	// a locked week cannot be sent for review
	locked := fx.filledEntry(t, 3)
	_, err = fx.svc.Lock(ctx, fx.industrySup, locked.ID)
	require.NoError(t, err)
	_, err = fx.svc.RequestReview(ctx, fx.student, locked.ID)
	assert.Equal(t, logbook.ErrWeekLocked, err)
}

func TestRequestReviewReopensExpired(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.filledEntry(t, 1)

	rr, err := fx.svc.RequestReview(ctx, fx.student, e.ID)
	require.NoError(t, err)

	// age the request past the TTL, then sweep
	_, err = fx.repo.ReopenReviewRequest(ctx, rr.ID, time.Now().UTC().Add(-15*24*time.Hour))
	require.NoError(t, err)
	n, err := fx.svc.ExpireStaleReviews(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// a fresh ask reuses the expired slot
	rr2, err := fx.svc.RequestReview(ctx, fx.student, e.ID)
	require.NoError(t, err)
	assert.Equal(t, rr.ID, rr2.ID)
	assert.Equal(t, logbook.ReviewPending, rr2.Status)
}

func TestAddComment(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.filledEntry(t, 1)

	rr, err := fx.svc.RequestReview(ctx, fx.student, e.ID)
	require.NoError(t, err)

	// students do not comment
	_, err = fx.svc.AddComment(ctx, fx.student, e.ID, logbook.NewComment{Content: "nice week"})
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	// school supervisor comments do not resolve reviews
	c, err := fx.svc.AddComment(ctx, fx.schoolSup, e.ID, logbook.NewComment{Content: "Add more detail on Tuesday."})
	require.NoError(t, err)
	assert.Equal(t, logbook.CommenterSchoolSupervisor, c.CommenterType)
	rr, err = fx.repo.GetReviewRequestByID(ctx, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.ReviewPending, rr.Status)

	// industry supervisor comments resolve the pending review
	c, err = fx.svc.AddComment(ctx, fx.industrySup, e.ID, logbook.NewComment{Content: "Good work on the meters."})
	require.NoError(t, err)
	assert.Equal(t, logbook.CommenterIndustrySupervisor, c.CommenterType)
	rr, err = fx.repo.GetReviewRequestByID(ctx, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.ReviewReviewed, rr.Status)
	assert.True(t, rr.ReviewedAt.Valid)

	// comments still land on locked weeks
	_, err = fx.svc.Lock(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	_, err = fx.svc.AddComment(ctx, fx.industrySup, e.ID, logbook.NewComment{Content: "Signed off."})
	assert.NoError(t, err)

	comments, err := fx.svc.QueryComments(ctx, fx.student, e.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 3)
}

func TestMarkReviewed(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.filledEntry(t, 1)

	rr, err := fx.svc.RequestReview(ctx, fx.student, e.ID)
	require.NoError(t, err)

	// only the assigned industry supervisor (or an admin) resolves it
	_, err = fx.svc.MarkReviewed(ctx, fx.schoolSup, rr.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)

	rr, err = fx.svc.MarkReviewed(ctx, fx.industrySup, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.ReviewReviewed, rr.Status)

	// resolving twice stays reviewed
	rr, err = fx.svc.MarkReviewed(ctx, fx.industrySup, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, logbook.ReviewReviewed, rr.Status)
}

func TestDiagrams(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	e := fx.filledEntry(t, 1)

	d, err := fx.svc.AttachDiagram(ctx, fx.student, e.ID, logbook.NewDiagram{
		FileName: "pump-schematic.png",
		Size:     2048,
		MimeType: "image/png",
		Caption:  "Pump B schematic",
	}, strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Contains(t, d.URL, "pump-schematic.png")
	assert.Equal(t, 1, fx.files.Len())

	diagrams, err := fx.svc.QueryDiagrams(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	assert.Len(t, diagrams, 1)

	// only the owner edits attachments
	err = fx.svc.RemoveDiagram(ctx, fx.otherStud, e.ID, d.ID)
	assert.Error(t, err)

	err = fx.svc.RemoveDiagram(ctx, fx.student, e.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fx.files.Len())

	// attachments freeze with the week
	_, err = fx.svc.Lock(ctx, fx.industrySup, e.ID)
	require.NoError(t, err)
	_, err = fx.svc.AttachDiagram(ctx, fx.student, e.ID, logbook.NewDiagram{
		FileName: "late.png",
		Size:     10,
		MimeType: "image/png",
	}, strings.NewReader("x"))
	assert.Equal(t, logbook.ErrWeekLocked, err)
}

func TestRequestExport(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.RequestExport(ctx, fx.student, fx.student.ID, fx.sess.ID))
	jobs := fx.queue.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, core.JobExportPDF, jobs[0].Type)
	assert.Equal(t, core.ExportPDFPayload{StudentID: fx.student.ID, SessionID: fx.sess.ID}, jobs[0].Payload)

	err := fx.svc.RequestExport(ctx, fx.otherStud, fx.student.ID, fx.sess.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)
}

func TestStudentDashboard(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fx.filledEntry(t, 1)
	e3 := fx.filledEntry(t, 3)
	fx.entry(t, 4) // accessed but empty
	_, err := fx.svc.Lock(ctx, fx.industrySup, e3.ID)
	require.NoError(t, err)
	_, err = fx.svc.RequestReview(ctx, fx.student, fx.filledEntry(t, 5).ID)
	require.NoError(t, err)

	dash, err := fx.svc.StudentDashboard(ctx, fx.student, fx.student.ID, fx.sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.Progress.CompletedWeeks)
	assert.Equal(t, 24, dash.Progress.TotalWeeks)
	assert.InDelta(t, 12.5, dash.Progress.Percent, 0.01)
	assert.Equal(t, 2, dash.CurrentWeek)
	assert.Equal(t, 1, dash.LockedWeeks)
	assert.True(t, dash.PendingReview)

	// alerts come back highest priority first
	require.NotEmpty(t, dash.Alerts)
	for i := 1; i < len(dash.Alerts); i++ {
		assert.GreaterOrEqual(t, dash.Alerts[i-1].Priority, dash.Alerts[i].Priority)
	}
	assert.Equal(t, "current_week_empty", dash.Alerts[0].Code)

	// supervisors see their students' dashboards too
	_, err = fx.svc.StudentDashboard(ctx, fx.schoolSup, fx.student.ID, fx.sess.ID)
	assert.NoError(t, err)
	_, err = fx.svc.StudentDashboard(ctx, fx.otherStud, fx.student.ID, fx.sess.ID)
	assert.Equal(t, logbook.ErrPermissionDenied, err)
}

func TestSupervisorDashboard(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fx.filledEntry(t, 1)
	_, err := fx.svc.RequestReview(ctx, fx.student, fx.filledEntry(t, 2).ID)
	require.NoError(t, err)

	dash, err := fx.svc.SupervisorDashboard(ctx, fx.industrySup)
	require.NoError(t, err)
	require.Len(t, dash.Students, 1)
	assert.Equal(t, fx.student.ID, dash.Students[0].StudentID)
	assert.Equal(t, "Acme Engineering Ltd", dash.Students[0].CompanyName)
	assert.Equal(t, 2, dash.Students[0].Progress.CompletedWeeks)
	require.Len(t, dash.PendingReviews, 1)

	// school supervisor sees the student but no review queue
	dash, err = fx.svc.SupervisorDashboard(ctx, fx.schoolSup)
	require.NoError(t, err)
	assert.Len(t, dash.Students, 1)
	assert.Empty(t, dash.PendingReviews)

	_, err = fx.svc.SupervisorDashboard(ctx, fx.student)
	assert.Equal(t, logbook.ErrPermissionDenied, err)
}

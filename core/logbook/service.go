package logbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

var (
	// errors
	ErrNotFound               = errors.New("weekly entry not found")
	ErrReviewRequestNotFound  = errors.New("review request not found")
	ErrDiagramNotFound        = errors.New("diagram not found")
	ErrWeekLocked             = errors.New("week is locked")
	ErrEntryExists            = errors.New("weekly entry already exists")
	ErrDuplicateReviewRequest = errors.New("a review request for this week is already pending")
	ErrPermissionDenied       = errors.New("permission denied")
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		GetEntryByID(ctx context.Context, id string, exec ...core.DBExecutor) (Entry, error)
		GetEntry(ctx context.Context, studentID, sessionID string, week int, exec ...core.DBExecutor) (Entry, error)
		QueryEntries(ctx context.Context, studentID, sessionID string, exec ...core.DBExecutor) ([]Entry, error)
		// UpdateEntryDay writes one day's content as a single conditional update
		// that only matches unlocked rows. Returns ErrWeekLocked when the row
		// exists but is locked.
		UpdateEntryDay(ctx context.Context, id string, day Day, content string, updatedAt time.Time, exec ...core.DBExecutor) (Entry, error)
		// SetEntryLock flips the lock state iff the current state equals
		// fromLocked (compare-and-swap). ok is false when no row matched,
		// meaning a concurrent transition won.
		SetEntryLock(ctx context.Context, id string, fromLocked bool, lock EntryLock, updatedAt time.Time, exec ...core.DBExecutor) (e Entry, ok bool, err error)

		// CreateReviewRequest returns ErrDuplicateReviewRequest on the
		// one-request-per-entry unique constraint.
		CreateReviewRequest(ctx context.Context, rr ReviewRequest, exec ...core.DBExecutor) (ReviewRequest, error)
		GetReviewRequestByID(ctx context.Context, id string, exec ...core.DBExecutor) (ReviewRequest, error)
		GetReviewRequestByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) (ReviewRequest, error)
		// ReopenReviewRequest resets an expired request back to pending.
		ReopenReviewRequest(ctx context.Context, id string, requestedAt time.Time, exec ...core.DBExecutor) (ReviewRequest, error)
		// MarkReviewRequestReviewed transitions pending to reviewed
		// (compare-and-swap). ok is false when the request was not pending.
		MarkReviewRequestReviewed(ctx context.Context, id string, reviewedAt time.Time, exec ...core.DBExecutor) (rr ReviewRequest, ok bool, err error)
		ExpireReviewRequestsBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error)
		QueryReviewRequestsBySupervisor(ctx context.Context, supervisorID, status string, exec ...core.DBExecutor) ([]ReviewRequest, error)
		QueryReviewRequestsByStudent(ctx context.Context, studentID, status string, exec ...core.DBExecutor) ([]ReviewRequest, error)

		CreateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		QueryCommentsByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) ([]Comment, error)

		CreateDiagram(ctx context.Context, d Diagram, exec ...core.DBExecutor) (Diagram, error)
		GetDiagramByID(ctx context.Context, id string, exec ...core.DBExecutor) (Diagram, error)
		QueryDiagramsByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) ([]Diagram, error)
		DeleteDiagram(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		GetOrCreateEntry(ctx context.Context, actor user.User, studentID, sessionID string, week int) (Entry, error)
		GetEntryByID(ctx context.Context, actor user.User, id string) (Entry, error)
		QueryEntries(ctx context.Context, actor user.User, studentID, sessionID string) ([]Entry, error)
		SaveDay(ctx context.Context, actor user.User, entryID string, ud UpsertDay) (Entry, error)
		ClearDay(ctx context.Context, actor user.User, entryID string, day Day) (Entry, error)

		Lock(ctx context.Context, actor user.User, entryID string) (Entry, error)
		Unlock(ctx context.Context, actor user.User, entryID string) (Entry, error)

		RequestReview(ctx context.Context, actor user.User, entryID string) (ReviewRequest, error)
		MarkReviewed(ctx context.Context, actor user.User, requestID string) (ReviewRequest, error)
		ExpireStaleReviews(ctx context.Context) (int64, error)

		AddComment(ctx context.Context, actor user.User, entryID string, nc NewComment) (Comment, error)
		QueryComments(ctx context.Context, actor user.User, entryID string) ([]Comment, error)

		AttachDiagram(ctx context.Context, actor user.User, entryID string, nd NewDiagram, content io.Reader) (Diagram, error)
		QueryDiagrams(ctx context.Context, actor user.User, entryID string) ([]Diagram, error)
		RemoveDiagram(ctx context.Context, actor user.User, entryID, diagramID string) error

		RequestExport(ctx context.Context, actor user.User, studentID, sessionID string) error

		StudentDashboard(ctx context.Context, actor user.User, studentID, sessionID string) (StudentDashboard, error)
		SupervisorDashboard(ctx context.Context, actor user.User) (SupervisorDashboard, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		sessSvc session.Service
		usrSvc  user.Service
		mailSvc core.EmailService
		queue   core.JobQueue
		files   core.FileStorage
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	sessSvc session.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	queue core.JobQueue,
	files core.FileStorage,
	logger core.Logger,
) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		sessSvc: sessSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		queue:   queue,
		files:   files,
		logger:  logger,
	}
}

// enrollmentFor loads the enrollment backing e and checks that actor may
// perform action on it.
func (svc *service) enrollmentFor(ctx context.Context, actor user.User, action Action, e Entry) (session.Enrollment, error) {
	enr, err := svc.sessSvc.GetEnrollment(ctx, e.SessionID, e.StudentID)
	if err != nil {
		return session.Enrollment{}, err
	}
	if !Can(actor, action, enr) {
		return session.Enrollment{}, ErrPermissionDenied
	}
	return enr, nil
}

func (svc *service) GetOrCreateEntry(ctx context.Context, actor user.User, studentID, sessionID string, week int) (Entry, error) {
	sess, err := svc.sessSvc.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Entry{}, err
	}
	if week < 1 || week > sess.TotalWeeks {
		return Entry{}, core.NewValidationError(
			nil, core.FieldError{Field: "week_number", Error: fmt.Sprintf("must be between 1 and %d", sess.TotalWeeks)})
	}
	enr, err := svc.sessSvc.GetEnrollment(ctx, sessionID, studentID)
	if err != nil {
		return Entry{}, err
	}
	if !Can(actor, ActionView, enr) {
		return Entry{}, ErrPermissionDenied
	}

	e, err := svc.repo.GetEntry(ctx, studentID, sessionID, week)
	if err == nil {
		return e, nil
	}
	if err != ErrNotFound || actor.ID != studentID {
		return Entry{}, err
	}

	// first access by the owning student; create the week lazily
	now := time.Now().UTC()
	e, err = svc.repo.CreateEntry(ctx, Entry{
		StudentID:  studentID,
		SessionID:  sessionID,
		WeekNumber: week,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err == ErrEntryExists {
		// lost a concurrent first-access race; the winner's row is ours too
		return svc.repo.GetEntry(ctx, studentID, sessionID, week)
	}
	return e, err
}

func (svc *service) GetEntryByID(ctx context.Context, actor user.User, id string) (Entry, error) {
	e, err := svc.repo.GetEntryByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionView, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (svc *service) QueryEntries(ctx context.Context, actor user.User, studentID, sessionID string) ([]Entry, error) {
	enr, err := svc.sessSvc.GetEnrollment(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if !Can(actor, ActionView, enr) {
		return nil, ErrPermissionDenied
	}
	return svc.repo.QueryEntries(ctx, studentID, sessionID)
}

func (svc *service) SaveDay(ctx context.Context, actor user.User, entryID string, ud UpsertDay) (Entry, error) {
	return svc.writeDay(ctx, actor, entryID, Day(ud.Day), ud.Content)
}

func (svc *service) ClearDay(ctx context.Context, actor user.User, entryID string, day Day) (Entry, error) {
	return svc.writeDay(ctx, actor, entryID, day, "")
}

func (svc *service) writeDay(ctx context.Context, actor user.User, entryID string, day Day, content string) (Entry, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionEdit, e); err != nil {
		return Entry{}, err
	}
	if e.IsLocked {
		return Entry{}, ErrWeekLocked
	}
	// the conditional update still fails with ErrWeekLocked if a lock
	// lands between the check above and the write
	return svc.repo.UpdateEntryDay(ctx, entryID, day, content, time.Now().UTC())
}

func (svc *service) Lock(ctx context.Context, actor user.User, entryID string) (Entry, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionLock, e); err != nil {
		return Entry{}, err
	}
	if e.IsLocked {
		return e, nil // already locked; idempotent
	}

	lockedBy := LockedByManual
	switch {
	case actor.IsIndustrySupervisor():
		lockedBy = LockedByIndustrySupervisor
	case actor.IsSchoolSupervisor():
		lockedBy = LockedBySchoolSupervisor
	}

	now := time.Now().UTC()
	locked, ok, err := svc.repo.SetEntryLock(ctx, entryID, false, EntryLock{
		IsLocked: true,
		LockedBy: null.StringFrom(lockedBy),
		LockedAt: null.TimeFrom(now),
	}, now)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		// a concurrent lock won; the week is locked either way
		return svc.repo.GetEntryByID(ctx, entryID)
	}

	svc.sendLockStateMail(ctx, locked, actor, true)
	return locked, nil
}

func (svc *service) Unlock(ctx context.Context, actor user.User, entryID string) (Entry, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	enr, err := svc.sessSvc.GetEnrollment(ctx, e.SessionID, e.StudentID)
	if err != nil {
		return Entry{}, err
	}
	if !e.IsLocked {
		if !Can(actor, ActionUnlock, enr) {
			return Entry{}, ErrPermissionDenied
		}
		return e, nil // already unlocked; idempotent
	}
	if !canUnlock(actor, enr, e.LockedBy.String) {
		return Entry{}, ErrPermissionDenied
	}

	now := time.Now().UTC()
	unlocked, ok, err := svc.repo.SetEntryLock(ctx, entryID, true, EntryLock{}, now)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return svc.repo.GetEntryByID(ctx, entryID)
	}

	svc.sendLockStateMail(ctx, unlocked, actor, false)
	return unlocked, nil
}

func (svc *service) RequestReview(ctx context.Context, actor user.User, entryID string) (ReviewRequest, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return ReviewRequest{}, err
	}
	enr, err := svc.enrollmentFor(ctx, actor, ActionRequestReview, e)
	if err != nil {
		return ReviewRequest{}, err
	}
	if e.IsLocked {
		return ReviewRequest{}, ErrWeekLocked
	}
	if !e.HasContent() {
		return ReviewRequest{}, core.NewValidationError(
			nil, core.FieldError{Field: "entry_id", Error: "cannot request a review of an empty week"})
	}
	if !enr.IndustrySupervisorID.Valid {
		return ReviewRequest{}, core.NewValidationError(
			nil, core.FieldError{Field: "entry_id", Error: "no industry supervisor assigned yet"})
	}

	now := time.Now().UTC()
	if existing, err := svc.repo.GetReviewRequestByEntry(ctx, entryID); err == nil {
		if existing.Status != ReviewExpired {
			return ReviewRequest{}, ErrDuplicateReviewRequest
		}
		rr, err := svc.repo.ReopenReviewRequest(ctx, existing.ID, now)
		if err != nil {
			return ReviewRequest{}, err
		}
		svc.sendReviewRequestedMail(ctx, e, enr)
		return rr, nil
	} else if err != ErrReviewRequestNotFound {
		return ReviewRequest{}, err
	}

	rr, err := svc.repo.CreateReviewRequest(ctx, ReviewRequest{
		EntryID:              entryID,
		StudentID:            e.StudentID,
		IndustrySupervisorID: enr.IndustrySupervisorID.String,
		Status:               ReviewPending,
		RequestedAt:          now,
	})
	if err != nil {
		return ReviewRequest{}, err
	}
	svc.sendReviewRequestedMail(ctx, e, enr)
	return rr, nil
}

func (svc *service) MarkReviewed(ctx context.Context, actor user.User, requestID string) (ReviewRequest, error) {
	rr, err := svc.repo.GetReviewRequestByID(ctx, requestID)
	if err != nil {
		return ReviewRequest{}, err
	}
	if !actor.IsAdmin() && !(actor.IsIndustrySupervisor() && actor.ID == rr.IndustrySupervisorID) {
		return ReviewRequest{}, ErrPermissionDenied
	}
	if rr.Status != ReviewPending {
		return rr, nil // reviewed or expired; nothing to do
	}

	reviewed, ok, err := svc.repo.MarkReviewRequestReviewed(ctx, requestID, time.Now().UTC())
	if err != nil {
		return ReviewRequest{}, err
	}
	if !ok {
		return svc.repo.GetReviewRequestByID(ctx, requestID)
	}

	svc.sendWeekReviewedMail(ctx, reviewed)
	return reviewed, nil
}

func (svc *service) ExpireStaleReviews(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-svc.conf.Logbook.ReviewRequestTTL)
	return svc.repo.ExpireReviewRequestsBefore(ctx, cutoff)
}

func (svc *service) AddComment(ctx context.Context, actor user.User, entryID string, nc NewComment) (Comment, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Comment{}, err
	}
	enr, err := svc.enrollmentFor(ctx, actor, ActionComment, e)
	if err != nil {
		return Comment{}, err
	}

	// comments carry a supervisor type; only assigned supervisors write them
	var commenterType string
	switch {
	case actor.IsIndustrySupervisor() && enr.IndustrySupervisorID.Valid && enr.IndustrySupervisorID.String == actor.ID:
		commenterType = CommenterIndustrySupervisor
	case actor.IsSchoolSupervisor() && enr.SchoolSupervisorID.Valid && enr.SchoolSupervisorID.String == actor.ID:
		commenterType = CommenterSchoolSupervisor
	default:
		return Comment{}, ErrPermissionDenied
	}

	c, err := svc.repo.CreateComment(ctx, Comment{
		EntryID:       entryID,
		CommenterID:   actor.ID,
		CommenterType: commenterType,
		Content:       nc.Content,
		CommentedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Comment{}, err
	}

	// an industry supervisor's comment counts as the requested review
	if commenterType == CommenterIndustrySupervisor {
		if rr, err := svc.repo.GetReviewRequestByEntry(ctx, entryID); err == nil && rr.Status == ReviewPending {
			if reviewed, ok, err := svc.repo.MarkReviewRequestReviewed(ctx, rr.ID, c.CommentedAt); err != nil {
				svc.logger.Error("marking review request reviewed", err)
			} else if ok {
				svc.sendWeekReviewedMail(ctx, reviewed)
			}
		}
	}

	svc.sendNewCommentMail(ctx, e, actor)
	return c, nil
}

func (svc *service) QueryComments(ctx context.Context, actor user.User, entryID string) ([]Comment, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionView, e); err != nil {
		return nil, err
	}
	return svc.repo.QueryCommentsByEntry(ctx, entryID)
}

func (svc *service) AttachDiagram(ctx context.Context, actor user.User, entryID string, nd NewDiagram, content io.Reader) (Diagram, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Diagram{}, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionEdit, e); err != nil {
		return Diagram{}, err
	}
	if e.IsLocked {
		return Diagram{}, ErrWeekLocked
	}

	fpath := path.Join("diagrams", entryID, uuid.NewString()+"-"+nd.FileName)
	url, err := svc.files.Save(ctx, fpath, content)
	if err != nil {
		return Diagram{}, err
	}

	var caption null.String
	if nd.Caption != "" {
		caption = null.StringFrom(nd.Caption)
	}
	return svc.repo.CreateDiagram(ctx, Diagram{
		EntryID:    entryID,
		URL:        url,
		Path:       fpath,
		FileName:   nd.FileName,
		Size:       nd.Size,
		MimeType:   nd.MimeType,
		Caption:    caption,
		UploadedAt: time.Now().UTC(),
	})
}

func (svc *service) QueryDiagrams(ctx context.Context, actor user.User, entryID string) ([]Diagram, error) {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionView, e); err != nil {
		return nil, err
	}
	return svc.repo.QueryDiagramsByEntry(ctx, entryID)
}

func (svc *service) RemoveDiagram(ctx context.Context, actor user.User, entryID, diagramID string) error {
	e, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if _, err = svc.enrollmentFor(ctx, actor, ActionEdit, e); err != nil {
		return err
	}
	if e.IsLocked {
		return ErrWeekLocked
	}

	d, err := svc.repo.GetDiagramByID(ctx, diagramID)
	if err != nil {
		return err
	}
	if d.EntryID != entryID {
		return ErrDiagramNotFound
	}
	if err = svc.repo.DeleteDiagram(ctx, diagramID); err != nil {
		return err
	}
	// the record is gone; file removal is best effort
	if err = svc.files.Delete(ctx, d.Path); err != nil {
		svc.logger.Warn("deleting diagram file", d.Path, err)
	}
	return nil
}

func (svc *service) RequestExport(ctx context.Context, actor user.User, studentID, sessionID string) error {
	enr, err := svc.sessSvc.GetEnrollment(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if !Can(actor, ActionExport, enr) {
		return ErrPermissionDenied
	}
	return svc.queue.Enqueue(ctx, core.JobExportPDF, core.ExportPDFPayload{
		StudentID: studentID,
		SessionID: sessionID,
	})
}

// Mails

func (svc *service) sendLockStateMail(ctx context.Context, e Entry, actor user.User, locked bool) {
	student, err := svc.usrSvc.GetByID(ctx, e.StudentID)
	if err != nil {
		svc.logger.Error("loading student for lock notification", err)
		return
	}

	subject := fmt.Sprintf("Week %d has been unlocked", e.WeekNumber)
	tmpl := "week-unlocked"
	if locked {
		subject = fmt.Sprintf("Week %d has been locked", e.WeekNumber)
		tmpl = "week-locked"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: struct {
			StudentName string
			WeekNumber  int
			ByName      string
		}{student.Name, e.WeekNumber, actor.Name},
	})
}

func (svc *service) sendReviewRequestedMail(ctx context.Context, e Entry, enr session.Enrollment) {
	supervisor, err := svc.usrSvc.GetByID(ctx, enr.IndustrySupervisorID.String)
	if err != nil {
		svc.logger.Error("loading supervisor for review notification", err)
		return
	}
	student, err := svc.usrSvc.GetByID(ctx, e.StudentID)
	if err != nil {
		svc.logger.Error("loading student for review notification", err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: supervisor.Name, Address: supervisor.Email}},
		Subject:      fmt.Sprintf("%s requested a review of week %d", student.Name, e.WeekNumber),
		TemplateName: "review-requested",
		TemplateData: struct {
			SupervisorName string
			StudentName    string
			WeekNumber     int
		}{supervisor.Name, student.Name, e.WeekNumber},
	})
}

func (svc *service) sendWeekReviewedMail(ctx context.Context, rr ReviewRequest) {
	e, err := svc.repo.GetEntryByID(ctx, rr.EntryID)
	if err != nil {
		svc.logger.Error("loading entry for reviewed notification", err)
		return
	}
	student, err := svc.usrSvc.GetByID(ctx, rr.StudentID)
	if err != nil {
		svc.logger.Error("loading student for reviewed notification", err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("Week %d has been reviewed", e.WeekNumber),
		TemplateName: "week-reviewed",
		TemplateData: struct {
			StudentName string
			WeekNumber  int
		}{student.Name, e.WeekNumber},
	})
}

func (svc *service) sendNewCommentMail(ctx context.Context, e Entry, commenter user.User) {
	student, err := svc.usrSvc.GetByID(ctx, e.StudentID)
	if err != nil {
		svc.logger.Error("loading student for comment notification", err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("New comment on week %d", e.WeekNumber),
		TemplateName: "new-comment",
		TemplateData: struct {
			StudentName   string
			CommenterName string
			WeekNumber    int
		}{student.Name, commenter.Name, e.WeekNumber},
	})
}

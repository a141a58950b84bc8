package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
)

const (
	entryTable   = "weekly_entry"
	reviewTable  = "review_request"
	commentTable = "comment"
	diagramTable = "diagram"
)

var (
	entryColumns = []string{
		"id", "student_id", "session_id", "week_number",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"is_locked", "locked_by", "locked_at", "created_at", "updated_at",
	}
	reviewColumns = []string{
		"id", "entry_id", "student_id", "industry_supervisor_id",
		"status", "requested_at", "reviewed_at",
	}
	commentColumns = []string{
		"id", "entry_id", "commenter_id", "commenter_type", "content", "commented_at",
	}
	diagramColumns = []string{
		"id", "entry_id", "url", "path", "file_name", "size", "mime_type", "caption", "uploaded_at",
	}
)

type entryRecord struct {
	ID         string      `db:"id"`
	StudentID  string      `db:"student_id"`
	SessionID  string      `db:"session_id"`
	WeekNumber int         `db:"week_number"`
	Monday     string      `db:"monday"`
	Tuesday    string      `db:"tuesday"`
	Wednesday  string      `db:"wednesday"`
	Thursday   string      `db:"thursday"`
	Friday     string      `db:"friday"`
	Saturday   string      `db:"saturday"`
	Sunday     string      `db:"sunday"`
	IsLocked   bool        `db:"is_locked"`
	LockedBy   null.String `db:"locked_by"`
	LockedAt   null.Time   `db:"locked_at"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (rec entryRecord) entry() logbook.Entry {
	return logbook.Entry{
		ID:         rec.ID,
		StudentID:  rec.StudentID,
		SessionID:  rec.SessionID,
		WeekNumber: rec.WeekNumber,
		Monday:     rec.Monday,
		Tuesday:    rec.Tuesday,
		Wednesday:  rec.Wednesday,
		Thursday:   rec.Thursday,
		Friday:     rec.Friday,
		Saturday:   rec.Saturday,
		Sunday:     rec.Sunday,
		IsLocked:   rec.IsLocked,
		LockedBy:   rec.LockedBy,
		LockedAt:   rec.LockedAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

type reviewRecord struct {
	ID                   string    `db:"id"`
	EntryID              string    `db:"entry_id"`
	StudentID            string    `db:"student_id"`
	IndustrySupervisorID string    `db:"industry_supervisor_id"`
	Status               string    `db:"status"`
	RequestedAt          time.Time `db:"requested_at"`
	ReviewedAt           null.Time `db:"reviewed_at"`
}

func (rec reviewRecord) reviewRequest() logbook.ReviewRequest {
	return logbook.ReviewRequest(rec)
}

func reviewRequests(recs []reviewRecord) []logbook.ReviewRequest {
	rrs := make([]logbook.ReviewRequest, 0, len(recs))
	for _, rec := range recs {
		rrs = append(rrs, rec.reviewRequest())
	}
	return rrs
}

type commentRecord struct {
	ID            string    `db:"id"`
	EntryID       string    `db:"entry_id"`
	CommenterID   string    `db:"commenter_id"`
	CommenterType string    `db:"commenter_type"`
	Content       string    `db:"content"`
	CommentedAt   time.Time `db:"commented_at"`
}

func (rec commentRecord) comment() logbook.Comment {
	return logbook.Comment(rec)
}

type diagramRecord struct {
	ID         string      `db:"id"`
	EntryID    string      `db:"entry_id"`
	URL        string      `db:"url"`
	Path       string      `db:"path"`
	FileName   string      `db:"file_name"`
	Size       int64       `db:"size"`
	MimeType   string      `db:"mime_type"`
	Caption    null.String `db:"caption"`
	UploadedAt time.Time   `db:"uploaded_at"`
}

func (rec diagramRecord) diagram() logbook.Diagram {
	return logbook.Diagram(rec)
}

type logbookRepository struct {
	repository
}

var _ logbook.Repository = (*logbookRepository)(nil) // interface compliance check

func NewLogbookRepository(exec core.DBExecutor) *logbookRepository {
	return &logbookRepository{repository{exec: exec}}
}

func (repo logbookRepository) getEntry(ctx context.Context, q sq.SelectBuilder, exec []core.DBExecutor) (logbook.Entry, error) {
	var recs []entryRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return logbook.Entry{}, err
	}
	if len(recs) == 0 {
		return logbook.Entry{}, logbook.ErrNotFound
	}
	return recs[0].entry(), nil
}

func (repo logbookRepository) getReviewRequest(ctx context.Context, q sq.SelectBuilder, exec []core.DBExecutor) (logbook.ReviewRequest, error) {
	var recs []reviewRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return logbook.ReviewRequest{}, err
	}
	if len(recs) == 0 {
		return logbook.ReviewRequest{}, logbook.ErrReviewRequestNotFound
	}
	return recs[0].reviewRequest(), nil
}

func (repo logbookRepository) CreateEntry(ctx context.Context, e logbook.Entry, exec ...core.DBExecutor) (logbook.Entry, error) {
	e.ID = uuid.NewString()
	query, args, err := psql.Insert(entryTable).
		Columns(entryColumns...).
		Values(
			e.ID, e.StudentID, e.SessionID, e.WeekNumber,
			e.Monday, e.Tuesday, e.Wednesday, e.Thursday, e.Friday, e.Saturday, e.Sunday,
			e.IsLocked, e.LockedBy, e.LockedAt, e.CreatedAt, e.UpdatedAt,
		).
		Suffix("RETURNING " + joinColumns(entryColumns)).
		ToSql()
	if err != nil {
		return logbook.Entry{}, errors.Wrap(err, "building entry insert")
	}
	var recs []entryRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		if isUniqueViolation(err, "weekly_entry_student_session_week_key") {
			return logbook.Entry{}, logbook.ErrEntryExists
		}
		return logbook.Entry{}, errors.Wrap(err, "inserting entry")
	}
	return recs[0].entry(), nil
}

func (repo logbookRepository) GetEntryByID(ctx context.Context, id string, exec ...core.DBExecutor) (logbook.Entry, error) {
	return repo.getEntry(ctx, psql.Select(entryColumns...).From(entryTable).Where(sq.Eq{"id": id}), exec)
}

func (repo logbookRepository) GetEntry(ctx context.Context, studentID, sessionID string, week int, exec ...core.DBExecutor) (logbook.Entry, error) {
	q := psql.Select(entryColumns...).From(entryTable).
		Where(sq.Eq{"student_id": studentID, "session_id": sessionID, "week_number": week})
	return repo.getEntry(ctx, q, exec)
}

func (repo logbookRepository) QueryEntries(ctx context.Context, studentID, sessionID string, exec ...core.DBExecutor) ([]logbook.Entry, error) {
	q := psql.Select(entryColumns...).From(entryTable).
		Where(sq.Eq{"student_id": studentID, "session_id": sessionID}).
		OrderBy("week_number ASC")
	var recs []entryRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	entries := make([]logbook.Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, rec.entry())
	}
	return entries, nil
}

func (repo logbookRepository) UpdateEntryDay(ctx context.Context, id string, day logbook.Day, content string, updatedAt time.Time, exec ...core.DBExecutor) (logbook.Entry, error) {
	// day values double as column names; they come from the Day enum only
	query, args, err := psql.Update(entryTable).
		Set(string(day), content).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id, "is_locked": false}).
		Suffix("RETURNING " + joinColumns(entryColumns)).
		ToSql()
	if err != nil {
		return logbook.Entry{}, errors.Wrap(err, "building entry day update")
	}
	var recs []entryRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.Entry{}, errors.Wrap(err, "updating entry day")
	}
	if len(recs) == 0 {
		// either the row is gone or a lock beat the write
		if _, err = repo.GetEntryByID(ctx, id, exec...); err != nil {
			return logbook.Entry{}, err
		}
		return logbook.Entry{}, logbook.ErrWeekLocked
	}
	return recs[0].entry(), nil
}

func (repo logbookRepository) SetEntryLock(ctx context.Context, id string, fromLocked bool, lock logbook.EntryLock, updatedAt time.Time, exec ...core.DBExecutor) (logbook.Entry, bool, error) {
	query, args, err := psql.Update(entryTable).
		Set("is_locked", lock.IsLocked).
		Set("locked_by", lock.LockedBy).
		Set("locked_at", lock.LockedAt).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id, "is_locked": fromLocked}).
		Suffix("RETURNING " + joinColumns(entryColumns)).
		ToSql()
	if err != nil {
		return logbook.Entry{}, false, errors.Wrap(err, "building entry lock update")
	}
	var recs []entryRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.Entry{}, false, errors.Wrap(err, "setting entry lock")
	}
	if len(recs) == 0 {
		if _, err = repo.GetEntryByID(ctx, id, exec...); err != nil {
			return logbook.Entry{}, false, err
		}
		return logbook.Entry{}, false, nil // lost the swap
	}
	return recs[0].entry(), true, nil
}

func (repo logbookRepository) CreateReviewRequest(ctx context.Context, rr logbook.ReviewRequest, exec ...core.DBExecutor) (logbook.ReviewRequest, error) {
	rr.ID = uuid.NewString()
	query, args, err := psql.Insert(reviewTable).
		Columns(reviewColumns...).
		Values(rr.ID, rr.EntryID, rr.StudentID, rr.IndustrySupervisorID,
			rr.Status, rr.RequestedAt, rr.ReviewedAt).
		Suffix("RETURNING " + joinColumns(reviewColumns)).
		ToSql()
	if err != nil {
		return logbook.ReviewRequest{}, errors.Wrap(err, "building review request insert")
	}
	var recs []reviewRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		if isUniqueViolation(err, "review_request_entry_key") {
			return logbook.ReviewRequest{}, logbook.ErrDuplicateReviewRequest
		}
		return logbook.ReviewRequest{}, errors.Wrap(err, "inserting review request")
	}
	return recs[0].reviewRequest(), nil
}

func (repo logbookRepository) GetReviewRequestByID(ctx context.Context, id string, exec ...core.DBExecutor) (logbook.ReviewRequest, error) {
	return repo.getReviewRequest(ctx, psql.Select(reviewColumns...).From(reviewTable).Where(sq.Eq{"id": id}), exec)
}

func (repo logbookRepository) GetReviewRequestByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) (logbook.ReviewRequest, error) {
	return repo.getReviewRequest(ctx, psql.Select(reviewColumns...).From(reviewTable).Where(sq.Eq{"entry_id": entryID}), exec)
}

func (repo logbookRepository) ReopenReviewRequest(ctx context.Context, id string, requestedAt time.Time, exec ...core.DBExecutor) (logbook.ReviewRequest, error) {
	query, args, err := psql.Update(reviewTable).
		Set("status", logbook.ReviewPending).
		Set("requested_at", requestedAt).
		Set("reviewed_at", nil).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(reviewColumns)).
		ToSql()
	if err != nil {
		return logbook.ReviewRequest{}, errors.Wrap(err, "building review request reopen")
	}
	var recs []reviewRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.ReviewRequest{}, errors.Wrap(err, "reopening review request")
	}
	if len(recs) == 0 {
		return logbook.ReviewRequest{}, logbook.ErrReviewRequestNotFound
	}
	return recs[0].reviewRequest(), nil
}

func (repo logbookRepository) MarkReviewRequestReviewed(ctx context.Context, id string, reviewedAt time.Time, exec ...core.DBExecutor) (logbook.ReviewRequest, bool, error) {
	query, args, err := psql.Update(reviewTable).
		Set("status", logbook.ReviewReviewed).
		Set("reviewed_at", reviewedAt).
		Where(sq.Eq{"id": id, "status": logbook.ReviewPending}).
		Suffix("RETURNING " + joinColumns(reviewColumns)).
		ToSql()
	if err != nil {
		return logbook.ReviewRequest{}, false, errors.Wrap(err, "building review request update")
	}
	var recs []reviewRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.ReviewRequest{}, false, errors.Wrap(err, "marking review request reviewed")
	}
	if len(recs) == 0 {
		if _, err = repo.GetReviewRequestByID(ctx, id, exec...); err != nil {
			return logbook.ReviewRequest{}, false, err
		}
		return logbook.ReviewRequest{}, false, nil // not pending anymore
	}
	return recs[0].reviewRequest(), true, nil
}

func (repo logbookRepository) ExpireReviewRequestsBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	query, args, err := psql.Update(reviewTable).
		Set("status", logbook.ReviewExpired).
		Where(sq.Eq{"status": logbook.ReviewPending}).
		Where(sq.Lt{"requested_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building review request expiry")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "expiring review requests")
	}
	return rowsAffected(res), nil
}

func (repo logbookRepository) QueryReviewRequestsBySupervisor(ctx context.Context, supervisorID, status string, exec ...core.DBExecutor) ([]logbook.ReviewRequest, error) {
	q := psql.Select(reviewColumns...).From(reviewTable).
		Where(sq.Eq{"industry_supervisor_id": supervisorID}).
		OrderBy("requested_at ASC")
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}
	var recs []reviewRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying review requests")
	}
	return reviewRequests(recs), nil
}

func (repo logbookRepository) QueryReviewRequestsByStudent(ctx context.Context, studentID, status string, exec ...core.DBExecutor) ([]logbook.ReviewRequest, error) {
	q := psql.Select(reviewColumns...).From(reviewTable).
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("requested_at ASC")
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}
	var recs []reviewRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying review requests")
	}
	return reviewRequests(recs), nil
}

func (repo logbookRepository) CreateComment(ctx context.Context, c logbook.Comment, exec ...core.DBExecutor) (logbook.Comment, error) {
	c.ID = uuid.NewString()
	query, args, err := psql.Insert(commentTable).
		Columns(commentColumns...).
		Values(c.ID, c.EntryID, c.CommenterID, c.CommenterType, c.Content, c.CommentedAt).
		Suffix("RETURNING " + joinColumns(commentColumns)).
		ToSql()
	if err != nil {
		return logbook.Comment{}, errors.Wrap(err, "building comment insert")
	}
	var recs []commentRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return recs[0].comment(), nil
}

func (repo logbookRepository) QueryCommentsByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) ([]logbook.Comment, error) {
	q := psql.Select(commentColumns...).From(commentTable).
		Where(sq.Eq{"entry_id": entryID}).
		OrderBy("commented_at ASC")
	var recs []commentRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]logbook.Comment, 0, len(recs))
	for _, rec := range recs {
		comments = append(comments, rec.comment())
	}
	return comments, nil
}

func (repo logbookRepository) CreateDiagram(ctx context.Context, d logbook.Diagram, exec ...core.DBExecutor) (logbook.Diagram, error) {
	d.ID = uuid.NewString()
	query, args, err := psql.Insert(diagramTable).
		Columns(diagramColumns...).
		Values(d.ID, d.EntryID, d.URL, d.Path, d.FileName, d.Size, d.MimeType, d.Caption, d.UploadedAt).
		Suffix("RETURNING " + joinColumns(diagramColumns)).
		ToSql()
	if err != nil {
		return logbook.Diagram{}, errors.Wrap(err, "building diagram insert")
	}
	var recs []diagramRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return logbook.Diagram{}, errors.Wrap(err, "inserting diagram")
	}
	return recs[0].diagram(), nil
}

func (repo logbookRepository) GetDiagramByID(ctx context.Context, id string, exec ...core.DBExecutor) (logbook.Diagram, error) {
	var recs []diagramRecord
	q := psql.Select(diagramColumns...).From(diagramTable).Where(sq.Eq{"id": id})
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return logbook.Diagram{}, err
	}
	if len(recs) == 0 {
		return logbook.Diagram{}, logbook.ErrDiagramNotFound
	}
	return recs[0].diagram(), nil
}

func (repo logbookRepository) QueryDiagramsByEntry(ctx context.Context, entryID string, exec ...core.DBExecutor) ([]logbook.Diagram, error) {
	q := psql.Select(diagramColumns...).From(diagramTable).
		Where(sq.Eq{"entry_id": entryID}).
		OrderBy("uploaded_at ASC")
	var recs []diagramRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying diagrams")
	}
	diagrams := make([]logbook.Diagram, 0, len(recs))
	for _, rec := range recs {
		diagrams = append(diagrams, rec.diagram())
	}
	return diagrams, nil
}

func (repo logbookRepository) DeleteDiagram(ctx context.Context, id string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete(diagramTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building diagram delete")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting diagram")
	}
	return nil
}

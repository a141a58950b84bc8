package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/session"
)

const (
	sessionTable    = "siwes_session"
	enrollmentTable = "enrollment"
)

var (
	sessionColumns = []string{
		"id", "name", "start_date", "total_weeks", "is_active", "created_at", "updated_at",
	}
	enrollmentColumns = []string{
		"id", "session_id", "student_id", "company_name",
		"industry_supervisor_id", "school_supervisor_id", "created_at",
	}
)

type sessionRecord struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	StartDate  time.Time `db:"start_date"`
	TotalWeeks int       `db:"total_weeks"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (rec sessionRecord) session() session.Session {
	return session.Session(rec)
}

type enrollmentRecord struct {
	ID                   string      `db:"id"`
	SessionID            string      `db:"session_id"`
	StudentID            string      `db:"student_id"`
	CompanyName          string      `db:"company_name"`
	IndustrySupervisorID null.String `db:"industry_supervisor_id"`
	SchoolSupervisorID   null.String `db:"school_supervisor_id"`
	CreatedAt            time.Time   `db:"created_at"`
}

func (rec enrollmentRecord) enrollment() session.Enrollment {
	return session.Enrollment(rec)
}

func enrollments(recs []enrollmentRecord) []session.Enrollment {
	enrs := make([]session.Enrollment, 0, len(recs))
	for _, rec := range recs {
		enrs = append(enrs, rec.enrollment())
	}
	return enrs
}

type sessionRepository struct {
	repository
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{repository{exec: exec}}
}

func (repo sessionRepository) getSession(ctx context.Context, q sq.SelectBuilder, exec []core.DBExecutor) (session.Session, error) {
	var recs []sessionRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return session.Session{}, err
	}
	if len(recs) == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return recs[0].session(), nil
}

func (repo sessionRepository) getEnrollment(ctx context.Context, q sq.SelectBuilder, exec []core.DBExecutor) (session.Enrollment, error) {
	var recs []enrollmentRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return session.Enrollment{}, err
	}
	if len(recs) == 0 {
		return session.Enrollment{}, session.ErrNotEnrolled
	}
	return recs[0].enrollment(), nil
}

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	s.ID = uuid.NewString()
	query, args, err := psql.Insert(sessionTable).
		Columns(sessionColumns...).
		Values(s.ID, s.Name, s.StartDate, s.TotalWeeks, s.IsActive, s.CreatedAt, s.UpdatedAt).
		Suffix("RETURNING " + joinColumns(sessionColumns)).
		ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building session insert")
	}
	var recs []sessionRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return recs[0].session(), nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]session.Session, error) {
	q := psql.Select(sessionColumns...).From(sessionTable).OrderBy("start_date DESC")
	var recs []sessionRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, rec.session())
	}
	return sessions, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	return repo.getSession(ctx, psql.Select(sessionColumns...).From(sessionTable).Where(sq.Eq{"id": id}), exec)
}

func (repo sessionRepository) GetActiveSession(ctx context.Context, exec ...core.DBExecutor) (session.Session, error) {
	q := psql.Select(sessionColumns...).From(sessionTable).
		Where(sq.Eq{"is_active": true}).
		OrderBy("start_date DESC").
		Limit(1)
	s, err := repo.getSession(ctx, q, exec)
	if err == session.ErrNotFound {
		return session.Session{}, session.ErrNoActiveSession
	}
	return s, err
}

func (repo sessionRepository) UpdateSession(ctx context.Context, s session.Session, isActive *bool, exec ...core.DBExecutor) (session.Session, error) {
	q := psql.Update(sessionTable).
		Set("updated_at", s.UpdatedAt).
		Where(sq.Eq{"id": s.ID}).
		Suffix("RETURNING " + joinColumns(sessionColumns))
	if s.Name != "" {
		q = q.Set("name", s.Name)
	}
	if !s.StartDate.IsZero() {
		q = q.Set("start_date", s.StartDate)
	}
	if s.TotalWeeks > 0 {
		q = q.Set("total_weeks", s.TotalWeeks)
	}
	if isActive != nil {
		q = q.Set("is_active", *isActive)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building session update")
	}
	var recs []sessionRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if len(recs) == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return recs[0].session(), nil
}

func (repo sessionRepository) CreateEnrollment(ctx context.Context, e session.Enrollment, exec ...core.DBExecutor) (session.Enrollment, error) {
	e.ID = uuid.NewString()
	query, args, err := psql.Insert(enrollmentTable).
		Columns(enrollmentColumns...).
		Values(e.ID, e.SessionID, e.StudentID, e.CompanyName,
			e.IndustrySupervisorID, e.SchoolSupervisorID, e.CreatedAt).
		Suffix("RETURNING " + joinColumns(enrollmentColumns)).
		ToSql()
	if err != nil {
		return session.Enrollment{}, errors.Wrap(err, "building enrollment insert")
	}
	var recs []enrollmentRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		if isUniqueViolation(err, "enrollment_session_student_key") {
			return session.Enrollment{}, session.ErrAlreadyEnrolled
		}
		return session.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return recs[0].enrollment(), nil
}

func (repo sessionRepository) GetEnrollmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (session.Enrollment, error) {
	return repo.getEnrollment(ctx, psql.Select(enrollmentColumns...).From(enrollmentTable).Where(sq.Eq{"id": id}), exec)
}

func (repo sessionRepository) GetEnrollment(ctx context.Context, sessionID, studentID string, exec ...core.DBExecutor) (session.Enrollment, error) {
	q := psql.Select(enrollmentColumns...).From(enrollmentTable).
		Where(sq.Eq{"session_id": sessionID, "student_id": studentID})
	return repo.getEnrollment(ctx, q, exec)
}

func (repo sessionRepository) QueryEnrollmentsBySession(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]session.Enrollment, error) {
	q := psql.Select(enrollmentColumns...).From(enrollmentTable).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC")
	var recs []enrollmentRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments(recs), nil
}

func (repo sessionRepository) QueryEnrollmentsBySupervisor(ctx context.Context, supervisorID string, exec ...core.DBExecutor) ([]session.Enrollment, error) {
	q := psql.Select(enrollmentColumns...).From(enrollmentTable).
		Where(sq.Or{
			sq.Eq{"industry_supervisor_id": supervisorID},
			sq.Eq{"school_supervisor_id": supervisorID},
		}).
		OrderBy("created_at ASC")
	var recs []enrollmentRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments(recs), nil
}

func (repo sessionRepository) UpdateEnrollmentSupervisors(ctx context.Context, e session.Enrollment, exec ...core.DBExecutor) (session.Enrollment, error) {
	query, args, err := psql.Update(enrollmentTable).
		Set("industry_supervisor_id", e.IndustrySupervisorID).
		Set("school_supervisor_id", e.SchoolSupervisorID).
		Where(sq.Eq{"id": e.ID}).
		Suffix("RETURNING " + joinColumns(enrollmentColumns)).
		ToSql()
	if err != nil {
		return session.Enrollment{}, errors.Wrap(err, "building enrollment update")
	}
	var recs []enrollmentRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return session.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if len(recs) == 0 {
		return session.Enrollment{}, session.ErrNotEnrolled
	}
	return recs[0].enrollment(), nil
}

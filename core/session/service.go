package session

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("session not found")
	ErrNoActiveSession = errors.New("no active session")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this session")
	ErrNotEnrolled     = errors.New("student is not enrolled in this session")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]Session, error)
		GetSessionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		GetActiveSession(ctx context.Context, exec ...core.DBExecutor) (Session, error)
		UpdateSession(ctx context.Context, s Session, isActive *bool, exec ...core.DBExecutor) (Session, error)

		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, sessionID, studentID string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollmentsBySession(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Enrollment, error)
		QueryEnrollmentsBySupervisor(ctx context.Context, supervisorID string, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollmentSupervisors(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
	}

	Service interface {
		CreateSession(ctx context.Context, ns NewSession) (Session, error)
		QuerySessions(ctx context.Context) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		GetActiveSession(ctx context.Context) (Session, error)
		UpdateSession(ctx context.Context, id string, us UpdateSession) (Session, error)
		ActivateSession(ctx context.Context, id string, active bool) (Session, error)

		Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		GetEnrollment(ctx context.Context, sessionID, studentID string) (Enrollment, error)
		QueryEnrollmentsBySession(ctx context.Context, sessionID string) ([]Enrollment, error)
		QueryEnrollmentsBySupervisor(ctx context.Context, supervisorID string) ([]Enrollment, error)
		AssignSupervisor(ctx context.Context, enrollmentID string, as AssignSupervisor) (Enrollment, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
	}
}

func (svc *service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	now := time.Now().UTC()
	s := Session{
		Name:       ns.Name,
		StartDate:  ns.StartDate.UTC(),
		TotalWeeks: ns.TotalWeeks,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *service) QuerySessions(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx)
}

func (svc *service) GetSessionByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) GetActiveSession(ctx context.Context) (Session, error) {
	return svc.repo.GetActiveSession(ctx)
}

func (svc *service) UpdateSession(ctx context.Context, id string, us UpdateSession) (Session, error) {
	s := Session{
		ID:         id,
		Name:       us.Name,
		TotalWeeks: us.TotalWeeks,
		UpdatedAt:  time.Now().UTC(),
	}
	if !us.StartDate.IsZero() {
		s.StartDate = us.StartDate.UTC()
	}
	return svc.repo.UpdateSession(ctx, s, nil)
}

func (svc *service) ActivateSession(ctx context.Context, id string, active bool) (Session, error) {
	s, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, s, &active)
}

func (svc *service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetSessionByID(ctx, ne.SessionID); err != nil {
		return Enrollment{}, err
	}
	student, err := svc.usrSvc.GetByID(ctx, ne.StudentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !student.IsStudent() {
		return Enrollment{}, core.NewValidationError(
			nil, core.FieldError{Field: "student_id", Error: "user is not a student"})
	}

	e := Enrollment{
		SessionID:   ne.SessionID,
		StudentID:   ne.StudentID,
		CompanyName: ne.CompanyName,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateEnrollment(ctx, e)
}

func (svc *service) GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollmentByID(ctx, id)
}

func (svc *service) GetEnrollment(ctx context.Context, sessionID, studentID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, sessionID, studentID)
}

func (svc *service) QueryEnrollmentsBySession(ctx context.Context, sessionID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsBySession(ctx, sessionID)
}

func (svc *service) QueryEnrollmentsBySupervisor(ctx context.Context, supervisorID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsBySupervisor(ctx, supervisorID)
}

func (svc *service) AssignSupervisor(ctx context.Context, enrollmentID string, as AssignSupervisor) (Enrollment, error) {
	e, err := svc.repo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}

	supervisor, err := svc.usrSvc.GetByID(ctx, as.SupervisorID)
	if err != nil {
		return Enrollment{}, err
	}
	if !supervisor.HasRole(as.Role) {
		return Enrollment{}, core.NewValidationError(
			nil, core.FieldError{Field: "supervisor_id", Error: "user does not hold the " + as.Role + " role"})
	}

	switch as.Role {
	case user.RoleSupervisorIndustry:
		e.IndustrySupervisorID = null.StringFrom(as.SupervisorID)
	case user.RoleSupervisorSchool:
		e.SchoolSupervisorID = null.StringFrom(as.SupervisorID)
	}
	return svc.repo.UpdateEnrollmentSupervisors(ctx, e)
}

package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = uuid.NewString()
	repo.db.sessions[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, _ ...core.DBExecutor) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0, len(repo.db.sessions))
	for _, s := range repo.db.sessions {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartDate.After(sessions[j].StartDate) })
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) GetActiveSession(_ context.Context, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *session.Session
	for _, s := range repo.db.sessions {
		if !s.IsActive {
			continue
		}
		if latest == nil || s.StartDate.After(latest.StartDate) {
			latest = s
		}
	}
	if latest == nil {
		return session.Session{}, session.ErrNoActiveSession
	}
	return *latest, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session, isActive *bool, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.sessions[s.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if s.Name != "" {
		orig.Name = s.Name
	}
	if !s.StartDate.IsZero() {
		orig.StartDate = s.StartDate
	}
	if s.TotalWeeks > 0 {
		orig.TotalWeeks = s.TotalWeeks
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = s.UpdatedAt
	return *orig, nil
}

func (repo *sessionRepository) CreateEnrollment(_ context.Context, e session.Enrollment, _ ...core.DBExecutor) (session.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.SessionID == e.SessionID && enr.StudentID == e.StudentID {
			return session.Enrollment{}, session.ErrAlreadyEnrolled
		}
	}
	e.ID = uuid.NewString()
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *sessionRepository) GetEnrollmentByID(_ context.Context, id string, _ ...core.DBExecutor) (session.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return *e, nil
	}
	return session.Enrollment{}, session.ErrNotEnrolled
}

func (repo *sessionRepository) GetEnrollment(_ context.Context, sessionID, studentID string, _ ...core.DBExecutor) (session.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.SessionID == sessionID && e.StudentID == studentID {
			return *e, nil
		}
	}
	return session.Enrollment{}, session.ErrNotEnrolled
}

func (repo *sessionRepository) QueryEnrollmentsBySession(_ context.Context, sessionID string, _ ...core.DBExecutor) ([]session.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []session.Enrollment
	for _, e := range repo.db.enrollments {
		if e.SessionID == sessionID {
			enrs = append(enrs, *e)
		}
	}
	sortEnrollments(enrs)
	return enrs, nil
}

func (repo *sessionRepository) QueryEnrollmentsBySupervisor(_ context.Context, supervisorID string, _ ...core.DBExecutor) ([]session.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []session.Enrollment
	for _, e := range repo.db.enrollments {
		if (e.IndustrySupervisorID.Valid && e.IndustrySupervisorID.String == supervisorID) ||
			(e.SchoolSupervisorID.Valid && e.SchoolSupervisorID.String == supervisorID) {
			enrs = append(enrs, *e)
		}
	}
	sortEnrollments(enrs)
	return enrs, nil
}

func (repo *sessionRepository) UpdateEnrollmentSupervisors(_ context.Context, e session.Enrollment, _ ...core.DBExecutor) (session.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.enrollments[e.ID]
	if !ok {
		return session.Enrollment{}, session.ErrNotEnrolled
	}
	orig.IndustrySupervisorID = e.IndustrySupervisorID
	orig.SchoolSupervisorID = e.SchoolSupervisorID
	return *orig, nil
}

func sortEnrollments(enrs []session.Enrollment) {
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].CreatedAt.Before(enrs[j].CreatedAt) })
}

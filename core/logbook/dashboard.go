package logbook

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/siwesng/slims/core/user"
)

// Progress summarizes how much of a session's logbook a student has filled.
// A week counts as completed once at least one of its days holds content.
type Progress struct {
	CompletedWeeks int     `json:"completed_weeks"`
	TotalWeeks     int     `json:"total_weeks"`
	Percent        float64 `json:"percent"`
}

// Alert priorities, highest first after sorting.
const (
	alertPriorityHigh = 3
	alertPriorityMed  = 2
	alertPriorityLow  = 1
)

// Alert is a prioritized nudge shown on a student's dashboard.
type Alert struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// StudentDashboard is the student home-page rollup.
type StudentDashboard struct {
	Progress      Progress `json:"progress"`
	CurrentWeek   int      `json:"current_week"`
	LockedWeeks   int      `json:"locked_weeks"`
	PendingReview bool     `json:"pending_review"`
	Alerts        []Alert  `json:"alerts"`
}

// SupervisedStudent is one row of a supervisor's dashboard.
type SupervisedStudent struct {
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name"`
	CompanyName string   `json:"company_name"`
	Progress    Progress `json:"progress"`
}

// SupervisorDashboard is the supervisor home-page rollup.
type SupervisorDashboard struct {
	Students       []SupervisedStudent `json:"students"`
	PendingReviews []ReviewRequest     `json:"pending_reviews"`
}

// ComputeProgress rolls entries up into a Progress.
func ComputeProgress(entries []Entry, totalWeeks int) Progress {
	p := Progress{TotalWeeks: totalWeeks}
	for i := range entries {
		if entries[i].HasContent() {
			p.CompletedWeeks++
		}
	}
	if totalWeeks > 0 {
		p.Percent = float64(p.CompletedWeeks) / float64(totalWeeks) * 100
	}
	return p
}

// sortAlerts orders alerts by descending priority. The sort is stable so
// alerts of equal priority keep their build order.
func sortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority > alerts[j].Priority
	})
}

func (svc *service) StudentDashboard(ctx context.Context, actor user.User, studentID, sessionID string) (StudentDashboard, error) {
	enr, err := svc.sessSvc.GetEnrollment(ctx, sessionID, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}
	if !Can(actor, ActionView, enr) {
		return StudentDashboard{}, ErrPermissionDenied
	}
	sess, err := svc.sessSvc.GetSessionByID(ctx, sessionID)
	if err != nil {
		return StudentDashboard{}, err
	}
	entries, err := svc.repo.QueryEntries(ctx, studentID, sessionID)
	if err != nil {
		return StudentDashboard{}, err
	}
	pending, err := svc.repo.QueryReviewRequestsByStudent(ctx, studentID, ReviewPending)
	if err != nil {
		return StudentDashboard{}, err
	}

	currentWeek := sess.WeekOf(time.Now().UTC())
	dash := StudentDashboard{
		Progress:      ComputeProgress(entries, sess.TotalWeeks),
		CurrentWeek:   currentWeek,
		PendingReview: len(pending) > 0,
	}

	var currentWeekFilled bool
	for i := range entries {
		if entries[i].IsLocked {
			dash.LockedWeeks++
		}
		if entries[i].WeekNumber == currentWeek && entries[i].HasContent() {
			currentWeekFilled = true
		}
	}

	if !currentWeekFilled {
		dash.Alerts = append(dash.Alerts, Alert{
			Code:     "current_week_empty",
			Message:  fmt.Sprintf("You have not logged any activities for week %d yet.", currentWeek),
			Priority: alertPriorityHigh,
		})
	}
	if dash.PendingReview {
		dash.Alerts = append(dash.Alerts, Alert{
			Code:     "review_pending",
			Message:  "Your industry supervisor has not reviewed your week yet.",
			Priority: alertPriorityMed,
		})
	}
	if dash.LockedWeeks > 0 {
		dash.Alerts = append(dash.Alerts, Alert{
			Code:     "weeks_locked",
			Message:  fmt.Sprintf("%d of your weeks are locked and can no longer be edited.", dash.LockedWeeks),
			Priority: alertPriorityLow,
		})
	}
	sortAlerts(dash.Alerts)
	return dash, nil
}

func (svc *service) SupervisorDashboard(ctx context.Context, actor user.User) (SupervisorDashboard, error) {
	if !actor.IsSupervisor() {
		return SupervisorDashboard{}, ErrPermissionDenied
	}

	enrollments, err := svc.sessSvc.QueryEnrollmentsBySupervisor(ctx, actor.ID)
	if err != nil {
		return SupervisorDashboard{}, err
	}
	pending, err := svc.repo.QueryReviewRequestsBySupervisor(ctx, actor.ID, ReviewPending)
	if err != nil {
		return SupervisorDashboard{}, err
	}

	dash := SupervisorDashboard{
		Students:       make([]SupervisedStudent, 0, len(enrollments)),
		PendingReviews: pending,
	}
	for _, enr := range enrollments {
		student, err := svc.usrSvc.GetByID(ctx, enr.StudentID)
		if err != nil {
			return SupervisorDashboard{}, err
		}
		sess, err := svc.sessSvc.GetSessionByID(ctx, enr.SessionID)
		if err != nil {
			return SupervisorDashboard{}, err
		}
		entries, err := svc.repo.QueryEntries(ctx, enr.StudentID, enr.SessionID)
		if err != nil {
			return SupervisorDashboard{}, err
		}
		dash.Students = append(dash.Students, SupervisedStudent{
			StudentID:   enr.StudentID,
			StudentName: student.Name,
			CompanyName: enr.CompanyName,
			Progress:    ComputeProgress(entries, sess.TotalWeeks),
		})
	}
	sort.SliceStable(dash.Students, func(i, j int) bool {
		return dash.Students[i].StudentName < dash.Students[j].StudentName
	})
	// oldest asks first
	sort.SliceStable(dash.PendingReviews, func(i, j int) bool {
		return dash.PendingReviews[i].RequestedAt.Before(dash.PendingReviews[j].RequestedAt)
	})
	return dash, nil
}

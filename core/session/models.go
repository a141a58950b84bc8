package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
)

// Session is one SIWES placement period (eg. "2025/2026", 24 weeks).
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
	TotalWeeks int       `json:"total_weeks"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// WeekOf returns the 1-based week number t falls in, clamped to
// [1, TotalWeeks].
func (s Session) WeekOf(t time.Time) int {
	week := int(t.Sub(s.StartDate)/(7*24*time.Hour)) + 1
	if week < 1 {
		return 1
	}
	if week > s.TotalWeeks {
		return s.TotalWeeks
	}
	return week
}

// Enrollment attaches a student to a Session along with their placement
// company and assigned supervisors.
type Enrollment struct {
	ID                   string      `json:"id"`
	SessionID            string      `json:"session_id"`
	StudentID            string      `json:"student_id"`
	CompanyName          string      `json:"company_name"`
	IndustrySupervisorID null.String `json:"industry_supervisor_id"`
	SchoolSupervisorID   null.String `json:"school_supervisor_id"`
	CreatedAt            time.Time   `json:"created_at"` // UTC
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Name       string    `json:"name" validate:"required"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	TotalWeeks int       `json:"total_weeks" validate:"required,min=1,max=52"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// UpdateSession defines what information may be provided to modify an
// existing Session. Zero-valued fields are left untouched.
type UpdateSession struct {
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
	TotalWeeks int       `json:"total_weeks" validate:"omitempty,min=1,max=52"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	return validate.Struct(us)
}

// NewEnrollment contains information needed to enroll a student in a Session.
type NewEnrollment struct {
	SessionID   string `json:"session_id" validate:"required"`
	StudentID   string `json:"student_id" validate:"required"`
	CompanyName string `json:"company_name" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CompanyName = core.CleanString(ne.CompanyName)
	return validate.Struct(ne)
}

// AssignSupervisor assigns an industry or school supervisor to an Enrollment.
type AssignSupervisor struct {
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=supervisor:industry supervisor:school"`
}

func (as *AssignSupervisor) Validate(validate *validator.Validate) error {
	return validate.Struct(as)
}

package logbook

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/siwesng/slims/core"
)

// Day is one weekday key of a weekly entry.
// The schema and service support all seven days; the student-facing form only
// renders Monday-Saturday.
type Day string

const (
	DayMonday    Day = "monday"
	DayTuesday   Day = "tuesday"
	DayWednesday Day = "wednesday"
	DayThursday  Day = "thursday"
	DayFriday    Day = "friday"
	DaySaturday  Day = "saturday"
	DaySunday    Day = "sunday"
)

// Days in week order.
var Days = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DaySaturday, DaySunday}

func ParseDay(s string) (Day, error) {
	for _, d := range Days {
		if s == string(d) {
			return d, nil
		}
	}
	return "", core.NewValidationError(nil, core.FieldError{Field: "day", Error: "invalid day"})
}

// LockedBy values; who applied a week's lock.
const (
	LockedByIndustrySupervisor = "INDUSTRY_SUPERVISOR"
	LockedBySchoolSupervisor   = "SCHOOL_SUPERVISOR"
	LockedByManual             = "MANUAL" // admin override
)

// Entry is the record of a student's daily activity logs for one week of
// their placement. Unique per (StudentID, SessionID, WeekNumber); created
// lazily when a student first accesses or saves a week.
type Entry struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	SessionID  string `json:"session_id"`
	WeekNumber int    `json:"week_number"`

	Monday    string `json:"monday"`
	Tuesday   string `json:"tuesday"`
	Wednesday string `json:"wednesday"`
	Thursday  string `json:"thursday"`
	Friday    string `json:"friday"`
	Saturday  string `json:"saturday"`
	Sunday    string `json:"sunday"`

	IsLocked bool        `json:"is_locked"`
	LockedBy null.String `json:"locked_by"`
	LockedAt null.Time   `json:"locked_at"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (e *Entry) Content(day Day) string {
	switch day {
	case DayMonday:
		return e.Monday
	case DayTuesday:
		return e.Tuesday
	case DayWednesday:
		return e.Wednesday
	case DayThursday:
		return e.Thursday
	case DayFriday:
		return e.Friday
	case DaySaturday:
		return e.Saturday
	case DaySunday:
		return e.Sunday
	}
	return ""
}

func (e *Entry) SetContent(day Day, content string) {
	switch day {
	case DayMonday:
		e.Monday = content
	case DayTuesday:
		e.Tuesday = content
	case DayWednesday:
		e.Wednesday = content
	case DayThursday:
		e.Thursday = content
	case DayFriday:
		e.Friday = content
	case DaySaturday:
		e.Saturday = content
	case DaySunday:
		e.Sunday = content
	}
}

// HasContent reports whether at least one day holds a non-empty entry;
// this is the "week completed" threshold used by dashboard rollups.
func (e *Entry) HasContent() bool {
	for _, day := range Days {
		if e.Content(day) != "" {
			return true
		}
	}
	return false
}

// EntryLock is the target lock state of a compare-and-swap lock transition.
type EntryLock struct {
	IsLocked bool
	LockedBy null.String
	LockedAt null.Time
}

// Review request statuses.
const (
	ReviewPending  = "PENDING"
	ReviewReviewed = "REVIEWED"
	ReviewExpired  = "EXPIRED"
)

// ReviewRequest is a student-initiated ask for industry-supervisor feedback
// on a specific week. At most one per Entry.
type ReviewRequest struct {
	ID                   string    `json:"id"`
	EntryID              string    `json:"entry_id"`
	StudentID            string    `json:"student_id"`
	IndustrySupervisorID string    `json:"industry_supervisor_id"`
	Status               string    `json:"status"`
	RequestedAt          time.Time `json:"requested_at"` // UTC
	ReviewedAt           null.Time `json:"reviewed_at"`
}

// Commenter types.
const (
	CommenterIndustrySupervisor = "INDUSTRY_SUPERVISOR"
	CommenterSchoolSupervisor   = "SCHOOL_SUPERVISOR"
)

// Comment is supervisor feedback attached to a week. Append-only; never
// edited, not deletable by students.
type Comment struct {
	ID            string    `json:"id"`
	EntryID       string    `json:"entry_id"`
	CommenterID   string    `json:"commenter_id"`
	CommenterType string    `json:"commenter_type"`
	Content       string    `json:"content"`
	CommentedAt   time.Time `json:"commented_at"` // UTC
}

// NewComment contains information needed to add a supervisor comment.
type NewComment struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

// Diagram is an uploaded sketch/photo attached to a week.
type Diagram struct {
	ID         string      `json:"id"`
	EntryID    string      `json:"entry_id"`
	URL        string      `json:"url"`
	Path       string      `json:"-"` // storage path; not exposed
	FileName   string      `json:"file_name"`
	Size       int64       `json:"size"`
	MimeType   string      `json:"mime_type"`
	Caption    null.String `json:"caption"`
	UploadedAt time.Time   `json:"uploaded_at"` // UTC
}

// NewDiagram contains the metadata of a diagram upload.
type NewDiagram struct {
	FileName string `json:"file_name" validate:"required"`
	Size     int64  `json:"size" validate:"required,min=1,max=10485760"` // 10MiB
	MimeType string `json:"mime_type" validate:"required,oneof=image/png image/jpeg image/gif application/pdf"`
	Caption  string `json:"caption" validate:"omitempty,max=255"`
}

func (nd *NewDiagram) Validate(validate *validator.Validate) error {
	nd.FileName = core.CleanString(nd.FileName)
	nd.Caption = core.CleanString(nd.Caption)
	return validate.Struct(nd)
}

// UpsertDay contains one day's content to save on a weekly entry.
type UpsertDay struct {
	Day     string `json:"day" validate:"required"`
	Content string `json:"content" validate:"required,max=5000"`
}

func (ud *UpsertDay) Validate(validate *validator.Validate) error {
	ud.Day = core.CleanString(ud.Day, true /* lower */)
	ud.Content = core.CleanString(ud.Content)
	if err := validate.Struct(ud); err != nil {
		return err
	}
	_, err := ParseDay(ud.Day)
	return err
}

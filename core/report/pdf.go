package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

// ExportData is everything that goes into a logbook PDF.
type ExportData struct {
	Student        user.User
	Session        session.Session
	Enrollment     session.Enrollment
	Entries        []logbook.Entry
	CommentsByWeek map[int][]logbook.Comment
	Commenters     map[string]user.User
	GeneratedAt    time.Time
}

var dayLabels = map[logbook.Day]string{
	logbook.DayMonday:    "Monday",
	logbook.DayTuesday:   "Tuesday",
	logbook.DayWednesday: "Wednesday",
	logbook.DayThursday:  "Thursday",
	logbook.DayFriday:    "Friday",
	logbook.DaySaturday:  "Saturday",
	logbook.DaySunday:    "Sunday",
}

// BuildLogbookPDF renders a full-session logbook as a PDF document, one page
// section per week with its supervisor comments.
func BuildLogbookPDF(data ExportData) (*bytes.Buffer, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("SIWES Logbook - %s - %s", data.Student.Name, data.Session.Name), true)
	pdf.SetAutoPageBreak(true, 15)

	pdf.AddPage()
	writeCover(pdf, data)

	for _, e := range data.Entries {
		pdf.AddPage()
		writeWeek(pdf, e, data.CommentsByWeek[e.WeekNumber], data.Commenters)
	}

	var buff bytes.Buffer
	if err := pdf.Output(&buff); err != nil {
		return nil, errors.Wrap(err, "rendering logbook PDF")
	}
	return &buff, nil
}

func writeCover(pdf *fpdf.Fpdf, data ExportData) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "SIWES Logbook", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}
	row("Student:", data.Student.Name)
	if data.Student.MatricNo != "" {
		row("Matric No:", strings.ToUpper(data.Student.MatricNo))
	}
	row("Session:", data.Session.Name)
	row("Company:", data.Enrollment.CompanyName)
	row("Duration:", fmt.Sprintf("%d weeks from %s",
		data.Session.TotalWeeks, data.Session.StartDate.Format("2 Jan 2006")))
	row("Generated:", data.GeneratedAt.Format("2 Jan 2006 15:04 MST"))
}

func writeWeek(pdf *fpdf.Fpdf, e logbook.Entry, comments []logbook.Comment, commenters map[string]user.User) {
	pdf.SetFont("Helvetica", "B", 14)
	title := fmt.Sprintf("Week %d", e.WeekNumber)
	if e.IsLocked {
		title += " (locked)"
	}
	pdf.CellFormat(0, 10, title, "B", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, day := range logbook.Days {
		content := e.Content(day)
		if content == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, dayLabels[day], "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, content, "", "L", false)
		pdf.Ln(2)
	}

	if len(comments) == 0 {
		return
	}
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Supervisor Comments", "", 1, "L", false, 0, "")
	for _, c := range comments {
		name := c.CommenterID
		if usr, ok := commenters[c.CommenterID]; ok {
			name = usr.Name
		}
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s", name, c.CommentedAt.Format("2 Jan 2006")), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, c.Content, "", "L", false)
		pdf.Ln(2)
	}
}

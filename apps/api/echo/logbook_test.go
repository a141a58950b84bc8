package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
)

func (fx fixtures) weekPath(week string) string {
	return "/v1/logbook/" + fx.sess.ID + "/students/" + fx.student.ID + "/weeks/" + week
}

func TestLogbookRetrieveWeek(t *testing.T) {
	fx := setup(t)

	tests := []httpTest{
		{name: "auth required", path: fx.weekPath("1"), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "lazily created", path: fx.weekPath("1"), token: fx.token(t, fx.student), wantCode: http.StatusOK},
		{name: "week out of range", path: fx.weekPath("25"), token: fx.token(t, fx.student), wantCode: http.StatusBadRequest},
		{name: "week not a number", path: fx.weekPath("abc"), token: fx.token(t, fx.student), wantCode: http.StatusBadRequest},
		{
			name: "other student denied", path: fx.weekPath("1"), token: fx.token(t, fx.otherStud),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "lazily created" {
				var entry logbook.Entry
				decodeBody(t, rec.Body, &entry)
				assert.Equal(t, 1, entry.WeekNumber)
				assert.False(t, entry.IsLocked)
			}
		})
	}
}

func TestLogbookSaveDay(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 1)

	path := "/v1/logbook/entries/" + e.ID + "/days"
	body := marshallObj(t, map[string]string{"day": "monday", "content": "Traced the plant's steam lines"})

	t.Run("student saves a day", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, fx.token(t, fx.student), body)
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entry logbook.Entry
		decodeBody(t, rec.Body, &entry)
		assert.Equal(t, "Traced the plant's steam lines", entry.Monday)
	})

	t.Run("supervisor cannot write", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, fx.token(t, fx.industrySup), body)
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid day rejected", func(t *testing.T) {
		bad := marshallObj(t, map[string]string{"day": "funday", "content": "nope"})
		req, rec := newAuthRequest(http.MethodPost, path, fx.token(t, fx.student), bad)
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("locked week returns 423", func(t *testing.T) {
		_, err := fx.lbSvc.Lock(context.Background(), fx.industrySup, e.ID)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, path, fx.token(t, fx.student), body)
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusLocked, rec.Code)

		var resp httpErr
		decodeBody(t, rec.Body, &resp)
		assert.Equal(t, "week is locked", resp.Error)
	})

	t.Run("clear day after unlock", func(t *testing.T) {
		_, err := fx.lbSvc.Unlock(context.Background(), fx.industrySup, e.ID)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodDelete, path+"/monday", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entry logbook.Entry
		decodeBody(t, rec.Body, &entry)
		assert.Empty(t, entry.Monday)
	})
}

func TestLogbookLockUnlock(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 2)
	base := "/v1/logbook/entries/" + e.ID

	t.Run("student cannot lock", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/lock", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("supervisor locks", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/lock", fx.token(t, fx.schoolSup))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entry logbook.Entry
		decodeBody(t, rec.Body, &entry)
		assert.True(t, entry.IsLocked)
		assert.Equal(t, logbook.LockedBySchoolSupervisor, entry.LockedBy.String)
	})

	t.Run("wrong supervisor cannot unlock", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/unlock", fx.token(t, fx.industrySup))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("locker unlocks", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/unlock", fx.token(t, fx.schoolSup))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entry logbook.Entry
		decodeBody(t, rec.Body, &entry)
		assert.False(t, entry.IsLocked)
	})
}

func TestLogbookReviewFlow(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 3)

	// fill the week so a review can be requested
	_, err := fx.lbSvc.SaveDay(context.Background(), fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayTuesday),
		Content: "Serviced the centrifugal pumps",
	})
	require.NoError(t, err)

	base := "/v1/logbook/entries/" + e.ID
	var requestID string

	t.Run("student requests review", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/review-request", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var rr logbook.ReviewRequest
		decodeBody(t, rec.Body, &rr)
		assert.Equal(t, logbook.ReviewPending, rr.Status)
		requestID = rr.ID
	})

	t.Run("duplicate request conflicts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/review-request", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp httpErr
		decodeBody(t, rec.Body, &resp)
		assert.Equal(t, "a review request for this week is already pending", resp.Error)
	})

	t.Run("school supervisor cannot resolve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/logbook/reviews/"+requestID+"/mark-reviewed", fx.token(t, fx.schoolSup))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("industry supervisor resolves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/logbook/reviews/"+requestID+"/mark-reviewed", fx.token(t, fx.industrySup))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rr logbook.ReviewRequest
		decodeBody(t, rec.Body, &rr)
		assert.Equal(t, logbook.ReviewReviewed, rr.Status)
	})
}

func TestLogbookComments(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 4)
	base := "/v1/logbook/entries/" + e.ID + "/comments"
	body := marshallObj(t, map[string]string{"content": "Add the line diagram for this work"})

	t.Run("student cannot comment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, fx.token(t, fx.student), body)
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("supervisor comments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, fx.token(t, fx.schoolSup), body)
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var comment logbook.Comment
		decodeBody(t, rec.Body, &comment)
		assert.Equal(t, logbook.CommenterSchoolSupervisor, comment.CommenterType)
	})

	t.Run("student reads comments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base, fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var comments []logbook.Comment
		decodeBody(t, rec.Body, &comments)
		require.Len(t, comments, 1)
	})
}

func TestLogbookDiagrams(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 5)
	base := "/v1/logbook/entries/" + e.ID + "/diagrams"
	content := []byte("fake png bytes")

	var diagramID string

	t.Run("student uploads diagram", func(t *testing.T) {
		req, rec := newUploadRequest(t, base, fx.token(t, fx.student), "pump-sketch.png", "image/png", "Pump section", content)
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var d logbook.Diagram
		decodeBody(t, rec.Body, &d)
		assert.Contains(t, d.URL, "pump-sketch.png")
		assert.Equal(t, 1, fx.files.Len())
		diagramID = d.ID
	})

	t.Run("unsupported type rejected", func(t *testing.T) {
		req, rec := newUploadRequest(t, base, fx.token(t, fx.student), "notes.txt", "text/plain", "", content)
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("supervisor lists diagrams", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base, fx.token(t, fx.industrySup))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var diagrams []logbook.Diagram
		decodeBody(t, rec.Body, &diagrams)
		require.Len(t, diagrams, 1)
	})

	t.Run("student removes diagram", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, base+"/"+diagramID, fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, 0, fx.files.Len())
	})
}

func TestLogbookExport(t *testing.T) {
	fx := setup(t)

	t.Run("student queues export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/logbook/"+fx.sess.ID+"/export", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		jobs := fx.queue.Jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, core.JobExportPDF, jobs[0].Type)
	})

	t.Run("stranger cannot export for another student", func(t *testing.T) {
		path := "/v1/logbook/" + fx.sess.ID + "/export?student_id=" + fx.student.ID
		req, rec := newAuthRequest(http.MethodPost, path, fx.token(t, fx.otherStud))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestLogbookDashboards(t *testing.T) {
	fx := setup(t)
	e := fx.entry(t, 1)
	_, err := fx.lbSvc.SaveDay(context.Background(), fx.student, e.ID, logbook.UpsertDay{
		Day:     string(logbook.DayMonday),
		Content: "Shadowed the maintenance crew",
	})
	require.NoError(t, err)

	t.Run("student dashboard", func(t *testing.T) {
		path := "/v1/logbook/" + fx.sess.ID + "/students/" + fx.student.ID + "/dashboard"
		req, rec := newAuthRequest(http.MethodGet, path, fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var dash logbook.StudentDashboard
		decodeBody(t, rec.Body, &dash)
		assert.Equal(t, 1, dash.Progress.CompletedWeeks)
		assert.Equal(t, 24, dash.Progress.TotalWeeks)
	})

	t.Run("supervisor dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/logbook/supervisor-dashboard", fx.token(t, fx.industrySup))
		fx.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var dash logbook.SupervisorDashboard
		decodeBody(t, rec.Body, &dash)
		require.Len(t, dash.Students, 1)
		assert.Equal(t, fx.student.ID, dash.Students[0].StudentID)
	})

	t.Run("students get no supervisor dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/logbook/supervisor-dashboard", fx.token(t, fx.student))
		fx.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

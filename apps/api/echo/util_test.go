package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/siwesng/slims/apps/api/echo"
	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
	emailsvc "github.com/siwesng/slims/services/email"
	filesvc "github.com/siwesng/slims/services/filestore"
	queuesvc "github.com/siwesng/slims/services/queue"
	dummydb "github.com/siwesng/slims/storage/database/dummy"
)

const testPassword = "S3cretPass!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fixtures struct {
	app    Server
	conf   *core.Config
	queue  *queuesvc.QueueMock
	files  *filesvc.MemoryStorage
	lbSvc  logbook.Service
	usrSvc user.Service

	student     user.User
	otherStud   user.User
	industrySup user.User
	schoolSup   user.User
	admin       user.User
	sess        session.Session
	enr         session.Enrollment
}

func setup(t *testing.T) fixtures {
	t.Helper()
	ctx := context.Background()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "SLIMS",
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Media:   core.MediaConfig{Root: t.TempDir(), ExportTTL: 24 * time.Hour},
		Logbook: core.LogbookConfig{ReviewRequestTTL: 14 * 24 * time.Hour},
	}
	db, err := dummydb.Open()
	require.NoError(t, err)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(conf, usrRepo, mailSvc)
	sessSvc := session.NewService(dummydb.NewSessionRepository(db), usrSvc)
	queue := queuesvc.NewQueueMock()
	files := filesvc.NewMemoryStorage()
	lbSvc := logbook.NewService(
		conf, dummydb.NewLogbookRepository(db), sessSvc, usrSvc, mailSvc, queue, files, nopLogger{})

	app := NewServer(&Options{
		Conf:           conf,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		SessionSvc:     sessSvc,
		LogbookSvc:     lbSvc,
		Logger:         nopLogger{},
	})

	newUser := func(name string, roles ...string) user.User {
		isActive := true
		now := time.Now().UTC()
		u := user.User{
			Name:      name,
			Username:  strings.ToLower(name),
			Email:     strings.ToLower(name) + "@test.test",
			IsActive:  &isActive,
			Roles:     roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, u.SetPassword(testPassword))
		usr, err := usrRepo.CreateUser(ctx, u)
		require.NoError(t, err)
		return usr
	}

	fx := fixtures{
		app:         app,
		conf:        conf,
		queue:       queue,
		files:       files,
		lbSvc:       lbSvc,
		usrSvc:      usrSvc,
		student:     newUser("Amina", user.RoleStudent),
		otherStud:   newUser("Bayo", user.RoleStudent),
		industrySup: newUser("Chidi", user.RoleSupervisorIndustry),
		schoolSup:   newUser("Dara", user.RoleSupervisorSchool),
		admin:       newUser("Efe", user.RoleAdmin),
	}

	fx.sess, err = sessSvc.CreateSession(ctx, session.NewSession{
		Name:       "2025/2026",
		StartDate:  time.Now().UTC().AddDate(0, 0, -7),
		TotalWeeks: 24,
	})
	require.NoError(t, err)

	fx.enr, err = sessSvc.Enroll(ctx, session.NewEnrollment{
		SessionID:   fx.sess.ID,
		StudentID:   fx.student.ID,
		CompanyName: "Acme Engineering Ltd",
	})
	require.NoError(t, err)
	fx.enr, err = sessSvc.AssignSupervisor(ctx, fx.enr.ID, session.AssignSupervisor{
		SupervisorID: fx.industrySup.ID,
		Role:         user.RoleSupervisorIndustry,
	})
	require.NoError(t, err)
	fx.enr, err = sessSvc.AssignSupervisor(ctx, fx.enr.ID, session.AssignSupervisor{
		SupervisorID: fx.schoolSup.ID,
		Role:         user.RoleSupervisorSchool,
	})
	require.NoError(t, err)
	return fx
}

func (fx fixtures) entry(t *testing.T, week int) logbook.Entry {
	t.Helper()
	e, err := fx.lbSvc.GetOrCreateEntry(context.Background(), fx.student, fx.student.ID, fx.sess.ID, week)
	require.NoError(t, err)
	return e
}

func (fx fixtures) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(fx.conf, GetUserClaims(fx.conf, usr))
	require.NoError(t, err)
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newUploadRequest(t *testing.T, path, token, fileName, mimeType, caption string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", mimeType)
	fw, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if caption != "" {
		require.NoError(t, w.WriteField("caption", caption))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decodeBody(t *testing.T, body io.Reader, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(dest))
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	var got, want interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NoError(t, json.Unmarshal(tt.wantData, &want))
	if !jsonEqual(got, want) {
		t.Errorf("data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func jsonEqual(a, b interface{}) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return bytes.Equal(ab, bb)
}

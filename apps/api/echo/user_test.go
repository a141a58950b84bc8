package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siwesng/slims/core/user"
)

func TestUserLogin(t *testing.T) {
	fx := setup(t)

	login := func(uname, pwd string) []byte {
		return marshallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{
			name: "unknown user", body: login("nobody", testPassword),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: login("amina", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{name: "login with username", body: login("amina", testPassword), wantCode: http.StatusOK},
		{name: "login with email", body: login("amina@test.test", testPassword), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/login", "", tt.body)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				decodeBody(t, rec.Body, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func TestUserLoginDeactivated(t *testing.T) {
	fx := setup(t)

	inactive := false
	_, err := fx.usrSvc.Update(context.Background(), fx.student.ID, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)

	tt := httpTest{
		body:     marshallObj(t, map[string]string{"username": "amina", "password": testPassword}),
		wantCode: http.StatusForbidden,
		wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
	}
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/login", "", tt.body)
	fx.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func TestUserTokenRefresh(t *testing.T) {
	fx := setup(t)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "token refreshed", token: fx.token(t, fx.student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserRegister(t *testing.T) {
	fx := setup(t)

	newUsr := marshallObj(t, map[string]interface{}{
		"name":             "Funke",
		"username":         "funke01",
		"email":            "funke@test.test",
		"password":         testPassword,
		"password_confirm": testPassword,
		"roles":            []string{user.RoleStudent},
	})

	tests := []httpTest{
		{name: "auth required", body: newUsr, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", body: newUsr, token: fx.token(t, fx.student),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "created", body: newUsr, token: fx.token(t, fx.admin), wantCode: http.StatusCreated},
		{name: "duplicate rejected", body: newUsr, token: fx.token(t, fx.admin), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var created user.User
				decodeBody(t, rec.Body, &created)
				assert.Equal(t, "funke01", created.Username)
				assert.NotEmpty(t, created.ID)
			}
		})
	}
}

func TestUserRetrieve(t *testing.T) {
	fx := setup(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/" + fx.student.ID, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "own profile", path: "/v1/users/" + fx.student.ID, token: fx.token(t, fx.student), wantCode: http.StatusOK},
		{
			name: "other profile hidden", path: "/v1/users/" + fx.admin.ID, token: fx.token(t, fx.student),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees anyone", path: "/v1/users/" + fx.student.ID, token: fx.token(t, fx.admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserQuery(t *testing.T) {
	fx := setup(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: fx.token(t, fx.schoolSup),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all users", path: "/v1/users", token: fx.token(t, fx.admin), wantCode: http.StatusOK},
		{name: "filter by role", path: "/v1/users?role=" + user.RoleStudent, token: fx.token(t, fx.admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			fx.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "filter by role" {
				var users []user.User
				decodeBody(t, rec.Body, &users)
				require.Len(t, users, 2)
				for _, u := range users {
					assert.True(t, u.IsStudent())
				}
			}
		})
	}
}

package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/user"
	emailsvc "github.com/siwesng/slims/services/email"
	dummydb "github.com/siwesng/slims/storage/database/dummy"
)

func setupSvc(t *testing.T) user.Service {
	t.Helper()

	conf := &core.Config{
		AppName:                   "SLIMS",
		SecretKey:                 "test-secret-key",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	db, err := dummydb.Open()
	require.NoError(t, err)
	return user.NewServiceMock(conf, dummydb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf))
}

func createStudent(t *testing.T, svc user.Service, name, uname, email string) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		MatricNo:        "eng1503042",
		Password:        "S3cretPass!",
		PasswordConfirm: "S3cretPass!",
		Roles:           []string{user.RoleStudent},
	})
	require.NoError(t, err)
	return usr
}

func TestCreate(t *testing.T) {
	svc := setupSvc(t)

	usr := createStudent(t, svc, "Amina Yusuf", "amina01", "amina@test.ng")
	assert.NotEmpty(t, usr.ID)
	require.NotNil(t, usr.IsActive)
	assert.True(t, *usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.NoError(t, usr.CheckPassword("S3cretPass!"))
	assert.Error(t, usr.CheckPassword("wrong"))
}

func TestCheckUniqueness(t *testing.T) {
	svc := setupSvc(t)
	ctx := context.Background()

	usr := createStudent(t, svc, "Amina Yusuf", "amina01", "amina@test.ng")

	var vErr *core.ValidationError
	err := svc.CheckUniqueness(ctx, "amina01", "new@test.ng")
	assert.ErrorAs(t, err, &vErr)
	err = svc.CheckUniqueness(ctx, "newuname", "amina@test.ng")
	assert.ErrorAs(t, err, &vErr)

	assert.NoError(t, svc.CheckUniqueness(ctx, "newuname", "new@test.ng"))
	// the user itself is excluded when updating
	assert.NoError(t, svc.CheckUniqueness(ctx, "amina01", "amina@test.ng", usr))
}

func TestQuery(t *testing.T) {
	svc := setupSvc(t)
	ctx := context.Background()

	createStudent(t, svc, "Amina Yusuf", "amina01", "amina@test.ng")
	createStudent(t, svc, "Bayo Adewale", "bayo2000", "bayo@test.ng")
	_, err := svc.Create(ctx, user.NewUser{
		Name:            "Chidi Okeke",
		Username:        "chidi_sup",
		Email:           "chidi@test.ng",
		Password:        "S3cretPass!",
		PasswordConfirm: "S3cretPass!",
		Roles:           []string{user.RoleSupervisorIndustry},
	})
	require.NoError(t, err)

	all, err := svc.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	students, err := svc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	assert.Len(t, students, 2)

	found, err := svc.Query(ctx, &user.QueryFilter{Search: "adewale"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bayo2000", found[0].Username)
}

func TestUpdate(t *testing.T) {
	svc := setupSvc(t)
	ctx := context.Background()

	usr := createStudent(t, svc, "Amina Yusuf", "amina01", "amina@test.ng")

	inactive := false
	updated, err := svc.Update(ctx, usr.ID, user.UpdateUser{
		Name:     "Amina Yusuf-Bello",
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Amina Yusuf-Bello", updated.Name)
	require.NotNil(t, updated.IsActive)
	assert.False(t, *updated.IsActive)
	assert.Equal(t, usr.Username, updated.Username) // untouched

	updated, err = svc.Update(ctx, usr.ID, user.UpdateUser{
		Password:        "N3wPass!",
		PasswordConfirm: "N3wPass!",
	})
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword("N3wPass!"))

	_, err = svc.Update(ctx, "nope", user.UpdateUser{Name: "lol"})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	svc := setupSvc(t)
	ctx := context.Background()

	conf := &core.Config{
		SecretKey:                 "test-secret-key",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	usr := createStudent(t, svc, "Amina Yusuf", "amina01", "amina@test.ng")

	token, err := user.MakeToken(conf, usr)
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, user.ResetUserPassword{
		Token:           token,
		UID:             user.EncodeUID(usr),
		Password:        "N3wPass!",
		PasswordConfirm: "N3wPass!",
	})
	require.NoError(t, err)

	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("N3wPass!"))

	// a used token is invalidated by the password change
	err = svc.ResetPassword(ctx, user.ResetUserPassword{
		Token:           token,
		UID:             user.EncodeUID(usr),
		Password:        "0therPass!",
		PasswordConfirm: "0therPass!",
	})
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)

	err = svc.ResetPassword(ctx, user.ResetUserPassword{
		Token:           "garbage",
		UID:             "!!!",
		Password:        "N3wPass!",
		PasswordConfirm: "N3wPass!",
	})
	assert.ErrorAs(t, err, &vErr)

	err = svc.RequestPasswordReset(ctx, "unknown@test.ng")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

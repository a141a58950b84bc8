package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/user"
)

const userTable = `"user"`

var userColumns = []string{
	"id", "name", "username", "email", "matric_no", "is_active", "roles",
	"password_hash", "created_at", "updated_at", "last_login",
}

type userRecord struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	MatricNo     string         `db:"matric_no"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    time.Time      `db:"last_login"`
}

func (rec userRecord) user() user.User {
	isActive := rec.IsActive
	return user.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Username:     rec.Username,
		Email:        rec.Email,
		MatricNo:     rec.MatricNo,
		IsActive:     &isActive,
		Roles:        rec.Roles,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		LastLogin:    rec.LastLogin,
	}
}

func users(recs []userRecord) []user.User {
	usrs := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		usrs = append(usrs, rec.user())
	}
	return usrs
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) getOne(ctx context.Context, q sq.SelectBuilder, exec []core.DBExecutor) (user.User, error) {
	var recs []userRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return user.User{}, err
	}
	if len(recs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return recs[0].user(), nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var clashes sq.Or
	if username != "" {
		clashes = append(clashes, sq.Eq{"username": username})
	}
	if email != "" {
		clashes = append(clashes, sq.Eq{"email": email})
	}
	if len(clashes) == 0 {
		return nil
	}

	q := psql.Select("username", "email").From(userTable).Where(clashes)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	var recs []userRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, rec := range recs {
		if rec.Username == username {
			return user.ErrUsernameExists
		}
		if rec.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	query, args, err := psql.Insert(userTable).
		Columns(userColumns...).
		Values(
			usr.ID, usr.Name, usr.Username, usr.Email, usr.MatricNo,
			usr.IsActive == nil || *usr.IsActive, pq.StringArray(usr.Roles),
			usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
		).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user insert")
	}

	var recs []userRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		switch {
		case isUniqueViolation(err, "user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return recs[0].user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := psql.Select(userColumns...).From(userTable)

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			search := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.ILike{"name": search},
				sq.ILike{"username": search},
				sq.ILike{"email": search},
			})
		}
		if len(filter.Roles) > 0 {
			var roleMatch sq.Or
			for _, role := range filter.Roles {
				roleMatch = append(roleMatch, sq.Expr(
					"EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE r LIKE ?)", role+"%"))
			}
			q = q.Where(roleMatch)
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	if len(ordering) == 0 {
		q = q.OrderBy("created_at DESC")
	}
	for _, ord := range ordering {
		q = q.OrderBy(ord.String())
	}

	var recs []userRecord
	if err := selectAll(ctx, repo.getExec(exec), q, &recs); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users(recs), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, psql.Select(userColumns...).From(userTable).Where(sq.Eq{"id": id}), exec)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, psql.Select(userColumns...).From(userTable).Where(sq.Eq{"username": username}), exec)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, psql.Select(userColumns...).From(userTable).Where(sq.Eq{"email": email}), exec)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Select(userColumns...).From(userTable).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": username}})
	return repo.getOne(ctx, q, exec)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	// only save set fields
	q := psql.Update(userTable).
		Set("updated_at", usr.UpdatedAt).
		Where(sq.Eq{"id": usr.ID}).
		Suffix("RETURNING " + joinColumns(userColumns))
	if usr.Name != "" {
		q = q.Set("name", usr.Name)
	}
	if usr.Username != "" {
		q = q.Set("username", usr.Username)
	}
	if usr.Email != "" {
		q = q.Set("email", usr.Email)
	}
	if usr.MatricNo != "" {
		q = q.Set("matric_no", usr.MatricNo)
	}
	if usr.Roles != nil {
		q = q.Set("roles", pq.StringArray(usr.Roles))
	}
	if usr.PasswordHash != nil {
		q = q.Set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		q = q.Set("is_active", *isActive)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user update")
	}
	var recs []userRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		switch {
		case isUniqueViolation(err, "user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if len(recs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return recs[0].user(), nil
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, usr user.User, lastLogin time.Time, exec ...core.DBExecutor) (user.User, error) {
	query, args, err := psql.Update(userTable).
		Set("last_login", lastLogin).
		Where(sq.Eq{"id": usr.ID}).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building last login update")
	}
	var recs []userRecord
	if err = execReturning(ctx, repo.getExec(exec), query, args, &recs); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	if len(recs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return recs[0].user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete(userTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building user delete")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

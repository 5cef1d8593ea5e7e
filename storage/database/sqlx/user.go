package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

const userColumns = "id, name, username, email, role, password_hash, created_at, updated_at, last_login"

var userSortColumns = map[string]string{
	"name":       "name",
	"full_name":  "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// uniqueErr maps a unique violation on users to the matching domain error.
func (repo userRepository) uniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := `SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND id <> ALL($3::uuid[]) LIMIT 2`
	if err := repo.exec.SelectContext(ctx, &rows, q, username, email, pq.Array(validIDs(excludedIDs))); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.exec.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, string(usr.Role), usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	)
	if err != nil {
		return user.User{}, repo.uniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var cond sq.Sqlizer
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		cond = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		cond = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		cond = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		cond = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getBuilt(ctx, repo.exec, &row, psql.Select(userColumns).From("users").Where(cond).Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	if err := repo.exec.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "getting users by ID")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	b := psql.Select(userColumns).From("users")
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"username": val}, sq.ILike{"email": val}})
		}
		if filter.Role != "" {
			b = b.Where(sq.Eq{"role": string(filter.Role)})
		}
	}

	var rows []userRow
	if err := selectBuilt(ctx, repo.exec, &rows, b.OrderBy(orderBy(ordering, userSortColumns, "created_at DESC")...)); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	q := `UPDATE users SET name = $2, username = $3, email = $4, role = $5, password_hash = COALESCE($6, password_hash),
		updated_at = $7, last_login = $8 WHERE id = $1 RETURNING ` + userColumns
	var row userRow
	err := repo.exec.GetContext(ctx, &row, q,
		usr.ID, usr.Name, usr.Username, usr.Email, string(usr.Role), usr.PasswordHash,
		usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return user.User{}, repo.uniqueErr(err, "updating user")
		}
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return row.user(), nil
}

// DeleteUser relies on the foreign keys to remove or detach the user's records.
func (repo userRepository) DeleteUser(ctx context.Context, id string) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	n, err := affected(repo.exec.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) CountUsersByRole(ctx context.Context) (map[user.Role]int, error) {
	var rows []struct {
		Role  string `db:"role"`
		Count int    `db:"count"`
	}
	if err := repo.exec.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM users GROUP BY role`); err != nil {
		return nil, errors.Wrap(err, "counting users by role")
	}
	counts := make(map[user.Role]int, len(rows))
	for _, r := range rows {
		counts[user.Role(r.Role)] = r.Count
	}
	return counts, nil
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

var (
	// errors
	ErrNotFound       = errors.New("User not found")
	ErrEmailExists    = errors.New("Email already taken")
	ErrUsernameExists = errors.New("Username already taken")
	ErrInvalidRole    = errors.New("invalid role")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if a user other than excludedIDs holds them.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// GetUsersByID silently skips unknown ids.
		GetUsersByID(ctx context.Context, ids []string) ([]User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser removes the user with every assignment, document and notification it owns.
		DeleteUser(ctx context.Context, id string) error
		CountUsersByRole(ctx context.Context) (map[Role]int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CheckUniqueness wraps repository uniqueness errors into field validation errors.
func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	if err := svc.repo.CheckUniqueness(ctx, uname, email, ids...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(errors.Cause(err), core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// GetMany resolves a set of ids in a single lookup, keyed by id.
func (svc *Service) GetMany(ctx context.Context, ids []string) (map[string]User, error) {
	users := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	found, err := svc.repo.GetUsersByID(ctx, uniq)
	if err != nil {
		return nil, errors.Wrap(err, "getting users by ID")
	}
	for _, u := range found {
		users[u.ID] = u
	}
	return users, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil && filter.Role != "" && !filter.Role.IsValid() {
		return []User{}, nil
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

// Update expects a validated UpdateUser (see UpdateUser.Validate).
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ResetPassword(ctx context.Context, unameOrEmail, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, unameOrEmail)
	if err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := svc.repo.CountUsersByRole(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting users by role")
	}
	st := Stats{
		TotalAdmins:   counts[RoleAdmin],
		TotalTeachers: counts[RoleTeacher],
		TotalStudents: counts[RoleStudent],
	}
	st.TotalUsers = st.TotalAdmins + st.TotalTeachers + st.TotalStudents
	return st, nil
}

// EnsureAdmin creates the admin described by nu unless a user with its username or email exists.
// The boolean reports whether a user was created.
func (svc *Service) EnsureAdmin(ctx context.Context, nu NewUser) (User, bool, error) {
	nu.Clean()
	nu.Role = RoleAdmin
	for _, key := range []string{nu.Username, nu.Email} {
		if usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: key}); err == nil {
			return usr, false, nil
		} else if errors.Cause(err) != ErrNotFound {
			return User{}, false, errors.Wrap(err, "finding admin")
		}
	}
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, false, errors.Wrap(err, "creating admin")
	}
	return usr, true, nil
}

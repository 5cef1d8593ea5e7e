package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

var defaultUserOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func userColumn(usr user.User) func(string) (interface{}, bool) {
	return func(field string) (interface{}, bool) {
		switch field {
		case "name", "full_name":
			return usr.Name, true
		case "username":
			return usr.Username, true
		case "email":
			return usr.Email, true
		case "role":
			return string(usr.Role), true
		case "created_at":
			return usr.CreatedAt, true
		case "updated_at":
			return usr.UpdatedAt, true
		case "last_login":
			return usr.LastLogin, true
		}
		return nil, false
	}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}
	for id, row := range repo.db.users {
		if _, ok := excluded[id]; ok {
			continue
		}
		if username != "" && row.usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &userRow{seq: repo.db.nextSeq(), usr: usr}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if row, ok := repo.db.users[filter.ID]; ok {
			return row.usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, row := range repo.db.users {
		usr := row.usr
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids []string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if row, ok := repo.db.users[id]; ok {
			users = append(users, row.usr)
		}
	}
	return users, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*userRow, 0, len(repo.db.users))
	for _, row := range repo.db.users {
		if filter != nil {
			if filter.Role != "" && row.usr.Role != filter.Role {
				continue
			}
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !(strings.Contains(strings.ToLower(row.usr.Name), search) ||
					strings.Contains(row.usr.Username, search) ||
					strings.Contains(row.usr.Email, search)) {
					continue
				}
			}
		}
		rows = append(rows, row)
	}

	if len(ordering) == 0 {
		ordering = defaultUserOrdering
	}
	sort.Slice(rows, func(i, j int) bool {
		return orderedLess(ordering, userColumn(rows[i].usr), userColumn(rows[j].usr), rows[i].seq, rows[j].seq)
	})

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.usr)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = row.usr.CreatedAt
	if usr.PasswordHash == nil {
		usr.PasswordHash = row.usr.PasswordHash
	}
	row.usr = usr
	return usr, nil
}

// DeleteUser mirrors the ON DELETE rules of the SQL schema.
func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, id)

	for aid, row := range repo.db.assignments {
		switch {
		case row.a.TeacherID == id || row.a.StudentID == id:
			delete(repo.db.assignments, aid)
		case row.a.AssignedBy == id:
			row.a.AssignedBy = ""
		}
	}
	for did, row := range repo.db.documents {
		switch {
		case row.doc.OwnerID == id:
			delete(repo.db.documents, did)
		case row.doc.ReviewedBy.Valid && row.doc.ReviewedBy.String == id:
			row.doc.ReviewedBy.Valid = false
			row.doc.ReviewedBy.String = ""
		}
	}
	for nid, row := range repo.db.notifications {
		if row.n.UserID == id {
			delete(repo.db.notifications, nid)
		}
	}
	return nil
}

func (repo *userRepository) CountUsersByRole(_ context.Context) (map[user.Role]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[user.Role]int, len(user.Roles))
	for _, row := range repo.db.users {
		counts[row.usr.Role]++
	}
	return counts, nil
}

package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/paperdesk/core/user"
	"github.com/trezcool/paperdesk/testutil"
)

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	now := time.Now()
	admin := env.createUser(t, "Admin", "admin", user.RoleAdmin, now.Add(-4*time.Hour))
	teacher := env.createUser(t, "Prof Kabila", "kabila", user.RoleTeacher, now.Add(-3*time.Hour))
	mary := env.createUser(t, "Mary Jane", "mary", user.RoleStudent, now.Add(-2*time.Hour))
	john := env.createUser(t, "John Doe", "john", user.RoleStudent, now.Add(-time.Hour))

	adminToken := getToken(t, env, admin)
	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: errData(t, "missing or malformed jwt")},
		{
			name: "Only admins", path: "/api/users", token: getToken(t, env, teacher), wantCode: http.StatusForbidden,
			wantData: errData(t, "Only admins can access users"),
		},
		{name: "Newest first", path: "/api/users", token: adminToken, wantData: okList(t, john, mary, teacher, admin)},
		{name: "Ordered", path: "/api/users?sort=username", token: adminToken, wantData: okList(t, admin, john, teacher, mary)},
		{name: "Legacy ordering param", path: "/api/users?ordering=-full_name", token: adminToken, wantData: okList(t, teacher, mary, john, admin)},
		{name: "By role", path: "/api/users?role=STUDENT", token: adminToken, wantData: okList(t, john, mary)},
		{name: "Unknown role", path: "/api/users?role=principal", token: adminToken, wantData: okList(t)},
		{name: "Search", path: "/api/users?search=JANE", token: adminToken, wantData: okList(t, mary)},
		{name: "Search by email", path: "/api/users?search=kabila@", token: adminToken, wantData: okList(t, teacher)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_stats(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", user.RoleAdmin)
	env.createUser(t, "Prof", "prof", user.RoleTeacher)
	mary := env.createUser(t, "Mary", "mary", user.RoleStudent)
	env.createUser(t, "John", "john", user.RoleStudent)

	tests := []httpTest{
		{name: "Only admins", token: getToken(t, env, mary), wantCode: http.StatusForbidden, wantData: errData(t, "Only admins can access users")},
		{
			name: "Counted", token: getToken(t, env, admin),
			wantData: okData(t, user.Stats{TotalUsers: 4, TotalAdmins: 1, TotalTeachers: 1, TotalStudents: 2}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
		tests[i].path = "/api/users/stats"
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_retrieve(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", user.RoleAdmin)
	mary := env.createUser(t, "Mary", "mary", user.RoleStudent)
	john := env.createUser(t, "John", "john", user.RoleStudent)
	maryToken := getToken(t, env, mary)

	tests := []httpTest{
		{name: "Self", path: "/api/users/" + mary.ID, token: maryToken, wantData: okData(t, mary)},
		{
			name: "Someone else", path: "/api/users/" + john.ID, token: maryToken, wantCode: http.StatusForbidden,
			wantData: errData(t, "Not authorized to access this user"),
		},
		{name: "Admin", path: "/api/users/" + john.ID, token: getToken(t, env, admin), wantData: okData(t, john)},
		{
			name: "Not found", path: "/api/users/lol", token: getToken(t, env, admin), wantCode: http.StatusNotFound,
			wantData: errData(t, "User not found"),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_update(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", user.RoleAdmin)
	mary := env.createUser(t, "Mary", "mary", user.RoleStudent)
	john := env.createUser(t, "John", "john", user.RoleStudent)
	maryToken := getToken(t, env, mary)
	adminToken := getToken(t, env, admin)

	update := func(uu user.UpdateUser) []byte { return marchallObj(t, uu) }

	tests := []httpTest{
		{
			name: "Someone else", path: "/api/users/" + john.ID, token: maryToken, body: update(user.UpdateUser{Name: "Lol"}),
			wantCode: http.StatusForbidden, wantData: errData(t, "Not authorized to update this user"),
		},
		{
			name: "Own role", path: "/api/users/" + mary.ID, token: maryToken, body: update(user.UpdateUser{Role: user.RoleAdmin}),
			wantCode: http.StatusForbidden, wantData: errData(t, "Only admins can change roles"),
		},
		{
			name: "Admin own role", path: "/api/users/" + admin.ID, token: adminToken, body: update(user.UpdateUser{Role: user.RoleStudent}),
			wantCode: http.StatusBadRequest, wantData: errData(t, "role: You cannot change your own role"),
		},
		{
			name: "Username taken", path: "/api/users/" + mary.ID, token: maryToken, body: update(user.UpdateUser{Username: "John"}),
			wantCode: http.StatusBadRequest, wantData: errData(t, "Username already taken"),
		},
		{
			name: "Invalid email", path: "/api/users/" + mary.ID, token: maryToken, body: update(user.UpdateUser{Email: "lol"}),
			wantCode: http.StatusBadRequest, wantData: errData(t, "email: email must be a valid email address"),
		},
		{
			name: "Password mismatch", path: "/api/users/" + mary.ID, token: maryToken, body: update(user.UpdateUser{Password: "Azerty@456"}),
			wantCode: http.StatusBadRequest, wantData: errData(t, "password_confirm: this field is required"),
		},
		{
			name: "Not found", path: "/api/users/lol", token: adminToken, body: update(user.UpdateUser{Name: "Lol"}),
			wantCode: http.StatusNotFound, wantData: errData(t, "User not found"),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPut
	}
	runHTTPTests(t, env, tests)

	t.Run("Own profile", func(t *testing.T) {
		body := update(user.UpdateUser{Name: " Mary Jane ", Password: "Azerty@456", PasswordConfirm: "Azerty@456"})
		rec := env.serve(newAuthRequest(http.MethodPut, "/api/users/"+mary.ID, maryToken, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, "Mary Jane", got.Name)
		assert.Equal(t, "mary", got.Username)
		assert.Equal(t, user.RoleStudent, got.Role)

		stored, err := env.users.GetUser(context.Background(), user.GetFilter{ID: mary.ID})
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword("Azerty@456"))
	})

	t.Run("Role changed by admin", func(t *testing.T) {
		body := update(user.UpdateUser{Role: "Teacher"})
		rec := env.serve(newAuthRequest(http.MethodPut, "/api/users/"+john.ID, adminToken, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, user.RoleTeacher, got.Role)
		assert.Equal(t, "John", got.Name)
	})
}

func Test_userApi_destroy(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", user.RoleAdmin)
	teacher := env.createUser(t, "Prof", "prof", user.RoleTeacher)
	mary := env.createUser(t, "Mary", "mary", user.RoleStudent)
	adminToken := getToken(t, env, admin)

	testutil.CreateAssignment(t, env.assignments, teacher, mary, admin.ID)
	doc := env.upload(t, mary, "Thesis")
	require.True(t, env.blobExists(doc))

	tests := []httpTest{
		{
			name: "Only admins", path: "/api/users/" + mary.ID, token: getToken(t, env, teacher),
			wantCode: http.StatusForbidden, wantData: errData(t, "Only admins can delete users"),
		},
		{
			name: "Self", path: "/api/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: errData(t, "You cannot delete your own account"),
		},
		{
			name: "Not found", path: "/api/users/lol", token: adminToken,
			wantCode: http.StatusNotFound, wantData: errData(t, "User not found"),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodDelete
	}
	runHTTPTests(t, env, tests)

	t.Run("Cascade", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodDelete, "/api/users/"+mary.ID, adminToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "User deleted successfully", decode(t, rec, nil).Message)

		ctx := context.Background()
		_, err := env.users.GetUser(ctx, user.GetFilter{ID: mary.ID})
		assert.ErrorIs(t, err, user.ErrNotFound)
		_, err = env.documents.GetDocument(ctx, doc.ID)
		assert.Error(t, err)
		assert.False(t, env.blobExists(doc))

		rec = env.serve(newAuthRequest(http.MethodGet, "/api/assignments", getToken(t, env, teacher)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, *decode(t, rec, nil).Count)
		assert.Empty(t, env.notificationsOf(t, mary))
	})
}

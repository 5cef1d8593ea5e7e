package sqlxrepos

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

var userCols = []string{"id", "name", "username", "email", "role", "password_hash", "created_at", "updated_at", "last_login"}

func Test_orderBy(t *testing.T) {
	tests := []struct {
		name     string
		ordering string
		want     []string
	}{
		{name: "fallback", ordering: "", want: []string{"created_at DESC"}},
		{name: "unknown fields dropped", ordering: "password_hash,-lol", want: []string{"created_at DESC"}},
		{name: "mapped", ordering: "full_name,-created_at", want: []string{"name ASC", "created_at DESC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(core.ParseOrdering(tt.ordering), userSortColumns, "created_at DESC"))
		})
	}
}

func Test_paginate(t *testing.T) {
	tests := []struct {
		name string
		page core.Pagination
		want string
	}{
		{name: "first page", page: core.NewPagination(1, 10), want: "SELECT id FROM t WHERE a = $1 LIMIT 10 OFFSET 0"},
		{name: "third page", page: core.NewPagination(3, 25), want: "SELECT id FROM t WHERE a = $1 LIMIT 25 OFFSET 50"},
		{name: "huge page", page: core.NewPagination(1_000_000_000_000_000_000, 100), want: "SELECT id FROM t WHERE a = $1 LIMIT 100 OFFSET 9223372036854775700"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := paginate(psql.Select("id").From("t").Where(sq.Eq{"a": 1}), tt.page).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
			assert.Equal(t, []interface{}{1}, args)
		})
	}
}

func Test_userRepository_GetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	id := uuid.New().String()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1 LIMIT 1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "Mary", "mary", "mary@test.cd", "student", []byte("hash"), now, now, nil))
	usr, err := repo.GetUser(ctx, user.GetFilter{ID: id})
	require.NoError(t, err)
	assert.Equal(t, "mary", usr.Username)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.LastLogin.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE (username = $1 OR email = $2) LIMIT 1`)).
		WithArgs("john", "john").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "john"})
	assert.Equal(t, user.ErrNotFound, err)

	// malformed IDs never reach the database
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "lol"})
	assert.Equal(t, user.ErrNotFound, err)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1 LIMIT 1`)).
		WithArgs(id).
		WillReturnError(sql.ErrConnDone)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: id})
	assert.True(t, core.IsShutdown(err))
}

func Test_userRepository_uniqueness(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username, email FROM users WHERE (username = $1 OR email = $2)`)).
		WithArgs("mary", "mary@test.cd", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}).AddRow("other", "mary@test.cd"))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "mary", "mary@test.cd"))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "users_username_key"})
	_, err := repo.CreateUser(ctx, user.User{Username: "mary", Email: "new@test.cd"})
	assert.Equal(t, user.ErrUsernameExists, err)
}

func Test_userRepository_QueryUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM users WHERE (name ILIKE $1 OR username ILIKE $2 OR email ILIKE $3) AND role = $4 ORDER BY name ASC`,
	)).
		WithArgs("%ma%", "%ma%", "%ma%", "teacher").
		WillReturnRows(sqlmock.NewRows(userCols))

	users, err := repo.QueryUsers(context.Background(), &user.QueryFilter{Search: "ma", Role: user.RoleTeacher}, core.ParseOrdering("name"))
	require.NoError(t, err)
	assert.Equal(t, []user.User{}, users)
}

func Test_userRepository_DeleteUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	id := uuid.New().String()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteUser(context.Background(), id))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, user.ErrNotFound, repo.DeleteUser(context.Background(), id))
}

func Test_userRepository_CountUsersByRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT role, COUNT(*) AS count FROM users GROUP BY role`)).
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).AddRow("admin", 1).AddRow("student", 4))

	counts, err := repo.CountUsersByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[user.Role]int{user.RoleAdmin: 1, user.RoleStudent: 4}, counts)
}

func Test_assignmentRepository_CreateAssignment(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAssignmentRepository(db)
	teacherID, studentID := uuid.New().String(), uuid.New().String()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assignments`)).
		WithArgs(sqlmock.AnyArg(), teacherID, studentID, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{TeacherID: teacherID, StudentID: studentID})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assignments`)).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "assignments_teacher_student_key"})
	_, err = repo.CreateAssignment(context.Background(), assignment.Assignment{TeacherID: teacherID, StudentID: studentID})
	assert.Equal(t, assignment.ErrExists, err)
}

func Test_assignmentRepository_QueryAssignments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAssignmentRepository(db)
	teacherID := uuid.New().String()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM assignments WHERE teacher_id = $1 ORDER BY assigned_at DESC`)).
		WithArgs(teacherID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "assigned_by", "assigned_at"}).
			AddRow("a1", teacherID, "s1", nil, now))

	got, err := repo.QueryAssignments(context.Background(), assignment.QueryFilter{TeacherID: teacherID})
	require.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "s1", got[0].StudentID)
		assert.Empty(t, got[0].AssignedBy)
	}

	got, err = repo.QueryAssignments(context.Background(), assignment.QueryFilter{StudentID: "lol"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func Test_documentRepository_QueryDocuments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	ownerID := uuid.New().String()
	now := time.Now().UTC()
	docCols := []string{
		"id", "user_id", "name", "paper_name", "description", "file_url", "original_filename", "blob_handle",
		"status", "feedback", "uploaded_at", "reviewed_at", "reviewed_by", "created_at", "updated_at",
	}
	scope := policy.Scope{OwnerIDs: []string{ownerID}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM documents WHERE user_id = ANY($1::uuid[]) AND status = $2`)).
		WithArgs(sqlmock.AnyArg(), "submitted").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM documents WHERE user_id = ANY($1::uuid[]) AND status = $2 ORDER BY paper_name ASC, id LIMIT 10 OFFSET 10`,
	)).
		WithArgs(sqlmock.AnyArg(), "submitted").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow(
			"d11", ownerID, "Mary", "Zeta", "", "/uploads/z.pdf", "z.pdf", "z.pdf",
			"submitted", nil, now, nil, nil, now, now,
		))

	docs, total, err := repo.QueryDocuments(ctx,
		document.QueryFilter{Scope: scope, Status: document.StatusSubmitted},
		core.NewPagination(2, 10),
		core.ParseOrdering("paper_name,lol"),
	)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	if assert.Len(t, docs, 1) {
		assert.Equal(t, "Zeta", docs[0].PaperName)
		assert.False(t, docs[0].Feedback.Valid)
	}

	// an empty scope never reaches the database
	docs, total, err = repo.QueryDocuments(ctx, document.QueryFilter{Scope: policy.Scope{OwnerIDs: []string{}}}, core.NewPagination(1, 10), nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func Test_documentRepository_stats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) AS count FROM documents GROUP BY status`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("submitted", 3).AddRow("reviewed", 2))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE feedback IS NOT NULL AND feedback <> ''`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY year, month ORDER BY year, month`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"year", "month", "count"}).AddRow(2024, 1, 1).AddRow(2024, 2, 4))

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[document.Status]int{document.StatusSubmitted: 3, document.StatusReviewed: 2}, byStatus)

	withFeedback, err := repo.CountWithFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, withFeedback)

	byMonth, err := repo.CountByMonth(ctx, time.Now().AddDate(0, -6, 0))
	require.NoError(t, err)
	assert.Equal(t, []document.MonthCount{
		{Month: document.Month{Year: 2024, Month: 1}, Count: 1},
		{Month: document.Month{Year: 2024, Month: 2}, Count: 4},
	}, byMonth)
}

func Test_documentRepository_UpdateReview(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentRepository(db)
	id := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE documents SET feedback = $2`)).
		WithArgs(id, "Good", "reviewed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateReview(context.Background(), id, document.ReviewRecord{
		Feedback: "Good", Status: document.StatusReviewed, ReviewedAt: time.Now(), ReviewedBy: uuid.New().String(),
	})
	assert.Equal(t, document.ErrNotFound, err)
}

func Test_notificationRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	userID := uuid.New().String()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(sqlmock.AnyArg(), userID, "hello", "info", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateNotifications(ctx,
		notification.Notification{UserID: userID, Message: "hello", Category: notification.CategoryInfo},
		notification.Notification{UserID: "lol", Message: "dropped"},
	)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`)).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	items, total, err := repo.QueryNotifications(ctx, userID, core.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT 2 OFFSET 2`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "message", "category", "is_read", "created_at"}).
			AddRow("n1", userID, "first", "info", true, time.Now()))
	items, total, err = repo.QueryNotifications(ctx, userID, core.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	if assert.Len(t, items, 1) {
		assert.Equal(t, "first", items[0].Message)
		assert.True(t, items[0].Read)
	}

	// pages past the end never reach the database
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	items, total, err = repo.QueryNotifications(ctx, userID, core.NewPagination(1_000_000_000_000_000_000, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, items)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM notifications WHERE is_read AND created_at < $1`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))
	purged, err := repo.DeleteReadBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, purged)
}

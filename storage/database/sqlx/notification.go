package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/notification"
)

const notificationColumns = "id, user_id, message, category, is_read, created_at"

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Message   string    `db:"message"`
	Category  string    `db:"category"`
	Read      bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Message:   r.Message,
		Category:  notification.Category(r.Category),
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	exec core.DBExecutor
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{exec: exec}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) ([]notification.Notification, error) {
	created := make([]notification.Notification, 0, len(ns))
	q := `INSERT INTO notifications (` + notificationColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, n := range ns {
		if !validID(n.UserID) {
			continue
		}
		n.ID = uuid.New().String()
		if _, err := repo.exec.ExecContext(ctx, q, n.ID, n.UserID, n.Message, string(n.Category), n.Read, n.CreatedAt.UTC()); err != nil {
			return created, errors.Wrap(err, "inserting notification")
		}
		created = append(created, n)
	}
	return created, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if !validID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	if err := repo.exec.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, page core.Pagination) ([]notification.Notification, int, error) {
	if !validID(userID) {
		return []notification.Notification{}, 0, nil
	}
	var total int
	if err := repo.exec.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID); err != nil {
		return nil, 0, errors.Wrap(err, "counting notifications")
	}
	if total == 0 || page.Offset() >= total {
		return []notification.Notification{}, total, nil
	}

	b := psql.Select(notificationColumns).From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id")
	var rows []notificationRow
	if err := selectBuilt(ctx, repo.exec, &rows, paginate(b, page)); err != nil {
		return nil, 0, errors.Wrap(err, "querying notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		ns = append(ns, r.notification())
	}
	return ns, total, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, id string) (notification.Notification, error) {
	if !validID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	q := `UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING ` + notificationColumns
	if err := repo.exec.GetContext(ctx, &row, q, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "marking notification read")
	}
	return row.notification(), nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	n, err := affected(repo.exec.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID))
	return n, errors.Wrap(err, "marking notifications read")
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var count int
	q := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	if err := repo.exec.GetContext(ctx, &count, q, userID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	if !validID(id) {
		return notification.ErrNotFound
	}
	n, err := affected(repo.exec.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int, error) {
	n, err := affected(repo.exec.ExecContext(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, before.UTC()))
	return n, errors.Wrap(err, "deleting read notifications")
}

package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, ns ...notification.Notification) ([]notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	created := make([]notification.Notification, 0, len(ns))
	for _, n := range ns {
		n.ID = uuid.New().String()
		repo.db.notifications[n.ID] = &notificationRow{seq: repo.db.nextSeq(), n: n}
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.notifications[id]; ok {
		return row.n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, page core.Pagination) ([]notification.Notification, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*notificationRow, 0)
	for _, row := range repo.db.notifications {
		if row.n.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].n.CreatedAt.Equal(rows[j].n.CreatedAt) {
			return rows[i].n.CreatedAt.After(rows[j].n.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	start, end := page.Window(len(rows))
	ns := make([]notification.Notification, 0, end-start)
	for _, row := range rows[start:end] {
		ns = append(ns, row.n)
	}
	return ns, len(rows), nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.notifications[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	row.n.Read = true
	return row.n, nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var count int
	for _, row := range repo.db.notifications {
		if row.n.UserID == userID && !row.n.Read {
			row.n.Read = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, row := range repo.db.notifications {
		if row.n.UserID == userID && !row.n.Read {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) DeleteNotification(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notifications[id]; !ok {
		return notification.ErrNotFound
	}
	delete(repo.db.notifications, id)
	return nil
}

func (repo *notificationRepository) DeleteReadBefore(_ context.Context, before time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var count int
	for id, row := range repo.db.notifications {
		if row.n.Read && row.n.CreatedAt.Before(before) {
			delete(repo.db.notifications, id)
			count++
		}
	}
	return count, nil
}

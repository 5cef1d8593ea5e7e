package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("Notification not found")
)

type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewNotification struct {
	UserID   string   `json:"user_id" validate:"required"`
	Message  string   `json:"message" validate:"required,max=500"`
	Category Category `json:"category" validate:"omitempty,oneof=info success warning error"`
}

type Page struct {
	Items []Notification
	Total int
	Page  int
	Limit int
	Pages int
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, ns ...Notification) ([]Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns a page of a user's notifications, newest first, and their total.
		QueryNotifications(ctx context.Context, userID string, page core.Pagination) ([]Notification, int, error)
		MarkRead(ctx context.Context, id string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) (int, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		DeleteNotification(ctx context.Context, id string) error
		// DeleteReadBefore removes read notifications created before `before`.
		DeleteReadBefore(ctx context.Context, before time.Time) (int, error)
	}

	Options struct {
		Logger   core.Logger
		Validate *validator.Validate
		Users    *user.Service
		// Mailer mirrors every notification by email when set.
		Mailer core.EmailService
	}

	Service struct {
		repo Repository
		opts Options
	}
)

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts}
}

func (svc *Service) List(ctx context.Context, userID string, page core.Pagination) (Page, error) {
	items, total, err := svc.repo.QueryNotifications(ctx, userID, page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying notifications")
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Items: items, Total: total, Page: page.Page, Limit: page.Limit, Pages: page.Pages(total)}, nil
}

func (svc *Service) authorize(ctx context.Context, actor policy.Actor, action policy.Action, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if err := policy.Authorize(actor, action, policy.Resource{OwnerID: n.UserID}).Err(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (svc *Service) MarkRead(ctx context.Context, actor policy.Actor, id string) (Notification, error) {
	if _, err := svc.authorize(ctx, actor, policy.NotificationUpdate, id); err != nil {
		return Notification{}, err
	}
	return svc.repo.MarkRead(ctx, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, actor policy.Actor) (int, error) {
	n, err := svc.repo.MarkAllRead(ctx, actor.ID)
	return n, errors.Wrap(err, "marking all notifications read")
}

func (svc *Service) UnreadCount(ctx context.Context, actor policy.Actor) (int, error) {
	n, err := svc.repo.CountUnread(ctx, actor.ID)
	return n, errors.Wrap(err, "counting unread notifications")
}

func (svc *Service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if _, err := svc.authorize(ctx, actor, policy.NotificationDelete, id); err != nil {
		return err
	}
	return svc.repo.DeleteNotification(ctx, id)
}

// PurgeRead deletes read notifications older than retention.
func (svc *Service) PurgeRead(ctx context.Context, retention time.Duration, now time.Time) (int, error) {
	n, err := svc.repo.DeleteReadBefore(ctx, now.UTC().Add(-retention))
	return n, errors.Wrap(err, "deleting read notifications")
}

// Create writes notifications without ever failing the caller: invalid or unwritable
// notifications are logged and dropped. It returns the notifications actually written.
func (svc *Service) Create(ctx context.Context, nns ...NewNotification) []Notification {
	now := time.Now().UTC()
	ns := make([]Notification, 0, len(nns))
	for _, nn := range nns {
		nn.Message = core.CleanString(nn.Message)
		if nn.Category == "" {
			nn.Category = CategoryInfo
		}
		if svc.opts.Validate != nil {
			if err := svc.opts.Validate.Struct(nn); err != nil {
				svc.logError("invalid notification", err, nn)
				continue
			}
		}
		ns = append(ns, Notification{
			UserID:    nn.UserID,
			Message:   nn.Message,
			Category:  nn.Category,
			CreatedAt: now,
		})
	}
	if len(ns) == 0 {
		return nil
	}

	created, err := svc.repo.CreateNotifications(ctx, ns...)
	if err != nil {
		svc.logError("creating notifications", err, nns)
		return nil
	}
	svc.mirror(ctx, created)
	return created
}

func (svc *Service) mirror(ctx context.Context, ns []Notification) {
	if svc.opts.Mailer == nil || svc.opts.Users == nil {
		return
	}
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.UserID)
	}
	users, err := svc.opts.Users.GetMany(ctx, ids)
	if err != nil {
		svc.logError("resolving notification recipients", err, nil)
		return
	}

	msgs := make([]*core.EmailMessage, 0, len(ns))
	for _, n := range ns {
		usr, ok := users[n.UserID]
		if !ok || usr.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "New notification",
			TemplateName: "notification",
			TemplateData: map[string]string{"Name": usr.Name, "Message": n.Message},
		})
	}
	if len(msgs) > 0 {
		svc.opts.Mailer.SendMessages(msgs...)
	}
}

func (svc *Service) logError(msg string, err error, data interface{}) {
	if svc.opts.Logger == nil {
		return
	}
	svc.opts.Logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{"data": data})
}

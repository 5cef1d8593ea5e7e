package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/paperdesk/core"
)

// Dispatcher turns domain events into notifications.
type Dispatcher struct {
	svc     *Service
	written *prometheus.CounterVec
}

// NewDispatcher registers its metrics with reg unless reg is nil.
func NewDispatcher(svc *Service, reg prometheus.Registerer) *Dispatcher {
	return &Dispatcher{
		svc: svc,
		written: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "paperdesk_notifications_written_total",
			Help: "Notifications written per triggering event topic",
		}, []string{"topic"}),
	}
}

// Register subscribes the dispatcher to every notifying topic.
func (d *Dispatcher) Register(bus core.EventBus) (unsubscribe func()) {
	unsubs := []func(){
		bus.Subscribe(core.TopicAssignmentCreated, d.onAssignmentCreated),
		bus.Subscribe(core.TopicAssignmentRemoved, d.onAssignmentRemoved),
		bus.Subscribe(core.TopicDocumentUploaded, d.onDocumentUploaded),
		bus.Subscribe(core.TopicDocumentReviewed, d.onDocumentReviewed),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (d *Dispatcher) create(ctx context.Context, topic string, nns ...NewNotification) {
	created := d.svc.Create(ctx, nns...)
	d.written.WithLabelValues(topic).Add(float64(len(created)))
}

func (d *Dispatcher) onAssignmentCreated(ctx context.Context, e core.Event) error {
	var p core.AssignmentPayload
	if err := e.Decode(&p); err != nil {
		return errors.Wrap(err, "decoding assignment payload")
	}
	d.create(ctx, e.Topic,
		NewNotification{
			UserID:   p.TeacherID,
			Message:  fmt.Sprintf("You have been assigned to student %s", p.StudentName),
			Category: CategoryInfo,
		},
		NewNotification{
			UserID:   p.StudentID,
			Message:  fmt.Sprintf("You have been assigned to teacher %s", p.TeacherName),
			Category: CategoryInfo,
		},
	)
	return nil
}

func (d *Dispatcher) onAssignmentRemoved(ctx context.Context, e core.Event) error {
	var p core.AssignmentPayload
	if err := e.Decode(&p); err != nil {
		return errors.Wrap(err, "decoding assignment payload")
	}
	d.create(ctx, e.Topic,
		NewNotification{
			UserID:   p.TeacherID,
			Message:  fmt.Sprintf("Your assignment with student %s has been removed", p.StudentName),
			Category: CategoryInfo,
		},
		NewNotification{
			UserID:   p.StudentID,
			Message:  fmt.Sprintf("Your assignment with teacher %s has been removed", p.TeacherName),
			Category: CategoryInfo,
		},
	)
	return nil
}

func (d *Dispatcher) onDocumentUploaded(ctx context.Context, e core.Event) error {
	var p core.DocumentUploadedPayload
	if err := e.Decode(&p); err != nil {
		return errors.Wrap(err, "decoding document payload")
	}
	nns := make([]NewNotification, 0, 1+len(p.TeacherIDs))
	nns = append(nns, NewNotification{
		UserID:   p.OwnerID,
		Message:  fmt.Sprintf("Document \"%s\" uploaded successfully", p.PaperName),
		Category: CategorySuccess,
	})
	for _, teacherID := range p.TeacherIDs {
		nns = append(nns, NewNotification{
			UserID:   teacherID,
			Message:  fmt.Sprintf("Your student %s has uploaded a new document: \"%s\"", p.OwnerName, p.PaperName),
			Category: CategoryInfo,
		})
	}
	d.create(ctx, e.Topic, nns...)
	return nil
}

func (d *Dispatcher) onDocumentReviewed(ctx context.Context, e core.Event) error {
	var p core.DocumentReviewedPayload
	if err := e.Decode(&p); err != nil {
		return errors.Wrap(err, "decoding document payload")
	}
	d.create(ctx, e.Topic, NewNotification{
		UserID:   p.OwnerID,
		Message:  fmt.Sprintf("Your document \"%s\" has been reviewed by your teacher", p.PaperName),
		Category: CategoryInfo,
	})
	return nil
}

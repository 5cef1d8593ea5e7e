package core

import (
	"context"
	"encoding/json"
	"time"
)

// Domain event topics.
const (
	TopicAssignmentCreated = "assignment.created"
	TopicAssignmentRemoved = "assignment.removed"
	TopicDocumentUploaded  = "document.uploaded"
	TopicDocumentReviewed  = "document.reviewed"
)

type (
	Event struct {
		Topic     string          `json:"topic"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		Timestamp time.Time       `json:"ts"`
	}

	EventHandler func(ctx context.Context, e Event) error

	// EventBus fans domain events out to their subscribers.
	EventBus interface {
		Publish(ctx context.Context, e Event) error
		Subscribe(topic string, h EventHandler) (unsubscribe func())
		Close() error
	}
)

// NewEvent marshals payload into an Event for topic.
func NewEvent(topic string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Payload: data, Timestamp: time.Now().UTC()}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Event payloads.
type (
	AssignmentPayload struct {
		AssignmentID string `json:"assignment_id"`
		TeacherID    string `json:"teacher_id"`
		TeacherName  string `json:"teacher_name"`
		StudentID    string `json:"student_id"`
		StudentName  string `json:"student_name"`
	}

	DocumentUploadedPayload struct {
		DocumentID string   `json:"document_id"`
		OwnerID    string   `json:"owner_id"`
		OwnerName  string   `json:"owner_name"`
		PaperName  string   `json:"paper_name"`
		TeacherIDs []string `json:"teacher_ids"`
	}

	DocumentReviewedPayload struct {
		DocumentID string `json:"document_id"`
		OwnerID    string `json:"owner_id"`
		PaperName  string `json:"paper_name"`
		ReviewerID string `json:"reviewer_id"`
		Status     string `json:"status"`
	}
)

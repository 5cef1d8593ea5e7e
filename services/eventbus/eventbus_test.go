package eventbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/paperdesk/core"
)

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{}) {}
func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }
func (l *recordingLogger) Fatal(string, ...interface{}) {}

func TestLocalBus(t *testing.T) {
	logger := new(recordingLogger)
	bus := NewLocalBus(logger)
	ctx := context.Background()

	var calls []string
	bus.Subscribe("a", func(context.Context, core.Event) error { calls = append(calls, "first"); return nil })
	bus.Subscribe("a", func(context.Context, core.Event) error { panic("boom") })
	bus.Subscribe("a", func(context.Context, core.Event) error { return errors.New("failed") })
	unsub := bus.Subscribe("a", func(context.Context, core.Event) error { calls = append(calls, "last"); return nil })
	bus.Subscribe("b", func(context.Context, core.Event) error { calls = append(calls, "other topic"); return nil })

	e, err := core.NewEvent("a", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, e))
	assert.Equal(t, []string{"first", "last"}, calls)
	assert.Equal(t, []string{"event handler panicked (a)", "event handler failed (a)"}, logger.errors)

	calls = nil
	unsub()
	unsub() // no-op
	require.NoError(t, bus.Publish(ctx, e))
	assert.Equal(t, []string{"first"}, calls)

	require.NoError(t, bus.Close())
	assert.Equal(t, errClosed, bus.Publish(ctx, e))
}

type fakePublisher struct {
	subjects []string
	data     [][]byte
	err      error
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.subjects = append(p.subjects, subj)
	p.data = append(p.data, data)
	return p.err
}

func TestNATSMirror(t *testing.T) {
	logger := new(recordingLogger)
	pub := new(fakePublisher)
	bus := NewNATSMirror(NewLocalBus(logger), pub, "paperdesk", logger)
	ctx := context.Background()

	var delivered int
	bus.Subscribe(core.TopicDocumentReviewed, func(context.Context, core.Event) error { delivered++; return nil })

	e, err := core.NewEvent(core.TopicDocumentReviewed, core.DocumentReviewedPayload{DocumentID: "d1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, e))

	assert.Equal(t, 1, delivered)
	require.Equal(t, []string{"paperdesk.document.reviewed"}, pub.subjects)
	var got core.Event
	require.NoError(t, json.Unmarshal(pub.data[0], &got))
	assert.Equal(t, e.Topic, got.Topic)

	pub.err = errors.New("nats: connection closed")
	assert.NoError(t, bus.Publish(ctx, e))
	assert.Equal(t, 2, delivered)
	assert.Len(t, logger.warns, 1)

	require.NoError(t, bus.Close())
}

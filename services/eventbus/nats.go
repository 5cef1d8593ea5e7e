package eventbus

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

// Publisher is the part of a NATS connection the mirror uses.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSMirror delivers events locally first, then republishes them on <prefix>.<topic>.
// Mirroring is best-effort: NATS errors are logged, never returned.
type NATSMirror struct {
	core.EventBus
	pub    Publisher
	prefix string
	logger core.Logger
	closer func()
}

func NewNATSMirror(local core.EventBus, pub Publisher, prefix string, logger core.Logger) *NATSMirror {
	return &NATSMirror{EventBus: local, pub: pub, prefix: prefix, logger: logger}
}

// ConnectNATS dials url and mirrors local onto the connection; closing the mirror drains it.
func ConnectNATS(url string, local core.EventBus, prefix string, logger core.Logger) (*NATSMirror, error) {
	nc, err := nats.Connect(url, nats.Name("paperdesk"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to NATS")
	}
	m := NewNATSMirror(local, nc, prefix, logger)
	m.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return m, nil
}

func (m *NATSMirror) subject(topic string) string {
	if m.prefix == "" {
		return topic
	}
	return m.prefix + "." + topic
}

func (m *NATSMirror) Publish(ctx context.Context, e core.Event) error {
	if err := m.EventBus.Publish(ctx, e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err == nil {
		err = m.pub.Publish(m.subject(e.Topic), data)
	}
	if err != nil && m.logger != nil {
		m.logger.Warn("mirroring event to NATS", errors.Wrap(err, "publishing "+e.Topic))
	}
	return nil
}

func (m *NATSMirror) Close() error {
	if m.closer != nil {
		m.closer()
	}
	return m.EventBus.Close()
}

// Package notify publishes click notifications to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/franciscoquinteros/landing-anto/internal/model"
)

const defaultConnectTimeout = 5 * time.Second

// ClickMessage is the payload published for every recorded click.
type ClickMessage struct {
	LinkID string `json:"link_id"`
	model.ClickEvent
}

// Publisher is the subset of *nats.Conn used to publish.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes click messages on a subject.
type NATSNotifier struct {
	conn    Publisher
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(defaultConnectTimeout),
		nats.Name(name),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	return conn, nil
}

// NewNATSNotifier returns a notifier publishing on subject.
func NewNATSNotifier(conn Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subject}
}

// NotifyClick publishes the event. Delivery is best effort.
func (n *NATSNotifier) NotifyClick(ctx context.Context, linkID string, event model.ClickEvent) error {
	data, err := json.Marshal(ClickMessage{LinkID: linkID, ClickEvent: event})
	if err != nil {
		return fmt.Errorf("nats: encode click: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", n.subject, err)
	}
	return nil
}

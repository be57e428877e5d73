package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/model"
)

// mockPublisher is a mock implementation of Publisher for testing.
type mockPublisher struct {
	subject string
	data    []byte
	err     error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.subject = subject
	m.data = data
	return m.err
}

func TestNATSNotifier_NotifyClick(t *testing.T) {
	t.Parallel()

	pub := &mockPublisher{}
	n := NewNATSNotifier(pub, "linkbio.clicks")

	country := "AR"
	event := model.ClickEvent{
		Timestamp:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UserAgent:   "UA",
		CountryCode: &country,
	}

	if err := n.NotifyClick(context.Background(), "shop", event); err != nil {
		t.Fatalf("NotifyClick failed: %v", err)
	}
	if pub.subject != "linkbio.clicks" {
		t.Errorf("subject = %s", pub.subject)
	}

	var got map[string]any
	if err := json.Unmarshal(pub.data, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["link_id"] != "shop" || got["co"] != "AR" || got["t"] != "2024-05-01T10:00:00Z" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["r"]; !ok {
		t.Error("payload should carry a null referrer")
	}
}

func TestNATSNotifier_PublishError(t *testing.T) {
	t.Parallel()

	pub := &mockPublisher{err: errors.New("nats: connection closed")}
	n := NewNATSNotifier(pub, "linkbio.clicks")

	if err := n.NotifyClick(context.Background(), "shop", model.ClickEvent{}); err == nil {
		t.Error("expected publish error")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dial test in short mode")
	}
	t.Parallel()

	if _, err := Connect("nats://127.0.0.1:1", "linkbio-test"); err == nil {
		t.Error("expected connect error for unreachable server")
	}
}

package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/background"
	"github.com/franciscoquinteros/landing-anto/internal/metrics"
	"github.com/franciscoquinteros/landing-anto/internal/model"
	"github.com/franciscoquinteros/landing-anto/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDirectory() *model.Directory {
	return &model.Directory{
		Sections: []model.Section{{ID: "main", Links: []model.Link{
			{ID: "shop", URL: "https://shop.example.com"},
		}}},
		Socials: []model.Social{{ID: "ig", URL: "https://instagram.com/anto"}},
	}
}

// mockLoader is a mock implementation of DirectoryLoader for testing.
type mockLoader struct {
	dir   *model.Directory
	err   error
	calls int
}

func (m *mockLoader) Load(ctx context.Context) (*model.Directory, error) {
	m.calls++
	return m.dir, m.err
}

// queueScheduler holds tasks until the test runs them.
type queueScheduler struct {
	mu    sync.Mutex
	tasks []background.Task
}

func (q *queueScheduler) Go(ctx context.Context, name string, task background.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *queueScheduler) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

// mockNotifier records notifications.
type mockNotifier struct {
	err    error
	linkID string
	event  model.ClickEvent
	calls  int
}

func (m *mockNotifier) NotifyClick(ctx context.Context, linkID string, event model.ClickEvent) error {
	m.calls++
	m.linkID = linkID
	m.event = event
	return m.err
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store offline")
}
func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("store offline")
}
func (failingStore) List(ctx context.Context) ([]string, error) {
	return nil, errors.New("store offline")
}

type testEnv struct {
	svc       *Service
	loader    *mockLoader
	clicks    store.Store
	events    store.Store
	scheduler *queueScheduler
	notifier  *mockNotifier
	metrics   *metrics.InMemoryRecorder
}

func newTestEnv(clicks, events store.Store) *testEnv {
	backend := store.NewMemory()
	if clicks == nil {
		clicks = backend.Store(store.NamespaceClicks)
	}
	if events == nil {
		events = backend.Store(store.NamespaceEvents)
	}
	env := &testEnv{
		loader:    &mockLoader{dir: testDirectory()},
		clicks:    clicks,
		events:    events,
		scheduler: &queueScheduler{},
		notifier:  &mockNotifier{},
		metrics:   metrics.NewInMemory(),
	}
	env.svc = NewService(env.loader, clicks, events, env.scheduler, env.notifier, env.metrics, testLogger())
	return env
}

func (e *testEnv) storedEvents(t *testing.T, id string) []model.ClickEvent {
	t.Helper()
	var out []model.ClickEvent
	if err := store.GetJSON(context.Background(), e.events, id, &out); err != nil {
		t.Fatalf("read events: %v", err)
	}
	return out
}

func (e *testEnv) storedCount(t *testing.T, id string) string {
	t.Helper()
	raw, err := e.clicks.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("read count: %v", err)
	}
	return string(raw)
}

func TestService_Resolve_MissingID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(nil, nil)
	_, err := env.svc.Resolve(context.Background(), "", RequestMeta{})

	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("Resolve() error = %v, want ErrBadRequest", err)
	}
	if env.loader.calls != 0 {
		t.Error("directory should not be loaded for an empty id")
	}
	if env.metrics.Snapshot().Redirects[metrics.ResultBadRequest] != 1 {
		t.Errorf("redirect metrics = %v", env.metrics.Snapshot().Redirects)
	}
}

func TestService_Resolve_RedirectsBeforeRecording(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	url, err := env.svc.Resolve(ctx, "ig", RequestMeta{UserAgent: "UA", Country: "ar"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if url != "https://instagram.com/anto" {
		t.Errorf("url = %s", url)
	}

	// Nothing written until the scheduled task runs
	if _, err := env.clicks.Get(ctx, "ig"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("count written before task ran: %v", err)
	}
	if len(env.scheduler.tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(env.scheduler.tasks))
	}

	env.scheduler.runAll()

	if got := env.storedCount(t, "ig"); got != "1" {
		t.Errorf("count = %s, want 1", got)
	}
	events := env.storedEvents(t, "ig")
	if len(events) != 1 || events[0].UserAgent != "UA" || *events[0].CountryCode != "AR" {
		t.Errorf("events = %+v", events)
	}
	if env.notifier.calls != 1 || env.notifier.linkID != "ig" {
		t.Errorf("notifier calls = %d, link = %s", env.notifier.calls, env.notifier.linkID)
	}
}

func TestService_Resolve_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	_, err := env.svc.Resolve(ctx, "nope", RequestMeta{})

	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("Resolve() error = %v, want ErrLinkNotFound", err)
	}
	if len(env.scheduler.tasks) != 0 {
		t.Error("no click should be scheduled for an unknown link")
	}
	keys, _ := env.clicks.List(ctx)
	if len(keys) != 0 {
		t.Errorf("unexpected writes: %v", keys)
	}
}

func TestService_Resolve_DataUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(nil, nil)
	env.loader.err = errors.New("site data unavailable")
	env.loader.dir = nil

	_, err := env.svc.Resolve(context.Background(), "shop", RequestMeta{})
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrDataUnavailable", err)
	}
	if errors.Is(err, ErrLinkNotFound) {
		t.Error("unavailable must be distinct from not found")
	}
	if len(env.scheduler.tasks) != 0 {
		t.Error("no click should be scheduled when data is unavailable")
	}
}

func TestService_RecordClick_IncrementsCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored string
		want   string
	}{
		{"absent", "", "1"},
		{"existing", "41", "42"},
		{"padded", " 7\n", "8"},
		{"unparseable", "abc", "1"},
		{"negative", "-3", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			env := newTestEnv(nil, nil)
			if tt.stored != "" {
				if err := env.clicks.Set(ctx, "shop", []byte(tt.stored)); err != nil {
					t.Fatal(err)
				}
			}

			env.svc.RecordClick(ctx, "shop", RequestMeta{})

			if got := env.storedCount(t, "shop"); got != tt.want {
				t.Errorf("count = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestService_RecordClick_StepsAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("count store failing", func(t *testing.T) {
		env := newTestEnv(failingStore{}, nil)
		env.svc.RecordClick(ctx, "shop", RequestMeta{UserAgent: "UA"})

		if len(env.storedEvents(t, "shop")) != 1 {
			t.Error("event should still be appended")
		}
		if env.notifier.calls != 1 {
			t.Error("notifier should still be called")
		}
		s := env.metrics.Snapshot()
		if s.ClickSteps["count/failed"] != 1 || s.ClickSteps["event/success"] != 1 {
			t.Errorf("click steps = %v", s.ClickSteps)
		}
	})

	t.Run("event store failing", func(t *testing.T) {
		env := newTestEnv(nil, failingStore{})
		env.svc.RecordClick(ctx, "shop", RequestMeta{UserAgent: "UA"})

		if got := env.storedCount(t, "shop"); got != "1" {
			t.Errorf("count = %s, want 1", got)
		}
		if env.notifier.calls != 1 || env.notifier.event.UserAgent != "UA" {
			t.Error("notifier should still be called with the event")
		}
		if env.metrics.Snapshot().ClickSteps["event/failed"] != 1 {
			t.Errorf("click steps = %v", env.metrics.Snapshot().ClickSteps)
		}
	})

	t.Run("notifier failing", func(t *testing.T) {
		env := newTestEnv(nil, nil)
		env.notifier.err = errors.New("nats down")
		env.svc.RecordClick(ctx, "shop", RequestMeta{})

		if got := env.storedCount(t, "shop"); got != "1" {
			t.Errorf("count = %s, want 1", got)
		}
		if env.metrics.Snapshot().ClickSteps["notify/failed"] != 1 {
			t.Errorf("click steps = %v", env.metrics.Snapshot().ClickSteps)
		}
	})
}

func TestService_RecordClick_NonArrayEventsReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	if err := env.events.Set(ctx, "shop", []byte(`{"oops":true}`)); err != nil {
		t.Fatal(err)
	}

	env.svc.RecordClick(ctx, "shop", RequestMeta{})

	if got := len(env.storedEvents(t, "shop")); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
}

func TestService_RecordClick_TrimsToCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := make([]model.ClickEvent, model.MaxEventsPerLink)
	for i := range seed {
		seed[i] = model.ClickEvent{Timestamp: base.Add(time.Duration(i) * time.Second), UserAgent: fmt.Sprintf("ua-%d", i)}
	}
	if err := store.SetJSON(ctx, env.events, "shop", seed); err != nil {
		t.Fatal(err)
	}

	env.svc.now = func() time.Time { return base.Add(time.Hour) }
	env.svc.RecordClick(ctx, "shop", RequestMeta{UserAgent: "newest"})

	events := env.storedEvents(t, "shop")
	if len(events) != model.MaxEventsPerLink {
		t.Fatalf("events = %d, want %d", len(events), model.MaxEventsPerLink)
	}
	if events[0].UserAgent != "ua-1" {
		t.Errorf("oldest event = %s, want ua-1", events[0].UserAgent)
	}
	if events[len(events)-1].UserAgent != "newest" {
		t.Errorf("newest event = %s, want newest", events[len(events)-1].UserAgent)
	}
}

func TestService_RecordClick_TimestampsIncrease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return frozen }

	for i := 0; i < 3; i++ {
		env.svc.RecordClick(ctx, "shop", RequestMeta{})
	}

	events := env.storedEvents(t, "shop")
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, want := range []time.Time{frozen, frozen.Add(time.Microsecond), frozen.Add(2 * time.Microsecond)} {
		if !events[i].Timestamp.Equal(want) {
			t.Errorf("event %d timestamp = %s, want %s", i, events[i].Timestamp, want)
		}
	}
}

func TestService_RecordClick_PreservesUnknownEventFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(nil, nil)
	legacy := `[{"t":"2024-01-01T00:00:00.000Z","r":null,"ua":"old","co":null,"extra":1}]`
	if err := env.events.Set(ctx, "shop", []byte(legacy)); err != nil {
		t.Fatal(err)
	}

	env.svc.RecordClick(ctx, "shop", RequestMeta{})

	var raw []map[string]any
	if err := store.GetJSON(ctx, env.events, "shop", &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || raw[0]["extra"] != float64(1) {
		t.Errorf("events = %v", raw)
	}
}

func TestAppendEvent(t *testing.T) {
	t.Parallel()

	mk := func(n int) []json.RawMessage {
		out := make([]json.RawMessage, n)
		for i := range out {
			out[i] = json.RawMessage(fmt.Sprintf("%d", i))
		}
		return out
	}

	tests := []struct {
		name      string
		existing  int
		limit     int
		wantLen   int
		wantFirst string
	}{
		{"empty", 0, 3, 1, "new"},
		{"below cap", 1, 3, 2, "0"},
		{"at cap", 3, 3, 3, "1"},
		{"over cap", 5, 3, 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := AppendEvent(mk(tt.existing), json.RawMessage("new"), tt.limit)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if string(got[0]) != tt.wantFirst {
				t.Errorf("first = %s, want %s", got[0], tt.wantFirst)
			}
			if string(got[len(got)-1]) != "new" {
				t.Errorf("last = %s, want new", got[len(got)-1])
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"12", 12},
		{" 3 ", 3},
		{"", 0},
		{"1.5", 0},
		{"-1", 0},
		{"12abc", 0},
	}

	for _, tt := range tests {
		if got := ParseCount([]byte(tt.in)); got != tt.want {
			t.Errorf("ParseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestService_WithRunner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := store.NewMemory()
	runner := background.NewRunner(testLogger())
	svc := NewService(&mockLoader{dir: testDirectory()},
		backend.Store(store.NamespaceClicks), backend.Store(store.NamespaceEvents),
		runner, nil, nil, testLogger())

	reqCtx, cancel := context.WithCancel(ctx)
	for i := 0; i < 5; i++ {
		if _, err := svc.Resolve(reqCtx, "shop", RequestMeta{}); err != nil {
			t.Fatal(err)
		}
	}
	// The request ending must not abort recording
	cancel()

	if err := runner.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	raw, err := backend.Store(store.NamespaceClicks).Get(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	// Concurrent read-modify-write may lose updates, but never exceeds clicks.
	if n := ParseCount(raw); n < 1 || n > 5 {
		t.Errorf("count = %d, want between 1 and 5", n)
	}
}

package background

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_WaitDrainsTasks(t *testing.T) {
	t.Parallel()

	r := NewRunner(discardLogger())
	var done atomic.Int32

	for i := 0; i < 10; i++ {
		r.Go(context.Background(), "sleep", func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := done.Load(); got != 10 {
		t.Errorf("completed tasks = %d, want 10", got)
	}
}

func TestRunner_WaitDeadline(t *testing.T) {
	t.Parallel()

	r := NewRunner(discardLogger())
	release := make(chan struct{})
	defer close(release)

	r.Go(context.Background(), "blocked", func(ctx context.Context) {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() error = %v, want ErrStopped", err)
	}
}

func TestRunner_DetachesFromRequestCancellation(t *testing.T) {
	t.Parallel()

	r := NewRunner(discardLogger())

	type ctxKey struct{}
	reqCtx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	cancel()

	var (
		gotErr   error
		gotValue any
	)
	r.Go(reqCtx, "check", func(ctx context.Context) {
		gotErr = ctx.Err()
		gotValue = ctx.Value(ctxKey{})
	})
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if gotErr != nil {
		t.Errorf("task context should not be cancelled, got %v", gotErr)
	}
	if gotValue != "req-1" {
		t.Errorf("task context lost request values, got %v", gotValue)
	}
}

func TestRunner_ContainsPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRunner(slog.New(slog.NewJSONHandler(&buf, nil)))

	r.Go(context.Background(), "explode", func(ctx context.Context) {
		panic("boom")
	})
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "background_task_panic") || !strings.Contains(buf.String(), `"task":"explode"`) {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestDetached_RunsTask(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	wg.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	Detached{Logger: discardLogger()}.Go(ctx, "detached", func(ctx context.Context) {
		defer wg.Done()
		gotErr = ctx.Err()
	})
	wg.Wait()

	if gotErr != nil {
		t.Errorf("detached task context should not be cancelled, got %v", gotErr)
	}
}

func TestDetached_ContainsPanics(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	Detached{Logger: discardLogger()}.Go(context.Background(), "explode", func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("detached task did not run")
	}
}

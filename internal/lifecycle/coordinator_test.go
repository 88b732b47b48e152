package lifecycle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"
	"time"

	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/snapshot"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
)

func TestCoordinatorRunsInOrder(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())

	var order []string
	for _, name := range []string{"http", "snapshot", "db"} {
		name := name
		c.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"http", "snapshot", "db"}) {
		t.Errorf("order = %v", order)
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done not closed after shutdown")
	}
}

func TestCoordinatorContinuesAfterFailure(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())

	ran := false
	c.Register("snapshot", func(ctx context.Context) error { return errors.New("boom") })
	c.Register("db", func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := c.Shutdown(context.Background())
	if !errors.Is(err, ErrHandlerFailed) {
		t.Errorf("Shutdown error = %v, want ErrHandlerFailed", err)
	}
	if !ran {
		t.Error("later handler skipped after failure")
	}
	if !errors.Is(c.Err(), ErrHandlerFailed) {
		t.Errorf("Err() = %v", c.Err())
	}
}

func TestCoordinatorShutdownOnce(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())

	calls := 0
	c.Register("count", func(ctx context.Context) error {
		calls++
		return nil
	})

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	if err := c.ShutdownWithTimeout(); !errors.Is(err, ErrAlreadyShutdown) {
		t.Errorf("second Shutdown error = %v, want ErrAlreadyShutdown", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times", calls)
	}
}

func TestCoordinatorTimeout(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	c.Register("cancel", func(context.Context) error {
		cancel()
		return nil
	})
	c.Register("never", func(context.Context) error {
		t.Error("handler ran after context was cancelled")
		return nil
	})

	if err := c.Shutdown(ctx); !errors.Is(err, ErrTimeout) {
		t.Errorf("Shutdown error = %v, want ErrTimeout", err)
	}
}

func TestCoordinatorRunsCriticalAfterTimeout(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	c.Register("slow", func(context.Context) error {
		cancel()
		order = append(order, "slow")
		return nil
	})
	c.Register("skipped", func(context.Context) error {
		order = append(order, "skipped")
		return nil
	})
	c.RegisterCritical("snapshot", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			t.Errorf("critical handler got expired context: %v", err)
		}
		order = append(order, "snapshot")
		return nil
	})

	if err := c.Shutdown(ctx); !errors.Is(err, ErrTimeout) {
		t.Errorf("Shutdown error = %v, want ErrTimeout", err)
	}
	if !reflect.DeepEqual(order, []string{"slow", "snapshot"}) {
		t.Errorf("order = %v", order)
	}
}

func TestCoordinatorSnapshotSurvivesStuckRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.db")
	database := openDB(t, path)
	defer database.Close()

	store := taskstore.New()
	store.Create("keep me")
	hooks := NewHooks(store, database, logging.Discard(), 3)

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}
	go srv.Serve(ln)
	defer srv.Close()

	go http.Get("http://" + ln.Addr().String())
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	c := NewCoordinator(200*time.Millisecond, logging.Discard())
	c.Register("http", srv.Shutdown)
	c.RegisterCritical("snapshot", hooks.BeforeTeardown)

	if err := c.ShutdownWithTimeout(); !errors.Is(err, ErrTimeout) {
		t.Errorf("Shutdown error = %v, want ErrTimeout", err)
	}

	data, err := database.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	state, err := snapshot.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(state.Tasks) != 1 || state.Tasks[0].Description != "keep me" {
		t.Errorf("saved tasks = %+v", state.Tasks)
	}
	if store.Len() != 0 {
		t.Errorf("store not drained: Len() = %d", store.Len())
	}
}

func TestCoordinatorShutsDownOnHangup(t *testing.T) {
	c := NewCoordinator(time.Second, logging.Discard())
	ran := make(chan struct{})
	c.Register("snapshot", func(context.Context) error {
		close(ran)
		return nil
	})
	c.HandleSignals()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("kill failed: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("SIGHUP did not start shutdown")
	}
	select {
	case <-ran:
	default:
		t.Error("handler did not run")
	}
}

func TestOnHangup(t *testing.T) {
	called := make(chan struct{})
	stop := OnHangup(func() { close(called) })
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("kill failed: %v", err)
	}

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("hangup callback not called")
	}
}

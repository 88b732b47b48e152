package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gravityvi/Todo-app-cansiter/internal/db"
	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/snapshot"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
)

type failingBytes struct {
	saveErr error
	data    []byte
	saved   int
}

func (f *failingBytes) SaveSnapshot(data []byte) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved++
	f.data = data
	return "snap", nil
}

func (f *failingBytes) LatestSnapshot() ([]byte, error) {
	if f.data == nil {
		return nil, db.ErrNoSnapshot
	}
	return f.data, nil
}

func (f *failingBytes) PruneSnapshots(int) error { return nil }

func openDB(t *testing.T, path string) *db.DB {
	t.Helper()
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	return database
}

func TestHooksRestartCycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todo.db")

	// First process run.
	database := openDB(t, path)
	store := taskstore.New()
	hooks := NewHooks(store, database, logging.Discard(), 3)

	if err := hooks.AfterRestart(ctx); err != nil {
		t.Fatalf("AfterRestart on empty db failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("fresh store holds %d tasks", store.Len())
	}

	store.Create("a")
	store.Create("b")
	store.Create("c")
	store.Delete(0)
	want := store.List(nil, nil)

	if err := hooks.BeforeTeardown(ctx); err != nil {
		t.Fatalf("BeforeTeardown failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store not drained: %d tasks", store.Len())
	}
	if err := hooks.BeforeTeardown(ctx); !errors.Is(err, ErrAlreadyTornDown) {
		t.Errorf("second teardown error = %v, want ErrAlreadyTornDown", err)
	}
	database.Close()

	// Second process run.
	database = openDB(t, path)
	defer database.Close()
	restored := taskstore.New()
	hooks = NewHooks(restored, database, logging.Discard(), 3)

	if err := hooks.AfterRestart(ctx); err != nil {
		t.Fatalf("AfterRestart failed: %v", err)
	}
	if got := restored.List(nil, nil); !reflect.DeepEqual(got, want) {
		t.Errorf("restored %+v, want %+v", got, want)
	}
	if task := restored.Create("d"); task.ID != 3 {
		t.Errorf("next id = %d, want 3", task.ID)
	}
}

func TestHooksTeardownPrunes(t *testing.T) {
	ctx := context.Background()
	database := openDB(t, filepath.Join(t.TempDir(), "todo.db"))
	defer database.Close()

	for i := 0; i < 4; i++ {
		store := taskstore.New()
		store.Create("x")
		hooks := NewHooks(store, database, logging.Discard(), 2)
		if err := hooks.BeforeTeardown(ctx); err != nil {
			t.Fatalf("BeforeTeardown %d failed: %v", i, err)
		}
	}

	count, err := database.SnapshotCount()
	if err != nil {
		t.Fatalf("SnapshotCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestHooksTeardownWriteFailureKeepsState(t *testing.T) {
	store := taskstore.New()
	store.Create("precious")
	bytes := &failingBytes{saveErr: errors.New("disk full")}
	hooks := NewHooks(store, bytes, logging.Discard(), 1)

	if err := hooks.BeforeTeardown(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 1 || store.NextID() != 1 {
		t.Errorf("state lost after failed write: len=%d next=%d", store.Len(), store.NextID())
	}

	// A retry after the failure is allowed.
	bytes.saveErr = nil
	if err := hooks.BeforeTeardown(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if bytes.saved != 1 {
		t.Errorf("saved = %d, want 1", bytes.saved)
	}
}

func TestHooksRestartCorruptSnapshot(t *testing.T) {
	bytes := &failingBytes{data: []byte(`{"version":1,"counter":0,"tasks":[{"id":4,"description":"x"}]}`)}
	store := taskstore.New()
	hooks := NewHooks(store, bytes, logging.Discard(), 1)

	err := hooks.AfterRestart(context.Background())
	if !errors.Is(err, snapshot.ErrCorrupt) {
		t.Errorf("AfterRestart error = %v, want ErrCorrupt", err)
	}
}

func TestHooksCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := taskstore.New()
	store.Create("x")
	hooks := NewHooks(store, &failingBytes{}, logging.Discard(), 1)

	if err := hooks.BeforeTeardown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if store.Len() != 1 {
		t.Error("cancelled teardown must not drain the store")
	}
}

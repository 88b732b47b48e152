// Package lifecycle carries the task store across process restarts: it
// rehydrates the store from the latest snapshot at startup and drains it into
// a new snapshot at teardown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gravityvi/Todo-app-cansiter/internal/db"
	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/models"
	"github.com/gravityvi/Todo-app-cansiter/internal/snapshot"
)

// ErrAlreadyTornDown indicates BeforeTeardown already ran for this process.
var ErrAlreadyTornDown = errors.New("teardown already ran")

// ByteStore is the durable store snapshots are written to.
// It must report db.ErrNoSnapshot when nothing has been saved yet.
type ByteStore interface {
	SaveSnapshot(data []byte) (string, error)
	LatestSnapshot() ([]byte, error)
	PruneSnapshots(keep int) error
}

// StateStore is the live store being persisted.
type StateStore interface {
	Snapshot() models.State
	Restore(state models.State)
}

// Hooks runs the restart and teardown steps for one store.
type Hooks struct {
	store StateStore
	bytes ByteStore
	log   *logging.Logger
	keep  int

	mu       sync.Mutex
	tornDown bool
}

// NewHooks creates hooks persisting store into bytes, retaining keep snapshots.
func NewHooks(store StateStore, bytes ByteStore, log *logging.Logger, keep int) *Hooks {
	return &Hooks{
		store: store,
		bytes: bytes,
		log:   log.WithComponent("lifecycle"),
		keep:  keep,
	}
}

// AfterRestart restores the store from the latest snapshot. With no snapshot
// stored the store is left as it is, which for a new process is empty.
func (h *Hooks) AfterRestart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := h.bytes.LatestSnapshot()
	if errors.Is(err, db.ErrNoSnapshot) {
		h.log.Info("no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	state, err := snapshot.Decode(data)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	h.store.Restore(state)
	h.log.Info("restored snapshot", map[string]interface{}{
		"tasks":   len(state.Tasks),
		"counter": state.Counter,
	})
	return nil
}

// BeforeTeardown drains the store and writes the result to the byte store.
// It runs at most once; later calls return ErrAlreadyTornDown. If encoding
// or writing fails the drained state is put back into the store.
func (h *Hooks) BeforeTeardown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tornDown {
		return ErrAlreadyTornDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	state := h.store.Snapshot()

	data, err := snapshot.Encode(state)
	if err != nil {
		h.store.Restore(state)
		return fmt.Errorf("encode snapshot: %w", err)
	}

	id, err := h.bytes.SaveSnapshot(data)
	if err != nil {
		h.store.Restore(state)
		return fmt.Errorf("write snapshot: %w", err)
	}
	h.tornDown = true

	h.log.Info("saved snapshot", map[string]interface{}{
		"id":      id,
		"tasks":   len(state.Tasks),
		"counter": state.Counter,
	})

	if err := h.bytes.PruneSnapshots(h.keep); err != nil {
		h.log.Warn("prune snapshots failed", map[string]interface{}{"error": err})
	}
	return nil
}

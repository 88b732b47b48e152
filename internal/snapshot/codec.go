// Package snapshot converts a task store state to and from the bytes kept in
// the durable store between process runs.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gravityvi/Todo-app-cansiter/internal/models"
)

// Version is the envelope version written by Encode.
const Version = 1

var (
	// ErrEmpty indicates there were no bytes to decode.
	ErrEmpty = errors.New("empty snapshot")

	// ErrUnsupportedVersion indicates the envelope was written by an unknown version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrCorrupt indicates the decoded state violates the store invariants.
	ErrCorrupt = errors.New("corrupt snapshot")
)

type envelope struct {
	Version int           `json:"version"`
	Counter uint64        `json:"counter"`
	Tasks   []models.Task `json:"tasks"`
}

// Encode serializes state. Tasks are written in the order given, which for a
// state produced by the store is ascending id order.
func Encode(state models.State) ([]byte, error) {
	tasks := state.Tasks
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.Marshal(envelope{
		Version: Version,
		Counter: state.Counter,
		Tasks:   tasks,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode and checks that ids are strictly
// ascending and all below the counter.
func Decode(data []byte) (models.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.State{}, ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return models.State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return models.State{}, fmt.Errorf("%w: trailing data after envelope", ErrCorrupt)
	}
	if env.Version != Version {
		return models.State{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	state := models.State{Counter: env.Counter, Tasks: env.Tasks}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	if err := Validate(state); err != nil {
		return models.State{}, err
	}
	return state, nil
}

// Validate reports whether state could have been produced by a task store.
func Validate(state models.State) error {
	for i, task := range state.Tasks {
		if task.ID >= state.Counter {
			return fmt.Errorf("%w: task id %d not below counter %d", ErrCorrupt, task.ID, state.Counter)
		}
		if i > 0 && task.ID <= state.Tasks[i-1].ID {
			return fmt.Errorf("%w: task id %d out of order after %d", ErrCorrupt, task.ID, state.Tasks[i-1].ID)
		}
	}
	return nil
}

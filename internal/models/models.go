package models

// Task represents a single to-do item
type Task struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
}

// State is the point-in-time image of a task store: the id counter and
// every task, in ascending id order.
type State struct {
	Counter uint64
	Tasks   []Task
}

// Empty reports whether the state holds no tasks and a zero counter
func (s State) Empty() bool {
	return s.Counter == 0 && len(s.Tasks) == 0
}

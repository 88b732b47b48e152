package snapshot

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gravityvi/Todo-app-cansiter/internal/models"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
)

func TestEncodeDecodeStoreState(t *testing.T) {
	store := taskstore.New()
	for _, d := range []string{"write spec", "", "ship \"it\"\nnow"} {
		store.Create(d)
	}
	store.Delete(1)
	store.Create("after delete")

	state := store.Snapshot()
	data, err := Encode(state)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, state) {
		t.Errorf("decoded %+v, want %+v", got, state)
	}
}

func TestEncodeLargeCounter(t *testing.T) {
	state := models.State{Counter: ^uint64(0), Tasks: []models.Task{{ID: ^uint64(0) - 1, Description: "edge"}}}

	data, err := Encode(state)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Counter != state.Counter || got.Tasks[0].ID != state.Tasks[0].ID {
		t.Errorf("precision lost: %+v", got)
	}
}

func TestEncodeEmptyState(t *testing.T) {
	data, err := Encode(models.State{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), `"tasks":[]`) {
		t.Errorf("expected empty tasks array, got %s", data)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected empty state, got %+v", got)
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	if _, err := Decode([]byte("{\"version\":1,\"counter\":2,\"tasks\":[]}\n\n")); err != nil {
		t.Errorf("Decode failed: %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace", "  \n", ErrEmpty},
		{"not json", "{oops", ErrCorrupt},
		{"unknown field", `{"version":1,"counter":0,"tasks":[],"extra":true}`, ErrCorrupt},
		{"future version", `{"version":2,"counter":0,"tasks":[]}`, ErrUnsupportedVersion},
		{"id at counter", `{"version":1,"counter":1,"tasks":[{"id":1,"description":"x"}]}`, ErrCorrupt},
		{"duplicate id", `{"version":1,"counter":5,"tasks":[{"id":1,"description":"x"},{"id":1,"description":"y"}]}`, ErrCorrupt},
		{"unsorted", `{"version":1,"counter":5,"tasks":[{"id":3,"description":"x"},{"id":1,"description":"y"}]}`, ErrCorrupt},
		{"trailing garbage", `{"version":1,"counter":0,"tasks":[]}xyz`, ErrCorrupt},
		{"second envelope", `{"version":1,"counter":0,"tasks":[]} {"version":1,"counter":0,"tasks":[]}`, ErrCorrupt},
		{"negative id", `{"version":1,"counter":5,"tasks":[{"id":-1,"description":"x"}]}`, ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode error = %v, want %v", err, tt.want)
			}
		})
	}
}

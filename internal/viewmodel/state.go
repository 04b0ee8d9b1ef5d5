package viewmodel

import "studiodesk/internal/model"

// State is the observable collection state. Items is never mutated after
// it is published, so callers may hold on to it.
type State[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func indexOf[T model.Record](items []T, id string) int {
	for i, it := range items {
		if it.RecordID() == id {
			return i
		}
	}
	return -1
}

// applyCreate returns items with rec at the head.
func applyCreate[T model.Record](items []T, rec T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, rec)
	return append(out, items...)
}

// applyUpdate returns items with the entry sharing rec's id replaced.
// Items without that id are returned unchanged.
func applyUpdate[T model.Record](items []T, rec T) []T {
	i := indexOf(items, rec.RecordID())
	if i < 0 {
		return items
	}
	out := append([]T(nil), items...)
	out[i] = rec
	return out
}

// applyRemove returns items without id.
func applyRemove[T model.Record](items []T, id string) []T {
	i := indexOf(items, id)
	if i < 0 {
		return items
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

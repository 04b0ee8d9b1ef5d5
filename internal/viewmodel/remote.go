package viewmodel

import (
	"context"
	"encoding/json"
	"errors"
)

// Remote is the collection surface of the API client.
type Remote[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, draft any) (T, error)
	Update(ctx context.Context, id string, changes any) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
}

// Epocher exposes the auth generation. A response is applied only if the
// epoch is unchanged since its request was issued.
type Epocher interface {
	Epoch() uint64
}

var (
	// ErrDiscarded reports a response that arrived after it was superseded
	// by a newer request or by auth expiry. State was not touched.
	ErrDiscarded = errors.New("response discarded")
	// ErrSaveInFlight rejects a second save while one is pending.
	ErrSaveInFlight = errors.New("save already in progress")
	// ErrNotEditing rejects draft operations outside edit mode.
	ErrNotEditing = errors.New("not in edit mode")
	// ErrNoRecord rejects operations that need a loaded record.
	ErrNoRecord = errors.New("no record loaded")
)

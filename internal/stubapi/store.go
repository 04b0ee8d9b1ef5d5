package stubapi

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Doc is one stored JSON object. The store owns "id" and "createdAt".
type Doc map[string]any

func (d Doc) ID() string {
	s, _ := d["id"].(string)
	return s
}

func (d Doc) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// CreatedAt parses the createdAt field; zero when absent.
func (d Doc) CreatedAt() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, d.String("createdAt"))
	return t
}

func (d Doc) clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Store persists documents per collection. List returns newest first.
type Store interface {
	List(ctx context.Context, collection string) ([]Doc, error)
	Get(ctx context.Context, collection, id string) (Doc, error)
	Insert(ctx context.Context, collection string, doc Doc) (Doc, error)
	Update(ctx context.Context, collection, id string, patch Doc) (Doc, error)
	Delete(ctx context.Context, collection, id string) error
}

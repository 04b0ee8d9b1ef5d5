package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is the typed CRUD surface of one collection.
type Resource[T any] struct {
	client *Client
	name   string
}

// NewResource binds a collection name such as "leads".
func NewResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{client: c, name: name}
}

// Name returns the collection name.
func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) itemPath(id string) string {
	return r.name + "/" + url.PathEscape(id)
}

// List fetches the whole collection in server order.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	return r.ListPath(ctx, r.name, nil)
}

// ListPath fetches an array from a nested route, e.g.
// attendance/student/{id}?year=&month=.
func (r *Resource[T]) ListPath(ctx context.Context, path string, query url.Values) ([]T, error) {
	var items []T
	if err := r.client.Do(ctx, http.MethodGet, path, query, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get fetches one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &item)
	return item, err
}

// Create posts a draft and returns the server's record.
func (r *Resource[T]) Create(ctx context.Context, draft any) (T, error) {
	var item T
	err := r.client.Do(ctx, http.MethodPost, r.name, nil, draft, &item)
	return item, err
}

// Update puts changes and returns the raw server record so callers can
// overlay only the fields the server sent back.
func (r *Resource[T]) Update(ctx context.Context, id string, changes any) (json.RawMessage, error) {
	var raw json.RawMessage
	err := r.client.Do(ctx, http.MethodPut, r.itemPath(id), nil, changes, &raw)
	return raw, err
}

// Delete removes one record.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

// DeletePath issues a DELETE against a nested route and decodes the data
// payload into out.
func (r *Resource[T]) DeletePath(ctx context.Context, path string, query url.Values, out any) error {
	return r.client.Do(ctx, http.MethodDelete, path, query, nil, out)
}

// StudentAttendancePath is the nested attendance route for one student.
func StudentAttendancePath(studentID string) string {
	return "attendance/student/" + url.PathEscape(studentID)
}

// StudentMonthPath is the nested route deleting one month of attendance.
func StudentMonthPath(studentID string) string {
	return StudentAttendancePath(studentID) + "/month"
}

// MonthQuery encodes year and month (1-12).
func MonthQuery(year, month int) url.Values {
	return url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(month)},
	}
}

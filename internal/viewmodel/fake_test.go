package viewmodel

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"studiodesk/internal/model"
)

type epoch struct{ n atomic.Uint64 }

func (e *epoch) Epoch() uint64 { return e.n.Load() }

// fakeLeads is a scriptable Remote counting every call.
type fakeLeads struct {
	calls  atomic.Int32
	list   func(ctx context.Context) ([]model.Lead, error)
	get    func(ctx context.Context, id string) (model.Lead, error)
	create func(ctx context.Context, draft any) (model.Lead, error)
	update func(ctx context.Context, id string, changes any) (json.RawMessage, error)
	del    func(ctx context.Context, id string) error
}

func (f *fakeLeads) List(ctx context.Context) ([]model.Lead, error) {
	f.calls.Add(1)
	return f.list(ctx)
}

func (f *fakeLeads) Get(ctx context.Context, id string) (model.Lead, error) {
	f.calls.Add(1)
	return f.get(ctx, id)
}

func (f *fakeLeads) Create(ctx context.Context, draft any) (model.Lead, error) {
	f.calls.Add(1)
	return f.create(ctx, draft)
}

func (f *fakeLeads) Update(ctx context.Context, id string, changes any) (json.RawMessage, error) {
	f.calls.Add(1)
	return f.update(ctx, id, changes)
}

func (f *fakeLeads) Delete(ctx context.Context, id string) error {
	f.calls.Add(1)
	return f.del(ctx, id)
}

func listOf(items ...model.Lead) func(context.Context) ([]model.Lead, error) {
	return func(context.Context) ([]model.Lead, error) {
		return append([]model.Lead(nil), items...), nil
	}
}

// fakeStudents serves one student and fails every update.
type fakeStudents struct {
	student model.Student
	err     error
}

func (f *fakeStudents) List(context.Context) ([]model.Student, error) {
	return []model.Student{f.student}, nil
}

func (f *fakeStudents) Get(context.Context, string) (model.Student, error) { return f.student, nil }

func (f *fakeStudents) Create(context.Context, any) (model.Student, error) {
	return model.Student{}, f.err
}

func (f *fakeStudents) Update(context.Context, string, any) (json.RawMessage, error) {
	return nil, f.err
}

func (f *fakeStudents) Delete(context.Context, string) error { return f.err }

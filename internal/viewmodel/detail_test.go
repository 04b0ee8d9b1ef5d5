package viewmodel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/confirm"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
)

func newLeadPair(t *testing.T, remote *fakeLeads, rec notify.Notifier) (*Collection[model.Lead], *Detail[model.Lead]) {
	t.Helper()
	if remote.list == nil {
		remote.list = listOf(model.Lead{ID: "1", Name: "Asha", Phone: "555"}, model.Lead{ID: "2", Name: "Ravi", Phone: "556"})
	}
	sess := &epoch{}
	coll := NewCollection[model.Lead](remote, sess, WithNotifier[model.Lead](rec), WithLabel[model.Lead]("Lead"))
	require.NoError(t, coll.Load(context.Background()))
	return coll, NewDetail[model.Lead](remote, coll, sess, func(l model.Lead) string { return l.Name })
}

func TestDetail_LoadFallsBackToCache(t *testing.T) {
	rec := notify.NewRecorder(10)
	remote := &fakeLeads{get: func(ctx context.Context, id string) (model.Lead, error) {
		return model.Lead{}, &apiclient.Error{Kind: apiclient.KindNetwork, Message: "network unreachable"}
	}}
	_, d := newLeadPair(t, remote, rec)

	require.NoError(t, d.Load(context.Background(), "1"))
	st := d.Snapshot()
	require.NotNil(t, st.Record)
	assert.Equal(t, "Asha", st.Record.Name)
	assert.True(t, st.Cached)
	assert.Equal(t, notify.Warning, rec.Peek()[0].Level)

	err := d.Load(context.Background(), "missing")
	assert.True(t, apiclient.IsKind(err, apiclient.KindNetwork))
	assert.Equal(t, "network unreachable", d.Snapshot().Error)
}

func TestDetail_LoadNotFoundForgetsCachedCopy(t *testing.T) {
	remote := &fakeLeads{get: func(ctx context.Context, id string) (model.Lead, error) {
		return model.Lead{}, &apiclient.Error{Kind: apiclient.KindNotFound, Message: "record no longer exists"}
	}}
	coll, d := newLeadPair(t, remote, notify.Discard)

	err := d.Load(context.Background(), "1")
	assert.True(t, apiclient.IsKind(err, apiclient.KindNotFound))
	_, ok := coll.Cached("1")
	assert.False(t, ok)
	assert.Nil(t, d.Snapshot().Record)
}

func TestDetail_SaveSendsFullDraftAndUpdatesList(t *testing.T) {
	var sent model.Lead
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555", Source: "Walk-in"}, nil
		},
		update: func(ctx context.Context, id string, changes any) (json.RawMessage, error) {
			sent = changes.(model.Lead)
			return json.RawMessage(`{"id":"1","name":"Asha K","phone":"555","source":"Walk-in","status":"contacted"}`), nil
		},
	}
	coll, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))

	assert.ErrorIs(t, d.Save(context.Background()), ErrNotEditing)
	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("name", "Asha K"))
	require.NoError(t, d.Save(context.Background()))

	assert.Equal(t, "Asha K", sent.Name)
	assert.Equal(t, "Walk-in", sent.Source, "the whole record is sent, not a diff")
	st := d.Snapshot()
	assert.Nil(t, st.Draft)
	assert.Equal(t, "contacted", st.Record.Status)
	cached, _ := coll.Cached("1")
	assert.Equal(t, "Asha K", cached.Name)
}

func TestDetail_SaveFailureKeepsDraft(t *testing.T) {
	rec := notify.NewRecorder(10)
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		update: func(ctx context.Context, id string, changes any) (json.RawMessage, error) {
			return nil, &apiclient.Error{Kind: apiclient.KindServer, Message: "phone already used"}
		},
	}
	_, d := newLeadPair(t, remote, rec)
	require.NoError(t, d.Load(context.Background(), "1"))
	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("phone", "999"))

	assert.Error(t, d.Save(context.Background()))
	st := d.Snapshot()
	require.NotNil(t, st.Draft)
	assert.Equal(t, "999", st.Draft.Changes["phone"])
	assert.Equal(t, "555", st.Record.Phone)
	assert.False(t, st.Saving)
	assert.Equal(t, "phone already used", rec.Peek()[0].Text)
}

func TestDetail_SaveRejectsDoubleSubmit(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		update: func(ctx context.Context, id string, changes any) (json.RawMessage, error) {
			close(started)
			<-release
			return json.RawMessage(`{}`), nil
		},
	}
	_, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))
	require.NoError(t, d.EnterEdit())

	done := make(chan error, 1)
	go func() { done <- d.Save(context.Background()) }()
	<-started
	assert.ErrorIs(t, d.Save(context.Background()), ErrSaveInFlight)
	close(release)
	assert.NoError(t, <-done)
}

func TestDetail_CancelEditDiscardsDraft(t *testing.T) {
	remote := &fakeLeads{get: func(ctx context.Context, id string) (model.Lead, error) {
		return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
	}}
	_, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))
	calls := remote.calls.Load()

	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("name", "X"))
	d.CancelEdit()

	assert.Nil(t, d.Snapshot().Draft)
	assert.Equal(t, "Asha", d.Snapshot().Record.Name)
	assert.Equal(t, calls, remote.calls.Load())
}

func TestDetail_DeleteFlow(t *testing.T) {
	deleted := ""
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		del: func(ctx context.Context, id string) error { deleted = id; return nil },
	}
	coll, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))

	snap, err := d.RequestDelete()
	require.NoError(t, err)
	assert.Equal(t, confirm.Snapshot{State: confirm.PendingConfirmation, Description: "Asha"}, snap)

	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("name", "Renamed"))
	assert.Equal(t, "Asha", d.Snapshot().Delete.Description, "description is fixed at request time")

	ran, err := d.ConfirmDelete(context.Background())
	assert.True(t, ran)
	require.NoError(t, err)
	assert.Equal(t, "1", deleted)
	assert.True(t, d.Snapshot().Gone)
	assert.Equal(t, confirm.Idle, d.Snapshot().Delete.State)
	_, ok := coll.Cached("1")
	assert.False(t, ok)
}

func TestDetail_DeleteFailureClosesDialog(t *testing.T) {
	rec := notify.NewRecorder(10)
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		del: func(ctx context.Context, id string) error {
			return &apiclient.Error{Kind: apiclient.KindServer, Message: "locked"}
		},
	}
	coll, d := newLeadPair(t, remote, rec)
	require.NoError(t, d.Load(context.Background(), "1"))
	_, err := d.RequestDelete()
	require.NoError(t, err)

	ran, err := d.ConfirmDelete(context.Background())
	assert.True(t, ran)
	assert.Error(t, err)
	st := d.Snapshot()
	assert.False(t, st.Gone)
	assert.Equal(t, confirm.Idle, st.Delete.State)
	_, ok := coll.Cached("1")
	assert.True(t, ok)
	assert.Equal(t, "locked", rec.Peek()[0].Text)
}

func TestDetail_ConfirmWithoutRequestIsNoop(t *testing.T) {
	remote := &fakeLeads{}
	_, d := newLeadPair(t, remote, notify.Discard)
	calls := remote.calls.Load()

	ran, err := d.ConfirmDelete(context.Background())
	assert.False(t, ran)
	assert.NoError(t, err)
	assert.False(t, d.CancelDelete())
	assert.Equal(t, calls, remote.calls.Load())
}

func TestDetail_FailedSaveLeavesCachedPointerFields(t *testing.T) {
	age := 20
	remote := &fakeStudents{
		student: model.Student{ID: "1", Name: "Meera", Phone: "555", Age: &age},
		err:     &apiclient.Error{Kind: apiclient.KindServer, Message: "locked"},
	}
	sess := &epoch{}
	coll := NewCollection[model.Student](remote, sess)
	require.NoError(t, coll.Load(context.Background()))
	d := NewDetail[model.Student](remote, coll, sess, nil)
	require.NoError(t, d.Load(context.Background(), "1"))

	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("age", 30))
	assert.Error(t, d.Save(context.Background()))

	cached, ok := coll.Cached("1")
	require.True(t, ok)
	assert.Equal(t, 20, *cached.Age)
	st := d.Snapshot()
	assert.Equal(t, 20, *st.Record.Age)
	assert.Equal(t, 20, *st.Draft.Baseline.Age)
	assert.Equal(t, 20, age)
}

func TestDetail_SaveSupersedesInFlightListUpdate(t *testing.T) {
	releaseList := make(chan struct{})
	listStarted := make(chan struct{})
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		update: func(ctx context.Context, id string, changes any) (json.RawMessage, error) {
			if m, fromList := changes.(map[string]any); fromList {
				close(listStarted)
				<-releaseList
				return json.RawMessage(`{"id":"1","name":"` + m["name"].(string) + `"}`), nil
			}
			return json.RawMessage(`{"id":"1","name":"` + changes.(model.Lead).Name + `"}`), nil
		},
	}
	coll, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))

	done := make(chan error, 1)
	go func() {
		_, err := coll.Update(context.Background(), "1", map[string]any{"name": "First"})
		done <- err
	}()
	<-listStarted
	assert.True(t, coll.Pending("1"))

	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("name", "Second"))
	require.NoError(t, d.Save(context.Background()))

	close(releaseList)
	assert.ErrorIs(t, <-done, ErrDiscarded)
	cached, _ := coll.Cached("1")
	assert.Equal(t, "Second", cached.Name)
	assert.False(t, coll.Pending("1"))
}

func TestDetail_ListRemoveSupersedesInFlightSave(t *testing.T) {
	releaseSave := make(chan struct{})
	saveStarted := make(chan struct{})
	remote := &fakeLeads{
		get: func(ctx context.Context, id string) (model.Lead, error) {
			return model.Lead{ID: "1", Name: "Asha", Phone: "555"}, nil
		},
		update: func(ctx context.Context, id string, changes any) (json.RawMessage, error) {
			close(saveStarted)
			<-releaseSave
			return json.RawMessage(`{"id":"1","name":"Renamed"}`), nil
		},
		del: func(ctx context.Context, id string) error { return nil },
	}
	coll, d := newLeadPair(t, remote, notify.Discard)
	require.NoError(t, d.Load(context.Background(), "1"))
	require.NoError(t, d.EnterEdit())
	require.NoError(t, d.SetField("name", "Renamed"))

	done := make(chan error, 1)
	go func() { done <- d.Save(context.Background()) }()
	<-saveStarted
	assert.True(t, coll.Pending("1"), "a detail save holds the list's token for the id")

	require.NoError(t, coll.Remove(context.Background(), "1"))
	close(releaseSave)
	assert.ErrorIs(t, <-done, ErrDiscarded)
	_, ok := coll.Cached("1")
	assert.False(t, ok, "the stale save must not bring the record back")
}

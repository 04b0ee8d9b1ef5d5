package viewmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/confirm"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
)

// Draft is an edit in progress: the record as it was when editing began
// plus the operator's field changes.
type Draft[T any] struct {
	Baseline T              `json:"baseline"`
	Changes  map[string]any `json:"changes"`
}

// Value overlays the changes onto the baseline.
func (d Draft[T]) Value() (T, error) {
	if len(d.Changes) == 0 {
		return d.Baseline, nil
	}
	raw, err := json.Marshal(d.Changes)
	if err != nil {
		return d.Baseline, fmt.Errorf("encode draft: %w", err)
	}
	return model.Merge(d.Baseline, raw)
}

// DetailState is the observable state of one focused record.
type DetailState[T any] struct {
	ID      string           `json:"id"`
	Record  *T               `json:"record,omitempty"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Cached  bool             `json:"cached"`
	Draft   *Draft[T]        `json:"draft,omitempty"`
	Saving  bool             `json:"saving"`
	Gone    bool             `json:"gone"`
	Delete  confirm.Snapshot `json:"delete"`
}

// Detail manages the load, edit, save and delete cycle of one record and
// keeps the owning collection in step with every accepted change.
type Detail[T model.Record] struct {
	remote   Remote[T]
	coll     *Collection[T]
	session  Epocher
	notifier notify.Notifier
	logger   *zap.Logger
	label    string
	describe func(T) string
	gate     confirm.Gate

	// pending is shared with coll so list and detail mutations on one id
	// supersede each other.
	pending *tokens

	mu    sync.Mutex
	seq   uint64
	state DetailState[T]
}

// NewDetail binds a detail view-model to its collection. coll may be nil.
func NewDetail[T model.Record](remote Remote[T], coll *Collection[T], session Epocher, describe func(T) string) *Detail[T] {
	d := &Detail[T]{
		remote:   remote,
		coll:     coll,
		session:  session,
		notifier: notify.Discard,
		logger:   zap.NewNop(),
		label:    "Record",
		describe: describe,
		pending:  newTokens(),
	}
	if coll != nil {
		d.notifier, d.logger, d.label = coll.notifier, coll.logger, coll.label
		d.pending = coll.pending
	}
	if d.describe == nil {
		d.describe = func(r T) string { return r.RecordID() }
	}
	return d
}

// Snapshot returns the current state.
func (d *Detail[T]) Snapshot() DetailState[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Delete = d.gate.Snapshot()
	return s
}

// Load focuses id. When the fetch fails the collection's cached copy is
// shown instead, if there is one.
func (d *Detail[T]) Load(ctx context.Context, id string) error {
	epoch := d.session.Epoch()
	d.mu.Lock()
	d.seq++
	seq := d.seq
	if d.state.ID != id {
		d.state = DetailState[T]{ID: id}
		d.gate.Cancel()
	}
	d.state.Loading = true
	d.state.Error = ""
	d.mu.Unlock()

	rec, err := d.remote.Get(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return ErrDiscarded
	}
	d.state.Loading = false
	if d.session.Epoch() != epoch {
		return ErrDiscarded
	}
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return err
		}
		if apiclient.IsKind(err, apiclient.KindNotFound) {
			d.state.Record = nil
			d.state.Error = apiclient.Message(err)
			if d.coll != nil {
				d.coll.Forget(id)
			}
			return err
		}
		if d.coll != nil {
			if cached, ok := d.coll.Cached(id); ok {
				d.state.Record = &cached
				d.state.Cached = true
				d.notifier.Notify(notify.Warning, "Showing saved copy: "+apiclient.Message(err))
				return nil
			}
		}
		d.state.Error = apiclient.Message(err)
		d.logger.Warn("detail load failed", zap.String("id", id), zap.Error(err))
		return err
	}
	d.state.Record = &rec
	d.state.Cached = false
	return nil
}

// EnterEdit snapshots the current record into a fresh draft.
func (d *Detail[T]) EnterEdit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Record == nil {
		return ErrNoRecord
	}
	if d.state.Draft == nil {
		d.state.Draft = &Draft[T]{Baseline: *d.state.Record, Changes: map[string]any{}}
	}
	return nil
}

// Apply records field changes in the draft.
func (d *Detail[T]) Apply(changes map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Draft == nil {
		return ErrNotEditing
	}
	for k, v := range changes {
		d.state.Draft.Changes[k] = v
	}
	return nil
}

// SetField records one field change.
func (d *Detail[T]) SetField(field string, value any) error {
	return d.Apply(map[string]any{field: value})
}

// CancelEdit discards the draft. No network activity.
func (d *Detail[T]) CancelEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Draft = nil
}

// Save sends the full draft. On success the server's record replaces the
// focused one and edit mode ends; on failure the draft is kept for retry.
func (d *Detail[T]) Save(ctx context.Context) error {
	d.mu.Lock()
	if d.state.Draft == nil {
		d.mu.Unlock()
		return ErrNotEditing
	}
	if d.state.Saving {
		d.mu.Unlock()
		return ErrSaveInFlight
	}
	full, err := d.state.Draft.Value()
	if err == nil {
		err = model.Validate(full)
	}
	if err != nil {
		d.mu.Unlock()
		return err
	}
	id := d.state.ID
	d.state.Saving = true
	d.mu.Unlock()

	tok := d.pending.issue(id)
	epoch := d.session.Epoch()
	raw, err := d.remote.Update(ctx, id, full)

	current := d.pending.release(id, tok)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Saving = false
	if d.session.Epoch() != epoch || d.state.ID != id || !current {
		return ErrDiscarded
	}
	if err != nil {
		if !apiclient.IsKind(err, apiclient.KindAuthExpired) {
			d.logger.Warn("save failed", zap.String("id", id), zap.Error(err))
			d.notifier.Notify(notify.Error, apiclient.Message(err))
		}
		return err
	}
	rec, err := model.Merge(full, raw)
	if err != nil {
		d.notifier.Notify(notify.Error, "malformed response from server")
		return err
	}
	d.state.Record = &rec
	d.state.Cached = false
	d.state.Draft = nil
	if d.coll != nil {
		d.coll.Put(rec)
	}
	d.notifier.Notify(notify.Success, d.label+" updated successfully")
	return nil
}

// RequestDelete opens the confirmation for the focused record. The prompt
// names the record as it is now.
func (d *Detail[T]) RequestDelete() (confirm.Snapshot, error) {
	d.mu.Lock()
	if d.state.Record == nil {
		d.mu.Unlock()
		return confirm.Snapshot{}, ErrNoRecord
	}
	id := d.state.ID
	desc := d.describe(*d.state.Record)
	d.mu.Unlock()

	d.gate.Request(desc, func(ctx context.Context) error { return d.delete(ctx, id) }, func() { d.markGone(id) })
	return d.gate.Snapshot(), nil
}

// ConfirmDelete runs the pending delete. It does nothing unless a delete
// was requested.
func (d *Detail[T]) ConfirmDelete(ctx context.Context) (bool, error) {
	return d.gate.Confirm(ctx)
}

// CancelDelete closes the confirmation.
func (d *Detail[T]) CancelDelete() bool { return d.gate.Cancel() }

func (d *Detail[T]) delete(ctx context.Context, id string) error {
	tok := d.pending.issue(id)
	epoch := d.session.Epoch()
	err := d.remote.Delete(ctx, id)
	if current := d.pending.release(id, tok); !current || d.session.Epoch() != epoch {
		return ErrDiscarded
	}
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return err
		}
		d.notifier.Notify(notify.Error, apiclient.Message(err))
		if apiclient.IsKind(err, apiclient.KindNotFound) {
			d.markGone(id)
		}
		return err
	}
	d.notifier.Notify(notify.Success, d.label+" deleted successfully")
	return nil
}

// markGone drops id from the collection and tells the view to navigate
// away.
func (d *Detail[T]) markGone(id string) {
	if d.coll != nil {
		d.coll.Forget(id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.ID == id {
		d.state.Gone = true
		d.state.Record = nil
		d.state.Draft = nil
	}
}

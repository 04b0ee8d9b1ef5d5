package viewmodel

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
)

// Collection owns the cached list of one entity type and mediates every
// list-level mutation. Methods block on the network; the mutex is never
// held across a call.
type Collection[T model.Record] struct {
	remote   Remote[T]
	session  Epocher
	notifier notify.Notifier
	logger   *zap.Logger
	label    string
	cmp      func(a, b T) int

	mu      sync.Mutex
	state   State[T]
	loadSeq uint64
	pending *tokens
}

// Option configures a Collection.
type Option[T model.Record] func(*Collection[T])

// WithNotifier routes notices.
func WithNotifier[T model.Record](n notify.Notifier) Option[T] {
	return func(c *Collection[T]) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger[T model.Record](l *zap.Logger) Option[T] {
	return func(c *Collection[T]) { c.logger = l }
}

// WithLabel names the entity in notices, e.g. "Lead".
func WithLabel[T model.Record](label string) Option[T] {
	return func(c *Collection[T]) { c.label = label }
}

// WithSort re-sorts the list (stable) after every successful load.
func WithSort[T model.Record](cmp func(a, b T) int) Option[T] {
	return func(c *Collection[T]) { c.cmp = cmp }
}

// NewCollection builds an empty collection view-model.
func NewCollection[T model.Record](remote Remote[T], session Epocher, opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		remote:   remote,
		session:  session,
		notifier: notify.Discard,
		logger:   zap.NewNop(),
		label:    "Record",
		pending:  newTokens(),
		state:    State[T]{Items: []T{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Collection[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load replaces the list with the server's. Only the most recently started
// load is applied; a failure keeps the previous items visible.
func (c *Collection[T]) Load(ctx context.Context) error {
	epoch := c.session.Epoch()
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()

	items, err := c.remote.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq {
		return ErrDiscarded
	}
	c.state.Loading = false
	if c.session.Epoch() != epoch {
		return ErrDiscarded
	}
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return err
		}
		c.state.Error = apiclient.Message(err)
		c.logger.Warn("load failed", zap.String("label", c.label), zap.Error(err))
		return err
	}
	if c.cmp != nil {
		slices.SortStableFunc(items, c.cmp)
	}
	c.state.Items = items
	c.state.Error = ""
	return nil
}

// Filter returns the items whose search fields contain q. An empty query
// returns the current items slice itself.
func (c *Collection[T]) Filter(q string) []T {
	c.mu.Lock()
	items := c.state.Items
	c.mu.Unlock()
	return FilterItems(items, q)
}

// FilterItems is the pure form of Filter.
func FilterItems[T model.Record](items []T, q string) []T {
	q = model.NormalizeQuery(q)
	if q == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if model.Matches(it, q) {
			out = append(out, it)
		}
	}
	return out
}

// Create validates draft locally, then posts it. The server's record is
// prepended on success. A validation failure never reaches the network.
func (c *Collection[T]) Create(ctx context.Context, draft T) (T, error) {
	var zero T
	if err := model.Validate(draft); err != nil {
		return zero, err
	}

	key := "create:" + uuid.NewString()
	tok := c.pending.issue(key)
	defer c.pending.release(key, tok)
	epoch := c.session.Epoch()

	rec, err := c.remote.Create(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Epoch() != epoch {
		return zero, ErrDiscarded
	}
	if err != nil {
		c.fail("create", err)
		return zero, err
	}
	c.state.Items = applyCreate(c.state.Items, rec)
	c.notifier.Notify(notify.Success, c.label+" added successfully")
	return rec, nil
}

// Update sends changes for id and merges the server's fields into the
// cached item. Nothing changes locally until the server accepts. When
// updates on the same id overlap, only the last one issued is applied.
func (c *Collection[T]) Update(ctx context.Context, id string, changes any) (T, error) {
	var zero T
	tok := c.pending.issue(id)
	epoch := c.session.Epoch()

	raw, err := c.remote.Update(ctx, id, changes)

	current := c.pending.release(id, tok)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Epoch() != epoch || !current {
		return zero, ErrDiscarded
	}
	if err != nil {
		c.fail("update", err)
		if apiclient.IsKind(err, apiclient.KindNotFound) {
			c.state.Items = applyRemove(c.state.Items, id)
		}
		return zero, err
	}

	var base T
	if i := indexOf(c.state.Items, id); i >= 0 {
		base = c.state.Items[i]
	}
	rec, err := model.Merge(base, raw)
	if err != nil {
		c.logger.Warn("merge update failed", zap.String("id", id), zap.Error(err))
		c.notifier.Notify(notify.Error, "malformed response from server")
		return zero, err
	}
	c.state.Items = applyUpdate(c.state.Items, rec)
	c.notifier.Notify(notify.Success, c.label+" updated successfully")
	return rec, nil
}

// Remove deletes id on the server, then locally. On failure the item stays.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	tok := c.pending.issue(id)
	epoch := c.session.Epoch()

	err := c.remote.Delete(ctx, id)

	current := c.pending.release(id, tok)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Epoch() != epoch || !current {
		return ErrDiscarded
	}
	if err != nil {
		c.fail("delete", err)
		if apiclient.IsKind(err, apiclient.KindNotFound) {
			c.state.Items = applyRemove(c.state.Items, id)
		}
		return err
	}
	c.state.Items = applyRemove(c.state.Items, id)
	c.notifier.Notify(notify.Success, c.label+" deleted successfully")
	return nil
}

// Pending reports whether a mutation on id is in flight.
func (c *Collection[T]) Pending(id string) bool { return c.pending.held(id) }

// PendingCount is the number of in-flight mutations, creates included.
func (c *Collection[T]) PendingCount() int { return c.pending.count() }

// Cached returns the locally cached copy of id.
func (c *Collection[T]) Cached(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.state.Items, id); i >= 0 {
		return c.state.Items[i], true
	}
	var zero T
	return zero, false
}

// Put replaces the cached copy of rec's id, if present. Used when another
// view-model has already committed a change with the server.
func (c *Collection[T]) Put(rec T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Items = applyUpdate(c.state.Items, rec)
}

// Forget drops id locally without any network call.
func (c *Collection[T]) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Items = applyRemove(c.state.Items, id)
}

// fail surfaces a mutation failure. Auth expiry is left to the session.
func (c *Collection[T]) fail(op string, err error) {
	if apiclient.IsKind(err, apiclient.KindAuthExpired) {
		return
	}
	c.logger.Warn(op+" failed", zap.String("label", c.label), zap.Error(err))
	c.notifier.Notify(notify.Error, apiclient.Message(err))
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthenticated is returned by Require when no usable credential is
// held. Views redirect to login without issuing any request.
var ErrUnauthenticated = errors.New("not authenticated")

const clearTimeout = 5 * time.Second

// EventKind classifies session transitions.
type EventKind string

const (
	EventLogin   EventKind = "login"
	EventLogout  EventKind = "logout"
	EventExpired EventKind = "expired"
)

// Event is broadcast to subscribers on every session transition.
type Event struct {
	Kind  EventKind
	Epoch uint64
}

// Revoker performs the best-effort server-side logout for a token.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// Manager is the single source of truth for the operator credential. It is
// read on every request and written only on login, logout and expiry.
type Manager struct {
	store   Storage
	revoker Revoker
	logger  *zap.Logger
	now     func() time.Time

	cred  atomic.Pointer[Credential]
	epoch atomic.Uint64

	mu   sync.Mutex
	subs []chan Event
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRevoker sets the detached logout handler.
func WithRevoker(r Revoker) Option { return func(m *Manager) { m.revoker = r } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager creates a manager backed by store.
func NewManager(store Storage, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads a persisted credential at startup.
func (m *Manager) Restore(ctx context.Context) error {
	cred, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		return err
	}
	if cred.Expired(m.now()) {
		m.logger.Info("stored credential expired, clearing")
		return m.store.Clear(ctx)
	}
	m.cred.Store(&cred)
	return nil
}

// Credential returns the current credential, if any.
func (m *Manager) Credential() (Credential, bool) {
	c := m.cred.Load()
	if c == nil {
		return Credential{}, false
	}
	return *c, true
}

// Token returns the bearer token or "" when absent.
func (m *Manager) Token() string {
	if c := m.cred.Load(); c != nil {
		return c.Token
	}
	return ""
}

// Epoch is the auth generation. It changes on every login, logout and
// expiry; responses to requests issued under an older epoch are stale.
func (m *Manager) Epoch() uint64 { return m.epoch.Load() }

// Require guards protected views. A locally expired token is expired on the
// spot so the view redirects without a round trip.
func (m *Manager) Require() error {
	c := m.cred.Load()
	if c == nil {
		return ErrUnauthenticated
	}
	if c.Expired(m.now()) {
		m.ExpireAuth(context.Background(), m.Epoch())
		return ErrUnauthenticated
	}
	return nil
}

// Login persists cred and makes it current.
func (m *Manager) Login(ctx context.Context, cred Credential) error {
	if !cred.Complete() {
		return ErrIncomplete
	}
	if err := m.store.Save(ctx, cred); err != nil {
		return err
	}
	c := cred
	m.transition(EventLogin, &c)
	return nil
}

// Logout clears the credential immediately and revokes the old token in the
// background. The caller never waits on the revocation.
func (m *Manager) Logout(ctx context.Context) {
	old := m.transition(EventLogout, nil)
	m.clearStored(ctx)

	if old == nil || m.revoker == nil {
		return
	}
	token := old.Token
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.revoker.Revoke(rctx, token); err != nil {
			m.logger.Warn("server logout failed", zap.Error(err))
		}
	}()
}

// ExpireAuth handles a server report that the credential issued under
// issuedEpoch is invalid. It clears the credential and notifies every
// subscriber. Reports from an older epoch (for example a late 401 after a
// fresh login) are ignored. It returns whether the session was expired.
func (m *Manager) ExpireAuth(ctx context.Context, issuedEpoch uint64) bool {
	m.mu.Lock()
	if m.epoch.Load() != issuedEpoch || m.cred.Load() == nil {
		m.mu.Unlock()
		return false
	}
	m.cred.Store(nil)
	epoch := m.epoch.Add(1)
	subs := append([]chan Event(nil), m.subs...)
	m.mu.Unlock()

	m.clearStored(ctx)
	m.logger.Info("session expired", zap.Uint64("epoch", epoch))
	notify(subs, Event{Kind: EventExpired, Epoch: epoch})
	return true
}

// Subscribe returns a channel receiving session events. Slow subscribers
// miss events rather than block the session.
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Healthy reports whether the backing storage is reachable.
func (m *Manager) Healthy(ctx context.Context) bool { return m.store.Healthy(ctx) }

// transition swaps in cred and bumps the epoch as one step, so ExpireAuth
// never sees a new credential under an old epoch. It returns the previous
// credential.
func (m *Manager) transition(kind EventKind, cred *Credential) *Credential {
	m.mu.Lock()
	old := m.cred.Swap(cred)
	epoch := m.epoch.Add(1)
	subs := append([]chan Event(nil), m.subs...)
	m.mu.Unlock()
	notify(subs, Event{Kind: kind, Epoch: epoch})
	return old
}

// clearStored removes the persisted credential even when ctx is already
// cancelled; a stale token left in storage would come back on Restore.
func (m *Manager) clearStored(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	defer cancel()
	if err := m.store.Clear(cctx); err != nil {
		m.logger.Warn("clear stored credential failed", zap.Error(err))
	}
}

func notify(subs []chan Event, ev Event) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

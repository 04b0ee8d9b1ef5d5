package viewmodel

import "sync"

// tokens tracks the in-flight mutation per key. Issuing a token for a key
// supersedes whatever was there; release reports whether the caller still
// holds the latest token.
type tokens struct {
	mu    sync.Mutex
	next  uint64
	byKey map[string]uint64
}

func newTokens() *tokens {
	return &tokens{byKey: make(map[string]uint64)}
}

func (t *tokens) issue(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.byKey[key] = t.next
	return t.next
}

func (t *tokens) release(key string, tok uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byKey[key] != tok {
		return false
	}
	delete(t.byKey, key)
	return true
}

func (t *tokens) held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byKey[key]
	return ok
}

func (t *tokens) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}

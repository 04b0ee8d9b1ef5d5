// Package notify carries transient operator notices (toasts) from the
// view-models to whatever renders them.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one transient message.
type Notice struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(level Level, text string)
}

// Recorder keeps the most recent notices in memory until drained.
type Recorder struct {
	mu     sync.Mutex
	max    int
	now    func() time.Time
	events []Notice
}

// NewRecorder keeps at most max notices; older ones are dropped.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 100
	}
	return &Recorder{max: max, now: time.Now}
}

func (r *Recorder) Notify(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Notice{Level: level, Text: text, At: r.now()})
	if over := len(r.events) - r.max; over > 0 {
		r.events = append([]Notice(nil), r.events[over:]...)
	}
}

// Drain returns and clears the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// Peek returns a copy of the recorded notices without clearing them.
func (r *Recorder) Peek() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice{}, r.events...)
}

// Logger writes notices to a zap logger.
type Logger struct{ L *zap.Logger }

func (l Logger) Notify(level Level, text string) {
	switch level {
	case Error:
		l.L.Warn("notice", zap.String("level", string(level)), zap.String("text", text))
	default:
		l.L.Info("notice", zap.String("level", string(level)), zap.String("text", text))
	}
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, text string) {
	for _, n := range m {
		n.Notify(level, text)
	}
}

// Discard drops every notice.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Level, string) {}

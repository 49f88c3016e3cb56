// Package notify delivers user-visible notices.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-visible message. Key groups repeats of the same
// condition for rate limiting.
type Notice struct {
	Level   Level  `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

// Notify implements Notifier.
func (f Func) Notify(n Notice) { f(n) }

// Nop discards notices.
var Nop Notifier = Func(func(Notice) {})

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notice) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

// Console writes notices as timestamped lines.
type Console struct {
	w   io.Writer
	now func() time.Time
}

// NewConsole creates a notifier writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

// Notify implements Notifier.
func (c *Console) Notify(n Notice) {
	prefix := ""
	switch n.Level {
	case LevelWarning:
		prefix = "Warning: "
	case LevelError:
		prefix = "Error: "
	}
	fmt.Fprintf(c.w, "[%s] %s%s\n", c.now().Format("15:04:05"), prefix, n.Message)
}

// Limiter delivers at most one notice per key per window. A notice
// without a key is keyed by its message.
type Limiter struct {
	mu       sync.Mutex
	next     Notifier
	window   time.Duration
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// Resetter is implemented by notifiers that can forget a key.
type Resetter interface {
	Reset(key string)
}

// NewLimiter wraps next.
func NewLimiter(next Notifier, window time.Duration) *Limiter {
	return &Limiter{
		next:     next,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Notify implements Notifier.
func (l *Limiter) Notify(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := n.Key
	if key == "" {
		key = n.Message
	}
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window), 1)
		l.limiters[key] = lim
	}
	if !lim.AllowN(l.now(), 1) {
		return
	}
	l.next.Notify(n)
}

// SetWindow changes the window for every key, e.g. after the poll interval
// was edited.
func (l *Limiter) SetWindow(window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if window == l.window {
		return
	}
	l.window = window
	now := l.now()
	for _, lim := range l.limiters {
		lim.SetLimitAt(now, rate.Every(window))
	}
}

// Window returns the current window.
func (l *Limiter) Window() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window
}

// Reset forgets key so the next notice for it is delivered.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

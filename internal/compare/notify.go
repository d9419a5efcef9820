package compare

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level grades a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a message for the user, such as a capacity warning.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the global zap logger.
type LogNotifier struct{}

// Notify logs n at a level matching its severity.
func (LogNotifier) Notify(n Notification) {
	log := zap.L().With(zap.String("component", "notify"))
	switch n.Level {
	case LevelError:
		log.Error(n.Message)
	case LevelWarning:
		log.Warn(n.Message)
	default:
		log.Info(n.Message)
	}
}

// maxNotifications bounds the history kept for snapshots.
const maxNotifications = 50

// history keeps the most recent notifications.
type history struct {
	mu    sync.Mutex
	items []Notification
}

func (h *history) add(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, n)
	if len(h.items) > maxNotifications {
		h.items = h.items[len(h.items)-maxNotifications:]
	}
}

func (h *history) list() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Notification, len(h.items))
	copy(out, h.items)
	return out
}

// outbox holds notifications raised while the controller lock is held.
// They are delivered after the lock is released so a Notifier may call back
// into the controller.
type outbox []Notification

func (o *outbox) add(level Level, msg string) {
	*o = append(*o, Notification{Level: level, Message: msg, Time: time.Now().UTC()})
}

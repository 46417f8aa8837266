// Package notify delivers short user-facing notices (toasts) to the
// terminal UI, the log and the bus.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/protocol"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level
	Message string
	Time    time.Time
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Notice) {})

type multi []Notifier

func (m multi) Notify(n Notice) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

// Multi fans a notice out to every non-nil notifier.
func Multi(notifiers ...Notifier) Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"))}
}

func (l *LogNotifier) Notify(n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, n.Message, slog.String("notice_level", string(n.Level)))
}

// BusNotifier publishes notices on ui.notice.
type BusNotifier struct {
	client *bus.Client
	logger *slog.Logger
}

func NewBusNotifier(client *bus.Client, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{client: client, logger: logger.With(slog.String("component", "notify-bus"))}
}

func (b *BusNotifier) Notify(n Notice) {
	msg := protocol.Notice{Level: string(n.Level), Message: n.Message, Timestamp: n.Time}
	if err := b.client.PublishJSON(protocol.SubjectNotice, msg); err != nil {
		b.logger.Warn("failed to publish notice", slog.String("error", err.Error()))
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns the recorded notices, oldest first.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Messages returns just the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Message)
	}
	return out
}

package uploader

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/properbooky/internal/logging"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
	LevelSuccess  Level = "success"
	LevelError    Level = "error"
)

// Notification is one advisory message shown to the user. Progress is only
// meaningful for LevelProgress.
type Notification struct {
	Level    Level  `json:"level"`
	Title    string `json:"title"`
	Message  string `json:"message,omitempty"`
	Progress int    `json:"progress,omitempty"`
}

// Notifier displays notifications keyed by id. It is advisory: the
// orchestrator logs and ignores its errors and panics.
type Notifier interface {
	Show(ctx context.Context, id string, n Notification) error
	Update(ctx context.Context, id string, n Notification) error
	Dismiss(ctx context.Context, id string) error
}

type nopNotifier struct{}

func (nopNotifier) Show(context.Context, string, Notification) error   { return nil }
func (nopNotifier) Update(context.Context, string, Notification) error { return nil }
func (nopNotifier) Dismiss(context.Context, string) error              { return nil }

// LogNotifier writes notifications to a logger. Progress updates go to debug.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Show(ctx context.Context, id string, nt Notification) error {
	n.log(ctx, id, nt)
	return nil
}

func (n *LogNotifier) Update(ctx context.Context, id string, nt Notification) error {
	n.log(ctx, id, nt)
	return nil
}

func (n *LogNotifier) Dismiss(ctx context.Context, id string) error {
	n.logger.Debug(ctx, "notification dismissed", "id", id)
	return nil
}

func (n *LogNotifier) log(ctx context.Context, id string, nt Notification) {
	args := []any{"id", id, "title", nt.Title}
	if nt.Message != "" {
		args = append(args, "message", nt.Message)
	}
	switch nt.Level {
	case LevelProgress:
		n.logger.Debug(ctx, "upload progress", append(args, "progress", nt.Progress)...)
	case LevelError:
		n.logger.Error(ctx, "upload notification", args...)
	default:
		n.logger.Info(ctx, "upload notification", args...)
	}
}

// Feed keeps the latest notification per id, in first-shown order, so a
// polling client can render the current state.
type Feed struct {
	mu    sync.Mutex
	order []string
	byID  map[string]Notification
	limit int
}

// NewFeed returns a Feed holding at most limit ids; the oldest are evicted.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{byID: make(map[string]Notification), limit: limit}
}

// FeedEntry is a notification with its id.
type FeedEntry struct {
	ID string `json:"id"`
	Notification
}

func (f *Feed) Show(_ context.Context, id string, n Notification) error {
	f.put(id, n)
	return nil
}

func (f *Feed) Update(_ context.Context, id string, n Notification) error {
	f.put(id, n)
	return nil
}

func (f *Feed) Dismiss(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return nil
	}
	delete(f.byID, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// Entries returns the current notifications, oldest first.
func (f *Feed) Entries() []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FeedEntry, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, FeedEntry{ID: id, Notification: f.byID[id]})
	}
	return out
}

func (f *Feed) put(id string, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		f.order = append(f.order, id)
		if len(f.order) > f.limit {
			delete(f.byID, f.order[0])
			f.order = f.order[1:]
		}
	}
	f.byID[id] = n
}

// MultiNotifier fans out to several notifiers and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Show(ctx context.Context, id string, n Notification) error {
	return m.each(func(x Notifier) error { return x.Show(ctx, id, n) })
}

func (m MultiNotifier) Update(ctx context.Context, id string, n Notification) error {
	return m.each(func(x Notifier) error { return x.Update(ctx, id, n) })
}

func (m MultiNotifier) Dismiss(ctx context.Context, id string) error {
	return m.each(func(x Notifier) error { return x.Dismiss(ctx, id) })
}

func (m MultiNotifier) each(fn func(Notifier) error) error {
	var first error
	for _, x := range m {
		if err := fn(x); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package uploader

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/storage"
)

type fakeTransport struct {
	mu       sync.Mutex
	calls    []string
	contents [][]byte
	owners   []string

	fail   map[string]error
	steps  []int
	during func(name string, onProgress storage.ProgressFunc)
}

func (f *fakeTransport) Upload(ctx context.Context, file queue.File, ownerID string, onProgress storage.ProgressFunc) (storage.UploadResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, file.Name)
	f.contents = append(f.contents, file.Content)
	f.owners = append(f.owners, ownerID)
	f.mu.Unlock()

	for _, p := range f.steps {
		if onProgress != nil {
			onProgress(storage.Progress{Percent: p, TotalBytes: file.Size()})
		}
	}
	if f.during != nil {
		f.during(file.Name, onProgress)
	}
	if err := f.fail[file.Name]; err != nil {
		return storage.UploadResult{}, err
	}
	return storage.UploadResult{
		Key:  ownerID + "/" + file.Name,
		URL:  "https://books.example/" + ownerID + "/" + file.Name,
		Size: file.Size(),
	}, nil
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type event struct {
	op string
	id string
	n  Notification
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
	err    error
	panics bool
}

func (r *recordingNotifier) record(op, id string, n Notification) error {
	r.mu.Lock()
	r.events = append(r.events, event{op: op, id: id, n: n})
	r.mu.Unlock()
	if r.panics {
		panic("sink exploded")
	}
	return r.err
}

func (r *recordingNotifier) Show(_ context.Context, id string, n Notification) error {
	return r.record("show", id, n)
}

func (r *recordingNotifier) Update(_ context.Context, id string, n Notification) error {
	return r.record("update", id, n)
}

func (r *recordingNotifier) Dismiss(_ context.Context, id string) error {
	return r.record("dismiss", id, Notification{})
}

func (r *recordingNotifier) Events() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recordingNotifier) ByID(id string) []event {
	var out []event
	for _, e := range r.Events() {
		if e.id == id {
			out = append(out, e)
		}
	}
	return out
}

type fakeRegistrar struct {
	mu   sync.Mutex
	regs []Registration
	fail map[string]error
}

func (f *fakeRegistrar) Register(_ context.Context, r Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[r.FileName]; err != nil {
		return err
	}
	f.regs = append(f.regs, r)
	return nil
}

type fakeOptimizer struct {
	res storage.OptimizeResult
}

func (f fakeOptimizer) Optimize(context.Context, queue.File) storage.OptimizeResult {
	return f.res
}

// blockingOptimizer ignores ctx and returns only once release is closed.
type blockingOptimizer struct {
	release chan struct{}
}

func (b blockingOptimizer) Optimize(_ context.Context, f queue.File) storage.OptimizeResult {
	<-b.release
	return storage.OptimizeResult{Data: f.Content}
}

var errNetwork = errors.New("connection reset by peer")

func ownerCtx(id string) context.Context {
	return auth.WithUserID(context.Background(), id)
}

func pdf(name string) queue.File {
	return queue.File{Name: name, MediaType: "application/pdf", Content: []byte("%PDF-1.7 " + name)}
}

// Package uploader drains an upload queue: one item at a time, in
// insertion order, with per-item failure isolation.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/storage"
)

// Notification ids for batch-level messages. Per-item notifications use the
// item id.
const (
	BatchNoticeID   = "upload-batch"
	failedNoticePfx = "upload-failed:"
)

// Registration describes a stored file to be recorded in the catalog.
type Registration struct {
	OwnerID   string
	FileName  string
	MediaType string
	Key       string
	URL       string
	Size      int64
}

// Registrar records an uploaded file. An item is completed only after
// registration succeeds.
type Registrar interface {
	Register(ctx context.Context, r Registration) error
}

// BatchResult counts the items visited by one drain.
type BatchResult struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%d of %d uploaded", r.Completed, r.Total)
}

type Orchestrator struct {
	store     *queue.Store
	transport storage.Transport
	owners    auth.OwnerResolver

	registrar   Registrar
	optimizer   storage.Optimizer
	notifier    Notifier
	logger      logging.Logger
	itemTimeout time.Duration

	running atomic.Bool
}

type Option func(*Orchestrator)

func WithRegistrar(r Registrar) Option {
	return func(o *Orchestrator) { o.registrar = r }
}

func WithOptimizer(opt storage.Optimizer) Option {
	return func(o *Orchestrator) { o.optimizer = opt }
}

// WithItemTimeout bounds each item's optimize, transfer and registration.
// Zero means no bound.
func WithItemTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.itemTimeout = d }
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(store *queue.Store, transport storage.Transport, owners auth.OwnerResolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		transport: transport,
		owners:    owners,
		optimizer: storage.NopOptimizer{},
		notifier:  nopNotifier{},
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a drain is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Process drains the queue. Item failures are recorded on the items and
// never returned; the error is non-nil only when another drain is running
// (common.ErrDrainInProgress) or the owner cannot be resolved
// (common.ErrUnauthorized), and in both cases no item is touched.
func (o *Orchestrator) Process(ctx context.Context) (BatchResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return BatchResult{}, common.ErrDrainInProgress
	}
	defer o.running.Store(false)

	ownerID, err := o.owners.OwnerID(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
		}
		o.logger.Warn(ctx, "upload batch aborted", "error", err)
		o.show(ctx, BatchNoticeID, Notification{
			Level:   LevelError,
			Title:   "Upload failed",
			Message: "You must be signed in to upload books",
		})
		return BatchResult{}, err
	}

	logger := o.logger.With("owner", ownerID)
	var res BatchResult

	for _, it := range o.store.Snapshot() {
		if it.Status.Terminal() {
			continue
		}
		ok, visited := o.processItem(ctx, logger, ownerID, it)
		if !visited {
			continue
		}
		res.Total++
		if ok {
			res.Completed++
		} else {
			res.Failed++
		}
	}

	level := LevelSuccess
	if res.Failed > 0 {
		level = LevelError
	}
	o.show(ctx, BatchNoticeID, Notification{Level: level, Title: "Upload finished", Message: res.String()})
	logger.Info(ctx, "upload batch finished", "total", res.Total, "completed", res.Completed, "failed", res.Failed)

	return res, nil
}

// processItem reports visited=false when the item left the queue (or was
// otherwise claimed) after the snapshot was taken.
func (o *Orchestrator) processItem(ctx context.Context, logger logging.Logger, ownerID string, it queue.Item) (ok, visited bool) {
	if err := o.store.UpdateStatus(it.ID, queue.StatusUploading, ""); err != nil {
		logger.Debug(ctx, "skipping item", "item", it.ID, "error", err)
		return false, false
	}
	logger = logger.With("item", it.ID, "file", it.Source.Name)

	o.show(ctx, it.ID, Notification{Level: LevelProgress, Title: it.Source.Name, Message: "Uploading"})

	if err := o.upload(ctx, logger, ownerID, it); err != nil {
		msg := err.Error()
		if uerr := o.store.UpdateStatus(it.ID, queue.StatusError, msg); uerr != nil {
			logger.Error(ctx, "cannot record failure", "error", uerr)
		}
		logger.Warn(ctx, "upload failed", "error", msg)
		o.update(ctx, it.ID, Notification{Level: LevelError, Title: it.Source.Name, Message: msg})
		o.show(ctx, failedNoticePfx+it.ID, Notification{
			Level:   LevelError,
			Title:   "Failed to upload " + it.Source.Name,
			Message: msg,
		})
		return false, true
	}

	if err := o.store.UpdateStatus(it.ID, queue.StatusCompleted, ""); err != nil {
		logger.Error(ctx, "cannot record completion", "error", err)
	}
	logger.Info(ctx, "upload completed")
	o.update(ctx, it.ID, Notification{Level: LevelSuccess, Title: it.Source.Name, Message: "Uploaded", Progress: 100})
	return true, true
}

// upload runs optimize, transfer and registration for one item. Panics are
// turned into errors so the batch carries on.
func (o *Orchestrator) upload(ctx context.Context, logger logging.Logger, ownerID string, it queue.Item) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: unexpected panic: %v", common.ErrInternal, p)
		}
	}()

	if o.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.itemTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}

	f := it.Source
	opt := o.optimize(ctx, f)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	switch {
	case opt.Optimized:
		logger.Debug(ctx, "payload optimized", "before", f.Size(), "after", len(opt.Data))
		f.Content = opt.Data
	case opt.Err != nil:
		logger.Warn(ctx, "optimizer failed, uploading original", "error", opt.Err)
	}

	res, err := o.transport.Upload(ctx, f, ownerID, func(p storage.Progress) {
		o.onProgress(ctx, logger, it, p)
	})
	if err != nil {
		if !errors.Is(err, common.ErrTransport) {
			err = fmt.Errorf("%w: %w", common.ErrTransport, err)
		}
		return err
	}

	if o.registrar == nil {
		return nil
	}
	err = o.registrar.Register(ctx, Registration{
		OwnerID:   ownerID,
		FileName:  it.Source.Name,
		MediaType: it.Source.MediaType,
		Key:       res.Key,
		URL:       res.URL,
		Size:      res.Size,
	})
	if err != nil {
		// the stored object is left behind; storage cleanup is not ours
		logger.Warn(ctx, "orphaned object", "key", res.Key)
		if !errors.Is(err, common.ErrCatalog) {
			err = fmt.Errorf("%w: %w", common.ErrCatalog, err)
		}
		return err
	}
	return nil
}

// optimize runs the optimizer but stops waiting once ctx ends, so an
// optimizer that ignores ctx cannot hold up the batch. A panic keeps the
// original bytes.
func (o *Orchestrator) optimize(ctx context.Context, f queue.File) storage.OptimizeResult {
	done := make(chan storage.OptimizeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- storage.OptimizeResult{Data: f.Content, Err: fmt.Errorf("optimizer panic: %v", p)}
			}
		}()
		done <- o.optimizer.Optimize(ctx, f)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return storage.OptimizeResult{Data: f.Content, Err: ctx.Err()}
	}
}

// onProgress applies a transport report. Reports for items that are gone
// or no longer uploading are dropped.
func (o *Orchestrator) onProgress(ctx context.Context, logger logging.Logger, it queue.Item, p storage.Progress) {
	if err := o.store.UpdateProgress(it.ID, p.Percent); err != nil {
		logger.Debug(ctx, "dropping stale progress", "percent", p.Percent, "error", err)
		return
	}
	cur, ok := o.store.Get(it.ID)
	if !ok {
		return
	}
	o.update(ctx, it.ID, Notification{Level: LevelProgress, Title: it.Source.Name, Message: "Uploading", Progress: cur.Progress})
}

func (o *Orchestrator) show(ctx context.Context, id string, n Notification) {
	o.safeNotify(ctx, "show", id, func() error { return o.notifier.Show(ctx, id, n) })
}

func (o *Orchestrator) update(ctx context.Context, id string, n Notification) {
	o.safeNotify(ctx, "update", id, func() error { return o.notifier.Update(ctx, id, n) })
}

func (o *Orchestrator) safeNotify(ctx context.Context, op, id string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Warn(ctx, "notifier panic", "op", op, "id", id, "panic", fmt.Sprint(p))
		}
	}()
	if err := fn(); err != nil {
		o.logger.Warn(ctx, "notifier failed", "op", op, "id", id, "error", err)
	}
}

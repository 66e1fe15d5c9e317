package queue

import (
	"fmt"
	"sync"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/google/uuid"
)

// Store is an ordered, goroutine-safe collection of items.
type Store struct {
	mu    sync.RWMutex
	items []*Item
}

func NewStore() *Store {
	return &Store{}
}

// newID is a seam for tests that want predictable ids.
var newID = uuid.NewString

// Enqueue appends one queued item per file, preserving input order, and
// returns copies of the new items.
func (s *Store) Enqueue(files ...File) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]Item, 0, len(files))
	for _, f := range files {
		it := &Item{ID: newID(), Source: f, Status: StatusQueued}
		s.items = append(s.items, it)
		added = append(added, *it)
	}
	return added
}

// Remove deletes the item with the given id. Unknown ids are a no-op.
// An uploading item cannot be removed: its transfer is not interruptible.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	if s.items[i].Status == StatusUploading {
		return fmt.Errorf("remove %s: %w", id, common.ErrItemBusy)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Clear empties the store unless an item is mid-upload.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.Status == StatusUploading {
			return fmt.Errorf("clear: %w", common.ErrItemBusy)
		}
	}
	s.items = nil
	return nil
}

// Requeue replaces a failed item with a fresh queued copy of the same file
// at the end of the queue.
func (s *Store) Requeue(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Item{}, fmt.Errorf("requeue %s: %w", id, common.ErrNotFound)
	}
	old := s.items[i]
	if old.Status != StatusError {
		return Item{}, fmt.Errorf("requeue %s (%s): %w", id, old.Status, common.ErrNotRetryable)
	}

	fresh := &Item{ID: newID(), Source: old.Source, Status: StatusQueued}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.items = append(s.items, fresh)
	return *fresh, nil
}

// UpdateStatus moves an item along its state machine. errMsg is recorded
// only for StatusError; completion pins progress to 100.
func (s *Store) UpdateStatus(id string, status Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, common.ErrNotFound)
	}
	it := s.items[i]
	if err := checkTransition(it.Status, status); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}

	it.Status = status
	it.Err = ""
	switch status {
	case StatusCompleted:
		it.Progress = 100
	case StatusError:
		it.Err = errMsg
	}
	return nil
}

// UpdateProgress records a new percentage for an uploading item. Values are
// clamped to [0,100] and never move backwards.
func (s *Store) UpdateProgress(id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("progress %s: %w", id, common.ErrNotFound)
	}
	it := s.items[i]
	if it.Status != StatusUploading {
		return fmt.Errorf("progress %s while %s: %w", id, it.Status, common.ErrIllegalTransition)
	}
	progress = min(max(progress, 0), 100)
	if progress > it.Progress {
		it.Progress = progress
	}
	return nil
}

// Get returns a copy of the item with the given id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Item{}, false
	}
	return *s.items[i], true
}

// Snapshot returns copies of all items in insertion order.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = *it
	}
	return out
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Uploading reports whether any item is mid-transfer.
func (s *Store) Uploading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.Status == StatusUploading {
			return true
		}
	}
	return false
}

// Pending reports whether any item is queued or uploading.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if !it.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

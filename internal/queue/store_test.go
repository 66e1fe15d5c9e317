package queue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs(t *testing.T) {
	t.Helper()
	orig := newID
	n := 0
	newID = func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}
	t.Cleanup(func() { newID = orig })
}

func pdf(name string) File {
	return File{Name: name, MediaType: common.MediaTypePDF, Content: []byte("%PDF-1.7")}
}

func TestStore_EnqueuePreservesOrder(t *testing.T) {
	seqIDs(t)
	s := NewStore()

	s.Enqueue(pdf("a.pdf"))
	added := s.Enqueue(pdf("b.pdf"), pdf("c.pdf"))

	require.Len(t, added, 2)
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.Equal(t, name, snap[i].Source.Name)
		assert.Equal(t, StatusQueued, snap[i].Status)
		assert.Equal(t, 0, snap[i].Progress)
		assert.Empty(t, snap[i].Err)
	}
	assert.Equal(t, "item-2", snap[1].ID)
	assert.Equal(t, 3, s.Len())
}

func TestStore_StateMachine(t *testing.T) {
	tests := []struct {
		name    string
		path    []Status
		wantErr bool
	}{
		{name: "happy path", path: []Status{StatusUploading, StatusCompleted}},
		{name: "failure", path: []Status{StatusUploading, StatusError}},
		{name: "skip uploading", path: []Status{StatusCompleted}, wantErr: true},
		{name: "leave completed", path: []Status{StatusUploading, StatusCompleted, StatusUploading}, wantErr: true},
		{name: "leave error", path: []Status{StatusUploading, StatusError, StatusQueued}, wantErr: true},
		{name: "back to queued", path: []Status{StatusUploading, StatusQueued}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			id := s.Enqueue(pdf("a.pdf"))[0].ID

			var err error
			for _, st := range tt.path {
				if err = s.UpdateStatus(id, st, "boom"); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrIllegalTransition)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_CompletionAndErrorFields(t *testing.T) {
	s := NewStore()
	items := s.Enqueue(pdf("ok.pdf"), pdf("bad.pdf"))

	require.NoError(t, s.UpdateStatus(items[0].ID, StatusUploading, ""))
	require.NoError(t, s.UpdateProgress(items[0].ID, 40))
	require.NoError(t, s.UpdateStatus(items[0].ID, StatusCompleted, "ignored"))

	require.NoError(t, s.UpdateStatus(items[1].ID, StatusUploading, ""))
	require.NoError(t, s.UpdateProgress(items[1].ID, 30))
	require.NoError(t, s.UpdateStatus(items[1].ID, StatusError, "network down"))

	ok, _ := s.Get(items[0].ID)
	assert.Equal(t, 100, ok.Progress)
	assert.Empty(t, ok.Err)

	bad, _ := s.Get(items[1].ID)
	assert.Equal(t, 30, bad.Progress, "progress stays at its last value on error")
	assert.Equal(t, "network down", bad.Err)

	assert.ErrorIs(t, s.UpdateProgress(bad.ID, 90), common.ErrIllegalTransition, "terminal progress is frozen")
}

func TestStore_ProgressIsMonotonic(t *testing.T) {
	s := NewStore()
	id := s.Enqueue(pdf("a.pdf"))[0].ID

	assert.ErrorIs(t, s.UpdateProgress(id, 10), common.ErrIllegalTransition, "queued items have no progress")
	require.NoError(t, s.UpdateStatus(id, StatusUploading, ""))

	seen := []int{}
	for _, p := range []int{10, 50, 20, 150, -3} {
		require.NoError(t, s.UpdateProgress(id, p))
		it, _ := s.Get(id)
		seen = append(seen, it.Progress)
	}
	assert.Equal(t, []int{10, 50, 50, 100, 100}, seen)

	assert.ErrorIs(t, s.UpdateProgress("missing", 1), common.ErrNotFound)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	items := s.Enqueue(pdf("a.pdf"), pdf("b.pdf"), pdf("c.pdf"))

	require.NoError(t, s.UpdateStatus(items[1].ID, StatusUploading, ""))

	assert.NoError(t, s.Remove("nope"), "unknown id is a no-op")
	assert.ErrorIs(t, s.Remove(items[1].ID), common.ErrItemBusy)
	assert.NoError(t, s.Remove(items[2].ID))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, items[0].ID, snap[0].ID)
	assert.Equal(t, items[1].ID, snap[1].ID)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	items := s.Enqueue(pdf("a.pdf"), pdf("b.pdf"))
	require.NoError(t, s.UpdateStatus(items[0].ID, StatusUploading, ""))

	assert.True(t, s.Uploading())
	assert.ErrorIs(t, s.Clear(), common.ErrItemBusy)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.UpdateStatus(items[0].ID, StatusError, "x"))
	assert.False(t, s.Uploading())
	require.NoError(t, s.Clear())
	assert.Zero(t, s.Len())
}

func TestStore_Requeue(t *testing.T) {
	seqIDs(t)
	s := NewStore()
	items := s.Enqueue(pdf("a.pdf"), pdf("b.pdf"))

	_, err := s.Requeue(items[0].ID)
	assert.ErrorIs(t, err, common.ErrNotRetryable)

	_, err = s.Requeue("ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.UpdateStatus(items[0].ID, StatusUploading, ""))
	require.NoError(t, s.UpdateStatus(items[0].ID, StatusError, "quota"))

	fresh, err := s.Requeue(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "item-3", fresh.ID)
	assert.Equal(t, StatusQueued, fresh.Status)
	assert.Equal(t, "a.pdf", fresh.Source.Name)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, items[1].ID, snap[0].ID)
	assert.Equal(t, fresh.ID, snap[1].ID)

	_, ok := s.Get(items[0].ID)
	assert.False(t, ok)
}

func TestStore_Pending(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Pending())

	items := s.Enqueue(File{Name: "a.pdf"})
	assert.True(t, s.Pending())

	require.NoError(t, s.UpdateStatus(items[0].ID, StatusUploading, ""))
	assert.True(t, s.Pending())

	require.NoError(t, s.UpdateStatus(items[0].ID, StatusError, "boom"))
	assert.False(t, s.Pending())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusUploading.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, errors.Is(checkTransition(StatusError, StatusCompleted), common.ErrIllegalTransition))
}

// Package queue holds the in-memory upload queue: the items of one upload
// session and their status machine. The orchestrator is the only writer of
// status and progress; everything else reads snapshots.
package queue

import (
	"fmt"

	"github.com/dmitrijs2005/properbooky/internal/common"
)

// Status is the lifecycle state of an Item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further automatic transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// File is the immutable payload of an item: the bytes plus what the client
// declared about them.
type File struct {
	Name      string
	MediaType string
	Content   []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Content))
}

// Item is one file's upload lifecycle record.
type Item struct {
	ID       string
	Source   File
	Progress int
	Status   Status
	// Err is set only while Status is StatusError.
	Err string
}

// checkTransition enforces queued -> uploading -> completed|error.
func checkTransition(from, to Status) error {
	switch {
	case from == StatusQueued && to == StatusUploading:
		return nil
	case from == StatusUploading && (to == StatusCompleted || to == StatusError):
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", common.ErrIllegalTransition, from, to)
	}
}

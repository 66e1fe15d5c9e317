// Package storage moves book files into S3-compatible object storage.
package storage

import (
	"context"

	"github.com/dmitrijs2005/properbooky/internal/queue"
)

// Progress is one transfer progress report.
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64
	// Percent is in [0,100] and never decreases within one upload.
	Percent int
}

// ProgressFunc receives progress reports. It may be nil.
type ProgressFunc func(Progress)

// UploadResult identifies a stored object.
type UploadResult struct {
	Key  string
	URL  string
	Size int64
}

// Transport uploads one file under the owner's namespace. It does not retry.
type Transport interface {
	Upload(ctx context.Context, f queue.File, ownerID string, onProgress ProgressFunc) (UploadResult, error)
}

// Package filex loads book files from the local filesystem.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/queue"
)

const mediaTypeUnknown = "application/octet-stream"

// MediaTypeFor guesses the declared media type from the file extension.
func MediaTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case common.ExtPDF:
		return common.MediaTypePDF
	case common.ExtEPUB:
		return common.MediaTypeEPUB
	default:
		return mediaTypeUnknown
	}
}

// Size returns the size of a regular file.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	return fi.Size(), nil
}

// LoadFile reads path into a queue.File named after its base name.
func LoadFile(path string) (queue.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return queue.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return queue.File{Name: name, MediaType: MediaTypeFor(name), Content: data}, nil
}

// Package validator rejects unacceptable book files before any network
// transfer is attempted.
package validator

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/queue"
)

const (
	pdfSignature  = "%PDF-"
	zipSignature  = "PK\x03\x04"
	epubMimeEntry = "mimetype"
)

var extensions = map[string]string{
	common.MediaTypePDF:  common.ExtPDF,
	common.MediaTypeEPUB: common.ExtEPUB,
}

// ExtensionFor returns the canonical extension of a supported media type.
func ExtensionFor(mediaType string) (string, bool) {
	ext, ok := extensions[mediaType]
	return ext, ok
}

// FileValidationError explains why a file was rejected. It matches
// common.ErrValidation with errors.Is.
type FileValidationError struct {
	Name   string
	Reason string
}

func (e *FileValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

func (e *FileValidationError) Unwrap() error {
	return common.ErrValidation
}

// Validator checks size, declared type and content signature.
type Validator struct {
	maxSize    int64
	strictEPUB bool
}

type Option func(*Validator)

// WithMaxSize overrides the size limit in bytes.
func WithMaxSize(n int64) Option {
	return func(v *Validator) { v.maxSize = n }
}

// WithStrictEPUB toggles the EPUB container check. When off, only the
// ".epub" name suffix is required.
func WithStrictEPUB(on bool) Option {
	return func(v *Validator) { v.strictEPUB = on }
}

// DefaultMaxSize is 100 MiB.
const DefaultMaxSize int64 = 100 << 20

func New(opts ...Option) *Validator {
	v := &Validator{maxSize: DefaultMaxSize, strictEPUB: true}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate returns nil when f may be uploaded, or a *FileValidationError.
// It only reads f; calling it twice yields the same answer.
func (v *Validator) Validate(f queue.File) error {
	if err := v.CheckSize(f.Name, f.Size()); err != nil {
		return err
	}

	switch f.MediaType {
	case common.MediaTypePDF:
		if !bytes.HasPrefix(f.Content, []byte(pdfSignature)) {
			return v.reject(f, "content is not a PDF document")
		}
	case common.MediaTypeEPUB:
		if !strings.HasSuffix(strings.ToLower(f.Name), "."+common.ExtEPUB) {
			return v.reject(f, "EPUB file name must end with .epub")
		}
		if v.strictEPUB {
			if reason := checkEPUBContainer(f.Content); reason != "" {
				return v.reject(f, reason)
			}
		}
	default:
		return v.reject(f, fmt.Sprintf("unsupported file type %q (allowed: PDF, EPUB)", f.MediaType))
	}

	return nil
}

// CheckSize applies only the size limit. Callers streaming a payload use it
// to reject before buffering the whole file.
func (v *Validator) CheckSize(name string, size int64) error {
	if size > v.maxSize {
		return &FileValidationError{
			Name:   name,
			Reason: fmt.Sprintf("file is %s, exceeds the %s limit", humanSize(size), humanSize(v.maxSize)),
		}
	}
	return nil
}

// MaxSize returns the configured limit in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

func (v *Validator) reject(f queue.File, reason string) error {
	return &FileValidationError{Name: f.Name, Reason: reason}
}

// Offsets into a ZIP local file header.
const (
	zipLocalHeaderLen = 30
	zipMethodOffset   = 8
	zipNameLenOffset  = 26
)

// checkEPUBContainer applies the OCF rule: the ZIP must physically start
// with a stored (uncompressed) "mimetype" entry holding
// "application/epub+zip". The local header at offset 0 is inspected because
// the central directory may list entries in another order.
func checkEPUBContainer(content []byte) string {
	if !bytes.HasPrefix(content, []byte(zipSignature)) {
		return "content is not a ZIP container"
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil || len(zr.File) == 0 || len(content) < zipLocalHeaderLen {
		return "ZIP container is unreadable"
	}

	nameLen := int(binary.LittleEndian.Uint16(content[zipNameLenOffset:]))
	if zipLocalHeaderLen+nameLen > len(content) ||
		string(content[zipLocalHeaderLen:zipLocalHeaderLen+nameLen]) != epubMimeEntry {
		return "EPUB container must start with a mimetype entry"
	}
	if binary.LittleEndian.Uint16(content[zipMethodOffset:]) != zip.Store {
		return "EPUB mimetype entry must be stored uncompressed"
	}

	var first *zip.File
	for _, f := range zr.File {
		if f.Name == epubMimeEntry {
			first = f
			break
		}
	}
	if first == nil {
		return "EPUB mimetype entry is unreadable"
	}
	rc, err := first.Open()
	if err != nil {
		return "EPUB mimetype entry is unreadable"
	}
	defer rc.Close()

	mime, err := io.ReadAll(io.LimitReader(rc, 64))
	if err != nil || strings.TrimSpace(string(mime)) != common.MediaTypeEPUB {
		return "EPUB mimetype entry is not application/epub+zip"
	}
	return ""
}

func humanSize(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	if n > mib {
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}

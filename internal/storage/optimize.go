package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// OptimizeResult is the outcome of a best-effort size reduction. Data is
// always uploadable: the optimized bytes when Optimized is true, the
// original bytes otherwise. Err explains why the original was kept.
type OptimizeResult struct {
	Data      []byte
	Optimized bool
	Err       error
}

// Optimizer shrinks a payload before upload. Implementations must never
// fail the upload; they report problems through OptimizeResult.Err.
type Optimizer interface {
	Optimize(ctx context.Context, f queue.File) OptimizeResult
}

// NopOptimizer keeps every payload as is.
type NopOptimizer struct{}

func (NopOptimizer) Optimize(_ context.Context, f queue.File) OptimizeResult {
	return OptimizeResult{Data: f.Content}
}

func init() {
	// pdfcpu would otherwise create a config directory under $HOME.
	api.DisableConfigDir()
}

// pdfOptimize is a seam for api.Optimize.
var pdfOptimize = api.Optimize

// PDFOptimizer rewrites PDF files with pdfcpu's optimizer, which drops
// duplicate resources and recompresses streams without touching content.
// Other media types pass through.
type PDFOptimizer struct{}

// Optimize gives up when ctx ends and returns the original bytes with
// ctx.Err(). pdfcpu cannot be interrupted, so the abandoned run finishes in
// the background and its output is discarded.
func (PDFOptimizer) Optimize(ctx context.Context, f queue.File) OptimizeResult {
	orig := OptimizeResult{Data: f.Content}
	if f.MediaType != common.MediaTypePDF {
		return orig
	}
	if err := ctx.Err(); err != nil {
		orig.Err = err
		return orig
	}

	optimize := pdfOptimize
	done := make(chan OptimizeResult, 1)
	go func() {
		done <- runPDFOptimize(optimize, f)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		orig.Err = ctx.Err()
		return orig
	}
}

func runPDFOptimize(optimize func(io.ReadSeeker, io.Writer, *model.Configuration) error, f queue.File) (res OptimizeResult) {
	res = OptimizeResult{Data: f.Content}

	defer func() {
		if p := recover(); p != nil {
			res = OptimizeResult{Data: f.Content, Err: fmt.Errorf("pdf optimizer panic: %v", p)}
		}
	}()

	var out bytes.Buffer
	if err := optimize(bytes.NewReader(f.Content), &out, model.NewDefaultConfiguration()); err != nil {
		res.Err = fmt.Errorf("pdf optimize: %w", err)
		return res
	}
	if out.Len() == 0 || out.Len() >= len(f.Content) {
		return res
	}

	return OptimizeResult{Data: out.Bytes(), Optimized: true}
}

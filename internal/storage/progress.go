package storage

import (
	"bytes"
	"io"
	"sync"
)

// progressReader reports how much of a payload has been read. It is seekable
// so the SDK can rewind the body on retry; rewinding never makes the
// reported percentage go down.
type progressReader struct {
	r     *bytes.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	best int
}

func newProgressReader(data []byte, fn ProgressFunc) *progressReader {
	return &progressReader{r: bytes.NewReader(data), total: int64(len(data)), fn: fn, best: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 || err == io.EOF {
		p.report()
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	return p.r.Seek(offset, whence)
}

func (p *progressReader) report() {
	if p.fn == nil {
		return
	}
	done := p.total - int64(p.r.Len())
	pct := 100
	if p.total > 0 {
		pct = int(done * 100 / p.total)
	}

	p.mu.Lock()
	if pct <= p.best {
		p.mu.Unlock()
		return
	}
	p.best = pct
	p.mu.Unlock()

	p.fn(Progress{BytesTransferred: done, TotalBytes: p.total, Percent: pct})
}

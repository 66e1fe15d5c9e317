package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/server/config"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
	"github.com/dmitrijs2005/properbooky/internal/storage"
	"github.com/dmitrijs2005/properbooky/internal/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	fail  map[string]error
	calls []string
}

func (s *stubTransport) Upload(_ context.Context, f queue.File, ownerID string, onProgress storage.ProgressFunc) (storage.UploadResult, error) {
	s.calls = append(s.calls, ownerID+"/"+f.Name)
	if onProgress != nil {
		onProgress(storage.Progress{BytesTransferred: f.Size(), TotalBytes: f.Size(), Percent: 100})
	}
	if err := s.fail[f.Name]; err != nil {
		return storage.UploadResult{}, err
	}
	return storage.UploadResult{Key: ownerID + "/" + f.Name, URL: "https://books.example/" + f.Name, Size: f.Size()}, nil
}

type stubCatalog struct {
	registered []uploader.Registration
	books      []models.Book
}

func (s *stubCatalog) Register(_ context.Context, r uploader.Registration) error {
	s.registered = append(s.registered, r)
	return nil
}

func (s *stubCatalog) ListBooks(_ context.Context, ownerID string) ([]models.Book, error) {
	var out []models.Book
	for _, b := range s.books {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

const testSecret = "test-secret"

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = testSecret
	c.OptimizePDF = false
	c.ItemTimeout = 0
	return c
}

func newTestApp(t *testing.T, tr storage.Transport) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return newApp(testConfig(), tr, logging.Nop(), &out), &out
}

func signIn(t *testing.T, a *App, userID string) {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	stubReadPassword(t, func(int) ([]byte, error) { return []byte(tok + "\n"), nil })
	require.NoError(t, a.Token(context.Background()))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestToken(t *testing.T) {
	lines := captureOutput(t)
	a, _ := newTestApp(t, &stubTransport{})

	signIn(t, a, "alice")
	assert.True(t, a.hasToken())
	assert.Contains(t, *lines, "Signed in as alice")
}

func TestToken_Rejected(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, &stubTransport{})

	tok, err := auth.GenerateToken("alice", []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	stubReadPassword(t, func(int) ([]byte, error) { return []byte(tok), nil })

	err = a.Token(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.False(t, a.hasToken())

	stubReadPassword(t, func(int) ([]byte, error) { return []byte("   "), nil })
	require.ErrorIs(t, a.Token(context.Background()), errEmptyToken)
}

func TestAdd(t *testing.T) {
	lines := captureOutput(t)
	a, _ := newTestApp(t, &stubTransport{})

	good := writeFile(t, "Dune.pdf", []byte("%PDF-1.7 body"))
	bad := writeFile(t, "fake.pdf", []byte("not a pdf"))
	txt := writeFile(t, "notes.txt", []byte("hello"))

	require.NoError(t, a.Add(context.Background(), []string{good, bad, txt, "/does/not/exist.pdf"}))

	items := a.store.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "Dune.pdf", items[0].Source.Name)
	assert.Equal(t, queue.StatusQueued, items[0].Status)

	var rejected int
	for _, l := range *lines {
		if strings.HasPrefix(l, "rejected ") {
			rejected++
		}
	}
	assert.Equal(t, 3, rejected)

	err := a.Add(context.Background(), []string{bad})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestAdd_Oversized(t *testing.T) {
	lines := captureOutput(t)
	c := testConfig()
	c.MaxFileSize = 4
	a := newApp(c, &stubTransport{}, logging.Nop(), &bytes.Buffer{})

	p := writeFile(t, "big.pdf", []byte("%PDF-1.7"))
	require.Error(t, a.Add(context.Background(), []string{p}))
	assert.Zero(t, a.store.Len())
	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "rejected")
}

func TestUpload(t *testing.T) {
	captureOutput(t)
	tr := &stubTransport{fail: map[string]error{"b.pdf": errors.New("access denied")}}
	a, out := newTestApp(t, tr)
	cat := &stubCatalog{}
	a.catalog = cat
	a.orchestrator = a.newOrchestrator(testConfig(), tr, cat)

	require.ErrorIs(t, a.Upload(context.Background()), errNoToken)

	signIn(t, a, "alice")
	a.store.Enqueue(
		queue.File{Name: "a.pdf", MediaType: common.MediaTypePDF, Content: []byte("%PDF-a")},
		queue.File{Name: "b.pdf", MediaType: common.MediaTypePDF, Content: []byte("%PDF-b")},
	)
	assert.Equal(t, " (2 queued)", a.getStatus())

	require.NoError(t, a.Upload(context.Background()))
	assert.Equal(t, []string{"alice/a.pdf", "alice/b.pdf"}, tr.calls)
	require.Len(t, cat.registered, 1)
	assert.Equal(t, "a.pdf", cat.registered[0].FileName)

	items := a.store.Snapshot()
	assert.Equal(t, queue.StatusCompleted, items[0].Status)
	assert.Equal(t, queue.StatusError, items[1].Status)
	assert.Contains(t, out.String(), "1 of 2 uploaded")

	lines := captureOutput(t)
	require.NoError(t, a.Upload(context.Background()))
	assert.Contains(t, *lines, "Nothing to upload")
}

func TestRetryAndRemove(t *testing.T) {
	captureOutput(t)
	tr := &stubTransport{fail: map[string]error{"a.pdf": errors.New("offline")}}
	a, _ := newTestApp(t, tr)
	signIn(t, a, "alice")

	items := a.store.Enqueue(queue.File{Name: "a.pdf", MediaType: common.MediaTypePDF, Content: []byte("%PDF-a")})
	require.NoError(t, a.Upload(context.Background()))

	failed := items[0].ID
	require.NoError(t, a.Retry(context.Background(), failed[:6]))
	snap := a.store.Snapshot()
	require.Len(t, snap, 1)
	assert.NotEqual(t, failed, snap[0].ID)
	assert.Equal(t, queue.StatusQueued, snap[0].Status)

	require.ErrorIs(t, a.Retry(context.Background(), snap[0].ID), common.ErrNotRetryable)
	require.ErrorIs(t, a.Remove(context.Background(), "zzzz"), common.ErrNotFound)
	require.NoError(t, a.Remove(context.Background(), snap[0].ID))
	assert.Zero(t, a.store.Len())
}

func TestResolveID_Ambiguous(t *testing.T) {
	a, _ := newTestApp(t, &stubTransport{})
	a.store.Enqueue(queue.File{Name: "a.pdf"}, queue.File{Name: "b.pdf"})

	_, err := a.resolveID("")
	require.ErrorIs(t, err, errAmbiguousID)
}

func TestListAndClear(t *testing.T) {
	lines := captureOutput(t)
	a, _ := newTestApp(t, &stubTransport{})

	require.NoError(t, a.List(context.Background()))
	assert.Contains(t, *lines, "Queue is empty")

	a.store.Enqueue(queue.File{Name: "Dune.pdf", MediaType: common.MediaTypePDF, Content: []byte("%PDF-")})
	require.NoError(t, a.List(context.Background()))
	table := (*lines)[len(*lines)-1]
	assert.Contains(t, table, "STATUS")
	assert.Contains(t, table, "Dune.pdf")
	assert.Contains(t, table, "queued")

	require.NoError(t, a.Clear(context.Background()))
	assert.Zero(t, a.store.Len())
}

func TestBooks(t *testing.T) {
	lines := captureOutput(t)
	a, _ := newTestApp(t, &stubTransport{})

	require.ErrorIs(t, a.Books(context.Background()), errNoCatalog)

	a.catalog = &stubCatalog{books: []models.Book{
		{OwnerID: "alice", Title: "Dune", Format: "pdf", SizeBytes: 42, CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{OwnerID: "bob", Title: "Emma", Format: "epub"},
	}}
	require.ErrorIs(t, a.Books(context.Background()), common.ErrUnauthorized)

	signIn(t, a, "alice")
	require.NoError(t, a.Books(context.Background()))
	table := (*lines)[len(*lines)-1]
	assert.Contains(t, table, "Dune")
	assert.Contains(t, table, "2024-05-01 10:00")
	assert.NotContains(t, table, "Emma")

	signIn(t, a, "carol")
	require.NoError(t, a.Books(context.Background()))
	assert.Equal(t, "No books yet", (*lines)[len(*lines)-1])
}

func TestNewApp_WithoutCatalog(t *testing.T) {
	old := openCatalog
	openCatalog = func(context.Context, string) (catalog, func() error, error) {
		return nil, nil, errors.New("connection refused")
	}
	t.Cleanup(func() { openCatalog = old })

	c := testConfig()
	a, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, a.catalog)
	assert.NotNil(t, a.orchestrator)
}

func TestNewApp_BadLogMode(t *testing.T) {
	c := testConfig()
	c.LogMode = "nope"
	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.Error(t, err)
}

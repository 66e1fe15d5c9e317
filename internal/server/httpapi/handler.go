// Package httpapi exposes the upload queue over HTTP. Every /api/v1 route
// requires a bearer token; each token owner gets a private queue.
package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/filex"
	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
	"github.com/dmitrijs2005/properbooky/internal/validator"
	"github.com/gorilla/mux"
)

const (
	filesField = "files"
	// maxFilesPerRequest bounds a multipart upload at this many maximum-size files.
	maxFilesPerRequest = 8
)

// BookLister reads the owner's catalog.
type BookLister interface {
	ListBooks(ctx context.Context, ownerID string) ([]models.Book, error)
}

type Handler struct {
	sessions  *Sessions
	validator *validator.Validator
	books     BookLister
	logger    logging.Logger
}

func NewHandler(sessions *Sessions, v *validator.Validator, books BookLister, logger logging.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		validator: v,
		books:     books,
		logger:    logger.With("module", "http_api"),
	}
}

// Router builds the route table. secret verifies bearer tokens.
func (h *Handler) Router(secret []byte) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware(secret, h.logger))

	api.HandleFunc("/queue", h.Enqueue).Methods(http.MethodPost)
	api.HandleFunc("/queue", h.ListQueue).Methods(http.MethodGet)
	api.HandleFunc("/queue", h.ClearQueue).Methods(http.MethodDelete)
	api.HandleFunc("/queue/process", h.Process).Methods(http.MethodPost)
	api.HandleFunc("/queue/{id}", h.RemoveItem).Methods(http.MethodDelete)
	api.HandleFunc("/queue/{id}/requeue", h.Requeue).Methods(http.MethodPost)
	api.HandleFunc("/notifications", h.Notifications).Methods(http.MethodGet)
	api.HandleFunc("/books", h.ListBooks).Methods(http.MethodGet)

	router.Use(recoverMiddleware(h.logger))
	router.Use(loggingMiddleware(h.logger))

	return router
}

type itemResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	MediaType string       `json:"media_type"`
	Size      int64        `json:"size"`
	Progress  int          `json:"progress"`
	Status    queue.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
}

func toItemResponse(it queue.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		Name:      it.Source.Name,
		MediaType: it.Source.MediaType,
		Size:      it.Source.Size(),
		Progress:  it.Progress,
		Status:    it.Status,
		Error:     it.Err,
	}
}

func toItemResponses(items []queue.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

type rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type enqueueResponse struct {
	Queued   []itemResponse `json:"queued"`
	Rejected []rejection    `json:"rejected"`
}

// session returns the caller's session. The auth middleware guarantees an
// owner in the context.
func (h *Handler) session(r *http.Request) (*Session, error) {
	ownerID, err := auth.ContextResolver{}.OwnerID(r.Context())
	if err != nil {
		return nil, err
	}
	return h.sessions.Get(ownerID), nil
}

// Enqueue validates every uploaded file. Valid files are queued, invalid
// ones are reported with their reasons.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFilesPerRequest*(h.validator.MaxSize()+1<<20))
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(ctx, h.logger, w, http.StatusBadRequest, "multipart/form-data body expected")
		return
	}

	var (
		accepted []queue.File
		rejected = []rejection{}
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(ctx, h.logger, w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(ctx, h.logger, w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		if part.FormName() != filesField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		f, verr, err := h.readPart(part)
		_ = part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(ctx, h.logger, w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(ctx, h.logger, w, http.StatusBadRequest, "cannot read uploaded file")
			return
		}
		if verr != nil {
			rejected = append(rejected, rejectionFor(f.Name, verr))
			continue
		}
		accepted = append(accepted, f)
	}

	if len(accepted) == 0 && len(rejected) == 0 {
		writeError(ctx, h.logger, w, http.StatusBadRequest, "no files in field \""+filesField+"\"")
		return
	}

	items := sess.Store.Enqueue(accepted...)
	status := http.StatusCreated
	if len(items) == 0 {
		status = http.StatusUnprocessableEntity
	}
	h.logger.Info(ctx, "files enqueued", "queued", len(items), "rejected", len(rejected))
	writeJSON(ctx, h.logger, w, status, enqueueResponse{Queued: toItemResponses(items), Rejected: rejected})
}

// readPart buffers one file part. Oversized parts are drained without
// buffering and reported through verr.
func (h *Handler) readPart(part *multipart.Part) (f queue.File, verr error, err error) {
	name := filepath.Base(part.FileName())
	f = queue.File{Name: name, MediaType: partMediaType(part.Header.Get("Content-Type"), name)}

	limit := h.validator.MaxSize()
	buf, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return f, nil, err
	}
	if int64(len(buf)) > limit {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return f, nil, err
		}
		return f, h.validator.CheckSize(name, int64(len(buf))+rest), nil
	}

	f.Content = buf
	return f, h.validator.Validate(f), nil
}

// partMediaType trusts a specific declared type and falls back to the file
// extension for a missing or generic one.
func partMediaType(contentType, name string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return filex.MediaTypeFor(name)
}

func rejectionFor(name string, err error) rejection {
	var fve *validator.FileValidationError
	if errors.As(err, &fve) {
		return rejection{Name: fve.Name, Reason: fve.Reason}
	}
	return rejection{Name: name, Reason: err.Error()}
}

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		respondErr(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(r.Context(), h.logger, w, http.StatusOK, toItemResponses(sess.Store.Snapshot()))
}

func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	if sess.Orchestrator.Running() {
		respondErr(ctx, h.logger, w, common.ErrDrainInProgress)
		return
	}
	if err := sess.Store.Clear(); err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := sess.Store.Remove(id); err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	_ = sess.Feed.Dismiss(ctx, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	id := mux.Vars(r)["id"]
	it, err := sess.Store.Requeue(id)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}
	_ = sess.Feed.Dismiss(ctx, id)
	writeJSON(ctx, h.logger, w, http.StatusCreated, toItemResponse(it))
}

type processResponse struct {
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Summary   string         `json:"summary"`
	Items     []itemResponse `json:"items"`
}

// Process drains the caller's queue and answers when every visited item is
// terminal. The drain outlives a disconnected client.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}

	res, err := sess.Orchestrator.Process(context.WithoutCancel(ctx))
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}

	writeJSON(ctx, h.logger, w, http.StatusOK, processResponse{
		Total:     res.Total,
		Completed: res.Completed,
		Failed:    res.Failed,
		Summary:   res.String(),
		Items:     toItemResponses(sess.Store.Snapshot()),
	})
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		respondErr(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(r.Context(), h.logger, w, http.StatusOK, sess.Feed.Entries())
}

type bookResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	FileURL   string    `json:"file_url"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := auth.ContextResolver{}.OwnerID(ctx)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}

	books, err := h.books.ListBooks(ctx, ownerID)
	if err != nil {
		respondErr(ctx, h.logger, w, err)
		return
	}

	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, bookResponse{
			ID:        b.ID,
			Title:     b.Title,
			Format:    b.Format,
			FileURL:   b.FileURL,
			SizeBytes: b.SizeBytes,
			CreatedAt: b.CreatedAt,
		})
	}
	writeJSON(ctx, h.logger, w, http.StatusOK, out)
}

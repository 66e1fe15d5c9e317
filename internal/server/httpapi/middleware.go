package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/gorilla/mux"
)

// authMiddleware requires a valid bearer token and stores its user id in the
// request context.
func authMiddleware(secret []byte, logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get(common.AuthorizationHeaderName)
			token, ok := strings.CutPrefix(header, common.BearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				writeError(ctx, logger, w, http.StatusUnauthorized, "missing token")
				return
			}

			userID, err := auth.GetUserIDFromToken(strings.TrimSpace(token), secret)
			if err != nil {
				text := "invalid token"
				if errors.Is(err, common.ErrTokenExpired) {
					text = "token expired"
				}
				logger.Debug(ctx, "token rejected", "error", err)
				writeError(ctx, logger, w, http.StatusUnauthorized, text)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(ctx, userID)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

func recoverMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error(r.Context(), "handler panic", "panic", fmt.Sprint(p), "path", r.URL.Path)
					writeError(r.Context(), logger, w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

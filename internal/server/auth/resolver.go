package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/properbooky/internal/common"
)

// OwnerResolver yields the user id uploads are attributed to. A failure
// wraps common.ErrUnauthorized.
type OwnerResolver interface {
	OwnerID(ctx context.Context) (string, error)
}

type ctxKey string

const userIDKey ctxKey = "userID"

// WithUserID stores an authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextResolver resolves the owner from the request context, as set by
// the HTTP auth middleware.
type ContextResolver struct{}

func (ContextResolver) OwnerID(ctx context.Context) (string, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("no user in context: %w", common.ErrUnauthorized)
	}
	return id, nil
}

// TokenResolver verifies a token held in memory, e.g. one pasted into the
// CLI. The token can be replaced at any time.
type TokenResolver struct {
	secret []byte

	mu    sync.RWMutex
	token string
}

func NewTokenResolver(secret []byte) *TokenResolver {
	return &TokenResolver{secret: secret}
}

// SetToken replaces the current token; "" logs out.
func (r *TokenResolver) SetToken(token string) {
	r.mu.Lock()
	r.token = token
	r.mu.Unlock()
}

func (r *TokenResolver) HasToken() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token != ""
}

func (r *TokenResolver) OwnerID(_ context.Context) (string, error) {
	r.mu.RLock()
	token := r.token
	r.mu.RUnlock()

	if token == "" {
		return "", fmt.Errorf("no access token: %w", common.ErrUnauthorized)
	}
	id, err := GetUserIDFromToken(token, r.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	return id, nil
}

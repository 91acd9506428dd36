package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrUnauthenticated indicates a missing, unknown or malformed session token.
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionStore resolves bearer tokens into principals. Sessions are written by
// the external auth service; this side only reads them.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore constructs a SessionStore. An empty prefix defaults to "session:".
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Resolve returns the principal stored for token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.client == nil {
		return Principal{}, errors.New("session store not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	payload, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("session: load: %w", err)
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return Principal{}, ErrUnauthenticated
	}
	if p.ID == 0 || !p.Role.IsValid() {
		return Principal{}, ErrUnauthenticated
	}
	if p.Role.BranchScoped() && p.BranchID == 0 {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

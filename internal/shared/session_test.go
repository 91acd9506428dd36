package shared

import (
	"context"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, ""), mr
}

func TestSessionStoreResolve(t *testing.T) {
	store, mr := newTestSessionStore(t)
	require.NoError(t, mr.Set("session:tok-branch", `{"id":7,"role":"branch_admin","branch_id":3}`))
	require.NoError(t, mr.Set("session:tok-kitchen", `{"id":2,"role":"kitchen_admin"}`))

	p, err := store.Resolve(context.Background(), "tok-branch")
	require.NoError(t, err)
	require.Equal(t, Principal{ID: 7, Role: RoleBranchAdmin, BranchID: 3}, p)

	p, err = store.Resolve(context.Background(), "tok-kitchen")
	require.NoError(t, err)
	require.Equal(t, RoleKitchenAdmin, p.Role)
}

func TestSessionStoreRejectsBadSessions(t *testing.T) {
	store, mr := newTestSessionStore(t)
	require.NoError(t, mr.Set("session:garbage", `{not json`))
	require.NoError(t, mr.Set("session:unknown-role", `{"id":1,"role":"baker"}`))
	require.NoError(t, mr.Set("session:no-branch", `{"id":1,"role":"branch_admin"}`))

	for _, token := range []string{"", "missing", "garbage", "unknown-role", "no-branch"} {
		_, err := store.Resolve(context.Background(), token)
		require.ErrorIs(t, err, ErrUnauthenticated, token)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	require.Equal(t, "abc123", BearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	require.Empty(t, BearerToken(req))
}

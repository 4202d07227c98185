package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avvvet/rookies-services/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	a := New("test-secret", store.NewMemoryStore(), time.Hour)

	token, session, err := a.Issue(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := a.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, int64(7), got.UserID)
}

func TestResolveRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore()
	other := New("other-secret", sessions, time.Hour)
	a := New("test-secret", sessions, time.Hour)

	token, _, err := other.Issue(ctx, 1)
	require.NoError(t, err)

	_, err = a.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Resolve(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	a := New("test-secret", store.NewMemoryStore(), time.Hour)

	token, _, err := a.Issue(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, a.Revoke(ctx, token))

	_, err = a.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, a.Revoke(ctx, "garbage"))
}

func TestExpiredSession(t *testing.T) {
	ctx := context.Background()
	a := New("test-secret", store.NewMemoryStore(), time.Hour)

	token, _, err := a.Issue(ctx, 3)
	require.NoError(t, err)

	// session row outlives the check clock
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.Resolve(ctx, token)
	assert.Error(t, err)
}

func TestFromRequestSources(t *testing.T) {
	ctx := context.Background()
	a := New("test-secret", store.NewMemoryStore(), time.Hour)
	token, _, err := a.Issue(ctx, 9)
	require.NoError(t, err)

	cookie := httptest.NewRequest(http.MethodGet, "/", nil)
	cookie.AddCookie(a.Cookie(token, time.Now().Add(time.Hour), false))

	header := httptest.NewRequest(http.MethodGet, "/", nil)
	header.Header.Set("Authorization", "Bearer "+token)

	query := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)

	for name, r := range map[string]*http.Request{"cookie": cookie, "header": header, "query": query} {
		s, err := a.FromRequest(r)
		require.NoError(t, err, name)
		assert.Equal(t, int64(9), s.UserID, name)
	}

	_, err = a.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	ok, err := CheckPassword(hash, "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenBoundToSession(t *testing.T) {
	sm, _ := newManager(t)
	m := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	a, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	b, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := m.EnsureToken(ctx, a)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(ctx, a, token))
	assert.ErrorIs(t, m.VerifyToken(ctx, b, token), ErrCSRFTokenMismatch)
	assert.Error(t, m.VerifyToken(ctx, a, ""))
}

func TestCSRFRotate(t *testing.T) {
	sm, _ := newManager(t)
	m := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	m.Rotate(sess)
	assert.Error(t, m.VerifyToken(ctx, sess, token))

	fresh, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestCSRFRenewedSessionReissues(t *testing.T) {
	sm, _ := newManager(t)
	m := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	sess.Renew()
	fresh, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestCSRFWithoutSession(t *testing.T) {
	_, err := NewCSRFManager("x").EnsureToken(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCSRFTokenMissing)
}

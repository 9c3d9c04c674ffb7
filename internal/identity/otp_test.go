package identity

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

func TestOTPIssueAndVerify(t *testing.T) {
	mr, client := newRedis(t)
	store := NewOTPStore(client, "secret")
	ctx := context.Background()

	code, err := store.Issue(ctx, "acct-1")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
	assert.Equal(t, OTPTTL, mr.TTL("otp:reset:acct-1"))
	assert.NotContains(t, mr.HGet("otp:reset:acct-1", "digest"), code, "code must not be stored in clear")

	ok, err := store.Verify(ctx, "acct-2", code)
	require.NoError(t, err)
	assert.False(t, ok, "codes are bound to the account")

	ok, err = store.Verify(ctx, "acct-1", code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("otp:reset:acct-1"))
}

func TestOTPDroppedAfterMaxAttempts(t *testing.T) {
	mr, client := newRedis(t)
	store := NewOTPStore(client, "secret")
	ctx := context.Background()

	code, err := store.Issue(ctx, "acct-1")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	for i := 0; i < OTPMaxAttempts; i++ {
		ok, err := store.Verify(ctx, "acct-1", wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.False(t, mr.Exists("otp:reset:acct-1"))

	ok, err := store.Verify(ctx, "acct-1", code)
	require.NoError(t, err)
	assert.False(t, ok, "the right code is useless once the attempts are spent")
}

func TestOTPReissueReplacesCode(t *testing.T) {
	_, client := newRedis(t)
	store := NewOTPStore(client, "secret")
	ctx := context.Background()

	first, err := store.Issue(ctx, "acct-1")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "acct-1")
	require.NoError(t, err)
	if first == second {
		t.Skip("identical codes drawn twice")
	}
	ok, err := store.Verify(ctx, "acct-1", first)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Verify(ctx, "acct-1", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPRedisDownIsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewOTPStore(client, "secret")

	_, err := store.Issue(context.Background(), "acct-1")
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_Context(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Anonymous, FromContext(ctx))
	assert.False(t, FromContext(ctx).IsAuthenticated())

	ctx = WithIdentity(ctx, Identity{UserID: "alice"})
	got := ContextProvider{}.Current(ctx)
	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, "alice", got.UserID)
}

func TestStatic(t *testing.T) {
	p := Static{UserID: "bob"}
	assert.Equal(t, Identity{UserID: "bob"}, p.Current(context.Background()))
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier([]byte("secret"))

	tok, err := v.Issue("alice", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier([]byte("secret"))

	_, err := v.Issue("", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenVerifier([]byte("other"))
	tok, err := other.Issue("alice", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenVerifier([]byte("secret"))
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err = expired.Issue("alice", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

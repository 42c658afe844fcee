package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(keyring.NewArrayKeyring(nil))
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"abc123", "abc123"},
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"  Bearer   abc123  ", "abc123"},
		{"Bearerabc", "Bearerabc"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeToken(tt.raw), "raw=%q", tt.raw)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("auth-token")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("auth-token", "secret"))
	got, err := s.Get("auth-token")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, s.Delete("auth-token"))
	require.NoError(t, s.Delete("auth-token"))

	_, err = s.Get("auth-token")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokenSourceReadsOnEveryCall(t *testing.T) {
	s := newTestStore(t)
	ts := NewTokenSource(s, "auth-token")

	_, err := ts.Token()
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("auth-token", "Bearer first"))
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())

	require.NoError(t, s.Set("auth-token", "second"))
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", tok.AccessToken)
}

func TestTokenSourceRejectsBlankToken(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("auth-token", "Bearer "))

	_, err := NewTokenSource(s, "auth-token").Token()
	require.ErrorIs(t, err, ErrNotFound)
}

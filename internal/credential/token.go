package credential

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// NormalizeToken strips a stored "Bearer " prefix so the header is never
// sent as "Bearer Bearer <token>".
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// TokenSource reads the bearer token from the keyring on every call.
// It must not be wrapped in oauth2.ReuseTokenSource: a token replaced by
// `shipdesk login` takes effect on the next request.
type TokenSource struct {
	store *Store
	key   string
}

// NewTokenSource returns a TokenSource reading key from store.
func NewTokenSource(store *Store, key string) *TokenSource {
	return &TokenSource{store: store, key: key}
}

// Token implements oauth2.TokenSource.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	raw, err := ts.store.Get(ts.key)
	if err != nil {
		return nil, err
	}

	token := NormalizeToken(raw)
	if token == "" {
		return nil, fmt.Errorf("credential %q is empty: %w", ts.key, ErrNotFound)
	}

	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

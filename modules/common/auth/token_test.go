package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue("user-1")
	require.NoError(t, err)

	userID, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParseRejectsBadTokens(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	expired, err := m.IssueAt("user-1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	foreign, err := NewTokenManager("other-secret", time.Hour).Issue("user-1")
	require.NoError(t, err)

	_, err = m.Parse("")
	assert.ErrorIs(t, err, ErrMissingToken)

	for name, token := range map[string]string{
		"expired": expired,
		"foreign": foreign,
		"garbage": "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Issue("user-42")
	require.NoError(t, err)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/wardrobe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wardrobe", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT("s3cret")
	tok, err := j.Sign(42, RoleAdmin)
	require.NoError(t, err)

	c, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: 42, Role: RoleAdmin}, c)

	_, err = NewJWT("other").Verify(tok)
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("s3cret")
	j.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	tok, err := j.Sign(1, RoleMember)
	require.NoError(t, err)

	_, err = NewJWT("s3cret").Verify(tok)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "correct horse"))
	assert.False(t, ComparePassword(hash, "wrong"))
}

func TestMiddleware(t *testing.T) {
	j := NewJWT("s3cret")
	member, err := j.Sign(7, RoleMember)
	require.NoError(t, err)
	admin, err := j.Sign(1, RoleAdmin)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		if uid == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	do := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	requireAuth := RequireAuth(j)(ok)
	assert.Equal(t, http.StatusUnauthorized, do(requireAuth, ""))
	assert.Equal(t, http.StatusUnauthorized, do(requireAuth, "garbage"))
	assert.Equal(t, http.StatusOK, do(requireAuth, member))

	optional := OptionalAuth(j)(ok)
	assert.Equal(t, http.StatusNoContent, do(optional, ""))
	assert.Equal(t, http.StatusOK, do(optional, member))
	assert.Equal(t, http.StatusUnauthorized, do(optional, "garbage"))

	adminOnly := RequireAuth(j)(RequireAdmin(ok))
	assert.Equal(t, http.StatusForbidden, do(adminOnly, member))
	assert.Equal(t, http.StatusOK, do(adminOnly, admin))
}

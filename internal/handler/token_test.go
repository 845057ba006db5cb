package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
)

func TestIssueAndParseToken(t *testing.T) {
	h := newTestHandler(t)
	h.config.JWT.Expiration = 3600

	token, expiresAt, err := h.issueToken(42, string(domain.RoleOperator))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := h.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, string(domain.RoleOperator), claims.Role)

	h.config.JWT.Secret = "rotated"
	_, err = h.parseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsUnsignedToken(t *testing.T) {
	h := newTestHandler(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AuthClaims{
		Role: string(domain.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Subject:   "1",
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = h.parseToken(unsigned)
	assert.Error(t, err)

	_, resp := doRequest(t, h, http.MethodGet, "/algorithms", unsigned, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestLogoutExpiresCookie(t *testing.T) {
	h := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/auth/logout", "", nil)
	require.True(t, resp.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}

func TestSetTokenCookieInProduction(t *testing.T) {
	h := newTestHandler(t)
	h.config.Environment = "production"

	rec := httptest.NewRecorder()
	h.setTokenCookie(rec, "value", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, err := rec.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, 2, rec.bytes)
}

func TestHashPassword(t *testing.T) {
	hashed, err := hashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("secret")))
	assert.ErrorIs(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("other")), bcrypt.ErrMismatchedHashAndPassword)
}

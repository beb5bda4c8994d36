package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenService() *TokenService {
	return NewTokenService(config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "storefront-test",
		TokenTTL:  time.Hour,
	})
}

func TestIssueAndVerify(t *testing.T) {
	svc := testTokenService()

	token, err := svc.Issue(42, models.RoleDeliveryAgent)
	require.NoError(t, err)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.UserID)
	assert.Equal(t, models.RoleDeliveryAgent, id.Role)
	assert.True(t, id.IsDeliveryAgent())
	assert.False(t, id.IsStaff())
}

func TestVerifyRejects(t *testing.T) {
	svc := testTokenService()

	sign := func(claims *Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "storefront-test",
				Subject:   "7",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: "customer",
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"garbage", func() string { return "not-a-token" }, ErrInvalidToken},
		{"wrong secret", func() string { return sign(valid(), "other") }, ErrInvalidToken},
		{"wrong issuer", func() string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(c, "test-secret")
		}, ErrInvalidToken},
		{"expired", func() string {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return sign(c, "test-secret")
		}, ErrExpiredToken},
		{"unknown role", func() string {
			c := valid()
			c.Role = "admin"
			return sign(c, "test-secret")
		}, ErrInvalidToken},
		{"non numeric subject", func() string {
			c := valid()
			c.Subject = "alice"
			return sign(c, "test-secret")
		}, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, database.ErrAuthenticationRequired)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	assert.False(t, FromContext(context.Background()).IsAuthenticated())

	ctx := WithIdentity(context.Background(), Identity{UserID: 3, Role: models.RoleStaff})
	id := FromContext(ctx)
	assert.True(t, id.IsStaff())
	assert.Equal(t, int64(3), id.CartOwner().UserID)

	anon := Identity{SessionKey: "abc"}
	assert.Equal(t, "abc", anon.CartOwner().SessionKey)
	assert.False(t, anon.IsStaff())
}

func testSessionStore() *SessionStore {
	return NewSessionStore(config.SessionConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		CookieName: "sf_test",
		MaxAge:     time.Hour,
	})
}

func carryCookies(from *httptest.ResponseRecorder, to *http.Request) {
	for _, c := range from.Result().Cookies() {
		to.AddCookie(c)
	}
}

func TestSessionKeyIsStableAcrossRequests(t *testing.T) {
	store := testSessionStore()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	key, err := store.SessionKey(w1, r1)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	carryCookies(w1, r2)
	again, err := store.SessionKey(httptest.NewRecorder(), r2)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestSessionTamperedCookieGetsNewKey(t *testing.T) {
	store := testSessionStore()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sf_test", Value: "forged"})

	key, err := store.SessionKey(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestFlashesAreReadOnce(t *testing.T) {
	store := testSessionStore()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, store.AddFlash(w1, r1, "Added to cart"))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	carryCookies(w1, r2)
	w2 := httptest.NewRecorder()
	messages, err := store.Flashes(w2, r2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Added to cart"}, messages)

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	carryCookies(w2, r3)
	messages, err = store.Flashes(httptest.NewRecorder(), r3)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

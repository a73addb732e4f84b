package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	db := &database.MockCoordRepository{}
	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	var gotUserId int
	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserId, _ = UserId(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, 7))
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected the request through")
	assert.Equal(t, 7, gotUserId, "expected the identity from the token claims")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store", "expected no-store on authenticated responses")
}

func TestAuthMiddlewareRejects(t *testing.T) {
	wrongKeyToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user-id": 7,
	}).SignedString([]byte("the-wrong-key-entirely-0000000000"))
	require.NoError(t, err)

	testCases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{
			name:  "missing credential",
			setup: func(r *http.Request) {},
		},
		{
			name: "not a bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
		},
		{
			name: "wrong signing key",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+wrongKeyToken)
			},
		},
		{
			name: "garbage token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not.a.token")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCoordRepository{}
			su := &stats.MockStatsUpdater{}
			app := newTestCoordApp(t, db, su)

			handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run without a valid credential")
			})

			req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected unauthorized")
		})
	}
}

func TestAuthMiddlewareQueryTokenFallback(t *testing.T) {
	db := &database.MockCoordRepository{}
	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// the websocket endpoint carries its credential in the query string
	req := httptest.NewRequest(http.MethodGet, "/api/ws?token="+testToken(t, 7), nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected the query token accepted")
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))

	req = httptest.NewRequest(http.MethodGet, "/api/pool", nil)
	req.Header.Set("Authorization", "abc123")
	assert.Empty(t, bearerToken(req), "expected nothing for a non-bearer header")

	req = httptest.NewRequest(http.MethodGet, "/api/ws?token=abc123", nil)
	assert.Equal(t, "abc123", bearerToken(req), "expected the query fallback")
}

func TestUserIdContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)

	_, ok := UserId(req.Context())
	assert.False(t, ok, "expected no identity on a bare context")

	ctx := WithUserId(req.Context(), 7)
	userId, ok := UserId(ctx)
	assert.True(t, ok, "expected an identity")
	assert.Equal(t, 7, userId)
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	db := &database.MockCoordRepository{}
	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code, "expected the panic converted to a 500")
	assert.Equal(t, "close", rec.Header().Get("Connection"), "expected the connection closed")
}

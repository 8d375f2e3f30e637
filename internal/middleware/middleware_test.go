package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/config"
	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/utils"
)

const secret = "test-secret"

func bearerFor(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	a, ok := ActorFrom(c)
	if !ok {
		return c.String(http.StatusOK, "anon")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": a.UserID, "role": a.Role})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "Basic dTpw").Code)

	rec := serve(e, http.MethodGet, "/me", bearerFor(t, 7, model.RoleUser))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"user"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/who", whoami, OptionalJWT(secret))

	rec := serve(e, http.MethodGet, "/who", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/who", "Bearer broken").Code)

	rec = serve(e, http.MethodGet, "/who", bearerFor(t, 3, model.RoleAdmin))
	assert.JSONEq(t, `{"id":3,"role":"admin"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/owner", whoami, JWTAuth(secret), RequireRole(model.RoleFacilityOwner, model.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/owner", bearerFor(t, 1, model.RoleUser)).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/owner", bearerFor(t, 1, model.RoleFacilityOwner)).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/owner", bearerFor(t, 1, model.RoleAdmin)).Code)

	bare := echo.New()
	bare.GET("/owner", whoami, RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(bare, http.MethodGet, "/owner", "").Code)
}

func limitConfig(capacity int) config.RateLimitConfig {
	c := config.RateLimitConfig{
		Enabled: true, Capacity: capacity, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	return c
}

func TestTokenBucket_Local(t *testing.T) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(limitConfig(2), nil, zap.NewNop()))

	first := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)

	blocked := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "too_many_requests")
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	e := echo.New()
	cfg := limitConfig(1)
	cfg.KeyStrategy = "user"
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		JWTAuth(secret), NewTokenBucket(cfg, nil, zap.NewNop()))

	alice, bob := bearerFor(t, 1, model.RoleUser), bearerFor(t, 2, model.RoleUser)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", bob).Code)
}

func TestTokenBucket_FailsOpenWhenRedisErrors(t *testing.T) {
	db, _ := redismock.NewClientMock()
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(limitConfig(1), db, zap.NewNop()))

	for range 3 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := limitConfig(1)
	cfg.Enabled = false
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(cfg, nil, zap.NewNop()))
	for range 3 {
		rec := serve(e, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/venues/1", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/venues/:id")

	cfg := limitConfig(1)
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:GET /v1/venues/:id", buildRateKey(cfg, c))

	c.Set(ctxUserID, uint64(9))
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:9:route:GET /v1/venues/:id", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.EqualValues(t, 3, asInt64(int64(3)))
	assert.EqualValues(t, 4, asInt64(4))
	assert.EqualValues(t, 5, asInt64(5.9))
	assert.EqualValues(t, 6, asInt64("6"))
	assert.EqualValues(t, 0, asInt64([]byte("x")))
}

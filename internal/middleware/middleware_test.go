package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-cession/internal/config"
	"github.com/iliyamo/parking-cession/internal/handler"
	"github.com/iliyamo/parking-cession/internal/logging"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/utils"
)

const secret = "middleware-test-secret"

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler(logging.Discard())
	return e
}

// whoami answers with the identity JWTAuth stored.
func whoami(c echo.Context) error {
	id, _ := c.Get(handler.IdentityKey).(model.Identity)
	return c.JSON(http.StatusOK, id)
}

func get(e *echo.Echo, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, userID uint64, role model.Role) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, userID, role, 15)
	require.NoError(t, err)
	return at.Token
}

func TestJWTAuth(t *testing.T) {
	e := newEcho()
	e.GET("/me", whoami, JWTAuth(secret))

	t.Run("missing header", func(t *testing.T) {
		rec := get(e, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error_kind":"unauthorized"`)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := get(e, "/me", "not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		at, err := utils.NewAccessToken("other-secret", 1, model.RoleEmployee, 15)
		require.NoError(t, err)
		rec := get(e, "/me", at.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid", func(t *testing.T) {
		rec := get(e, "/me", token(t, 42, model.RoleManagement))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":42,"role":"management"}`, rec.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	e := newEcho()
	e.GET("/cessions", whoami, JWTAuth(secret), RequireRole(model.RoleManagement, model.RoleAdmin))
	e.GET("/open", whoami, RequireRole(model.RoleEmployee))

	assert.Equal(t, http.StatusForbidden, get(e, "/cessions", token(t, 1, model.RoleEmployee)).Code)
	assert.Equal(t, http.StatusOK, get(e, "/cessions", token(t, 2, model.RoleManagement)).Code)
	assert.Equal(t, http.StatusOK, get(e, "/cessions", token(t, 3, model.RoleAdmin)).Code)
	// no identity at all
	assert.Equal(t, http.StatusUnauthorized, get(e, "/open", "").Code)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            5 * time.Second,
		KeyStrategy:    "user_route",
		Prefix:         "rl",
	}
}

func pong(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestTokenBucketDisabled(t *testing.T) {
	cfg := rateCfg()
	cfg.Enabled = false
	e := newEcho()
	e.GET("/x", pong, NewTokenBucket(cfg, nil, logging.Discard()))

	rec := get(e, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestTokenBucketNilClient(t *testing.T) {
	e := newEcho()
	e.GET("/x", pong, NewTokenBucket(rateCfg(), nil, logging.Discard()))

	assert.Equal(t, http.StatusOK, get(e, "/x", "").Code)
}

func TestTokenBucketRedisErrorFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectEvalSha(limiterScript.Hash(), []string{"any"}).
		SetErr(errors.New("redis down"))

	e := newEcho()
	e.GET("/x", pong, NewTokenBucket(rateCfg(), db, logging.Discard()))

	assert.Equal(t, http.StatusOK, get(e, "/x", "").Code)
}

func TestTokenBucketBlocks(t *testing.T) {
	db, mock := redismock.NewClientMock()
	key := "rl:user:ip-192.0.2.1:route:GET /x"
	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectEvalSha(limiterScript.Hash(), []string{key}).
		SetVal([]interface{}{int64(0), int64(0), int64(1500)})

	e := newEcho()
	e.GET("/x", pong, NewTokenBucket(rateCfg(), db, logging.Discard()))

	rec := get(e, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"error_kind":"rate_limited"`)
}

func TestTokenBucketAllows(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectEvalSha(limiterScript.Hash(), []string{"rl:user:ip-192.0.2.1:route:GET /x"}).
		SetVal([]interface{}{int64(1), int64(1), int64(0)})

	e := newEcho()
	e.GET("/x", pong, NewTokenBucket(rateCfg(), db, logging.Discard()))

	rec := get(e, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	newCtx := func(uid uint64) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/reservations")
		if uid != 0 {
			c.Set("user_id", uid)
		}
		return c
	}

	cfg := rateCfg()
	cases := map[string]struct {
		uid  uint64
		want string
	}{
		"ip":         {7, "rl:ip:198.51.100.7"},
		"user":       {7, "rl:user:7"},
		"ip_route":   {7, "rl:ip:198.51.100.7:route:POST /v1/reservations"},
		"user_route": {7, "rl:user:7:route:POST /v1/reservations"},
		"":           {0, "rl:user:ip-198.51.100.7:route:POST /v1/reservations"},
	}
	for strategy, tc := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, tc.want, buildRateKey(cfg, newCtx(tc.uid)), strategy)
	}
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(3), asInt64(float64(3)))
	assert.Equal(t, int64(3), asInt64("3"))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := newEcho()
	e.Use(RequestLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	e.GET("/me", whoami, JWTAuth(secret))

	rec := get(e, "/me", token(t, 5, model.RoleEmployee))
	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "/me", line["path"])
	assert.EqualValues(t, 200, line["status"])
	assert.EqualValues(t, 5, line["user_id"])

	buf.Reset()
	rec = get(e, "/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 401, line["status"])
}

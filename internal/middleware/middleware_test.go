package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/middleware"
	"github.com/SscSPs/sledge/internal/platform/logging"
	"github.com/SscSPs/sledge/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-that-is-long-enough"

func newRouter(logger *slog.Logger, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger))
	r.Use(extra...)
	r.GET("/whoami", func(c *gin.Context) {
		user, ok := middleware.GetUserIDFromContext(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		middleware.GetLoggerFromCtx(c.Request.Context()).Info("handled")
		c.String(http.StatusOK, string(user))
	})
	return r
}

func get(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(logging.New(&buf, slog.LevelInfo))

	w := get(r, map[string]string{middleware.RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Request completed", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.EqualValues(t, http.StatusOK, entry["status"])

	w = get(r, nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), "an identifier is assigned")
}

func TestAuthMiddleware(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(logging.New(&buf, slog.LevelInfo), middleware.AuthMiddleware(secret, "sledge"))

	token, err := utils.GenerateJWT("alice", secret, time.Hour, "sledge")
	require.NoError(t, err)
	noSubject, err := utils.GenerateJWT("", secret, time.Hour, "sledge")
	require.NoError(t, err)
	expired, err := utils.GenerateJWT("alice", secret, -time.Hour, "sledge")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid", header: "Bearer " + token, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "scheme is case insensitive", header: "bearer " + token, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic " + token, wantCode: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", wantCode: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantCode: http.StatusUnauthorized, wantBody: "Token has expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.header != "" {
				header["Authorization"] = tt.header
			}
			w := get(r, header)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
	assert.Contains(t, buf.String(), `"user_id":"alice"`, "the request logger carries the user")
}

func TestRateLimit(t *testing.T) {
	_, err := middleware.NewLimiter("lots")
	assert.Error(t, err)

	limiter, err := middleware.NewLimiter("2-M")
	require.NoError(t, err)
	r := newRouter(slog.New(slog.DiscardHandler), middleware.RateLimit(limiter))

	for i := 0; i < 2; i++ {
		w := get(r, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := get(r, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestCORS(t *testing.T) {
	r := newRouter(slog.New(slog.DiscardHandler), middleware.CORS([]string{"https://books.example.com"}))

	w := get(r, map[string]string{"Origin": "https://books.example.com"})
	assert.Equal(t, "https://books.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	open := newRouter(slog.New(slog.DiscardHandler), middleware.CORS(nil))
	assert.Equal(t, http.StatusOK, get(open, map[string]string{"Origin": "https://any.example.com"}).Code)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/account"
	"github.com/BaSui01/sunyadvisor/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders()(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		trace, _ := types.TraceID(r.Context())
		assert.Equal(t, seen, trace)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-from-client")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "req-from-client", seen)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), decodeError(t, w).Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://advisor.suny.edu"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/v1/chat/turn", nil)
	r.Header.Set("Origin", "https://advisor.suny.edu")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://advisor.suny.edu", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/v1/chat/turn", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// same-origin requests pass untouched
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different user has its own bucket
	r := asUser(httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	r.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

type recordedRequest struct {
	method, path string
	status       int
	size         int64
}

type fakeRecorder struct{ got []recordedRequest }

func (f *fakeRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration, _, responseSize int64) {
	f.got = append(f.got, recordedRequest{method, path, status, responseSize})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	h := MetricsMiddleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/3f2a9c1e-1b2c-4d5e-8f90-1234567890ab/chats/42", nil))
	require.Len(t, rec.got, 1)
	assert.Equal(t, recordedRequest{http.MethodGet, "/v1/sessions/:id/chats/:id", http.StatusTeapot, 15}, rec.got[0])
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/v1/chat/turn", normalizePath("/v1/chat/turn"))
	assert.Equal(t, "/v1/chat/:id", normalizePath("/v1/chat/17"))
	assert.Equal(t, "/", normalizePath("/"))
}

type fakeVerifier map[string]string

func (f fakeVerifier) ParseToken(token string) (*account.Claims, error) {
	sub, ok := f[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &account.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}, nil
}

func TestBearerAuth(t *testing.T) {
	var user string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = types.UserID(r.Context())
	})
	h := BearerAuth(fakeVerifier{"good": "u1"}, []string{"/health"}, true, zap.NewNop())(inner)

	tests := []struct {
		name   string
		target string
		header string
		status int
		user   string
	}{
		{"header token", "/v1/chat/turn", "Bearer good", http.StatusOK, "u1"},
		{"query token", "/v1/chat/ws?access_token=good", "", http.StatusOK, "u1"},
		{"skipped path", "/health", "", http.StatusOK, ""},
		{"missing", "/v1/chat/turn", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/v1/chat/turn", "Basic good", http.StatusUnauthorized, ""},
		{"invalid", "/v1/chat/turn", "Bearer bad", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user = ""
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.user, user)
		})
	}

	t.Run("query token disabled", func(t *testing.T) {
		strict := BearerAuth(fakeVerifier{"good": "u1"}, nil, false, zap.NewNop())(inner)
		w := httptest.NewRecorder()
		strict.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chat/ws?access_token=good", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Chain(okHandler, RequestID(), RequestLogger(zap.New(core)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, asUser(httptest.NewRequest(http.MethodGet, "/v1/profile", nil), "u1"))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/v1/profile", fields["path"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), fields["request_id"])
}

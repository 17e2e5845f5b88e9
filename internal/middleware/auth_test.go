package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"dm-service/internal/observability"
)

type stubValidator map[string]int

func (s stubValidator) ValidateToken(_ context.Context, token string) (int, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("invalid token")
}

func newRouter(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), AuthMiddleware(validator))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetInt(UserIDKey),
			"request_id": observability.RequestIDFromContext(c.Request.Context()),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(stubValidator{"good": 7})

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "missing", target: "/me", status: http.StatusUnauthorized},
		{name: "malformed", target: "/me", header: "Token good", status: http.StatusUnauthorized},
		{name: "invalid", target: "/me", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "bearer", target: "/me", header: "Bearer good", status: http.StatusOK},
		{name: "query token", target: "/me?token=good", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":7`)
			}
		})
	}
}

func TestRequestIDReusesHeader(t *testing.T) {
	r := newRouter(stubValidator{"good": 1})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"request_id":"abc-123"`)
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	r := newRouter(stubValidator{"good": 1})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

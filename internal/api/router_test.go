package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/vca/internal/api/handlers"
)

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newEngine("s3cret", routes{
		system:    handlers.NewSystemHandler(nil),
		runs:      handlers.NewRunHandler(nil, nil, nil),
		emotions:  handlers.NewEmotionHandler(nil),
		equations: handlers.NewEquationHandler(nil),
		ws:        func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) },
	})
}

func TestRouterAuth(t *testing.T) {
	r := testEngine()

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"healthz is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readyz is public", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"runs need a key", http.MethodGet, "/v1/runs", "", http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/v1/equations/solve", "nope", http.StatusForbidden},
		{"solve without database", http.MethodPost, "/v1/equations/solve", "s3cret", http.StatusOK},
		{"list without database", http.MethodGet, "/v1/equations", "s3cret", http.StatusServiceUnavailable},
		{"unknown route", http.MethodGet, "/v2/runs", "s3cret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

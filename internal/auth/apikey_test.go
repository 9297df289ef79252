package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(key))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		headers map[string]string
		query   string
		want    int
	}{
		{"disabled", "", nil, "", http.StatusNoContent},
		{"missing", "s3cret", nil, "", http.StatusUnauthorized},
		{"header", "s3cret", map[string]string{"X-API-Key": "s3cret"}, "", http.StatusNoContent},
		{"bearer", "s3cret", map[string]string{"Authorization": "Bearer s3cret"}, "", http.StatusNoContent},
		{"wrong", "s3cret", map[string]string{"X-API-Key": "nope"}, "", http.StatusForbidden},
		{"query ignored without upgrade", "s3cret", nil, "?api_key=s3cret", http.StatusUnauthorized},
		{"query on websocket upgrade", "s3cret", map[string]string{"Upgrade": "websocket"}, "?api_key=s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			newEngine(tt.key).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCompressionRouter(cfg *CompressionConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CompressionMiddleware(cfg))
	body := strings.Repeat(`{"roomId":"u1","unread":3}`, 100)
	r.GET("/api/data", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, body) })
	return r
}

func TestDefaultCompressionConfig(t *testing.T) {
	cfg := DefaultCompressionConfig()
	assert.Equal(t, 6, cfg.Level)
	assert.Contains(t, cfg.ExcludePaths, "/ws")
}

func TestCompressionMiddleware_Gzips(t *testing.T) {
	r := setupCompressionRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), `{"roomId":"u1"`))
}

func TestCompressionMiddleware_ExcludedPathAndNoAcceptEncoding(t *testing.T) {
	r := setupCompressionRouter(&CompressionConfig{Level: 99, ExcludePaths: []string{"/metrics"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

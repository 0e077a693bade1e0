package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handlers ...gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestSuccessAndFail(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Success(c, "ok", gin.H{"unread": 2}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, "ok", body["msg"])
	assert.Equal(t, map[string]any{"unread": float64(2)}, body["data"])

	w, body = serve(t, func(c *gin.Context) { Fail(c, "store unavailable", nil) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500), body["code"])
	assert.NotContains(t, body, "data")
}

func TestResult(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Result(c, http.StatusServiceUnavailable, 503, "down", gin.H{"connected": false}) })
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "down", body["msg"])
}

func TestAbortHelpersStopChain(t *testing.T) {
	after := func(c *gin.Context) { c.Header("X-After", "1") }

	w, _ := serve(t, func(c *gin.Context) { AbortWithStatus(c, http.StatusTeapot) }, after)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("X-After"))
	assert.Zero(t, w.Body.Len())

	w, body := serve(t, func(c *gin.Context) { AbortWithStatusJSON(c, http.StatusForbidden, errors.New("forbidden access")) }, after)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"error": "forbidden access"}, body)
	assert.Empty(t, w.Header().Get("X-After"))
}

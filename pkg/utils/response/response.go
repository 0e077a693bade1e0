package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope for JSON API responses.
type Body struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Result writes an envelope with an explicit HTTP status and business code.
func Result(c *gin.Context, status, code int, msg string, data any) {
	c.JSON(status, Body{Code: code, Msg: msg, Data: data})
}

// Success writes a 200 envelope with code 200.
func Success(c *gin.Context, msg string, data any) {
	Result(c, http.StatusOK, http.StatusOK, msg, data)
}

// Fail writes a 200 envelope with code 500.
func Fail(c *gin.Context, msg string, data any) {
	Result(c, http.StatusOK, http.StatusInternalServerError, msg, data)
}

// AbortWithStatus stops the handler chain with an empty response.
func AbortWithStatus(c *gin.Context, status int) {
	c.AbortWithStatus(status)
}

// AbortWithStatusJSON stops the handler chain with {"error": err.Error()}.
func AbortWithStatusJSON(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

package utils

import (
	"fmt"
	"net/http"
)

// Error is an error that carries the HTTP status it should be reported with.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) StatusCode() int {
	return e.Code
}

func (e Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

var ErrNotUpgrade = &Error{Code: http.StatusBadRequest, Message: "expected websocket upgrade"}

var ErrMissingCredential = &Error{Code: http.StatusUnauthorized, Message: "missing token"}

var ErrInvalidCredential = &Error{Code: http.StatusUnauthorized, Message: "invalid token"}

var ErrForbidden = &Error{Code: http.StatusForbidden, Message: "forbidden access"}

// Package apierr maps typed failures to HTTP responses.
package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/internal/apperr"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrResponse struct {
	Error APIError `json:"error"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindPermissionDenied:       http.StatusForbidden,
	apperr.KindCapacityExceeded:       http.StatusConflict,
	apperr.KindInvalidStateTransition: http.StatusConflict,
	apperr.KindInsufficientScore:      http.StatusUnprocessableEntity,
	apperr.KindInvalidInput:           http.StatusBadRequest,
	apperr.KindConflict:               http.StatusConflict,
}

// Map returns the response for err. ok is false for failures without an entry in the
// table; those get the internal error response.
func Map(err error) (status int, apiErr APIError, ok bool) {
	e, found := apperr.As(err)
	if !found {
		return http.StatusInternalServerError, InternalServerError, false
	}
	message, known := messages[e.Code]
	if !known {
		return http.StatusInternalServerError, InternalServerError, false
	}
	status, known = kindStatus[e.Kind]
	if !known {
		return http.StatusInternalServerError, InternalServerError, false
	}
	return status, APIError{Code: e.Code, Message: message}, true
}

// Handle writes the mapped response for err and reports whether err was mapped.
func Handle(c *gin.Context, err error) bool {
	status, apiErr, ok := Map(err)
	if ok {
		WriteApiErrJSON(c, status, apiErr)
	}
	return ok
}

func WriteApiErrJSON(c *gin.Context, status int, apiErr APIError) {
	c.AbortWithStatusJSON(status, ErrResponse{
		Error: apiErr,
	})
}

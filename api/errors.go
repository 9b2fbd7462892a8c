package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/goliatone/go-record-catalog/musicbrainz"
	"github.com/goliatone/go-record-catalog/query"
)

// ErrorPayload is the error envelope returned by every endpoint.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MapError converts a domain error into an HTTP status and payload.
func MapError(err error) (int, ErrorPayload) {
	switch {
	case errors.Is(err, cursor.ErrMalformed):
		return http.StatusBadRequest, ErrorPayload{Error: "malformed_cursor", Message: "the next token could not be decoded"}
	case errors.Is(err, query.ErrInvalidSortKey):
		return http.StatusBadRequest, ErrorPayload{Error: "invalid_cursor", Message: "the next token does not reference a valid record"}
	case errors.Is(err, catalog.ErrInvalid):
		return http.StatusBadRequest, ErrorPayload{Error: "invalid_input", Message: err.Error()}
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, ErrorPayload{Error: "not_found"}
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, ErrorPayload{Error: "conflict", Message: err.Error()}
	case errors.Is(err, musicbrainz.ErrUnavailable):
		return http.StatusBadGateway, ErrorPayload{Error: "upstream_unavailable"}
	default:
		return http.StatusInternalServerError, ErrorPayload{Error: "internal_error"}
	}
}

func writeError(c *gin.Context, err error) {
	status, payload := MapError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, payload)
}

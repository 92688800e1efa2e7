package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/orgchart"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request. Kind and ID are set for
// missing organizations, users and supervisors.
type ErrorResponse struct {
	Error string  `json:"error"`
	Kind  db.Kind `json:"kind,omitempty"`
	ID    string  `json:"id,omitempty"`
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and reported with msg only.
func respondError(c *gin.Context, logger zerolog.Logger, err error, msg string) {
	if nf, ok := db.AsNotFound(err); ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: nf.Error(), Kind: nf.Kind, ID: nf.ID})
		return
	}

	switch {
	case errors.Is(err, db.ErrVersionConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, orgchart.ErrUnknownStrategy):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

// bindJSON decodes the request body into v. An empty body leaves v untouched
// when allowEmpty is set. It writes the error response itself and reports
// whether the handler should continue.
func bindJSON(c *gin.Context, v any, allowEmpty bool) bool {
	if allowEmpty && (c.Request.Body == nil || c.Request.Body == http.NoBody) {
		return true
	}

	err := c.ShouldBindJSON(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
	return false
}

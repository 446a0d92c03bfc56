package http

import (
	"errors"
	"net/http"

	"quiz-attempt-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type messageResponse struct {
	Msg string `json:"msg"`
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"msg": ...} for classified errors. Anything else is logged and
// reported as a bare server error.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
		c.AbortWithStatusJSON(status, messageResponse{Msg: "server error"})
		return
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Msg
	}
	c.AbortWithStatusJSON(status, messageResponse{Msg: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Msg: msg})
}

package http

import (
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const principalKey = "principal"

// requireAuth rejects requests whose bearer token does not pass gate and stores the
// resolved principal on the context.
func requireAuth(gate app.Gate, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := gate.Check(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(domain.Principal)
	return p
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		event := log.Info()
		if param.StatusCode >= 500 {
			event = log.Error()
		}
		event.
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("http_request")
		return ""
	})
}

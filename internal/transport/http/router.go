// Package http exposes the quiz services over a gin REST API and a leaderboard websocket.
package http

import (
	"net/http"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Services are the use cases the router dispatches to.
type Services struct {
	Auth        *app.AuthService
	Quizzes     *app.QuizService
	Attempts    *app.AttemptService
	Leaderboard *app.LeaderboardService
	Tokens      app.TokenVerifier
}

type RouterConfig struct {
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string
	// Debug switches gin to debug mode.
	Debug bool
}

// Handler holds the gin handlers for every route.
type Handler struct {
	auth        *app.AuthService
	quizzes     *app.QuizService
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

func NewHandler(svc Services, log zerolog.Logger) *Handler {
	return &Handler{
		auth:        svc.Auth,
		quizzes:     svc.Quizzes,
		attempts:    svc.Attempts,
		leaderboard: svc.Leaderboard,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "http").Logger(),
	}
}

// NewRouter builds the gin engine with logging, recovery, CORS and all routes mounted.
func NewRouter(svc Services, cfg RouterConfig, log zerolog.Logger) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestLogger(log))
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	r.Use(cors.New(corsCfg))

	NewHandler(svc, log).RegisterRoutes(r, svc.Tokens)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine, tokens app.TokenVerifier) {
	anyUser := requireAuth(app.NewGate(tokens), h.log)
	authors := requireAuth(app.NewGate(tokens, domain.RoleInstructor, domain.RoleAdmin), h.log)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/verify-otp", h.VerifyOTP)
		auth.POST("/reset-password", h.ResetPassword)

		quizzes := api.Group("/quizzes")
		quizzes.GET("", anyUser, h.ListQuizzes)
		quizzes.POST("", authors, h.CreateQuiz)
		quizzes.GET("/:id", anyUser, h.GetQuiz)
		quizzes.PUT("/:id/publish", authors, h.PublishQuiz)
		quizzes.POST("/:id/attempts", anyUser, h.StartAttempt)
		quizzes.GET("/:id/attempts", anyUser, h.ListAttempts)
		quizzes.GET("/:id/attempts/export", anyUser, h.ExportAttempts)
		quizzes.GET("/:id/leaderboard", h.Leaderboard)
		quizzes.GET("/:id/leaderboard/ws", h.LeaderboardWS)

		attempts := api.Group("/attempts")
		attempts.POST("/:attemptId/submit", anyUser, h.SubmitAttempt)
		attempts.GET("/:attemptId", anyUser, h.GetAttempt)
	}
}

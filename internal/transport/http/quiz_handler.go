package http

import (
	"net/http"

	"quiz-attempt-service/internal/app"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(c *gin.Context) {
	quiz, err := h.quizzes.Get(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *Handler) CreateQuiz(c *gin.Context) {
	var req app.QuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *Handler) PublishQuiz(c *gin.Context) {
	quiz, err := h.quizzes.Publish(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

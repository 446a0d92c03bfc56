package http

import (
	"bytes"
	"fmt"
	"net/http"

	"quiz-attempt-service/internal/domain"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers"`
}

func (h *Handler) StartAttempt(c *gin.Context) {
	result, err := h.attempts.Start(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) SubmitAttempt(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	result, err := h.attempts.Submit(c.Request.Context(), principalFrom(c), c.Param("attemptId"), req.Answers)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetAttempt(c *gin.Context) {
	detail, err := h.attempts.Get(c.Request.Context(), principalFrom(c), c.Param("attemptId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListAttempts(c *gin.Context) {
	rows, err := h.attempts.ListForQuiz(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ExportAttempts renders the whole workbook before writing so that a failure still
// produces a JSON error instead of a truncated download.
func (h *Handler) ExportAttempts(c *gin.Context) {
	quizID := c.Param("id")
	var buf bytes.Buffer
	contentType, err := h.attempts.ExportForQuiz(c.Request.Context(), principalFrom(c), quizID, &buf)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%s-attempts.xlsx"`, quizID))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/middleware"
	"github.com/stemsi/examforge-backend/internal/model"
	"github.com/stemsi/examforge-backend/internal/response"
	"github.com/stemsi/examforge-backend/internal/service"
	"github.com/stemsi/examforge-backend/internal/validator"
)

// AttemptHandler handles the taker-facing attempt endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	sessionService *service.SessionService
	paperService   *service.PaperService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, sessionService *service.SessionService, paperService *service.PaperService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		sessionService: sessionService,
		paperService:   paperService,
	}
}

// JoinSession godoc
// POST /api/v1/sessions/:session_id/attempt/join
// Creates or resumes the caller's attempt; retake=true re-arms a finished one.
func (h *AttemptHandler) JoinSession(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	var req model.JoinSessionRequest
	// An empty body means a plain join.
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	attempt, err := h.attemptService.Join(c.Request.Context(), sessionID, claims.UserID, req.Retake, c.ClientIP())
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// StartAttempt godoc
// POST /api/v1/sessions/:session_id/attempt/start
// Begins timing and materializes the answer placeholders.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt":           attempt,
		"remaining_minutes": attempt.RemainingMinutes(time.Now()),
	})
}

// GetAttemptState godoc
// GET /api/v1/sessions/:session_id/attempt
// Returns the attempt with its remaining time; detects timeouts lazily.
func (h *AttemptHandler) GetAttemptState(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt":           state.Attempt,
		"remaining_minutes": state.RemainingMinutes,
	})
}

// GetAttemptPaper godoc
// GET /api/v1/sessions/:session_id/attempt/paper
// Returns the paper stripped of answer keys. Only available while the
// attempt is running.
func (h *AttemptHandler) GetAttemptPaper(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if state.Attempt.Status != model.AttemptStatusInProgress {
		failFromService(c, service.ErrAttemptNotInProgress)
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	view, err := h.paperService.TakerView(c.Request.Context(), *session.PaperID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": view})
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/attempt/answers
// Grades and stores one answer; resubmission replaces the previous record.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.SubmitAnswer(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answered_count": attempt.AnsweredCount(),
		"total":          attempt.TotalQuestions,
	})
}

// SubmitAnswerBatch godoc
// POST /api/v1/sessions/:session_id/attempt/answers/batch
func (h *AttemptHandler) SubmitAnswerBatch(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	var req model.BatchSubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.SubmitBatch(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answered_count": attempt.AnsweredCount(),
		"total":          attempt.TotalQuestions,
	})
}

// CompleteAttempt godoc
// POST /api/v1/sessions/:session_id/attempt/complete
// Finalizes the attempt with an authoritative re-grade.
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	attempt, summary, err := h.attemptService.Complete(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt, "summary": summary})
}

// AbandonAttempt godoc
// POST /api/v1/sessions/:session_id/attempt/abandon
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Abandon(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttemptResult godoc
// GET /api/v1/sessions/:session_id/attempt/result
// Per-answer detail is included only when the session allows review.
func (h *AttemptHandler) GetAttemptResult(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Result(c.Request.Context(), sessionID, claims.UserID, claims.Role == service.RoleOperator)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ReportActivity godoc
// POST /api/v1/sessions/:session_id/attempt/activity
// Accepts a signed suspicious-activity event for async persistence.
func (h *AttemptHandler) ReportActivity(c *gin.Context) {
	claims, sessionID, ok := h.callerAndSession(c)
	if !ok {
		return
	}

	var req model.ReportActivityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.RecordActivity(c.Request.Context(), sessionID, claims.UserID, &req); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *AttemptHandler) callerAndSession(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, sessionID, true
}

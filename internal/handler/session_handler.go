package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/middleware"
	"github.com/stemsi/examforge-backend/internal/model"
	"github.com/stemsi/examforge-backend/internal/response"
	"github.com/stemsi/examforge-backend/internal/service"
	"github.com/stemsi/examforge-backend/internal/validator"
)

// SessionHandler handles operator session management endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	attemptService *service.AttemptService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, attemptService *service.AttemptService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		attemptService: attemptService,
	}
}

// CreateSession godoc
// POST /api/v1/operator/sessions
// Schedules a new exam session in DRAFT status.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// ListSessions godoc
// GET /api/v1/operator/sessions
// Lists the caller's sessions with pagination.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	sessions, total, err := h.sessionService.ListByCreator(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, buildPagination(page, perPage, total))
}

// GetSession godoc
// GET /api/v1/operator/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// UpdateSession godoc
// PUT /api/v1/operator/sessions/:session_id
// Edits schedule, paper, and settings; rejected once the session is live.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Update(c.Request.Context(), sessionID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// UpdateSessionStatus godoc
// PATCH /api/v1/operator/sessions/:session_id/status
// Applies one status transition per the lifecycle table.
func (h *SessionHandler) UpdateSessionStatus(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateSessionStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.UpdateStatus(c.Request.Context(), sessionID, req.Status)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// BatchUpdateSessionStatus godoc
// POST /api/v1/operator/sessions/status
// Applies one target status to many sessions; partial success is reported
// per item, never as an overall failure.
func (h *SessionHandler) BatchUpdateSessionStatus(c *gin.Context) {
	var req model.BatchUpdateStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results := h.sessionService.BatchUpdateStatus(c.Request.Context(), req.SessionIDs, req.Status)
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetSessionStats godoc
// GET /api/v1/operator/sessions/:session_id/stats
// Returns the stored aggregates; ?refresh=true recomputes them first.
func (h *SessionHandler) GetSessionStats(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if c.Query("refresh") == "true" {
		if err := h.sessionService.RefreshStats(c.Request.Context(), sessionID); err != nil {
			failFromService(c, err)
			return
		}
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": session.Stats})
}

// ListSessionAttempts godoc
// GET /api/v1/operator/sessions/:session_id/attempts
// The live monitor: every attempt in the session, paginated.
func (h *SessionHandler) ListSessionAttempts(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	attempts, total, err := h.attemptService.ListBySession(c.Request.Context(), sessionID, page, perPage)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, buildPagination(page, perPage, total))
}

// ListAttemptActivity godoc
// GET /api/v1/operator/attempts/:attempt_id/activity
// Returns the recorded suspicious-activity events for one attempt.
func (h *SessionHandler) ListAttemptActivity(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	events, err := h.attemptService.ListActivity(c.Request.Context(), attemptID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// RegradeAttempt godoc
// POST /api/v1/operator/attempts/:attempt_id/regrade
// Re-runs the authoritative grading pass after a question correction.
func (h *SessionHandler) RegradeAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, summary, err := h.attemptService.Regrade(c.Request.Context(), attemptID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt, "summary": summary})
}

func buildPagination(page, perPage, total int) *response.Pagination {
	if perPage < 1 {
		perPage = 10
	}
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
}

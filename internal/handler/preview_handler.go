package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/model"
	"github.com/stemsi/examforge-backend/internal/response"
	"github.com/stemsi/examforge-backend/internal/service"
	"github.com/stemsi/examforge-backend/internal/validator"
)

// PreviewHandler handles author preview endpoints. All routes are
// operator-only; the preview itself is addressed by its opaque token.
type PreviewHandler struct {
	previewService *service.PreviewService
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(previewService *service.PreviewService) *PreviewHandler {
	return &PreviewHandler{previewService: previewService}
}

// CreatePreview godoc
// POST /api/v1/operator/previews
func (h *PreviewHandler) CreatePreview(c *gin.Context) {
	var req model.CreatePreviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	preview, err := h.previewService.Create(c.Request.Context(), &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"preview": preview})
}

// GetPreview godoc
// GET /api/v1/operator/previews/:token
func (h *PreviewHandler) GetPreview(c *gin.Context) {
	token, ok := h.parseToken(c)
	if !ok {
		return
	}

	preview, err := h.previewService.Get(c.Request.Context(), token)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"preview": preview})
}

// StartPreview godoc
// POST /api/v1/operator/previews/:token/start
func (h *PreviewHandler) StartPreview(c *gin.Context) {
	token, ok := h.parseToken(c)
	if !ok {
		return
	}

	preview, err := h.previewService.Start(c.Request.Context(), token)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"preview": preview})
}

// SubmitPreviewAnswer godoc
// POST /api/v1/operator/previews/:token/answers
// Returns immediate feedback with the correct key and explanation.
func (h *PreviewHandler) SubmitPreviewAnswer(c *gin.Context) {
	token, ok := h.parseToken(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	feedback, err := h.previewService.Submit(c.Request.Context(), token, &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"feedback": feedback})
}

// CompletePreview godoc
// POST /api/v1/operator/previews/:token/complete
func (h *PreviewHandler) CompletePreview(c *gin.Context) {
	token, ok := h.parseToken(c)
	if !ok {
		return
	}

	preview, summary, err := h.previewService.Complete(c.Request.Context(), token)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"preview": preview, "summary": summary})
}

func (h *PreviewHandler) parseToken(c *gin.Context) (uuid.UUID, bool) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return token, true
}

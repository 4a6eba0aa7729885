package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examforge-backend/internal/response"
	"github.com/stemsi/examforge-backend/internal/service"
)

// failFromService maps service sentinel errors onto the response
// envelope. Unknown errors become a 500 so internals never leak.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	case errors.Is(err, service.ErrTimeWindow):
		response.Fail(c, http.StatusConflict, response.ErrTimeWindowViolation)
	case errors.Is(err, service.ErrNoPaper):
		response.Fail(c, http.StatusConflict, response.ErrNoPaperAttached)
	case errors.Is(err, service.ErrNotJoinable):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotJoinable)
	case errors.Is(err, service.ErrNotParticipant):
		response.Fail(c, http.StatusForbidden, response.ErrNotParticipant)
	case errors.Is(err, service.ErrNotJoined):
		response.Fail(c, http.StatusNotFound, response.ErrNotJoined)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrAttemptLimit):
		response.Fail(c, http.StatusConflict, response.ErrAttemptLimitExceeded)
	case errors.Is(err, service.ErrAttemptNotInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotInProgress)
	case errors.Is(err, service.ErrAttemptTimedOut):
		response.Fail(c, http.StatusConflict, response.ErrAttemptTimedOut)
	case errors.Is(err, service.ErrInvalidSignature):
		response.Fail(c, http.StatusForbidden, response.ErrInvalidSignature)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

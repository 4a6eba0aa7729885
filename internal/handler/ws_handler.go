package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/middleware"
	"github.com/stemsi/examforge-backend/internal/model"
	"github.com/stemsi/examforge-backend/internal/service"
	ws "github.com/stemsi/examforge-backend/internal/websocket"
)

const tickInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live attempt state to exam clients.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket for answer submission and remaining-time pushes.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// The attempt must exist before streaming starts.
	state, err := h.attemptService.State(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no attempt for this session"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Taker connected")

	h.writeState(conn, state)

	done := make(chan struct{})
	defer close(done)
	go h.tickLoop(conn, sessionID, claims.UserID, done, wsLog)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionState:
			h.handleState(conn, sessionID, claims.UserID)
		case ws.ActionAnswer:
			h.handleAnswer(conn, sessionID, claims.UserID, &msg)
		case ws.ActionComplete:
			h.handleComplete(conn, wsLog, sessionID, claims.UserID)
			return
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// tickLoop pushes the remaining time periodically until the connection
// closes. When the budget hits zero the timeout event is pushed once and
// the loop stops.
func (h *WSHandler) tickLoop(conn *ws.Conn, sessionID uuid.UUID, userID int, done <-chan struct{}, wsLog zerolog.Logger) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			state, err := h.attemptService.State(context.Background(), sessionID, userID)
			if err != nil {
				continue
			}
			if state.Attempt.Status == model.AttemptStatusTimeout {
				conn.WriteTyped(ws.TickResponse{Event: ws.EventTimeout, RemainingMinutes: 0})
				wsLog.Info().Msg("Timeout pushed to client")
				return
			}
			if state.Attempt.Status != model.AttemptStatusInProgress {
				return
			}
			conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, RemainingMinutes: state.RemainingMinutes})
		}
	}
}

func (h *WSHandler) handleState(conn *ws.Conn, sessionID uuid.UUID, userID int) {
	state, err := h.attemptService.State(context.Background(), sessionID, userID)
	if err != nil {
		conn.WriteError("state unavailable")
		return
	}
	h.writeState(conn, state)
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, sessionID uuid.UUID, userID int, msg *ws.RequestPayload) {
	if msg.QuestionID == uuid.Nil {
		conn.WriteError("question_id is required")
		return
	}

	attempt, err := h.attemptService.SubmitAnswer(context.Background(), sessionID, userID, &model.SubmitAnswerRequest{
		QuestionID:       msg.QuestionID,
		Answer:           msg.Answer,
		TimeSpentSeconds: msg.TimeSpentSeconds,
	})
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	conn.WriteTyped(ws.SavedResponse{
		Event:         ws.EventSaved,
		QuestionID:    msg.QuestionID,
		AnsweredCount: attempt.AnsweredCount(),
	})
}

func (h *WSHandler) handleComplete(conn *ws.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, userID int) {
	attempt, summary, err := h.attemptService.Complete(context.Background(), sessionID, userID)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	wsLog.Info().Float64("score", attempt.Score).Msg("Attempt completed over stream")

	conn.WriteTyped(ws.CompletedResponse{
		Event:          ws.EventCompleted,
		Score:          summary.Score,
		CorrectAnswers: summary.CorrectAnswers,
		TotalQuestions: summary.TotalQuestions,
		Grade:          summary.Grade,
		IsPassed:       summary.IsPassed,
	})
}

func (h *WSHandler) writeState(conn *ws.Conn, state *service.AttemptState) {
	conn.WriteTyped(ws.StateResponse{
		Event:            ws.EventState,
		Status:           state.Attempt.Status,
		RemainingMinutes: state.RemainingMinutes,
		AnsweredCount:    state.Attempt.AnsweredCount(),
		TotalQuestions:   state.Attempt.TotalQuestions,
	})
}

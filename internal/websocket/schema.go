package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing     Action = "ping"
	ActionState    Action = "state"
	ActionAnswer   Action = "answer"
	ActionComplete Action = "complete"
)

// RequestPayload carries every client message. Only the fields relevant
// to the action are set.
type RequestPayload struct {
	Action           Action            `json:"action"`
	QuestionID       uuid.UUID         `json:"question_id,omitempty"`
	Answer           model.AnswerValue `json:"answer,omitempty"`
	TimeSpentSeconds int               `json:"time_spent_seconds,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventPong      Event = "pong"
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventCompleted Event = "completed"
	EventTick      Event = "tick"
	EventTimeout   Event = "timeout"
)

// StateResponse reports the attempt's live progress.
type StateResponse struct {
	Event            Event               `json:"event"`
	Status           model.AttemptStatus `json:"status"`
	RemainingMinutes float64             `json:"remaining_minutes"`
	AnsweredCount    int                 `json:"answered_count"`
	TotalQuestions   int                 `json:"total_questions"`
}

// SavedResponse acknowledges one graded answer submission.
type SavedResponse struct {
	Event         Event     `json:"event"`
	QuestionID    uuid.UUID `json:"question_id"`
	AnsweredCount int       `json:"answered_count"`
}

// CompletedResponse carries the final result of the attempt.
type CompletedResponse struct {
	Event          Event   `json:"event"`
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Grade          string  `json:"grade"`
	IsPassed       bool    `json:"is_passed"`
}

// TickResponse is the periodic remaining-time push.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingMinutes float64 `json:"remaining_minutes"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

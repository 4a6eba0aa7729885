package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "DRAFT"
	SessionStatusPublished SessionStatus = "PUBLISHED"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// sessionTransitions is the forward-only status transition table.
// COMPLETED and CANCELLED are terminal.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusDraft:     {SessionStatusPublished, SessionStatusCancelled},
	SessionStatusPublished: {SessionStatusActive, SessionStatusCancelled},
	SessionStatusActive:    {SessionStatusCompleted, SessionStatusCancelled},
	SessionStatusCompleted: {},
	SessionStatusCancelled: {},
}

// CanTransitionTo reports whether the table allows s → target.
// The same-status no-op is handled by the caller, not here.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// DefaultPassingScore is the accuracy threshold used when a session
// does not configure its own.
const DefaultPassingScore = 60

// SessionSettings are the per-session knobs copied onto attempts at join time.
type SessionSettings struct {
	MaxAttempts      int     `json:"max_attempts"`
	PassingScore     float64 `json:"passing_score"`
	AllowReview      bool    `json:"allow_review"`
	ShuffleQuestions bool    `json:"shuffle_questions"`
	ShuffleOptions   bool    `json:"shuffle_options"`
}

// SessionStats are aggregates derived from completed attempts.
type SessionStats struct {
	ParticipantCount   int     `json:"participant_count"`
	CompletionCount    int     `json:"completion_count"`
	AverageScore       float64 `json:"average_score"`
	PassRate           float64 `json:"pass_rate"`
	AverageTimeSeconds float64 `json:"average_time_seconds"`
}

// ExamSession is a scheduled assessment window bound to one paper.
type ExamSession struct {
	ID              uuid.UUID       `json:"id"`
	PaperID         *uuid.UUID      `json:"paper_id,omitempty"`
	CreatorID       int             `json:"creator_id"`
	Title           string          `json:"title"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          SessionStatus   `json:"status"`
	Settings        SessionSettings `json:"settings"`
	// AllowedUserIDs is the participant allow-list. Empty means open to all.
	AllowedUserIDs []int        `json:"allowed_user_ids,omitempty"`
	Stats          SessionStats `json:"stats"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PassingScore returns the configured passing score or the default.
func (s *ExamSession) PassingScore() float64 {
	if s.Settings.PassingScore > 0 {
		return s.Settings.PassingScore
	}
	return DefaultPassingScore
}

// AllowsUser reports whether the user may participate. An empty
// allow-list means the session is open to everyone.
func (s *ExamSession) AllowsUser(userID int) bool {
	if len(s.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range s.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// WithinWindow reports whether now lies inside [StartTime, EndTime].
func (s *ExamSession) WithinWindow(now time.Time) bool {
	return !now.Before(s.StartTime) && !now.After(s.EndTime)
}

// Joinable reports whether attempts may currently be created against
// this session: PUBLISHED or ACTIVE, inside the availability window.
func (s *ExamSession) Joinable(now time.Time) bool {
	if s.Status != SessionStatusPublished && s.Status != SessionStatusActive {
		return false
	}
	return s.WithinWindow(now)
}

// CreateSessionRequest is the payload for scheduling a new exam session.
type CreateSessionRequest struct {
	Title            string     `json:"title" binding:"required,min=3,max=255"`
	PaperID          *uuid.UUID `json:"paper_id" binding:"omitempty"`
	StartTime        time.Time  `json:"start_time" binding:"required"`
	EndTime          time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	DurationMinutes  int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	MaxAttempts      int        `json:"max_attempts" binding:"omitempty,min=1,max=10"`
	PassingScore     float64    `json:"passing_score" binding:"omitempty,min=0,max=100"`
	AllowReview      bool       `json:"allow_review"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	ShuffleOptions   bool       `json:"shuffle_options"`
	AllowedUserIDs   []int      `json:"allowed_user_ids" binding:"omitempty,dive,min=1"`
}

// UpdateSessionRequest edits a session's schedule and settings before it
// goes live. Nil fields are left unchanged.
type UpdateSessionRequest struct {
	Title            *string    `json:"title" binding:"omitempty,min=3,max=255"`
	PaperID          *uuid.UUID `json:"paper_id" binding:"omitempty"`
	StartTime        *time.Time `json:"start_time" binding:"omitempty"`
	EndTime          *time.Time `json:"end_time" binding:"omitempty"`
	DurationMinutes  *int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	MaxAttempts      *int       `json:"max_attempts" binding:"omitempty,min=1,max=10"`
	PassingScore     *float64   `json:"passing_score" binding:"omitempty,min=0,max=100"`
	AllowReview      *bool      `json:"allow_review"`
	ShuffleQuestions *bool      `json:"shuffle_questions"`
	ShuffleOptions   *bool      `json:"shuffle_options"`
	AllowedUserIDs   []int      `json:"allowed_user_ids" binding:"omitempty,dive,min=1"`
}

// UpdateSessionStatusRequest is the payload for a single status transition.
type UpdateSessionStatusRequest struct {
	Status SessionStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED ACTIVE COMPLETED CANCELLED"`
}

// BatchUpdateStatusRequest applies one target status to many sessions.
type BatchUpdateStatusRequest struct {
	SessionIDs []uuid.UUID   `json:"session_ids" binding:"required,min=1,max=100"`
	Status     SessionStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED ACTIVE COMPLETED CANCELLED"`
}

// BatchStatusResult reports the per-session outcome of a batch transition.
// Partial success is expected: each item carries its own error, if any.
type BatchStatusResult struct {
	SessionID uuid.UUID `json:"session_id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

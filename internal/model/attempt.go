package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the per-user attempt states.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
	AttemptStatusTimeout    AttemptStatus = "TIMEOUT"
)

// Finished reports whether the attempt reached a terminal state.
func (s AttemptStatus) Finished() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusAbandoned || s == AttemptStatusTimeout
}

// AnswerRecord is one question's submitted answer within an attempt.
// Score is 0 unless IsCorrect is true; a correct answer earns the
// question's full point value.
type AnswerRecord struct {
	QuestionID       uuid.UUID   `json:"question_id"`
	Answer           AnswerValue `json:"answer"`
	IsCorrect        bool        `json:"is_correct"`
	Score            float64     `json:"score"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	SubmittedAt      *time.Time  `json:"submitted_at,omitempty"`
}

// Attempt is one user's durable record of taking one session.
// Uniqueness on (SessionID, UserID) is enforced by the storage layer.
type Attempt struct {
	ID                   uuid.UUID      `json:"id"`
	SessionID            uuid.UUID      `json:"session_id"`
	UserID               int            `json:"user_id"`
	Status               AttemptStatus  `json:"status"`
	StartTime            *time.Time     `json:"start_time,omitempty"`
	EndTime              *time.Time     `json:"end_time,omitempty"`
	LastActiveAt         *time.Time     `json:"last_active_at,omitempty"`
	Answers              []AnswerRecord `json:"answers"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Score                float64        `json:"score"`
	TotalQuestions       int            `json:"total_questions"`
	CorrectAnswers       int            `json:"correct_answers"`
	Attempts             int            `json:"attempts"`
	MaxAttempts          int            `json:"max_attempts"`
	TimeLimitMinutes     int            `json:"time_limit_minutes"`
	OriginAddr           string         `json:"origin_addr,omitempty"`
	ClientSignature      string         `json:"client_signature,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// RemainingMinutes computes the time budget left as a pure function of
// (now, startTime, timeLimit). Returns -1 when no limit applies, never
// goes below 0.
func RemainingMinutes(now time.Time, startTime *time.Time, timeLimitMinutes int) float64 {
	if timeLimitMinutes <= 0 || startTime == nil {
		return -1
	}
	remaining := float64(timeLimitMinutes) - now.Sub(*startTime).Minutes()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingMinutes returns the attempt's remaining time budget.
func (a *Attempt) RemainingMinutes(now time.Time) float64 {
	return RemainingMinutes(now, a.StartTime, a.TimeLimitMinutes)
}

// TimedOut reports whether an in-progress attempt has exhausted its budget.
func (a *Attempt) TimedOut(now time.Time) bool {
	if a.Status != AttemptStatusInProgress {
		return false
	}
	return RemainingMinutes(now, a.StartTime, a.TimeLimitMinutes) == 0
}

// AnswerFor returns the record for a question id, or nil.
func (a *Attempt) AnswerFor(questionID uuid.UUID) *AnswerRecord {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return &a.Answers[i]
		}
	}
	return nil
}

// UpsertAnswer replaces the record for rec.QuestionID in place, or appends
// it. At most one record per question id is kept; last write wins.
func (a *Attempt) UpsertAnswer(rec AnswerRecord) {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == rec.QuestionID {
			a.Answers[i] = rec
			return
		}
	}
	a.Answers = append(a.Answers, rec)
}

// RecomputeTotals rebuilds Score and CorrectAnswers by scanning the full
// answer list. A full rescan keeps totals consistent under retried and
// out-of-order submissions, where incremental adjustment would drift.
func (a *Attempt) RecomputeTotals() {
	var score float64
	var correct int
	for i := range a.Answers {
		score += a.Answers[i].Score
		if a.Answers[i].IsCorrect {
			correct++
		}
	}
	a.Score = score
	a.CorrectAnswers = correct
}

// AnsweredCount returns how many records carry a non-empty submission.
func (a *Attempt) AnsweredCount() int {
	var n int
	for i := range a.Answers {
		if !a.Answers[i].Answer.IsEmpty() {
			n++
		}
	}
	return n
}

// ResetForRetake re-arms a finished attempt for another run: one more
// consumed attempt, all mutable progress cleared. The caller enforces
// the MaxAttempts cap before invoking this.
func (a *Attempt) ResetForRetake() {
	a.Attempts++
	a.Status = AttemptStatusNotStarted
	a.StartTime = nil
	a.EndTime = nil
	a.LastActiveAt = nil
	a.Answers = nil
	a.CurrentQuestionIndex = 0
	a.Score = 0
	a.CorrectAnswers = 0
}

// ActivityKind enumerates the suspicious-activity event types reported
// by the exam client.
type ActivityKind string

const (
	ActivityTabSwitch      ActivityKind = "TAB_SWITCH"
	ActivityWindowBlur     ActivityKind = "WINDOW_BLUR"
	ActivityCopy           ActivityKind = "COPY"
	ActivityPaste          ActivityKind = "PASTE"
	ActivityFullscreenExit ActivityKind = "FULLSCREEN_EXIT"
	ActivityDevtoolsOpen   ActivityKind = "DEVTOOLS_OPEN"
)

// ActivityEvent is one reported suspicious-activity occurrence.
type ActivityEvent struct {
	ID         int64        `json:"id"`
	AttemptID  uuid.UUID    `json:"attempt_id"`
	Kind       ActivityKind `json:"kind"`
	Detail     string       `json:"detail,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// JoinSessionRequest is the payload for joining (or retaking) a session.
type JoinSessionRequest struct {
	Retake bool `json:"retake"`
}

// SubmitAnswerRequest is the payload for one answer submission.
type SubmitAnswerRequest struct {
	QuestionID       uuid.UUID   `json:"question_id" binding:"required"`
	Answer           AnswerValue `json:"answer" binding:"required"`
	TimeSpentSeconds int         `json:"time_spent_seconds" binding:"min=0"`
}

// BatchSubmitRequest submits several answers in one call.
type BatchSubmitRequest struct {
	Answers []SubmitAnswerRequest `json:"answers" binding:"required,min=1,max=200,dive"`
}

// ReportActivityRequest is the payload for a suspicious-activity report.
type ReportActivityRequest struct {
	Kind      ActivityKind `json:"kind" binding:"required,oneof=TAB_SWITCH WINDOW_BLUR COPY PASTE FULLSCREEN_EXIT DEVTOOLS_OPEN"`
	Detail    string       `json:"detail" binding:"omitempty,max=2000"`
	Signature string       `json:"signature" binding:"required,min=16,max=128"`
}

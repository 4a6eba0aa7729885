package model

import (
	"time"

	"github.com/google/uuid"
)

// PreviewAttempt is the ephemeral counterpart of Attempt, used by authors
// to trial a paper. It is keyed by an opaque token instead of a user
// identity, expires after a TTL, and is exempt from attempt caps.
type PreviewAttempt struct {
	Token            uuid.UUID      `json:"token"`
	PaperID          uuid.UUID      `json:"paper_id"`
	Status           AttemptStatus  `json:"status"`
	StartTime        *time.Time     `json:"start_time,omitempty"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	Answers          []AnswerRecord `json:"answers"`
	Score            float64        `json:"score"`
	TotalQuestions   int            `json:"total_questions"`
	CorrectAnswers   int            `json:"correct_answers"`
	TimeLimitMinutes int            `json:"time_limit_minutes"`
	ExpiresAt        time.Time      `json:"expires_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Expired reports whether the record's TTL has lapsed. Expired previews
// behave as not-found even while the row still physically exists.
func (p *PreviewAttempt) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// RemainingMinutes returns the preview's remaining time budget.
func (p *PreviewAttempt) RemainingMinutes(now time.Time) float64 {
	return RemainingMinutes(now, p.StartTime, p.TimeLimitMinutes)
}

// TimedOut reports whether an in-progress preview exhausted its budget.
func (p *PreviewAttempt) TimedOut(now time.Time) bool {
	if p.Status != AttemptStatusInProgress {
		return false
	}
	return RemainingMinutes(now, p.StartTime, p.TimeLimitMinutes) == 0
}

// UpsertAnswer replaces or appends the record for rec.QuestionID.
func (p *PreviewAttempt) UpsertAnswer(rec AnswerRecord) {
	for i := range p.Answers {
		if p.Answers[i].QuestionID == rec.QuestionID {
			p.Answers[i] = rec
			return
		}
	}
	p.Answers = append(p.Answers, rec)
}

// RecomputeTotals rebuilds Score and CorrectAnswers from the full list.
func (p *PreviewAttempt) RecomputeTotals() {
	var score float64
	var correct int
	for i := range p.Answers {
		score += p.Answers[i].Score
		if p.Answers[i].IsCorrect {
			correct++
		}
	}
	p.Score = score
	p.CorrectAnswers = correct
}

// CreatePreviewRequest starts a fresh preview run over a paper. The
// question count and time limit are explicit instead of being derived
// from a live session.
type CreatePreviewRequest struct {
	PaperID          uuid.UUID `json:"paper_id" binding:"required"`
	QuestionCount    int       `json:"question_count" binding:"omitempty,min=1,max=500"`
	TimeLimitMinutes int       `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
}

// PreviewFeedback is the immediate per-answer feedback returned by each
// preview submission.
type PreviewFeedback struct {
	QuestionID   uuid.UUID   `json:"question_id"`
	IsCorrect    bool        `json:"is_correct"`
	Score        float64     `json:"score"`
	CorrectKey   AnswerKey   `json:"correct_key"`
	Explanation  string      `json:"explanation,omitempty"`
	RunningScore float64     `json:"running_score"`
	Answer       AnswerValue `json:"answer"`
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/grading"
	"github.com/stemsi/examforge-backend/internal/integrity"
	"github.com/stemsi/examforge-backend/internal/model"
)

// AttemptStore is the persistence surface of the attempt ledger.
type AttemptStore interface {
	GetBySessionAndUser(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	Save(ctx context.Context, a *model.Attempt) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Attempt, int, error)
	ListActivity(ctx context.Context, attemptID uuid.UUID, limit int) ([]model.ActivityEvent, error)
}

// SessionReader is the slice of the session surface the ledger needs.
type SessionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	RefreshStats(ctx context.Context, sessionID uuid.UUID) error
}

// PaperProvider resolves papers for grading.
type PaperProvider interface {
	GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error)
}

// AttemptState pairs an attempt with its computed remaining time.
type AttemptState struct {
	Attempt          *model.Attempt `json:"attempt"`
	RemainingMinutes float64        `json:"remaining_minutes"`
}

// AttemptResult is the authoritative user-facing result of a finished
// attempt.
type AttemptResult struct {
	Attempt *model.Attempt       `json:"attempt"`
	Summary *grading.Summary     `json:"summary"`
	Answers []model.AnswerRecord `json:"answers,omitempty"`
	Paper   *model.PaperView     `json:"paper,omitempty"`
}

// AttemptService owns the durable per-user attempt ledger: join, start,
// answer, complete, timeout and abandon, plus the operator re-grade.
type AttemptService struct {
	attempts AttemptStore
	sessions SessionReader
	papers   PaperProvider
	signer   *integrity.Signer
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	sessions SessionReader,
	papers PaperProvider,
	signer *integrity.Signer,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		sessions: sessions,
		papers:   papers,
		signer:   signer,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// Join creates the caller's attempt for a session, resumes an unfinished
// one, or re-arms a finished one when retake is requested and the cap
// allows. The unique (session, user) index makes concurrent joins
// converge on a single row.
func (s *AttemptService) Join(ctx context.Context, sessionID uuid.UUID, userID int, retake bool, originAddr string) (*model.Attempt, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !session.Joinable(now) {
		return nil, ErrNotJoinable
	}
	if !session.AllowsUser(userID) {
		return nil, ErrNotParticipant
	}
	if session.PaperID == nil {
		return nil, ErrNoPaper
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attempts.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	if existing == nil {
		attempt := &model.Attempt{
			SessionID:        sessionID,
			UserID:           userID,
			Status:           model.AttemptStatusNotStarted,
			TotalQuestions:   len(paper.Questions),
			Attempts:         1,
			MaxAttempts:      maxAttemptsOf(session),
			TimeLimitMinutes: session.DurationMinutes,
			OriginAddr:       originAddr,
			ClientSignature:  s.signer.Sign(sessionID.String(), userID, originAddr),
		}

		if err := s.attempts.Create(ctx, attempt); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("create attempt: %w", err)
			}
			// Concurrent join won the insert; adopt its row.
			existing, err = s.attempts.GetBySessionAndUser(ctx, sessionID, userID)
			if err != nil {
				return nil, fmt.Errorf("concurrent join detected, but fetch failed: %w", err)
			}
		} else {
			s.log.Info().
				Str("session_id", sessionID.String()).
				Int("user_id", userID).
				Msg("Attempt created")
			return attempt, nil
		}
	}

	if _, err := s.enforceTimeout(ctx, existing, now); err != nil {
		return nil, err
	}

	if !existing.Status.Finished() {
		// NOT_STARTED or IN_PROGRESS: resumption, return unchanged.
		return existing, nil
	}

	if !retake {
		return nil, ErrAlreadyCompleted
	}
	if existing.Attempts >= existing.MaxAttempts {
		return nil, ErrAttemptLimit
	}

	existing.ResetForRetake()
	existing.TotalQuestions = len(paper.Questions)
	if err := s.attempts.Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("save retake: %w", err)
	}

	s.log.Info().
		Str("attempt_id", existing.ID.String()).
		Int("attempt_no", existing.Attempts).
		Msg("Attempt re-armed for retake")
	return existing, nil
}

// Start begins timing: NOT_STARTED → IN_PROGRESS, with one placeholder
// answer record per paper question so answered/unanswered tracking works
// without pre-allocating scores.
func (s *AttemptService) Start(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusNotStarted {
		if attempt.Status.Finished() {
			return nil, ErrAlreadyCompleted
		}
		return nil, ErrInvalidTransition
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, err
	}

	attempt.Answers = make([]model.AnswerRecord, len(paper.Questions))
	for i, q := range paper.Questions {
		attempt.Answers[i] = model.AnswerRecord{
			QuestionID: q.ID,
			Answer:     placeholderFor(q.Type),
		}
	}

	now := time.Now()
	attempt.Status = model.AttemptStatusInProgress
	attempt.StartTime = &now
	attempt.LastActiveAt = &now
	attempt.TotalQuestions = len(paper.Questions)

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save start: %w", err)
	}
	return attempt, nil
}

// State returns the attempt with its remaining time. Reading is what
// detects timeouts: attempts vastly outnumber sessions, so there is no
// per-attempt poller.
func (s *AttemptService) State(ctx context.Context, sessionID uuid.UUID, userID int) (*AttemptState, error) {
	attempt, err := s.getAttempt(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.enforceTimeout(ctx, attempt, now); err != nil {
		return nil, err
	}

	return &AttemptState{
		Attempt:          attempt,
		RemainingMinutes: attempt.RemainingMinutes(now),
	}, nil
}

// SubmitAnswer grades and upserts one answer, then recomputes the
// running totals from the full answer set. Last write wins per question;
// the full rescan makes retried and out-of-order submissions safe.
func (s *AttemptService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, userID int, req *model.SubmitAnswerRequest) (*model.Attempt, error) {
	attempt, session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.requireInProgress(ctx, attempt, now); err != nil {
		return nil, err
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, err
	}

	if err := s.applyAnswer(attempt, paper, req, now); err != nil {
		return nil, err
	}
	attempt.RecomputeTotals()
	attempt.LastActiveAt = &now

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	return attempt, nil
}

// SubmitBatch applies the upsert rule once per item and recomputes
// totals once at the end.
func (s *AttemptService) SubmitBatch(ctx context.Context, sessionID uuid.UUID, userID int, req *model.BatchSubmitRequest) (*model.Attempt, error) {
	attempt, session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.requireInProgress(ctx, attempt, now); err != nil {
		return nil, err
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, err
	}

	for i := range req.Answers {
		if err := s.applyAnswer(attempt, paper, &req.Answers[i], now); err != nil {
			return nil, err
		}
	}
	attempt.RecomputeTotals()
	attempt.LastActiveAt = &now

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	return attempt, nil
}

// Complete finishes an in-progress attempt. The answers are re-graded
// against the paper's authoritative question list, superseding the
// running tally, and the statistics summary becomes the stored result.
// A second Complete fails with ErrAlreadyCompleted and leaves the first
// result untouched.
func (s *AttemptService) Complete(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, *grading.Summary, error) {
	attempt, session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if timedOut, err := s.enforceTimeout(ctx, attempt, now); err != nil {
		return nil, nil, err
	} else if timedOut {
		return nil, nil, ErrAttemptTimedOut
	}
	if attempt.Status == model.AttemptStatusCompleted {
		return nil, nil, ErrAlreadyCompleted
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, nil, ErrAttemptNotInProgress
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, nil, err
	}

	summary := s.finalize(attempt, paper, session.PassingScore(), now)

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, nil, fmt.Errorf("save completion: %w", err)
	}

	if err := s.sessions.RefreshStats(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Stats refresh failed")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Float64("score", attempt.Score).
		Str("grade", summary.Grade).
		Msg("Attempt completed")
	return attempt, summary, nil
}

// Abandon terminates an in-progress attempt at the user's request. Same
// bookkeeping as Complete, but no statistics are produced.
func (s *AttemptService) Abandon(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.getAttempt(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if timedOut, err := s.enforceTimeout(ctx, attempt, now); err != nil {
		return nil, err
	} else if timedOut {
		return nil, ErrAttemptTimedOut
	}
	if attempt.Status.Finished() {
		return nil, ErrAlreadyCompleted
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotInProgress
	}

	attempt.Status = model.AttemptStatusAbandoned
	attempt.EndTime = &now

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save abandon: %w", err)
	}
	return attempt, nil
}

// Regrade re-runs the authoritative grading pass on a completed attempt.
// Operator-only; used to fix results after a question correction.
func (s *AttemptService) Regrade(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, *grading.Summary, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusCompleted {
		return nil, nil, ErrInvalidTransition
	}

	session, err := s.sessions.GetByID(ctx, attempt.SessionID)
	if err != nil {
		return nil, nil, err
	}
	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, nil, err
	}

	attempt.Answers = grading.RegradeAll(paper, attempt.Answers)
	summary := grading.Summarize(attempt.Answers, len(paper.Questions), session.PassingScore())
	attempt.Score = summary.Score
	attempt.CorrectAnswers = summary.CorrectAnswers
	attempt.TotalQuestions = summary.TotalQuestions

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, nil, fmt.Errorf("save regrade: %w", err)
	}

	if err := s.sessions.RefreshStats(ctx, attempt.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", attempt.SessionID.String()).Msg("Stats refresh failed")
	}

	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Attempt re-graded")
	return attempt, &summary, nil
}

// Result builds the user-facing result of a completed attempt. Per-answer
// detail is withheld unless the session allows review or the caller is an
// operator.
func (s *AttemptService) Result(ctx context.Context, sessionID uuid.UUID, userID int, operator bool) (*AttemptResult, error) {
	attempt, session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusCompleted {
		return nil, ErrAttemptNotInProgress
	}

	paper, err := s.papers.GetPaper(ctx, *session.PaperID)
	if err != nil {
		return nil, err
	}

	summary := grading.Summarize(attempt.Answers, len(paper.Questions), session.PassingScore())
	result := &AttemptResult{Attempt: attempt, Summary: &summary}

	if operator || session.Settings.AllowReview {
		view := paper.TakerView()
		result.Answers = attempt.Answers
		result.Paper = &view
	}
	return result, nil
}

// ListBySession returns session attempts for the operator monitor.
func (s *AttemptService) ListBySession(ctx context.Context, sessionID uuid.UUID, page, perPage int) ([]model.Attempt, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.attempts.ListBySession(ctx, sessionID, perPage, (page-1)*perPage)
}

// ListActivity returns an attempt's recorded suspicious-activity events.
func (s *AttemptService) ListActivity(ctx context.Context, attemptID uuid.UUID) ([]model.ActivityEvent, error) {
	return s.attempts.ListActivity(ctx, attemptID, 500)
}

// activityPayload is the queue item consumed by the activity worker.
type activityPayload struct {
	AttemptID string `json:"attempt_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// RecordActivity verifies the client signature and enqueues a
// suspicious-activity event for batched persistence. The write path is a
// Redis queue so a burst of tab switches never stalls answer traffic.
func (s *AttemptService) RecordActivity(ctx context.Context, sessionID uuid.UUID, userID int, req *model.ReportActivityRequest) error {
	attempt, err := s.getAttempt(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	if !s.signer.Verify(req.Signature, sessionID.String(), userID, attempt.OriginAddr) {
		return ErrInvalidSignature
	}

	raw, err := json.Marshal(activityPayload{
		AttemptID: attempt.ID.String(),
		Kind:      string(req.Kind),
		Detail:    req.Detail,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistActivityQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

// ─── Internal helpers ───────────────────────────────────────────────

func (s *AttemptService) getAttempt(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.attempts.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptService) load(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, *model.ExamSession, error) {
	attempt, err := s.getAttempt(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.PaperID == nil {
		return nil, nil, ErrNoPaper
	}
	return attempt, session, nil
}

// enforceTimeout lazily transitions an in-progress attempt to TIMEOUT
// once its remaining time reaches zero. The check itself is a pure
// function of (now, startTime, timeLimit); only the persist is effectful.
func (s *AttemptService) enforceTimeout(ctx context.Context, attempt *model.Attempt, now time.Time) (bool, error) {
	if !attempt.TimedOut(now) {
		return attempt.Status == model.AttemptStatusTimeout, nil
	}

	attempt.Status = model.AttemptStatusTimeout
	attempt.EndTime = &now
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return false, fmt.Errorf("save timeout: %w", err)
	}

	s.log.Info().Str("attempt_id", attempt.ID.String()).Msg("Attempt timed out")
	return true, nil
}

func (s *AttemptService) requireInProgress(ctx context.Context, attempt *model.Attempt, now time.Time) error {
	timedOut, err := s.enforceTimeout(ctx, attempt, now)
	if err != nil {
		return err
	}
	if timedOut {
		return ErrAttemptTimedOut
	}
	if attempt.Status.Finished() {
		return ErrAlreadyCompleted
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return ErrAttemptNotInProgress
	}
	return nil
}

// applyAnswer grades one submission and upserts its record. Totals are
// recomputed by the caller.
func (s *AttemptService) applyAnswer(attempt *model.Attempt, paper *model.Paper, req *model.SubmitAnswerRequest, now time.Time) error {
	question := paper.QuestionByID(req.QuestionID)
	if question == nil {
		return ErrNotFound
	}

	correct, score := grading.Grade(question, req.Answer)
	attempt.UpsertAnswer(model.AnswerRecord{
		QuestionID:       req.QuestionID,
		Answer:           req.Answer,
		IsCorrect:        correct,
		Score:            score,
		TimeSpentSeconds: req.TimeSpentSeconds,
		SubmittedAt:      &now,
	})

	for i := range paper.Questions {
		if paper.Questions[i].ID == req.QuestionID && i > attempt.CurrentQuestionIndex {
			attempt.CurrentQuestionIndex = i
		}
	}
	return nil
}

// finalize runs the authoritative grading pass and stamps the terminal
// COMPLETED state onto the attempt.
func (s *AttemptService) finalize(attempt *model.Attempt, paper *model.Paper, passingScore float64, now time.Time) *grading.Summary {
	attempt.Answers = grading.RegradeAll(paper, attempt.Answers)
	summary := grading.Summarize(attempt.Answers, len(paper.Questions), passingScore)

	attempt.Score = summary.Score
	attempt.CorrectAnswers = summary.CorrectAnswers
	attempt.TotalQuestions = summary.TotalQuestions
	attempt.Status = model.AttemptStatusCompleted
	attempt.EndTime = &now
	return &summary
}

func maxAttemptsOf(session *model.ExamSession) int {
	if session.Settings.MaxAttempts > 0 {
		return session.Settings.MaxAttempts
	}
	return 1
}

// placeholderFor returns the empty answer value for a question type, so
// placeholder records carry the right union branch from the start.
func placeholderFor(t model.QuestionType) model.AnswerValue {
	if t == model.QuestionTypeMultipleChoice {
		return model.AnswerValue{Kind: model.AnswerKindChoices}
	}
	return model.AnswerValue{Kind: model.AnswerKindText}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/grading"
	"github.com/stemsi/examforge-backend/internal/model"
)

// PreviewStore is the persistence surface of the preview ledger.
type PreviewStore interface {
	Create(ctx context.Context, p *model.PreviewAttempt) error
	GetByToken(ctx context.Context, token uuid.UUID) (*model.PreviewAttempt, error)
	Save(ctx context.Context, p *model.PreviewAttempt) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PreviewService runs author trial attempts against a paper: token keyed,
// TTL bound, exempt from attempt caps, with answer keys revealed on every
// submission.
type PreviewService struct {
	previews PreviewStore
	papers   PaperProvider
	cfg      *config.Config
	log      zerolog.Logger
}

// NewPreviewService creates a new PreviewService.
func NewPreviewService(previews PreviewStore, papers PaperProvider, cfg *config.Config, log zerolog.Logger) *PreviewService {
	return &PreviewService{
		previews: previews,
		papers:   papers,
		cfg:      cfg,
		log:      log.With().Str("component", "preview_service").Logger(),
	}
}

// Create mints a new preview attempt against a paper. Reruns are new
// tokens, never retakes; there is no cap.
func (s *PreviewService) Create(ctx context.Context, req *model.CreatePreviewRequest) (*model.PreviewAttempt, error) {
	paper, err := s.papers.GetPaper(ctx, req.PaperID)
	if err != nil {
		return nil, err
	}

	total := len(paper.Questions)
	if req.QuestionCount > 0 && req.QuestionCount < total {
		total = req.QuestionCount
	}

	now := time.Now()
	preview := &model.PreviewAttempt{
		Token:            uuid.New(),
		PaperID:          req.PaperID,
		Status:           model.AttemptStatusNotStarted,
		TotalQuestions:   total,
		TimeLimitMinutes: req.TimeLimitMinutes,
		ExpiresAt:        now.Add(s.cfg.PreviewTTL),
	}

	if err := s.previews.Create(ctx, preview); err != nil {
		return nil, fmt.Errorf("create preview: %w", err)
	}

	s.log.Info().
		Str("token", preview.Token.String()).
		Str("paper_id", req.PaperID.String()).
		Msg("Preview created")
	return preview, nil
}

// Get returns a live preview by token. Expired previews are not found.
func (s *PreviewService) Get(ctx context.Context, token uuid.UUID) (*model.PreviewAttempt, error) {
	return s.getLive(ctx, token, time.Now())
}

// Start begins the preview's timing window.
func (s *PreviewService) Start(ctx context.Context, token uuid.UUID) (*model.PreviewAttempt, error) {
	now := time.Now()
	preview, err := s.getLive(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if preview.Status != model.AttemptStatusNotStarted {
		if preview.Status.Finished() {
			return nil, ErrAlreadyCompleted
		}
		return nil, ErrInvalidTransition
	}

	preview.Status = model.AttemptStatusInProgress
	preview.StartTime = &now

	if err := s.previews.Save(ctx, preview); err != nil {
		return nil, fmt.Errorf("save start: %w", err)
	}
	return preview, nil
}

// Submit grades one answer and returns immediate feedback including the
// correct key and explanation. Previews are an authoring tool, so nothing
// is withheld.
func (s *PreviewService) Submit(ctx context.Context, token uuid.UUID, req *model.SubmitAnswerRequest) (*model.PreviewFeedback, error) {
	now := time.Now()
	preview, err := s.getLive(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if err := s.requireInProgress(ctx, preview, now); err != nil {
		return nil, err
	}

	paper, err := s.papers.GetPaper(ctx, preview.PaperID)
	if err != nil {
		return nil, err
	}
	question := paper.QuestionByID(req.QuestionID)
	if question == nil {
		return nil, ErrNotFound
	}

	correct, score := grading.Grade(question, req.Answer)
	preview.UpsertAnswer(model.AnswerRecord{
		QuestionID:       req.QuestionID,
		Answer:           req.Answer,
		IsCorrect:        correct,
		Score:            score,
		TimeSpentSeconds: req.TimeSpentSeconds,
		SubmittedAt:      &now,
	})
	preview.RecomputeTotals()

	if err := s.previews.Save(ctx, preview); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	return &model.PreviewFeedback{
		QuestionID:   req.QuestionID,
		IsCorrect:    correct,
		Score:        score,
		CorrectKey:   question.Key,
		Explanation:  question.Explanation,
		RunningScore: preview.Score,
		Answer:       req.Answer,
	}, nil
}

// Complete finishes the preview and returns its summary.
func (s *PreviewService) Complete(ctx context.Context, token uuid.UUID) (*model.PreviewAttempt, *grading.Summary, error) {
	now := time.Now()
	preview, err := s.getLive(ctx, token, now)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireInProgress(ctx, preview, now); err != nil {
		return nil, nil, err
	}

	paper, err := s.papers.GetPaper(ctx, preview.PaperID)
	if err != nil {
		return nil, nil, err
	}

	preview.Answers = grading.RegradeAll(paper, preview.Answers)
	summary := grading.Summarize(preview.Answers, preview.TotalQuestions, model.DefaultPassingScore)
	preview.Score = summary.Score
	preview.CorrectAnswers = summary.CorrectAnswers
	preview.Status = model.AttemptStatusCompleted
	preview.EndTime = &now

	if err := s.previews.Save(ctx, preview); err != nil {
		return nil, nil, fmt.Errorf("save completion: %w", err)
	}
	return preview, &summary, nil
}

// CleanupExpired deletes previews whose TTL lapsed. Run on a schedule;
// reads already treat expired rows as missing, so deletion latency is
// invisible to callers.
func (s *PreviewService) CleanupExpired(ctx context.Context) error {
	deleted, err := s.previews.DeleteExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("delete expired previews: %w", err)
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("Expired previews removed")
	}
	return nil
}

func (s *PreviewService) getLive(ctx context.Context, token uuid.UUID, now time.Time) (*model.PreviewAttempt, error) {
	preview, err := s.previews.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preview: %w", err)
	}
	if preview.Expired(now) {
		return nil, ErrNotFound
	}
	return preview, nil
}

func (s *PreviewService) requireInProgress(ctx context.Context, preview *model.PreviewAttempt, now time.Time) error {
	if preview.TimedOut(now) {
		preview.Status = model.AttemptStatusTimeout
		preview.EndTime = &now
		if err := s.previews.Save(ctx, preview); err != nil {
			return fmt.Errorf("save timeout: %w", err)
		}
		return ErrAttemptTimedOut
	}
	if preview.Status.Finished() {
		return ErrAlreadyCompleted
	}
	if preview.Status != model.AttemptStatusInProgress {
		return ErrAttemptNotInProgress
	}
	return nil
}

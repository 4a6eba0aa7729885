package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/model"
)

// SessionStore is the persistence surface the lifecycle manager needs.
// The concrete implementation lives in the repository package; the
// interface exists so the state machine is testable without PostgreSQL.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	ListByCreator(ctx context.Context, creatorID, limit, offset int) ([]model.ExamSession, int, error)
	Update(ctx context.Context, s *model.ExamSession) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error)
	ResetStats(ctx context.Context, id uuid.UUID) error
	SaveStats(ctx context.Context, id uuid.UUID, stats model.SessionStats) error
	ComputeStats(ctx context.Context, sessionID uuid.UUID, passingScore float64) (model.SessionStats, error)
	FindDueForActivation(ctx context.Context, now time.Time) ([]model.ExamSession, error)
	FindDueForCompletion(ctx context.Context, now time.Time) ([]model.ExamSession, error)
}

// PaperWarmer pre-loads a paper into the cache when its session goes live.
type PaperWarmer interface {
	Warm(ctx context.Context, paperID uuid.UUID) error
}

// SessionService owns the exam session status state machine and its
// time-window rules.
type SessionService struct {
	store  SessionStore
	papers PaperWarmer
	log    zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(store SessionStore, papers PaperWarmer, log zerolog.Logger) *SessionService {
	return &SessionService{
		store:  store,
		papers: papers,
		log:    log.With().Str("component", "session_service").Logger(),
	}
}

// Create schedules a new session in DRAFT status.
func (s *SessionService) Create(ctx context.Context, req *model.CreateSessionRequest, creatorID int) (*model.ExamSession, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	session := &model.ExamSession{
		PaperID:         req.PaperID,
		CreatorID:       creatorID,
		Title:           req.Title,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		Status:          model.SessionStatusDraft,
		Settings: model.SessionSettings{
			MaxAttempts:      maxAttempts,
			PassingScore:     req.PassingScore,
			AllowReview:      req.AllowReview,
			ShuffleQuestions: req.ShuffleQuestions,
			ShuffleOptions:   req.ShuffleOptions,
		},
		AllowedUserIDs: req.AllowedUserIDs,
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetByID retrieves a session.
func (s *SessionService) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListByCreator retrieves sessions owned by a creator with pagination.
func (s *SessionService) ListByCreator(ctx context.Context, creatorID, page, perPage int) ([]model.ExamSession, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	sessions, total, err := s.store.ListByCreator(ctx, creatorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, total, nil
}

// Update edits a session's schedule, paper, and settings. Only DRAFT and
// PUBLISHED sessions are editable; once a session goes live its terms are
// fixed for every participant.
func (s *SessionService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateSessionRequest) (*model.ExamSession, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusDraft && session.Status != model.SessionStatusPublished {
		return nil, ErrInvalidTransition
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.PaperID != nil {
		session.PaperID = req.PaperID
	}
	if req.StartTime != nil {
		session.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = *req.EndTime
	}
	if !session.EndTime.After(session.StartTime) {
		return nil, ErrTimeWindow
	}
	if req.DurationMinutes != nil {
		session.DurationMinutes = *req.DurationMinutes
	}
	if req.MaxAttempts != nil {
		session.Settings.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore != nil {
		session.Settings.PassingScore = *req.PassingScore
	}
	if req.AllowReview != nil {
		session.Settings.AllowReview = *req.AllowReview
	}
	if req.ShuffleQuestions != nil {
		session.Settings.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		session.Settings.ShuffleOptions = *req.ShuffleOptions
	}
	if req.AllowedUserIDs != nil {
		session.AllowedUserIDs = req.AllowedUserIDs
	}

	if err := s.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// UpdateStatus requests one status transition. A request whose target
// equals the current status is a no-op success; anything outside the
// transition table fails. Per-target time rules apply against now.
func (s *SessionService) UpdateStatus(ctx context.Context, id uuid.UUID, target model.SessionStatus) (*model.ExamSession, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, session, target, time.Now())
}

// BatchUpdateStatus applies the same transition independently to each
// session, collecting per-item outcomes. Partial success is expected.
func (s *SessionService) BatchUpdateStatus(ctx context.Context, ids []uuid.UUID, target model.SessionStatus) []model.BatchStatusResult {
	results := make([]model.BatchStatusResult, 0, len(ids))
	for _, id := range ids {
		res := model.BatchStatusResult{SessionID: id, OK: true}
		if _, err := s.UpdateStatus(ctx, id, target); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// transition runs the single-transition rules against the given clock.
func (s *SessionService) transition(ctx context.Context, session *model.ExamSession, target model.SessionStatus, now time.Time) (*model.ExamSession, error) {
	if session.Status == target {
		return session, nil // No-op success.
	}
	if !session.Status.CanTransitionTo(target) {
		return nil, ErrInvalidTransition
	}

	switch target {
	case model.SessionStatusPublished:
		// Publishing after the announced start would let takers join a
		// window that is already burning down.
		if !now.Before(session.StartTime) {
			return nil, ErrTimeWindow
		}
	case model.SessionStatusActive:
		if session.PaperID == nil {
			return nil, ErrNoPaper
		}
		if !session.WithinWindow(now) {
			return nil, ErrTimeWindow
		}
	}

	ok, err := s.store.UpdateStatus(ctx, session.ID, session.Status, target)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		// Lost a race with a concurrent transition. Re-read: if the row
		// already landed on the target the request is satisfied.
		current, err := s.GetByID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		return nil, ErrInvalidTransition
	}

	session.Status = target

	if target == model.SessionStatusActive {
		if err := s.store.ResetStats(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("reset stats: %w", err)
		}
		session.Stats = model.SessionStats{}

		if err := s.papers.Warm(ctx, *session.PaperID); err != nil {
			// The read-through cache self-heals; activation still stands.
			s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Paper cache warm failed")
		}
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(target)).
		Msg("Session status updated")
	return session, nil
}

// Sweep auto-activates PUBLISHED sessions whose window has opened and
// auto-completes ACTIVE sessions whose window has closed. Safe to run
// concurrently with ordinary requests: each transition is a
// compare-and-set, so re-running on an already-moved session is a no-op.
func (s *SessionService) Sweep(ctx context.Context) error {
	now := time.Now()

	toActivate, err := s.store.FindDueForActivation(ctx, now)
	if err != nil {
		return fmt.Errorf("find due for activation: %w", err)
	}
	for i := range toActivate {
		if _, err := s.transition(ctx, &toActivate[i], model.SessionStatusActive, now); err != nil {
			if errors.Is(err, ErrNoPaper) {
				// Cannot go live without a paper; leave it PUBLISHED for
				// the operator to fix.
				s.log.Warn().Str("session_id", toActivate[i].ID.String()).Msg("Sweep skipped paperless session")
				continue
			}
			s.log.Error().Err(err).Str("session_id", toActivate[i].ID.String()).Msg("Sweep activation failed")
		}
	}

	toComplete, err := s.store.FindDueForCompletion(ctx, now)
	if err != nil {
		return fmt.Errorf("find due for completion: %w", err)
	}
	for i := range toComplete {
		if _, err := s.transition(ctx, &toComplete[i], model.SessionStatusCompleted, now); err != nil {
			s.log.Error().Err(err).Str("session_id", toComplete[i].ID.String()).Msg("Sweep completion failed")
		}
	}

	if len(toActivate) > 0 || len(toComplete) > 0 {
		s.log.Info().
			Int("activated", len(toActivate)).
			Int("completed", len(toComplete)).
			Msg("Session sweep finished")
	}
	return nil
}

// RefreshStats recomputes and stores a session's aggregates from its
// attempts. Called after every attempt completion and re-grade.
func (s *SessionService) RefreshStats(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	stats, err := s.store.ComputeStats(ctx, sessionID, session.PassingScore())
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}
	if err := s.store.SaveStats(ctx, sessionID, stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examforge-backend/internal/model"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, paper_id, creator_id, title, start_time, end_time,
	duration_minutes, status, settings, allowed_user_ids, stats, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var settings, allowed, stats []byte
	err := row.Scan(
		&s.ID, &s.PaperID, &s.CreatorID, &s.Title, &s.StartTime, &s.EndTime,
		&s.DurationMinutes, &s.Status, &settings, &allowed, &stats,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &s.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(allowed) > 0 {
		if err := json.Unmarshal(allowed, &s.AllowedUserIDs); err != nil {
			return nil, fmt.Errorf("decode allow list: %w", err)
		}
	}
	if err := json.Unmarshal(stats, &s.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return s, nil
}

// Create inserts a new session in DRAFT status.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	allowed, err := json.Marshal(s.AllowedUserIDs)
	if err != nil {
		return fmt.Errorf("encode allow list: %w", err)
	}
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions
			(paper_id, creator_id, title, start_time, end_time, duration_minutes, status, settings, allowed_user_ids, stats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		s.PaperID, s.CreatorID, s.Title, s.StartTime, s.EndTime,
		s.DurationMinutes, s.Status, settings, allowed, stats,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// ListByCreator retrieves sessions owned by a creator, newest first.
func (r *ExamSessionRepository) ListByCreator(ctx context.Context, creatorID, limit, offset int) ([]model.ExamSession, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE creator_id = $1`, creatorID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE creator_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, creatorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

// Update writes back a session's editable schedule and settings fields.
// Status and stats have their own dedicated writers.
func (r *ExamSessionRepository) Update(ctx context.Context, s *model.ExamSession) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	allowed, err := json.Marshal(s.AllowedUserIDs)
	if err != nil {
		return fmt.Errorf("encode allow list: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET paper_id = $1, title = $2, start_time = $3, end_time = $4,
		     duration_minutes = $5, settings = $6, allowed_user_ids = $7,
		     updated_at = NOW()
		 WHERE id = $8`,
		s.PaperID, s.Title, s.StartTime, s.EndTime,
		s.DurationMinutes, settings, allowed, s.ID)
	return err
}

// UpdateStatus moves a session from one status to another with a
// compare-and-set on the current status. Returns false without error
// when the row was already moved by a concurrent caller, which is what
// makes the background sweep idempotent.
func (r *ExamSessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ResetStats zeroes a session's aggregate stats (done on activation).
func (r *ExamSessionRepository) ResetStats(ctx context.Context, id uuid.UUID) error {
	zero, _ := json.Marshal(model.SessionStats{})
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET stats = $1, updated_at = NOW() WHERE id = $2`, zero, id)
	return err
}

// SaveStats writes back recomputed aggregate stats.
func (r *ExamSessionRepository) SaveStats(ctx context.Context, id uuid.UUID, stats model.SessionStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE exam_sessions SET stats = $1, updated_at = NOW() WHERE id = $2`, raw, id)
	return err
}

// ComputeStats aggregates session stats from the attempts table. The
// pass rate uses the session's configured passing score threshold on
// the attempt accuracy.
func (r *ExamSessionRepository) ComputeStats(ctx context.Context, sessionID uuid.UUID, passingScore float64) (model.SessionStats, error) {
	var stats model.SessionStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COALESCE(AVG(score) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(AVG(
				CASE WHEN total_questions > 0
					AND correct_answers::float8 / total_questions * 100 >= $2
				THEN 100.0 ELSE 0.0 END
			) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (end_time - start_time)))
				FILTER (WHERE status = 'COMPLETED' AND start_time IS NOT NULL AND end_time IS NOT NULL), 0)
		 FROM attempts
		 WHERE session_id = $1`,
		sessionID, passingScore,
	).Scan(&stats.ParticipantCount, &stats.CompletionCount, &stats.AverageScore,
		&stats.PassRate, &stats.AverageTimeSeconds)
	return stats, err
}

// FindDueForActivation returns PUBLISHED sessions whose window has opened.
func (r *ExamSessionRepository) FindDueForActivation(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	return r.findByStatusAndWindow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE status = $1 AND start_time <= $2 AND end_time > $2`,
		model.SessionStatusPublished, now)
}

// FindDueForCompletion returns ACTIVE sessions whose window has closed.
func (r *ExamSessionRepository) FindDueForCompletion(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	return r.findByStatusAndWindow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE status = $1 AND end_time <= $2`,
		model.SessionStatusActive, now)
}

func (r *ExamSessionRepository) findByStatusAndWindow(ctx context.Context, query string, status model.SessionStatus, now time.Time) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx, query, status, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

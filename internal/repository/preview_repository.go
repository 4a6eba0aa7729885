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

// PreviewRepository handles ephemeral preview attempt data access.
type PreviewRepository struct {
	pool *pgxpool.Pool
}

// NewPreviewRepository creates a new PreviewRepository.
func NewPreviewRepository(pool *pgxpool.Pool) *PreviewRepository {
	return &PreviewRepository{pool: pool}
}

const previewColumns = `token, paper_id, status, start_time, end_time, answers,
	score, total_questions, correct_answers, time_limit_minutes, expires_at, created_at`

func scanPreview(row interface{ Scan(...any) error }) (*model.PreviewAttempt, error) {
	p := &model.PreviewAttempt{}
	var answers []byte
	err := row.Scan(
		&p.Token, &p.PaperID, &p.Status, &p.StartTime, &p.EndTime, &answers,
		&p.Score, &p.TotalQuestions, &p.CorrectAnswers, &p.TimeLimitMinutes,
		&p.ExpiresAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &p.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return p, nil
}

// Create inserts a fresh preview attempt.
func (r *PreviewRepository) Create(ctx context.Context, p *model.PreviewAttempt) error {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO preview_attempts
			(token, paper_id, status, answers, total_questions, time_limit_minutes, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		p.Token, p.PaperID, p.Status, answers, p.TotalQuestions,
		p.TimeLimitMinutes, p.ExpiresAt,
	).Scan(&p.CreatedAt)
}

// GetByToken retrieves a preview attempt by its opaque token.
func (r *PreviewRepository) GetByToken(ctx context.Context, token uuid.UUID) (*model.PreviewAttempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+previewColumns+` FROM preview_attempts WHERE token = $1`, token)
	return scanPreview(row)
}

// Save persists the full mutable state of a preview attempt.
func (r *PreviewRepository) Save(ctx context.Context, p *model.PreviewAttempt) error {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE preview_attempts
		 SET status = $1, start_time = $2, end_time = $3, answers = $4,
		     score = $5, correct_answers = $6
		 WHERE token = $7`,
		p.Status, p.StartTime, p.EndTime, answers, p.Score, p.CorrectAnswers, p.Token)
	return err
}

// DeleteExpired removes preview attempts whose TTL lapsed before now.
// Returns the number of rows removed. Reads already treat expired rows
// as not-found, so this is storage hygiene only.
func (r *PreviewRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM preview_attempts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

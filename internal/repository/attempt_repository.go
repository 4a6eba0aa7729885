package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examforge-backend/internal/model"
)

// AttemptRepository handles attempt data access. The answers list lives
// in a single jsonb column so each attempt reads and writes as one
// document; the unique index on (session_id, user_id) is the only
// concurrency primitive the ledger relies on.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, session_id, user_id, status, start_time, end_time,
	last_active_at, answers, current_question_index, score, total_questions,
	correct_answers, attempts, max_attempts, time_limit_minutes,
	origin_addr, client_signature, created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answers []byte
	err := row.Scan(
		&a.ID, &a.SessionID, &a.UserID, &a.Status, &a.StartTime, &a.EndTime,
		&a.LastActiveAt, &answers, &a.CurrentQuestionIndex, &a.Score,
		&a.TotalQuestions, &a.CorrectAnswers, &a.Attempts, &a.MaxAttempts,
		&a.TimeLimitMinutes, &a.OriginAddr, &a.ClientSignature,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return a, nil
}

// GetBySessionAndUser retrieves the attempt for a session-user pair.
func (r *AttemptRepository) GetBySessionAndUser(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return scanAttempt(row)
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)
	return scanAttempt(row)
}

// Create inserts a new attempt. ON CONFLICT DO NOTHING means a concurrent
// join for the same (session, user) surfaces as pgx.ErrNoRows; the caller
// then refetches the winner's row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts
			(session_id, user_id, status, answers, total_questions, attempts,
			 max_attempts, time_limit_minutes, origin_addr, client_signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id, user_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		a.SessionID, a.UserID, a.Status, answers, a.TotalQuestions,
		a.Attempts, a.MaxAttempts, a.TimeLimitMinutes, a.OriginAddr, a.ClientSignature,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Save persists the full mutable state of an attempt in one write, so a
// failed operation never leaves a half-mutated row behind.
func (r *AttemptRepository) Save(ctx context.Context, a *model.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, start_time = $2, end_time = $3, last_active_at = $4,
		     answers = $5, current_question_index = $6, score = $7,
		     total_questions = $8, correct_answers = $9, attempts = $10,
		     updated_at = NOW()
		 WHERE id = $11`,
		a.Status, a.StartTime, a.EndTime, a.LastActiveAt, answers,
		a.CurrentQuestionIndex, a.Score, a.TotalQuestions, a.CorrectAnswers,
		a.Attempts, a.ID)
	return err
}

// ListBySession retrieves attempts for a session with pagination, newest
// activity first. Used by the operator monitor.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE session_id = $1`, sessionID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, total, rows.Err()
}

// ListActivity returns the recorded suspicious-activity events for an
// attempt, oldest first.
func (r *AttemptRepository) ListActivity(ctx context.Context, attemptID uuid.UUID, limit int) ([]model.ActivityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, kind, detail, occurred_at
		 FROM attempt_activity
		 WHERE attempt_id = $1
		 ORDER BY occurred_at ASC
		 LIMIT $2`, attemptID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ActivityEvent
	for rows.Next() {
		var e model.ActivityEvent
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.Kind, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

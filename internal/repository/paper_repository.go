package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examforge-backend/internal/model"
)

// PaperRepository reads papers and questions authored by the external
// authoring system. This engine never writes them.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetPaper retrieves a paper with its ordered question list.
func (r *PaperRepository) GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p := &model.Paper{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title FROM papers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, text, type, options, answer_key, points, explanation, order_num
		 FROM questions
		 WHERE paper_id = $1
		 ORDER BY order_num ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, *q)
	}
	return p, rows.Err()
}

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	q := &model.Question{}
	var key []byte
	if err := row.Scan(&q.ID, &q.PaperID, &q.Text, &q.Type, &q.Options, &key,
		&q.Points, &q.Explanation, &q.OrderNum); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(key, &q.Key); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	return q, nil
}

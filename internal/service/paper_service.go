package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/model"
)

// PaperStore is the persistent read surface of the external authoring
// system.
type PaperStore interface {
	GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error)
}

// PaperService serves papers through a Redis read-through cache. Grading
// hits the paper on every submission, so the cache sits on the hot path;
// PostgreSQL stays the source of truth and misses self-heal.
type PaperService struct {
	store PaperStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(store PaperStore, rdb *redis.Client, log zerolog.Logger) *PaperService {
	return &PaperService{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "paper_service").Logger(),
	}
}

// GetPaper returns a paper with its full question list and answer keys.
func (s *PaperService) GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	key := config.CacheKey.PaperPayloadKey(id.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var paper model.Paper
		if err := json.Unmarshal([]byte(raw), &paper); err == nil {
			return &paper, nil
		}
		// Corrupt cache entry: drop it and fall through to the database.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("paper cache read: %w", err)
	}

	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	if err := s.cache(ctx, paper); err != nil {
		s.log.Warn().Err(err).Str("paper_id", id.String()).Msg("Paper cache write failed")
	}
	return paper, nil
}

// TakerView returns the paper without answer keys or explanations.
func (s *PaperService) TakerView(ctx context.Context, id uuid.UUID) (*model.PaperView, error) {
	paper, err := s.GetPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	view := paper.TakerView()
	return &view, nil
}

// Warm loads a paper from PostgreSQL into Redis, replacing any stale
// cached copy. Called when a session activates.
func (s *PaperService) Warm(ctx context.Context, id uuid.UUID) error {
	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get paper: %w", err)
	}
	if err := s.cache(ctx, paper); err != nil {
		return err
	}
	s.log.Debug().Str("paper_id", id.String()).Int("questions", len(paper.Questions)).Msg("Paper cache warmed")
	return nil
}

func (s *PaperService) cache(ctx context.Context, paper *model.Paper) error {
	raw, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.PaperPayloadKey(paper.ID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	return nil
}

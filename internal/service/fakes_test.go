package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examforge-backend/internal/model"
)

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	sessions map[uuid.UUID]*model.ExamSession
	stats    map[uuid.UUID]model.SessionStats
	computed model.SessionStats
}

func newFakeSessionStore(sessions ...*model.ExamSession) *fakeSessionStore {
	st := &fakeSessionStore{
		sessions: make(map[uuid.UUID]*model.ExamSession),
		stats:    make(map[uuid.UUID]model.SessionStats),
	}
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		st.sessions[s.ID] = s
	}
	return st
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) ListByCreator(_ context.Context, creatorID, limit, offset int) ([]model.ExamSession, int, error) {
	var out []model.ExamSession
	for _, s := range f.sessions {
		if s.CreatorID == creatorID {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

func (f *fakeSessionStore) Update(_ context.Context, s *model.ExamSession) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (f *fakeSessionStore) ResetStats(_ context.Context, id uuid.UUID) error {
	f.stats[id] = model.SessionStats{}
	if s, ok := f.sessions[id]; ok {
		s.Stats = model.SessionStats{}
	}
	return nil
}

func (f *fakeSessionStore) SaveStats(_ context.Context, id uuid.UUID, stats model.SessionStats) error {
	f.stats[id] = stats
	if s, ok := f.sessions[id]; ok {
		s.Stats = stats
	}
	return nil
}

func (f *fakeSessionStore) ComputeStats(_ context.Context, sessionID uuid.UUID, passingScore float64) (model.SessionStats, error) {
	return f.computed, nil
}

func (f *fakeSessionStore) FindDueForActivation(_ context.Context, now time.Time) ([]model.ExamSession, error) {
	var out []model.ExamSession
	for _, s := range f.sessions {
		if s.Status == model.SessionStatusPublished && !now.Before(s.StartTime) && now.Before(s.EndTime) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) FindDueForCompletion(_ context.Context, now time.Time) ([]model.ExamSession, error) {
	var out []model.ExamSession
	for _, s := range f.sessions {
		if s.Status == model.SessionStatusActive && !now.Before(s.EndTime) {
			out = append(out, *s)
		}
	}
	return out, nil
}

// fakeSessionReader mimics the session service surface the attempt
// ledger depends on.
type fakeSessionReader struct {
	sessions  map[uuid.UUID]*model.ExamSession
	refreshed int
}

func newFakeSessionReader(sessions ...*model.ExamSession) *fakeSessionReader {
	fr := &fakeSessionReader{sessions: make(map[uuid.UUID]*model.ExamSession)}
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		fr.sessions[s.ID] = s
	}
	return fr
}

func (f *fakeSessionReader) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionReader) RefreshStats(_ context.Context, sessionID uuid.UUID) error {
	f.refreshed++
	return nil
}

// fakeAttemptStore is an in-memory AttemptStore keyed like the real
// unique index.
type fakeAttemptStore struct {
	attempts map[uuid.UUID]*model.Attempt
	saves    int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttemptStore) GetBySessionAndUser(_ context.Context, sessionID uuid.UUID, userID int) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.SessionID == sessionID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	for _, existing := range f.attempts {
		if existing.SessionID == a.SessionID && existing.UserID == a.UserID {
			return pgx.ErrNoRows
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) Save(_ context.Context, a *model.Attempt) error {
	cp := *a
	f.attempts[a.ID] = &cp
	f.saves++
	return nil
}

func (f *fakeAttemptStore) ListBySession(_ context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.SessionID == sessionID {
			out = append(out, *a)
		}
	}
	return out, len(out), nil
}

func (f *fakeAttemptStore) ListActivity(_ context.Context, attemptID uuid.UUID, limit int) ([]model.ActivityEvent, error) {
	return nil, nil
}

// fakePaperProvider serves fixed papers.
type fakePaperProvider struct {
	papers map[uuid.UUID]*model.Paper
}

func newFakePaperProvider(papers ...*model.Paper) *fakePaperProvider {
	fp := &fakePaperProvider{papers: make(map[uuid.UUID]*model.Paper)}
	for _, p := range papers {
		fp.papers[p.ID] = p
	}
	return fp
}

func (f *fakePaperProvider) GetPaper(_ context.Context, id uuid.UUID) (*model.Paper, error) {
	p, ok := f.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakePaperProvider) Warm(_ context.Context, id uuid.UUID) error {
	return nil
}

// fakePreviewStore is an in-memory PreviewStore.
type fakePreviewStore struct {
	previews map[uuid.UUID]*model.PreviewAttempt
}

func newFakePreviewStore() *fakePreviewStore {
	return &fakePreviewStore{previews: make(map[uuid.UUID]*model.PreviewAttempt)}
}

func (f *fakePreviewStore) Create(_ context.Context, p *model.PreviewAttempt) error {
	p.CreatedAt = time.Now()
	cp := *p
	f.previews[p.Token] = &cp
	return nil
}

func (f *fakePreviewStore) GetByToken(_ context.Context, token uuid.UUID) (*model.PreviewAttempt, error) {
	p, ok := f.previews[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakePreviewStore) Save(_ context.Context, p *model.PreviewAttempt) error {
	cp := *p
	f.previews[p.Token] = &cp
	return nil
}

func (f *fakePreviewStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for token, p := range f.previews {
		if p.Expired(now) {
			delete(f.previews, token)
			n++
		}
	}
	return n, nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/model"
)

func testSession(status model.SessionStatus, start, end time.Time) *model.ExamSession {
	paperID := uuid.New()
	return &model.ExamSession{
		ID:              uuid.New(),
		PaperID:         &paperID,
		CreatorID:       1,
		Title:           "UTS Matematika",
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: 60,
		Status:          status,
	}
}

func newSessionService(store *fakeSessionStore) *SessionService {
	return NewSessionService(store, &fakePaperProvider{}, zerolog.Nop())
}

func TestSessionCreateDefaults(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)

	now := time.Now()
	session, err := svc.Create(context.Background(), &model.CreateSessionRequest{
		Title:           "Ujian Harian",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(3 * time.Hour),
		DurationMinutes: 90,
	}, 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.Status != model.SessionStatusDraft {
		t.Errorf("status = %s, want DRAFT", session.Status)
	}
	if session.Settings.MaxAttempts != 1 {
		t.Errorf("max attempts = %d, want default 1", session.Settings.MaxAttempts)
	}
	if session.CreatorID != 7 {
		t.Errorf("creator = %d, want 7", session.CreatorID)
	}
}

func TestSessionUpdateEditableStates(t *testing.T) {
	now := time.Now()
	draft := testSession(model.SessionStatusDraft, now.Add(time.Hour), now.Add(3*time.Hour))
	active := testSession(model.SessionStatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	store := newFakeSessionStore(draft, active)
	svc := newSessionService(store)

	title := "UTS Matematika (Revisi)"
	maxAttempts := 3
	updated, err := svc.Update(context.Background(), draft.ID, &model.UpdateSessionRequest{
		Title:       &title,
		MaxAttempts: &maxAttempts,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
	if updated.Settings.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", updated.Settings.MaxAttempts)
	}
	// Untouched fields survive a partial update.
	if updated.DurationMinutes != 60 {
		t.Errorf("duration = %d, want 60", updated.DurationMinutes)
	}

	if _, err := svc.Update(context.Background(), active.ID, &model.UpdateSessionRequest{Title: &title}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("update of active session: err = %v, want ErrInvalidTransition", err)
	}

	badEnd := draft.StartTime.Add(-time.Minute)
	if _, err := svc.Update(context.Background(), draft.ID, &model.UpdateSessionRequest{EndTime: &badEnd}); !errors.Is(err, ErrTimeWindow) {
		t.Errorf("inverted window: err = %v, want ErrTimeWindow", err)
	}
}

func TestSessionTransitionTable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		from    model.SessionStatus
		to      model.SessionStatus
		wantErr error
	}{
		{"draft to published", model.SessionStatusDraft, model.SessionStatusPublished, nil},
		{"draft to cancelled", model.SessionStatusDraft, model.SessionStatusCancelled, nil},
		{"published to active", model.SessionStatusPublished, model.SessionStatusActive, nil},
		{"active to completed", model.SessionStatusActive, model.SessionStatusCompleted, nil},
		{"draft skips to active", model.SessionStatusDraft, model.SessionStatusActive, ErrInvalidTransition},
		{"published back to draft", model.SessionStatusPublished, model.SessionStatusDraft, ErrInvalidTransition},
		{"completed is terminal", model.SessionStatusCompleted, model.SessionStatusActive, ErrInvalidTransition},
		{"cancelled is terminal", model.SessionStatusCancelled, model.SessionStatusPublished, ErrInvalidTransition},
		{"same status is a no-op", model.SessionStatusActive, model.SessionStatusActive, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Window chosen so both publish (before start) and activate
			// (inside window) pass their time checks.
			start := now.Add(time.Hour)
			end := now.Add(3 * time.Hour)
			if tt.to == model.SessionStatusActive || tt.from == model.SessionStatusActive {
				start = now.Add(-time.Hour)
			}

			session := testSession(tt.from, start, end)
			store := newFakeSessionStore(session)
			svc := newSessionService(store)

			updated, err := svc.UpdateStatus(context.Background(), session.ID, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateStatus(%s -> %s) err = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
			if tt.wantErr == nil && updated.Status != tt.to {
				t.Errorf("status = %s, want %s", updated.Status, tt.to)
			}
		})
	}
}

func TestSessionPublishAfterStartRejected(t *testing.T) {
	now := time.Now()
	session := testSession(model.SessionStatusDraft, now.Add(-time.Minute), now.Add(time.Hour))
	svc := newSessionService(newFakeSessionStore(session))

	_, err := svc.UpdateStatus(context.Background(), session.ID, model.SessionStatusPublished)
	if !errors.Is(err, ErrTimeWindow) {
		t.Fatalf("err = %v, want ErrTimeWindow", err)
	}
}

func TestSessionActivateWithoutPaper(t *testing.T) {
	now := time.Now()
	session := testSession(model.SessionStatusPublished, now.Add(-time.Minute), now.Add(time.Hour))
	session.PaperID = nil
	svc := newSessionService(newFakeSessionStore(session))

	_, err := svc.UpdateStatus(context.Background(), session.ID, model.SessionStatusActive)
	if !errors.Is(err, ErrNoPaper) {
		t.Fatalf("err = %v, want ErrNoPaper", err)
	}
}

func TestSessionActivateOutsideWindow(t *testing.T) {
	now := time.Now()
	session := testSession(model.SessionStatusPublished, now.Add(time.Hour), now.Add(2*time.Hour))
	svc := newSessionService(newFakeSessionStore(session))

	_, err := svc.UpdateStatus(context.Background(), session.ID, model.SessionStatusActive)
	if !errors.Is(err, ErrTimeWindow) {
		t.Fatalf("err = %v, want ErrTimeWindow", err)
	}
}

func TestSessionActivationResetsStats(t *testing.T) {
	now := time.Now()
	session := testSession(model.SessionStatusPublished, now.Add(-time.Minute), now.Add(time.Hour))
	session.Stats = model.SessionStats{ParticipantCount: 12, AverageScore: 77}
	store := newFakeSessionStore(session)
	svc := newSessionService(store)

	updated, err := svc.UpdateStatus(context.Background(), session.ID, model.SessionStatusActive)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Stats != (model.SessionStats{}) {
		t.Errorf("stats = %+v, want zeroed", updated.Stats)
	}
}

func TestSessionSweep(t *testing.T) {
	now := time.Now()
	due := testSession(model.SessionStatusPublished, now.Add(-time.Minute), now.Add(time.Hour))
	notYet := testSession(model.SessionStatusPublished, now.Add(time.Hour), now.Add(2*time.Hour))
	expired := testSession(model.SessionStatusActive, now.Add(-2*time.Hour), now.Add(-time.Minute))
	paperless := testSession(model.SessionStatusPublished, now.Add(-time.Minute), now.Add(time.Hour))
	paperless.PaperID = nil

	store := newFakeSessionStore(due, notYet, expired, paperless)
	svc := newSessionService(store)

	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	assertStatus := func(id uuid.UUID, want model.SessionStatus) {
		t.Helper()
		got, err := svc.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status != want {
			t.Errorf("session %s status = %s, want %s", id, got.Status, want)
		}
	}

	assertStatus(due.ID, model.SessionStatusActive)
	assertStatus(notYet.ID, model.SessionStatusPublished)
	assertStatus(expired.ID, model.SessionStatusCompleted)
	assertStatus(paperless.ID, model.SessionStatusPublished)

	// A second sweep must be a no-op, not an error.
	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	assertStatus(due.ID, model.SessionStatusActive)
}

func TestSessionBatchUpdatePartialSuccess(t *testing.T) {
	now := time.Now()
	ok := testSession(model.SessionStatusDraft, now.Add(time.Hour), now.Add(2*time.Hour))
	terminal := testSession(model.SessionStatusCompleted, now.Add(-2*time.Hour), now.Add(-time.Hour))
	store := newFakeSessionStore(ok, terminal)
	svc := newSessionService(store)

	missing := uuid.New()
	results := svc.BatchUpdateStatus(context.Background(), []uuid.UUID{ok.ID, terminal.ID, missing}, model.SessionStatusPublished)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].OK {
		t.Errorf("first result failed: %s", results[0].Error)
	}
	if results[1].OK || results[2].OK {
		t.Errorf("expected failures for terminal and missing sessions: %+v", results[1:])
	}
}

func TestSessionRefreshStats(t *testing.T) {
	now := time.Now()
	session := testSession(model.SessionStatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	store := newFakeSessionStore(session)
	store.computed = model.SessionStats{ParticipantCount: 5, CompletionCount: 3, AverageScore: 81.5, PassRate: 66.67}
	svc := newSessionService(store)

	if err := svc.RefreshStats(context.Background(), session.ID); err != nil {
		t.Fatalf("RefreshStats: %v", err)
	}
	got, _ := svc.GetByID(context.Background(), session.ID)
	if got.Stats.ParticipantCount != 5 || got.Stats.PassRate != 66.67 {
		t.Errorf("stats = %+v, want computed aggregates persisted", got.Stats)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/model"
)

type previewFixture struct {
	svc   *PreviewService
	store *fakePreviewStore
	paper *model.Paper
	q1    uuid.UUID
}

func newPreviewFixture(t *testing.T) *previewFixture {
	t.Helper()

	paper := &model.Paper{ID: uuid.New(), Title: "Latihan IPA"}
	q1 := model.Question{
		ID: uuid.New(), PaperID: paper.ID, Type: model.QuestionTypeSingleChoice,
		Text: "Planet terdekat dari matahari?", Key: model.AnswerKey{Value: "A"},
		Points: 10, Explanation: "Merkurius adalah planet terdekat.", OrderNum: 1,
	}
	q2 := model.Question{
		ID: uuid.New(), PaperID: paper.ID, Type: model.QuestionTypeFillBlank,
		Text: "H2O adalah rumus kimia dari?", Key: model.AnswerKey{Accepted: []string{"air"}},
		Points: 10, OrderNum: 2,
	}
	paper.Questions = []model.Question{q1, q2}

	store := newFakePreviewStore()
	cfg := &config.Config{PreviewTTL: 24 * time.Hour}
	svc := NewPreviewService(store, newFakePaperProvider(paper), cfg, zerolog.Nop())

	return &previewFixture{svc: svc, store: store, paper: paper, q1: q1.ID}
}

func (f *previewFixture) create(t *testing.T) *model.PreviewAttempt {
	t.Helper()
	p, err := f.svc.Create(context.Background(), &model.CreatePreviewRequest{PaperID: f.paper.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestPreviewCreate(t *testing.T) {
	f := newPreviewFixture(t)

	p := f.create(t)
	if p.Token == uuid.Nil {
		t.Fatal("no token minted")
	}
	if p.Status != model.AttemptStatusNotStarted {
		t.Errorf("status = %s, want NOT_STARTED", p.Status)
	}
	if p.TotalQuestions != 2 {
		t.Errorf("total questions = %d, want 2", p.TotalQuestions)
	}
	if !p.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Errorf("expires at %v, want about 24h out", p.ExpiresAt)
	}

	// Previews have no cap: a rerun is simply a fresh token.
	again := f.create(t)
	if again.Token == p.Token {
		t.Error("rerun reused the previous token")
	}
}

func TestPreviewSubmitRevealsAnswerKey(t *testing.T) {
	f := newPreviewFixture(t)
	p := f.create(t)
	if _, err := f.svc.Start(context.Background(), p.Token); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fb, err := f.svc.Submit(context.Background(), p.Token, &model.SubmitAnswerRequest{
		QuestionID: f.q1, Answer: model.TextAnswer("B"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if fb.IsCorrect || fb.Score != 0 {
		t.Errorf("feedback = correct=%v score=%.1f, want wrong answer", fb.IsCorrect, fb.Score)
	}
	if fb.CorrectKey.Value != "A" {
		t.Errorf("correct key = %q, want revealed key A", fb.CorrectKey.Value)
	}
	if fb.Explanation == "" {
		t.Error("explanation withheld")
	}

	// Resubmission upserts and feedback tracks the running score.
	fb, err = f.svc.Submit(context.Background(), p.Token, &model.SubmitAnswerRequest{
		QuestionID: f.q1, Answer: model.TextAnswer("A"),
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !fb.IsCorrect || fb.RunningScore != 10 {
		t.Errorf("feedback = correct=%v running=%.1f, want corrected to 10", fb.IsCorrect, fb.RunningScore)
	}
}

func TestPreviewComplete(t *testing.T) {
	f := newPreviewFixture(t)
	p := f.create(t)
	if _, err := f.svc.Start(context.Background(), p.Token); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), p.Token, &model.SubmitAnswerRequest{
		QuestionID: f.q1, Answer: model.TextAnswer("A"),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done, summary, err := f.svc.Complete(context.Background(), p.Token)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != model.AttemptStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", done.Status)
	}
	if done.Score != 10 || done.CorrectAnswers != 1 {
		t.Errorf("score = %.1f/%d, want 10/1", done.Score, done.CorrectAnswers)
	}
	if summary.AnsweredQuestions != 1 || summary.SkippedQuestions != 1 {
		t.Errorf("summary = %+v, want 1 answered / 1 skipped", summary)
	}

	if _, _, err := f.svc.Complete(context.Background(), p.Token); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("second Complete err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestPreviewExpiryBehavesAsNotFound(t *testing.T) {
	f := newPreviewFixture(t)
	p := f.create(t)

	// Force the TTL into the past.
	stored, _ := f.store.GetByToken(context.Background(), p.Token)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	f.store.Save(context.Background(), stored)

	if _, err := f.svc.Get(context.Background(), p.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Start(context.Background(), p.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Submit(context.Background(), p.Token, &model.SubmitAnswerRequest{
		QuestionID: f.q1, Answer: model.TextAnswer("A"),
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Submit err = %v, want ErrNotFound", err)
	}
}

func TestPreviewCleanupExpired(t *testing.T) {
	f := newPreviewFixture(t)
	live := f.create(t)
	dead := f.create(t)

	stored, _ := f.store.GetByToken(context.Background(), dead.Token)
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	f.store.Save(context.Background(), stored)

	if err := f.svc.CleanupExpired(context.Background()); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if _, err := f.store.GetByToken(context.Background(), dead.Token); err == nil {
		t.Error("expired preview survived cleanup")
	}
	if _, err := f.svc.Get(context.Background(), live.Token); err != nil {
		t.Errorf("live preview lost: %v", err)
	}
}

func TestPreviewTimeLimit(t *testing.T) {
	f := newPreviewFixture(t)
	p, err := f.svc.Create(context.Background(), &model.CreatePreviewRequest{
		PaperID: f.paper.ID, TimeLimitMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Start(context.Background(), p.Token); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stored, _ := f.store.GetByToken(context.Background(), p.Token)
	past := time.Now().Add(-31 * time.Minute)
	stored.StartTime = &past
	f.store.Save(context.Background(), stored)

	if _, err := f.svc.Submit(context.Background(), p.Token, &model.SubmitAnswerRequest{
		QuestionID: f.q1, Answer: model.TextAnswer("A"),
	}); !errors.Is(err, ErrAttemptTimedOut) {
		t.Fatalf("err = %v, want ErrAttemptTimedOut", err)
	}

	after, _ := f.store.GetByToken(context.Background(), p.Token)
	if after.Status != model.AttemptStatusTimeout {
		t.Errorf("status = %s, want TIMEOUT persisted", after.Status)
	}
}

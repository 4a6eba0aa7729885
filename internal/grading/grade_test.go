package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/model"
)

func singleChoiceQuestion(correct string, points float64) *model.Question {
	return &model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeSingleChoice,
		Key:    model.AnswerKey{Value: correct},
		Points: points,
	}
}

func TestGradeSingleChoice(t *testing.T) {
	q := singleChoiceQuestion("A", 5)

	tests := []struct {
		name      string
		submitted model.AnswerValue
		wantOK    bool
		wantScore float64
	}{
		{"exact match", model.TextAnswer("A"), true, 5},
		{"wrong option", model.TextAnswer("B"), false, 0},
		{"case matters", model.TextAnswer("a"), false, 0},
		{"empty submission", model.TextAnswer(""), false, 0},
		{"wrong kind", model.ChoiceAnswer("A"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, score := Grade(q, tt.submitted)
			if ok != tt.wantOK || score != tt.wantScore {
				t.Fatalf("Grade() = (%v, %v), want (%v, %v)", ok, score, tt.wantOK, tt.wantScore)
			}
		})
	}
}

func TestGradeMultipleChoice(t *testing.T) {
	q := &model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeMultipleChoice,
		Key:    model.AnswerKey{Values: []string{"A", "C"}},
		Points: 4,
	}

	tests := []struct {
		name      string
		submitted model.AnswerValue
		wantOK    bool
	}{
		{"same set same order", model.ChoiceAnswer("A", "C"), true},
		{"same set reversed", model.ChoiceAnswer("C", "A"), true},
		{"partial overlap", model.ChoiceAnswer("A"), false},
		{"superset", model.ChoiceAnswer("A", "B", "C"), false},
		{"disjoint", model.ChoiceAnswer("B", "D"), false},
		{"duplicate member", model.ChoiceAnswer("A", "A"), false},
		{"empty", model.ChoiceAnswer(), false},
		{"wrong kind", model.TextAnswer("A,C"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, score := Grade(q, tt.submitted)
			if ok != tt.wantOK {
				t.Fatalf("Grade() correct = %v, want %v", ok, tt.wantOK)
			}
			if ok && score != q.Points {
				t.Fatalf("correct answer scored %v, want %v", score, q.Points)
			}
			if !ok && score != 0 {
				t.Fatalf("incorrect answer scored %v, want 0", score)
			}
		})
	}
}

func TestGradeFillBlank(t *testing.T) {
	q := &model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeFillBlank,
		Key:    model.AnswerKey{Accepted: []string{"Paris", "paris "}},
		Points: 2,
	}

	tests := []struct {
		name      string
		submitted model.AnswerValue
		wantOK    bool
	}{
		{"exact", model.TextAnswer("Paris"), true},
		{"case and whitespace insensitive", model.TextAnswer("  PARIS "), true},
		{"variant with trailing space", model.TextAnswer("paris"), true},
		{"wrong answer", model.TextAnswer("London"), false},
		{"empty", model.TextAnswer("   "), false},
		{"fragments joined", model.ChoiceAnswer("Paris"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := Grade(q, tt.submitted)
			if ok != tt.wantOK {
				t.Fatalf("Grade() correct = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestGradeUnknownType(t *testing.T) {
	q := &model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionType("ESSAY"),
		Key:    model.AnswerKey{Value: "anything"},
		Points: 10,
	}

	ok, score := Grade(q, model.TextAnswer("anything"))
	if ok || score != 0 {
		t.Fatalf("unknown type graded (%v, %v), want (false, 0)", ok, score)
	}
}

func TestRegradeAll(t *testing.T) {
	q1 := singleChoiceQuestion("A", 5)
	q2 := singleChoiceQuestion("B", 3)
	paper := &model.Paper{ID: uuid.New(), Questions: []model.Question{*q1, *q2}}

	answers := []model.AnswerRecord{
		// Recorded as wrong at submission time; the key now says A.
		{QuestionID: q1.ID, Answer: model.TextAnswer("A"), IsCorrect: false, Score: 0},
		{QuestionID: q2.ID, Answer: model.TextAnswer("C"), IsCorrect: true, Score: 3},
		// Question deleted from the paper since submission.
		{QuestionID: uuid.New(), Answer: model.TextAnswer("B"), IsCorrect: true, Score: 9},
	}

	out := RegradeAll(paper, answers)

	if !out[0].IsCorrect || out[0].Score != 5 {
		t.Fatalf("record 0 = (%v, %v), want (true, 5)", out[0].IsCorrect, out[0].Score)
	}
	if out[1].IsCorrect || out[1].Score != 0 {
		t.Fatalf("record 1 = (%v, %v), want (false, 0)", out[1].IsCorrect, out[1].Score)
	}
	if out[2].IsCorrect || out[2].Score != 0 {
		t.Fatalf("record 2 = (%v, %v), want (false, 0)", out[2].IsCorrect, out[2].Score)
	}

	// Input slice must stay untouched.
	if answers[0].IsCorrect {
		t.Fatal("RegradeAll mutated its input")
	}
}

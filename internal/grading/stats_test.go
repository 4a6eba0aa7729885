package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examforge-backend/internal/model"
)

func TestSummarize(t *testing.T) {
	answers := []model.AnswerRecord{
		{QuestionID: uuid.New(), Answer: model.TextAnswer("A"), IsCorrect: true, Score: 5, TimeSpentSeconds: 30},
		{QuestionID: uuid.New(), Answer: model.TextAnswer("B"), IsCorrect: false, Score: 0, TimeSpentSeconds: 90},
		{QuestionID: uuid.New(), Answer: model.TextAnswer("C"), IsCorrect: true, Score: 5, TimeSpentSeconds: 0},
		{QuestionID: uuid.New(), Answer: model.TextAnswer(""), IsCorrect: false, Score: 0},
	}

	sum := Summarize(answers, 6, 60)

	if sum.TotalQuestions != 6 {
		t.Fatalf("TotalQuestions = %d, want 6", sum.TotalQuestions)
	}
	if sum.AnsweredQuestions != 3 {
		t.Fatalf("AnsweredQuestions = %d, want 3 (empty submissions do not count)", sum.AnsweredQuestions)
	}
	if sum.SkippedQuestions != 3 {
		t.Fatalf("SkippedQuestions = %d, want 3", sum.SkippedQuestions)
	}
	if sum.CorrectAnswers != 2 {
		t.Fatalf("CorrectAnswers = %d, want 2", sum.CorrectAnswers)
	}
	if sum.Score != 10 {
		t.Fatalf("Score = %v, want 10", sum.Score)
	}
	// 2/6*100 = 33.333... → 33.33
	if sum.Accuracy != 33.33 {
		t.Fatalf("Accuracy = %v, want 33.33", sum.Accuracy)
	}
	// 3/6*100 = 50
	if sum.CompletionRate != 50 {
		t.Fatalf("CompletionRate = %v, want 50", sum.CompletionRate)
	}
	if sum.Grade != "F" {
		t.Fatalf("Grade = %q, want F", sum.Grade)
	}
	if sum.IsPassed {
		t.Fatal("IsPassed = true, want false")
	}
	// Timing only over positive time-spent: (30+90)/2.
	if sum.AvgTimeSeconds != 60 {
		t.Fatalf("AvgTimeSeconds = %v, want 60", sum.AvgTimeSeconds)
	}
	if sum.MinTimeSeconds != 30 || sum.MaxTimeSeconds != 90 {
		t.Fatalf("Min/Max = %d/%d, want 30/90", sum.MinTimeSeconds, sum.MaxTimeSeconds)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, 0, 60)
	if sum.Accuracy != 0 || sum.CompletionRate != 0 || sum.AvgTimeSeconds != 0 {
		t.Fatalf("zero-question summary has non-zero rates: %+v", sum)
	}
	if sum.Grade != "F" {
		t.Fatalf("Grade = %q, want F", sum.Grade)
	}
}

func TestSummarizePassingThreshold(t *testing.T) {
	// 3 of 5 correct = 60.00 accuracy, exactly at the default threshold.
	answers := make([]model.AnswerRecord, 5)
	for i := range answers {
		answers[i] = model.AnswerRecord{
			QuestionID: uuid.New(),
			Answer:     model.TextAnswer("x"),
			IsCorrect:  i < 3,
		}
	}

	sum := Summarize(answers, 5, model.DefaultPassingScore)
	if sum.Accuracy != 60 {
		t.Fatalf("Accuracy = %v, want 60", sum.Accuracy)
	}
	if !sum.IsPassed {
		t.Fatal("accuracy equal to passing score must pass")
	}
	if sum.Grade != "D" {
		t.Fatalf("Grade = %q, want D", sum.Grade)
	}
}

func TestLetterGradeBands(t *testing.T) {
	cases := []struct {
		accuracy float64
		want     string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"},
		{79.99, "C"}, {70, "C"}, {69.99, "D"}, {60, "D"},
		{59.99, "F"}, {0, "F"},
	}
	for _, c := range cases {
		if got := LetterGrade(c.accuracy); got != c.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", c.accuracy, got, c.want)
		}
	}
}

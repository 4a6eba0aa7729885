package grading

import (
	"math"

	"github.com/stemsi/examforge-backend/internal/model"
)

// Summary is the statistics block derived from a completed attempt's
// answers. It is the authoritative user-facing result.
type Summary struct {
	TotalQuestions    int     `json:"total_questions"`
	AnsweredQuestions int     `json:"answered_questions"`
	SkippedQuestions  int     `json:"skipped_questions"`
	CorrectAnswers    int     `json:"correct_answers"`
	Score             float64 `json:"score"`
	Accuracy          float64 `json:"accuracy"`
	CompletionRate    float64 `json:"completion_rate"`
	Grade             string  `json:"grade"`
	IsPassed          bool    `json:"is_passed"`
	AvgTimeSeconds    float64 `json:"avg_time_seconds"`
	MinTimeSeconds    int     `json:"min_time_seconds"`
	MaxTimeSeconds    int     `json:"max_time_seconds"`
}

// Summarize aggregates a completed answer list against the paper's total
// question count. passingScore is the accuracy threshold in percent.
// Percentages are rounded to two decimals; timing stats only consider
// answers with a positive recorded time-spent.
func Summarize(answers []model.AnswerRecord, totalQuestions int, passingScore float64) Summary {
	sum := Summary{TotalQuestions: totalQuestions}

	var timed int
	var totalTime int
	for i := range answers {
		rec := &answers[i]
		if !rec.Answer.IsEmpty() {
			sum.AnsweredQuestions++
		}
		if rec.IsCorrect {
			sum.CorrectAnswers++
		}
		sum.Score += rec.Score

		if rec.TimeSpentSeconds > 0 {
			timed++
			totalTime += rec.TimeSpentSeconds
			if sum.MinTimeSeconds == 0 || rec.TimeSpentSeconds < sum.MinTimeSeconds {
				sum.MinTimeSeconds = rec.TimeSpentSeconds
			}
			if rec.TimeSpentSeconds > sum.MaxTimeSeconds {
				sum.MaxTimeSeconds = rec.TimeSpentSeconds
			}
		}
	}

	sum.SkippedQuestions = totalQuestions - sum.AnsweredQuestions
	if totalQuestions > 0 {
		sum.Accuracy = round2(float64(sum.CorrectAnswers) / float64(totalQuestions) * 100)
		sum.CompletionRate = round2(float64(sum.AnsweredQuestions) / float64(totalQuestions) * 100)
	}
	if timed > 0 {
		sum.AvgTimeSeconds = round2(float64(totalTime) / float64(timed))
	}

	sum.Grade = LetterGrade(sum.Accuracy)
	sum.IsPassed = sum.Accuracy >= passingScore

	return sum
}

// LetterGrade maps an accuracy percentage to its letter band.
func LetterGrade(accuracy float64) string {
	switch {
	case accuracy >= 90:
		return "A"
	case accuracy >= 80:
		return "B"
	case accuracy >= 70:
		return "C"
	case accuracy >= 60:
		return "D"
	default:
		return "F"
	}
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

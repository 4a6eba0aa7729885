// Package grading holds the pure scoring functions shared by the attempt
// and preview ledgers. Nothing in here touches storage or the clock.
package grading

import (
	"strings"

	"github.com/stemsi/examforge-backend/internal/model"
)

// Grade maps (question, submitted answer) to (correctness, awarded score).
// A correct answer earns the question's full point value; everything else
// earns 0. There is no partial credit and no difficulty weighting.
func Grade(q *model.Question, submitted model.AnswerValue) (bool, float64) {
	var correct bool

	switch q.Type {
	case model.QuestionTypeSingleChoice:
		correct = gradeSingleChoice(q.Key, submitted)
	case model.QuestionTypeMultipleChoice:
		correct = gradeMultipleChoice(q.Key, submitted)
	case model.QuestionTypeFillBlank:
		correct = gradeFillBlank(q.Key, submitted)
	default:
		// Unrecognized types are never auto-gradable.
		correct = false
	}

	if !correct {
		return false, 0
	}
	return true, q.Points
}

// RegradeAll re-grades every answer record against the paper's
// authoritative question list and point values, in place of whatever was
// recorded at submission time. Records referencing unknown question ids
// keep their submission but earn nothing. The input slice is not mutated.
func RegradeAll(paper *model.Paper, answers []model.AnswerRecord) []model.AnswerRecord {
	out := make([]model.AnswerRecord, len(answers))
	for i, rec := range answers {
		q := paper.QuestionByID(rec.QuestionID)
		if q == nil {
			rec.IsCorrect = false
			rec.Score = 0
		} else {
			rec.IsCorrect, rec.Score = Grade(q, rec.Answer)
		}
		out[i] = rec
	}
	return out
}

// gradeSingleChoice requires exact equality with the configured value.
func gradeSingleChoice(key model.AnswerKey, submitted model.AnswerValue) bool {
	if submitted.Kind != model.AnswerKindText || submitted.Text == "" {
		return false
	}
	return submitted.Text == key.Value
}

// gradeMultipleChoice requires set equality: same size, same members,
// order-independent. Partial overlap earns nothing.
func gradeMultipleChoice(key model.AnswerKey, submitted model.AnswerValue) bool {
	if submitted.Kind != model.AnswerKindChoices {
		return false
	}
	if len(submitted.Choices) == 0 || len(submitted.Choices) != len(key.Values) {
		return false
	}
	want := make(map[string]struct{}, len(key.Values))
	for _, v := range key.Values {
		want[v] = struct{}{}
	}
	for _, v := range submitted.Choices {
		if _, ok := want[v]; !ok {
			return false
		}
		delete(want, v)
	}
	return len(want) == 0
}

// gradeFillBlank matches the normalized submission against any accepted
// variant. Multiple submitted fragments are joined into one string first.
func gradeFillBlank(key model.AnswerKey, submitted model.AnswerValue) bool {
	var raw string
	switch submitted.Kind {
	case model.AnswerKindText:
		raw = submitted.Text
	case model.AnswerKindChoices:
		raw = strings.Join(submitted.Choices, " ")
	default:
		return false
	}

	got := normalize(raw)
	if got == "" {
		return false
	}
	for _, variant := range key.Accepted {
		if got == normalize(variant) {
			return true
		}
	}
	return false
}

// normalize trims surrounding whitespace and lowercases the value.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package model

import "strings"

// AnswerKind discriminates the two submitted-answer shapes.
type AnswerKind string

const (
	// AnswerKindText carries a single string (single choice, fill blank).
	AnswerKindText AnswerKind = "text"
	// AnswerKindChoices carries a set of selected option values.
	AnswerKindChoices AnswerKind = "choices"
)

// AnswerValue is the tagged union for a submitted answer. Kind selects which
// branch is meaningful; the other stays at its zero value.
type AnswerValue struct {
	Kind    AnswerKind `json:"kind"`
	Text    string     `json:"text,omitempty"`
	Choices []string   `json:"choices,omitempty"`
}

// TextAnswer builds a text-kind answer value.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: AnswerKindText, Text: text}
}

// ChoiceAnswer builds a choices-kind answer value.
func ChoiceAnswer(choices ...string) AnswerValue {
	return AnswerValue{Kind: AnswerKindChoices, Choices: choices}
}

// IsEmpty reports whether the value carries no submission at all.
// Placeholder records created on Start have empty values so the frontend
// can distinguish answered from unanswered questions.
func (v AnswerValue) IsEmpty() bool {
	switch v.Kind {
	case AnswerKindText:
		return strings.TrimSpace(v.Text) == ""
	case AnswerKindChoices:
		return len(v.Choices) == 0
	}
	return true
}

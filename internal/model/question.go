package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the auto-gradable question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
)

// AnswerKey holds the configured correct answer for a question.
// Exactly one branch is populated, selected by the question type:
// Value for single choice, Values for multiple choice, Accepted for
// fill-blank variants.
type AnswerKey struct {
	Value    string   `json:"value,omitempty"`
	Values   []string `json:"values,omitempty"`
	Accepted []string `json:"accepted,omitempty"`
}

// Question represents a single paper question.
type Question struct {
	ID          uuid.UUID       `json:"id"`
	PaperID     uuid.UUID       `json:"paper_id"`
	Text        string          `json:"text"`
	Type        QuestionType    `json:"type"`
	Options     json.RawMessage `json:"options,omitempty"`
	Key         AnswerKey       `json:"key"`
	Points      float64         `json:"points"`
	Explanation string          `json:"explanation,omitempty"`
	OrderNum    int             `json:"order_num"`
}

// Paper is an ordered, points-weighted list of questions. Papers are
// authored elsewhere; this engine only reads them.
type Paper struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// TotalPoints sums the configured point values of all questions.
func (p *Paper) TotalPoints() float64 {
	var total float64
	for i := range p.Questions {
		total += p.Questions[i].Points
	}
	return total
}

// QuestionByID returns the question with the given id, or nil.
func (p *Paper) QuestionByID(id uuid.UUID) *Question {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i]
		}
	}
	return nil
}

// QuestionForTaker is a question without its answer key, sent to test-takers.
type QuestionForTaker struct {
	ID       uuid.UUID       `json:"id"`
	Text     string          `json:"text"`
	Type     QuestionType    `json:"type"`
	Options  json.RawMessage `json:"options,omitempty"`
	Points   float64         `json:"points"`
	OrderNum int             `json:"order_num"`
}

// PaperView is the taker-facing projection of a paper.
type PaperView struct {
	PaperID   uuid.UUID          `json:"paper_id"`
	Title     string             `json:"title"`
	Questions []QuestionForTaker `json:"questions"`
}

// TakerView strips answer keys and explanations from the paper.
func (p *Paper) TakerView() PaperView {
	questions := make([]QuestionForTaker, len(p.Questions))
	for i, q := range p.Questions {
		questions[i] = QuestionForTaker{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Type,
			Options:  q.Options,
			Points:   q.Points,
			OrderNum: q.OrderNum,
		}
	}
	return PaperView{PaperID: p.ID, Title: p.Title, Questions: questions}
}

// Package marking grades a submitted set of quiz answers. Objective questions
// are compared against their expected answer, open-ended questions are graded
// in a single batch by a ManualGrader with a deterministic lexical fallback,
// and the per-question results are merged into one AggregatedGradingResponse.
package marking

import (
	"errors"
	"fmt"
	"math"

	"github.com/pavelanni/quizmark/internal/model"
)

// Status is the correctness classification of a graded answer.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusPartial   Status = "partial"
	StatusIncorrect Status = "incorrect"
)

// AnswerToGrade is a submitted answer joined with the metadata of its question.
type AnswerToGrade struct {
	QuestionID    string             `json:"question_id"`
	QuestionText  string             `json:"question_text"`
	QuestionType  model.QuestionType `json:"question_type"`
	UserAnswer    string             `json:"user_answer"`
	CorrectAnswer string             `json:"correct_answer"`
	MarksPossible float64            `json:"marks_possible"`
	Explanation   string             `json:"explanation,omitempty"`
}

// GradingResult is the marking of a single answer.
type GradingResult struct {
	QuestionID        string  `json:"question_id"`
	IsCorrect         bool    `json:"is_correct"`
	CorrectnessStatus Status  `json:"correctness_status"`
	MarksAwarded      float64 `json:"marks_awarded"`
	MarksPossible     float64 `json:"marks_possible"`
	Feedback          string  `json:"feedback"`
}

// AggregatedGradingResponse is the marking of a whole submission.
type AggregatedGradingResponse struct {
	OverallFeedback    string          `json:"overall_feedback"`
	TotalMarksPossible float64         `json:"total_marks_possible"`
	TotalMarksAwarded  float64         `json:"total_marks_awarded"`
	Percentage         float64         `json:"percentage"`
	QuestionResults    []GradingResult `json:"question_results"`
}

// ErrAIUnavailable is wrapped by every failure of the generative AI call itself.
var ErrAIUnavailable = errors.New("ai grading unavailable")

// ParseError reports a grading response that is not valid JSON or does not
// match the expected schema.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse grading response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ContractError reports answers that violate the caller's input contract.
type ContractError struct {
	QuestionID string
	Reason     string
}

func (e *ContractError) Error() string {
	if e.QuestionID == "" {
		return "invalid answer: " + e.Reason
	}
	return fmt.Sprintf("invalid answer for question %q: %s", e.QuestionID, e.Reason)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// newResult rounds marks to 2 dp without letting them exceed MarksPossible.
func newResult(a AnswerToGrade, status Status, marks float64, feedback string) GradingResult {
	return GradingResult{
		QuestionID:        a.QuestionID,
		IsCorrect:         status == StatusCorrect,
		CorrectnessStatus: status,
		MarksAwarded:      math.Min(round2(marks), a.MarksPossible),
		MarksPossible:     a.MarksPossible,
		Feedback:          feedback,
	}
}

package marking

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/sourcegraph/conc"
)

// Marker is the entry point of the marking pipeline.
type Marker struct {
	grader ManualGrader
	logger *slog.Logger
}

// NewMarker creates a Marker. A nil grader means AI grading is unavailable
// and open-ended answers always go to the fallback grader.
func NewMarker(grader ManualGrader, logger *slog.Logger) *Marker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Marker{grader: grader, logger: logger}
}

// MarkQuiz grades every answer and aggregates the results. Objective answers
// are graded by GradeAuto; open-ended answers are sent to the ManualGrader as
// one batch, falling back to GradeManualFallback when it fails. The only error
// returned is a *ContractError for malformed input.
func (m *Marker) MarkQuiz(ctx context.Context, answers []AnswerToGrade) (AggregatedGradingResponse, error) {
	if err := validateAnswers(answers); err != nil {
		return AggregatedGradingResponse{}, err
	}

	auto, manual := Partition(answers)

	var autoResults, manualResults []GradingResult
	var wg conc.WaitGroup
	wg.Go(func() { autoResults = GradeAutoAll(auto) })
	wg.Go(func() { manualResults = m.gradeManual(ctx, manual) })
	wg.Wait()

	resp := Aggregate(inInputOrder(answers, append(autoResults, manualResults...)))
	m.logger.Info("quiz marked",
		"questions", len(answers),
		"auto", len(auto),
		"manual", len(manual),
		"awarded", resp.TotalMarksAwarded,
		"possible", resp.TotalMarksPossible,
		"percentage", resp.Percentage,
	)
	return resp, nil
}

func (m *Marker) gradeManual(ctx context.Context, answers []AnswerToGrade) []GradingResult {
	if len(answers) == 0 {
		return nil
	}
	if m.grader == nil {
		return GradeManualFallback(answers)
	}

	graded, err := m.grader.GradeManual(ctx, answers)
	if err != nil {
		var perr *ParseError
		switch {
		case errors.As(err, &perr):
			m.logger.Warn("ai grading response invalid, using fallback grader", "error", err)
		case errors.Is(err, ErrAIUnavailable):
			m.logger.Warn("ai grading unavailable, using fallback grader", "error", err)
		default:
			m.logger.Error("ai grading failed, using fallback grader", "error", err)
		}
		return GradeManualFallback(answers)
	}

	byID := make(map[string]GradingResult, len(graded))
	for _, r := range graded {
		if _, dup := byID[r.QuestionID]; !dup {
			byID[r.QuestionID] = r
		}
	}

	// Questions the grader left out are graded by the fallback one by one.
	results := make([]GradingResult, 0, len(answers))
	missing := 0
	for _, a := range answers {
		if r, ok := byID[a.QuestionID]; ok {
			results = append(results, r)
			continue
		}
		missing++
		results = append(results, gradeFallback(a))
	}
	if missing > 0 {
		m.logger.Warn("ai grading omitted questions, used fallback grader for them", "missing", missing, "total", len(answers))
	}
	return results
}

// inInputOrder reorders results to match the submitted answers.
func inInputOrder(answers []AnswerToGrade, results []GradingResult) []GradingResult {
	byID := make(map[string]GradingResult, len(results))
	for _, r := range results {
		byID[r.QuestionID] = r
	}
	ordered := make([]GradingResult, 0, len(answers))
	for _, a := range answers {
		ordered = append(ordered, byID[a.QuestionID])
	}
	return ordered
}

func validateAnswers(answers []AnswerToGrade) error {
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if a.QuestionID == "" {
			return &ContractError{Reason: "missing question id"}
		}
		if seen[a.QuestionID] {
			return &ContractError{QuestionID: a.QuestionID, Reason: "duplicate answer"}
		}
		seen[a.QuestionID] = true
		if !(a.MarksPossible > 0) || math.IsInf(a.MarksPossible, 0) {
			return &ContractError{QuestionID: a.QuestionID, Reason: "marks possible must be a positive number"}
		}
	}
	return nil
}

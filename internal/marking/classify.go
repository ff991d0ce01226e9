package marking

import "github.com/pavelanni/quizmark/internal/model"

// Strategy selects how a question is graded.
type Strategy string

const (
	StrategyAuto   Strategy = "auto"
	StrategyManual Strategy = "manual"
)

// Classify maps a question type to its grading strategy. Unknown types are
// graded manually so they receive judgement instead of a silent zero.
func Classify(t model.QuestionType) Strategy {
	switch t {
	case model.QuestionMCQ, model.QuestionTrueFalse, model.QuestionFill:
		return StrategyAuto
	default:
		return StrategyManual
	}
}

// Partition splits answers into auto and manual sets, preserving order.
func Partition(answers []AnswerToGrade) (auto, manual []AnswerToGrade) {
	for _, a := range answers {
		if Classify(a.QuestionType) == StrategyAuto {
			auto = append(auto, a)
		} else {
			manual = append(manual, a)
		}
	}
	return auto, manual
}

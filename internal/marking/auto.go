package marking

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalize trims and lower-cases s. A Caser is stateful, so one is created
// per call.
func normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// GradeAuto grades an objective answer by exact comparison after trimming and
// lower-casing. There is no partial credit, and a blank answer is simply wrong.
func GradeAuto(a AnswerToGrade) GradingResult {
	if normalize(a.UserAnswer) == normalize(a.CorrectAnswer) {
		return newResult(a, StatusCorrect, a.MarksPossible, withExplanation("Correct! Well done.", a.Explanation))
	}
	feedback := "Incorrect. The correct answer is: " + a.CorrectAnswer
	return newResult(a, StatusIncorrect, 0, withExplanation(feedback, a.Explanation))
}

// GradeAutoAll grades every answer with GradeAuto, in order.
func GradeAutoAll(answers []AnswerToGrade) []GradingResult {
	results := make([]GradingResult, 0, len(answers))
	for _, a := range answers {
		results = append(results, GradeAuto(a))
	}
	return results
}

func withExplanation(feedback, explanation string) string {
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return feedback
	}
	return feedback + " " + explanation
}
